package utils

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write png: %v", err)
	}
}

func TestImageFileDimensions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.png")
	writePNG(t, path, 640, 480)

	w, h, err := ImageFileDimensions(path)
	if err != nil {
		t.Fatalf("ImageFileDimensions() error = %v", err)
	}
	if w != 640 || h != 480 {
		t.Errorf("ImageFileDimensions() = %dx%d, want 640x480", w, h)
	}
}

func TestImageDimensionsErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not an image", "# markdown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ImageDimensions(strings.NewReader(tt.input))
			if err == nil {
				t.Error("ImageDimensions() expected error")
			}
		})
	}

	if _, _, err := ImageFileDimensions(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("ImageFileDimensions() expected error for missing file")
	}
}

func TestFindImages(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"b.PNG", "a.jpg", "notes.txt", "sub/c.webp", "sub/d.tiff"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	images, err := FindImages(dir)
	if err != nil {
		t.Fatalf("FindImages() error = %v", err)
	}
	expected := []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.PNG"),
		filepath.Join(dir, "sub", "c.webp"),
		filepath.Join(dir, "sub", "d.tiff"),
	}
	if !reflect.DeepEqual(images, expected) {
		t.Errorf("FindImages() = %v, want %v", images, expected)
	}

	single, err := FindImages(filepath.Join(dir, "notes.txt"))
	if err != nil || len(single) != 1 {
		t.Errorf("FindImages(file) = %v, %v; want the file itself", single, err)
	}

	if _, err := FindImages(filepath.Join(dir, "missing")); err == nil {
		t.Error("FindImages() expected error for missing path")
	}
}

func TestMimeType(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"scan.png", "image/png"},
		{"scan.JPG", "image/jpeg"},
		{"scan.webp", "image/webp"},
		{"scan.tif", "image/tiff"},
		{"scan.bmp", "image/bmp"},
		{"scan", "image/jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if result := MimeType(tt.path); result != tt.expected {
				t.Errorf("MimeType(%q) = %q, want %q", tt.path, result, tt.expected)
			}
		})
	}
}
