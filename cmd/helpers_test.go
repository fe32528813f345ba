package cmd

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"testing"

	"github.com/lylexist/deepseek-ocr-ui/pkg/providers"
)

// groundedText has three regions in percent space
const groundedText = "<|ref|>title<|/ref|><|det|>[[10,10,50,20]]<|/det|>\nTitle\n" +
	"<|ref|>text<|/ref|><|det|>[[10,30,90,60],[10,70,90,95]]<|/det|>\nBody"

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write png: %v", err)
	}
}

// fakeProvider replays chunks as a stream; the last chunk is the full output
type fakeProvider struct {
	chunks []string
	err    error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) ValidateConfig(config providers.Config) error { return nil }

func (f *fakeProvider) ExtractText(ctx context.Context, config providers.Config, imagePath, imageBase64 string) (string, providers.UsageInfo, error) {
	if f.err != nil {
		return "", providers.UsageInfo{}, f.err
	}
	return f.chunks[len(f.chunks)-1], providers.UsageInfo{}, nil
}

func (f *fakeProvider) StreamText(ctx context.Context, config providers.Config, imagePath, imageBase64 string, onChunk providers.StreamFunc) (string, providers.UsageInfo, error) {
	if f.err != nil {
		return "", providers.UsageInfo{}, f.err
	}
	for _, c := range f.chunks {
		onChunk(c)
	}
	return f.chunks[len(f.chunks)-1], providers.UsageInfo{}, nil
}
