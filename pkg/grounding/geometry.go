package grounding

import (
	"fmt"
	"math"
)

// NativeBox is a box in the source image's pixel grid with X1 <= X2 and Y1 <= Y2.
// It is not clamped to the image bounds.
type NativeBox struct {
	X1 float64 `json:"x1" yaml:"x1"`
	Y1 float64 `json:"y1" yaml:"y1"`
	X2 float64 `json:"x2" yaml:"x2"`
	Y2 float64 `json:"y2" yaml:"y2"`
}

// Width of the box in native pixels
func (b NativeBox) Width() float64 { return b.X2 - b.X1 }

// Height of the box in native pixels
func (b NativeBox) Height() float64 { return b.Y2 - b.Y1 }

// Finite reports whether every corner and both extents are finite
func (b NativeBox) Finite() bool {
	for _, f := range [...]float64{b.X1, b.Y1, b.X2, b.Y2, b.Width(), b.Height()} {
		if !isFinite(f) {
			return false
		}
	}
	return true
}

// Mapping selects how grid coordinates are projected onto the image
type Mapping int

const (
	// MappingPerAxis scales x by width and y by height independently
	MappingPerAxis Mapping = iota
	// MappingLetterbox assumes the model padded the image into a square grid
	MappingLetterbox
)

// MapToNative converts a raw box into native pixel coordinates.
// Mapping with SpaceUnknown is a caller bug and panics.
func MapToNative(box RawBox, space Space, width, height float64) NativeBox {
	mustClassified(space)

	x1, y1, x2, y2 := box[0], box[1], box[2], box[3]
	if space != SpacePixel {
		d := space.Denominator()
		sx, sy := width/d, height/d
		x1, x2 = x1*sx, x2*sx
		y1, y2 = y1*sy, y2*sy
	}

	return normalized(x1, y1, x2, y2)
}

// MapToNativeLetterboxed undoes a centered square letterbox: the longer image side
// spans the whole grid and the shorter side is padded equally on both ends.
// Degenerate image sizes fall back to MapToNative.
func MapToNativeLetterboxed(box RawBox, space Space, width, height float64) NativeBox {
	mustClassified(space)

	if space == SpacePixel || width <= 0 || height <= 0 {
		return MapToNative(box, space, width, height)
	}

	d := space.Denominator()
	long := math.Max(width, height)
	scale := long / d
	padX := (long - width) / 2
	padY := (long - height) / 2

	return normalized(
		box[0]*scale-padX,
		box[1]*scale-padY,
		box[2]*scale-padX,
		box[3]*scale-padY,
	)
}

// Map dispatches on the mapping mode
func (m Mapping) Map(box RawBox, space Space, width, height float64) NativeBox {
	if m == MappingLetterbox {
		return MapToNativeLetterboxed(box, space, width, height)
	}
	return MapToNative(box, space, width, height)
}

func (m Mapping) String() string {
	if m == MappingLetterbox {
		return "letterbox"
	}
	return "per-axis"
}

// MarshalText serializes the mapping by name
func (m Mapping) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mapping) UnmarshalText(text []byte) error {
	switch string(text) {
	case "per-axis", "":
		*m = MappingPerAxis
	case "letterbox":
		*m = MappingLetterbox
	default:
		return fmt.Errorf("grounding: unknown mapping %q", text)
	}
	return nil
}

func normalized(x1, y1, x2, y2 float64) NativeBox {
	return NativeBox{
		X1: math.Min(x1, x2),
		Y1: math.Min(y1, y2),
		X2: math.Max(x1, x2),
		Y2: math.Max(y1, y2),
	}
}

func mustClassified(space Space) {
	if space < SpaceNormalized || space > SpacePixel {
		panic(fmt.Sprintf("grounding: mapping a box with unclassified coordinate space %d", int(space)))
	}
}
