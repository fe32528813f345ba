package overlay

import (
	"math"

	"github.com/lylexist/deepseek-ocr-ui/pkg/grounding"
)

// None is the active index when nothing is selected
const None = -1

// Viewport describes an image's stored size and the size it is currently drawn at
type Viewport struct {
	NativeWidth    float64 `json:"native_width" yaml:"native_width"`
	NativeHeight   float64 `json:"native_height" yaml:"native_height"`
	RenderedWidth  float64 `json:"rendered_width" yaml:"rendered_width"`
	RenderedHeight float64 `json:"rendered_height" yaml:"rendered_height"`
}

// HasNativeSize is false until the image has loaded
func (v Viewport) HasNativeSize() bool {
	return v.NativeWidth > 0 && v.NativeHeight > 0
}

// DisplayBox is an on-screen rectangle relative to the image's top-left corner
type DisplayBox struct {
	Left   float64 `json:"left" yaml:"left"`
	Top    float64 `json:"top" yaml:"top"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// ToDisplay scales a native box to the rendered size.
// It reports false when the native size is unknown or the scaled box overflows.
func ToDisplay(box grounding.NativeBox, v Viewport) (DisplayBox, bool) {
	if !v.HasNativeSize() {
		return DisplayBox{}, false
	}

	sx := v.RenderedWidth / v.NativeWidth
	sy := v.RenderedHeight / v.NativeHeight

	d := DisplayBox{
		Left:   box.X1 * sx,
		Top:    box.Y1 * sy,
		Width:  (box.X2 - box.X1) * sx,
		Height: (box.Y2 - box.Y1) * sy,
	}
	if !d.finite() {
		return DisplayBox{}, false
	}
	return d, true
}

func (d DisplayBox) finite() bool {
	for _, f := range [...]float64{d.Left, d.Top, d.Width, d.Height} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Region is one drawable box together with its list entry
type Region struct {
	Index      int        `json:"index" yaml:"index"`
	Annotation int        `json:"annotation" yaml:"annotation"`
	Box        int        `json:"box" yaml:"box"`
	Label      string     `json:"label" yaml:"label"`
	Caption    string     `json:"caption" yaml:"caption"`
	Display    DisplayBox `json:"display" yaml:"display"`
	Visible    bool       `json:"visible" yaml:"visible"`
	Active     bool       `json:"active" yaml:"active"`
}

// Render lays out one region per box in annotation order and marks the region at
// active. Regions are returned even before the image loads, with Visible unset.
func Render(result grounding.Result, v Viewport, active int) []Region {
	var regions []Region

	for i, a := range result.Annotations {
		for j := range a.Boxes {
			var native grounding.NativeBox
			if i < len(result.Native) && j < len(result.Native[i]) {
				native = result.Native[i][j]
			}
			display, ok := ToDisplay(native, v)

			index := len(regions)
			regions = append(regions, Region{
				Index:      index,
				Annotation: i,
				Box:        j,
				Label:      a.Label,
				Caption:    a.Caption,
				Display:    display,
				Visible:    ok,
				Active:     index == active,
			})
		}
	}

	return regions
}

// CountRegions is the number of boxes across all annotations
func CountRegions(result grounding.Result) int {
	n := 0
	for _, a := range result.Annotations {
		n += len(a.Boxes)
	}
	return n
}
