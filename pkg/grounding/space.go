package grounding

import (
	"fmt"
	"math"
)

// Space is the coordinate convention a model used for an entire response
type Space int

const (
	// SpaceUnknown means no classification has been computed yet
	SpaceUnknown Space = iota
	SpaceNormalized
	SpacePercent
	SpaceBinned1000
	SpacePixel
)

// Upper bounds (inclusive) of each tier
const (
	NormalizedLimit = 1.5
	PercentLimit    = 100.0
	Binned1000Limit = 1200.0
)

func (s Space) String() string {
	switch s {
	case SpaceNormalized:
		return "normalized"
	case SpacePercent:
		return "percent"
	case SpaceBinned1000:
		return "binned1000"
	case SpacePixel:
		return "pixel"
	default:
		return "unknown"
	}
}

// MarshalText lets Space serialize by name in JSON and YAML output
func (s Space) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Space) UnmarshalText(text []byte) error {
	for _, candidate := range []Space{SpaceUnknown, SpaceNormalized, SpacePercent, SpaceBinned1000, SpacePixel} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("grounding: unknown coordinate space %q", text)
}

// Denominator is the grid size coordinates are divided by before scaling to the image.
// The 1000-bin grid runs 0..999.
func (s Space) Denominator() float64 {
	switch s {
	case SpacePercent:
		return 100
	case SpaceBinned1000:
		return 999
	default:
		return 1
	}
}

// ClassifyValue picks the tier for a maximum coordinate value m
func ClassifyValue(m float64) Space {
	switch {
	case m <= NormalizedLimit:
		return SpaceNormalized
	case m <= PercentLimit:
		return SpacePercent
	case m <= Binned1000Limit:
		return SpaceBinned1000
	default:
		return SpacePixel
	}
}

// MaxCoordinate returns the largest coordinate across all boxes and whether any box exists
func MaxCoordinate(annotations []Annotation) (float64, bool) {
	m := math.Inf(-1)
	found := false
	for _, a := range annotations {
		for _, box := range a.Boxes {
			for _, v := range box {
				m = math.Max(m, v)
			}
			found = true
		}
	}
	return m, found
}

// Classify infers one Space for every box of every annotation.
// It returns SpaceUnknown when there are no boxes.
func Classify(annotations []Annotation) Space {
	m, ok := MaxCoordinate(annotations)
	if !ok {
		return SpaceUnknown
	}
	return ClassifyValue(m)
}
