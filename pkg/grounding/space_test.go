package grounding

import "testing"

func TestClassifyValue(t *testing.T) {
	tests := []struct {
		name     string
		max      float64
		expected Space
	}{
		{"zero", 0, SpaceNormalized},
		{"normalized upper bound", 1.5, SpaceNormalized},
		{"just above normalized", 1.5000001, SpacePercent},
		{"percent mid", 40, SpacePercent},
		{"percent upper bound", 100, SpacePercent},
		{"just above percent", 100.0001, SpaceBinned1000},
		{"bin grid max", 999, SpaceBinned1000},
		{"binned upper bound", 1200, SpaceBinned1000},
		{"just above binned", 1200.0001, SpacePixel},
		{"large pixel", 4096, SpacePixel},
		{"negative", -5, SpaceNormalized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ClassifyValue(tt.max)
			if result != tt.expected {
				t.Errorf("ClassifyValue(%v) = %v, want %v", tt.max, result, tt.expected)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		annotations []Annotation
		expected    Space
	}{
		{
			name:     "no annotations",
			expected: SpaceUnknown,
		},
		{
			name:        "annotation without boxes",
			annotations: []Annotation{{Label: "a"}},
			expected:    SpaceUnknown,
		},
		{
			name: "max across all annotations",
			annotations: []Annotation{
				{Boxes: []RawBox{{0.1, 0.1, 0.2, 0.2}}},
				{Boxes: []RawBox{{10, 20, 30, 40}, {0, 0, 1, 1}}},
			},
			expected: SpacePercent,
		},
		{
			name: "single large coordinate lifts the whole set",
			annotations: []Annotation{
				{Boxes: []RawBox{{10, 20, 30, 40}}},
				{Boxes: []RawBox{{100, 200, 300, 999}}},
			},
			expected: SpaceBinned1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify(tt.annotations)
			if result != tt.expected {
				t.Errorf("Classify() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestClassifyIsMonotonic(t *testing.T) {
	set := []Annotation{{Boxes: []RawBox{{0.2, 0.3, 0.4, 0.5}}}}
	previous := Classify(set)

	for _, v := range []float64{0.9, 1.5, 12, 100, 640, 1200, 1920, 50} {
		set = append(set, Annotation{Boxes: []RawBox{{0, 0, v, v}}})
		current := Classify(set)
		if current < previous {
			t.Errorf("adding max %v lowered the space from %v to %v", v, previous, current)
		}
		previous = current
	}
}

func TestSpaceDenominator(t *testing.T) {
	tests := []struct {
		space    Space
		expected float64
		name     string
	}{
		{SpaceNormalized, 1, "normalized"},
		{SpacePercent, 100, "percent"},
		{SpaceBinned1000, 999, "binned1000"},
		{SpacePixel, 1, "pixel"},
		{SpaceUnknown, 1, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.space.Denominator() != tt.expected {
				t.Errorf("Denominator() = %v, want %v", tt.space.Denominator(), tt.expected)
			}
			if tt.space.String() != tt.name {
				t.Errorf("String() = %q, want %q", tt.space.String(), tt.name)
			}
		})
	}
}

func TestSpaceText(t *testing.T) {
	for _, s := range []Space{SpaceUnknown, SpaceNormalized, SpacePercent, SpaceBinned1000, SpacePixel} {
		text, err := s.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d) error = %v", s, err)
		}
		var back Space
		if err := back.UnmarshalText(text); err != nil || back != s {
			t.Errorf("UnmarshalText(%q) = %v, %v; want %v", text, back, err, s)
		}
	}

	var s Space
	if err := s.UnmarshalText([]byte("furlongs")); err == nil {
		t.Error("UnmarshalText() accepted an unknown space")
	}
}
