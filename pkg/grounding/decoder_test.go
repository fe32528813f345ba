package grounding

import (
	"reflect"
	"testing"
)

func TestClassifyPayload(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected PayloadKind
	}{
		{"nested array", "[[1,2,3,4],[5,6,7,8]]", PayloadNested},
		{"flat array", "[1,2,3,4]", PayloadFlat},
		{"empty array", "[]", PayloadFlat},
		{"flat array of strings", `["1","2","3","4"]`, PayloadFlat},
		{"space separated", "[10 20 30 40]", PayloadFreeform},
		{"trailing comma", "[[1,2,3,4],]", PayloadFreeform},
		{"leading dot decimals", "[.1,.2,.3,.4]", PayloadFreeform},
		{"garbage", "[foo, bar]", PayloadFreeform},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ClassifyPayload(tt.payload)
			if result.Kind != tt.expected {
				t.Errorf("ClassifyPayload(%q).Kind = %v, want %v", tt.payload, result.Kind, tt.expected)
			}
		})
	}
}

func TestDecodeBoxes(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected []RawBox
	}{
		{
			name:     "single nested box",
			payload:  "[[10,20,30,40]]",
			expected: []RawBox{{10, 20, 30, 40}},
		},
		{
			name:     "multiple nested boxes",
			payload:  "[[0.1,0.1,0.2,0.2],[0.5,0.5,0.6,0.6]]",
			expected: []RawBox{{0.1, 0.1, 0.2, 0.2}, {0.5, 0.5, 0.6, 0.6}},
		},
		{
			name:     "nested short box dropped and long box truncated",
			payload:  "[[1,2,3],[5,6,7,8,9]]",
			expected: []RawBox{{5, 6, 7, 8}},
		},
		{
			name:     "nested numeric strings are coerced",
			payload:  `[["1","2.5"," 3 ","4"]]`,
			expected: []RawBox{{1, 2.5, 3, 4}},
		},
		{
			name:     "nested non-array entries ignored",
			payload:  "[[1,2,3,4],7,[5,6,7,8]]",
			expected: []RawBox{{1, 2, 3, 4}, {5, 6, 7, 8}},
		},
		{
			name:     "nested keeps first four finite numbers",
			payload:  `[[1,null,"x",2,3,4,5]]`,
			expected: []RawBox{{1, 2, 3, 4}},
		},
		{
			name:     "flat array in groups of four",
			payload:  "[1,2,3,4,5,6,7,8,9]",
			expected: []RawBox{{1, 2, 3, 4}, {5, 6, 7, 8}},
		},
		{
			name:    "flat array too short",
			payload: "[1,2,3]",
		},
		{
			name:     "flat group with a non-number is dropped",
			payload:  `[1,2,"a",4,5,6,7,8]`,
			expected: []RawBox{{5, 6, 7, 8}},
		},
		{
			name:    "empty array",
			payload: "[]",
		},
		{
			name:     "freeform spaces",
			payload:  "[10 20 30 40]",
			expected: []RawBox{{10, 20, 30, 40}},
		},
		{
			name:     "freeform trailing comma",
			payload:  "[[1,2,3,4],]",
			expected: []RawBox{{1, 2, 3, 4}},
		},
		{
			name:     "freeform mixed separators and nesting",
			payload:  "[[1, 2,3 4],[5,\n6,7,8]",
			expected: []RawBox{{1, 2, 3, 4}, {5, 6, 7, 8}},
		},
		{
			name:     "freeform leading dot decimals",
			payload:  "[.5,.25,.75,1]",
			expected: []RawBox{{0.5, 0.25, 0.75, 1}},
		},
		{
			name:    "freeform garbage token drops its group",
			payload: "[x1=10, 20, 30, 40, 50]",
		},
		{
			name:     "freeform groups before validating like the flat path",
			payload:  "[1e400,2,3,4,5,6,7,8]",
			expected: []RawBox{{5, 6, 7, 8}},
		},
		{
			name:     "freeform bad token in a later group",
			payload:  "[1 2 3 4 5 six 7 8 9 10 11 12]",
			expected: []RawBox{{1, 2, 3, 4}, {9, 10, 11, 12}},
		},
		{
			name:    "freeform fewer than four numbers",
			payload: "[foo, bar, 1]",
		},
		{
			name:    "freeform non-finite tokens drop their group",
			payload: "[NaN, Inf, 1e999, 1, 2, 3]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DecodeBoxes(tt.payload)
			if len(result) == 0 && len(tt.expected) == 0 {
				return
			}
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("DecodeBoxes(%q) = %v, want %v", tt.payload, result, tt.expected)
			}
		})
	}
}

func TestPayloadKindString(t *testing.T) {
	kinds := map[PayloadKind]string{
		PayloadNested:   "nested",
		PayloadFlat:     "flat",
		PayloadFreeform: "freeform",
	}
	for kind, expected := range kinds {
		if kind.String() != expected {
			t.Errorf("PayloadKind(%d).String() = %q, want %q", int(kind), kind.String(), expected)
		}
	}
}
