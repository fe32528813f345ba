package grounding

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// RawBox is [x1, y1, x2, y2] in whatever coordinate space the model used
type RawBox [4]float64

// PayloadKind identifies how a det payload was encoded
type PayloadKind int

const (
	// PayloadNested is a JSON array of boxes: [[x1,y1,x2,y2], ...]
	PayloadNested PayloadKind = iota
	// PayloadFlat is a JSON array of numbers read four at a time
	PayloadFlat
	// PayloadFreeform is anything else; numbers are recovered from the text
	PayloadFreeform
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadNested:
		return "nested"
	case PayloadFlat:
		return "flat"
	default:
		return "freeform"
	}
}

// Payload is a det payload resolved to one of the three encodings.
// Exactly one of Nested, Flat, or Tokens is populated depending on Kind.
// Tokens holds NaN for every token that is not a finite number.
type Payload struct {
	Kind   PayloadKind
	Nested [][]any
	Flat   []any
	Tokens []float64
}

// ClassifyPayload tries the encodings in priority order: nested, flat, freeform.
func ClassifyPayload(payload string) Payload {
	var items []any
	if err := json.Unmarshal([]byte(payload), &items); err == nil {
		if len(items) > 0 {
			if _, ok := items[0].([]any); ok {
				nested := make([][]any, 0, len(items))
				for _, item := range items {
					// non-array entries in a nested payload carry no box
					if inner, ok := item.([]any); ok {
						nested = append(nested, inner)
					}
				}
				return Payload{Kind: PayloadNested, Nested: nested}
			}
		}
		return Payload{Kind: PayloadFlat, Flat: items}
	}

	return Payload{Kind: PayloadFreeform, Tokens: freeformNumbers(payload)}
}

// Boxes turns the payload into raw boxes, dropping groups with fewer than four finite numbers.
func (p Payload) Boxes() []RawBox {
	var boxes []RawBox

	switch p.Kind {
	case PayloadNested:
		for _, inner := range p.Nested {
			if box, ok := boxFromValues(inner); ok {
				boxes = append(boxes, box)
			}
		}
	case PayloadFlat:
		for i := 0; i+4 <= len(p.Flat); i += 4 {
			if box, ok := boxFromValues(p.Flat[i : i+4]); ok {
				boxes = append(boxes, box)
			}
		}
	case PayloadFreeform:
		for i := 0; i+4 <= len(p.Tokens); i += 4 {
			box := RawBox{p.Tokens[i], p.Tokens[i+1], p.Tokens[i+2], p.Tokens[i+3]}
			if box.finite() {
				boxes = append(boxes, box)
			}
		}
	}

	return boxes
}

// DecodeBoxes decodes one det payload into zero or more raw boxes
func DecodeBoxes(payload string) []RawBox {
	return ClassifyPayload(payload).Boxes()
}

// boxFromValues keeps the first four finite numbers of a group
func boxFromValues(values []any) (RawBox, bool) {
	var box RawBox
	n := 0
	for _, v := range values {
		f, ok := coerce(v)
		if !ok {
			continue
		}
		box[n] = f
		n++
		if n == 4 {
			return box, true
		}
	}
	return RawBox{}, false
}

func coerce(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	return f, isFinite(f)
}

func freeformNumbers(payload string) []float64 {
	stripped := strings.Map(func(r rune) rune {
		if r == '[' || r == ']' {
			return ' '
		}
		return r
	}, payload)

	fields := strings.FieldsFunc(stripped, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v'
	})

	// bad tokens keep their slot so grouping matches the flat path
	numbers := make([]float64, 0, len(fields))
	for _, field := range fields {
		f, err := strconv.ParseFloat(field, 64)
		if err != nil || !isFinite(f) {
			f = math.NaN()
		}
		numbers = append(numbers, f)
	}
	return numbers
}

func (b RawBox) finite() bool {
	for _, f := range b {
		if !isFinite(f) {
			return false
		}
	}
	return true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
