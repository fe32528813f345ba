package grounding

// Annotation is one grounded reference with every region it points at
type Annotation struct {
	Label   string   `json:"label" yaml:"label"`
	Caption string   `json:"caption" yaml:"caption"`
	Boxes   []RawBox `json:"boxes" yaml:"boxes"`
}

// Parse extracts annotations from the full model output.
// It holds no state between calls, so it can be re-run on every new prefix of a stream.
// References whose payload decodes to no box are dropped.
func Parse(text string) []Annotation {
	matches := Scan(text)
	annotations := make([]Annotation, 0, len(matches))

	for i, m := range matches {
		boxes := DecodeBoxes(m.Payload)
		if len(boxes) == 0 {
			continue
		}

		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1].Start
		}

		annotations = append(annotations, Annotation{
			Label:   m.Label,
			Caption: Caption(text[m.End:end], m.Label),
			Boxes:   boxes,
		})
	}

	return annotations
}

// Result is a parse with every box resolved to native pixels.
// Native[i][j] is the mapped form of Annotations[i].Boxes[j]. A box whose
// mapping overflows is left as the zero box.
type Result struct {
	Annotations []Annotation  `json:"annotations" yaml:"annotations"`
	Space       Space         `json:"space" yaml:"space"`
	Mapping     Mapping       `json:"mapping" yaml:"mapping"`
	Width       float64       `json:"width" yaml:"width"`
	Height      float64       `json:"height" yaml:"height"`
	Native      [][]NativeBox `json:"native" yaml:"native"`
}

// HasAnnotations reports whether any grounding data was found
func (r Result) HasAnnotations() bool {
	return len(r.Annotations) > 0
}

// Option adjusts Resolve
type Option func(*Result)

// WithMapping selects the grid-to-image projection (per-axis by default)
func WithMapping(m Mapping) Option {
	return func(r *Result) {
		r.Mapping = m
	}
}

// Resolve parses text, classifies the coordinate space once over all boxes and maps
// every box into an image of the given native size.
func Resolve(text string, width, height float64, opts ...Option) Result {
	r := Result{Width: width, Height: height}
	for _, opt := range opts {
		opt(&r)
	}

	r.Annotations = Parse(text)
	if len(r.Annotations) == 0 {
		return r
	}

	r.Space = Classify(r.Annotations)
	r.Native = make([][]NativeBox, len(r.Annotations))
	for i, a := range r.Annotations {
		r.Native[i] = make([]NativeBox, len(a.Boxes))
		for j, box := range a.Boxes {
			if native := r.Mapping.Map(box, r.Space, width, height); native.Finite() {
				r.Native[i][j] = native
			}
		}
	}

	return r
}
