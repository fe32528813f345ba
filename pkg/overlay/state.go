package overlay

import (
	"github.com/lylexist/deepseek-ocr-ui/pkg/grounding"
)

// State is the host-owned view state: the current output text, its resolved
// annotations, the image viewport and the active region.
//
// The active index points into the flattened region list, one region per box
// in annotation order, so an annotation with several boxes has one index per
// box. ActiveAnnotation maps it back to the annotation's position.
//
// It is not safe for concurrent use; hosts with several goroutines must serialize calls.
type State struct {
	text     string
	mapping  grounding.Mapping
	viewport Viewport
	result   grounding.Result
	active   int
}

// NewState returns an empty state with nothing selected
func NewState(mapping grounding.Mapping) *State {
	return &State{
		mapping: mapping,
		active:  None,
	}
}

// Update replaces the output text and re-parses it from scratch.
// The selection is cleared when the new result has no regions or no longer
// contains the selected index.
func (s *State) Update(text string) {
	s.text = text
	s.resolve()
	if s.active >= CountRegions(s.result) {
		s.active = None
	}
}

// Resize records a new viewport. Native boxes are recomputed only when the
// native size changes, e.g. when the image finishes loading.
func (s *State) Resize(v Viewport) {
	nativeChanged := v.NativeWidth != s.viewport.NativeWidth || v.NativeHeight != s.viewport.NativeHeight
	s.viewport = v
	if nativeChanged {
		s.resolve()
	}
}

// Open is called when the view is shown fresh: the first region becomes active.
func (s *State) Open() {
	if CountRegions(s.result) > 0 {
		s.active = 0
		return
	}
	s.active = None
}

// Select activates the region at index; anything out of range clears the selection.
func (s *State) Select(index int) {
	if index < 0 || index >= CountRegions(s.result) {
		s.active = None
		return
	}
	s.active = index
}

// Active returns the selected region index or None
func (s *State) Active() int {
	return s.active
}

// ActiveAnnotation returns the position of the annotation owning the active
// region, or None
func (s *State) ActiveAnnotation() int {
	if s.active == None {
		return None
	}
	n := 0
	for i, a := range s.result.Annotations {
		n += len(a.Boxes)
		if s.active < n {
			return i
		}
	}
	return None
}

// HasAnnotations gates the host's locate controls
func (s *State) HasAnnotations() bool {
	return s.result.HasAnnotations()
}

func (s *State) Text() string {
	return s.text
}

func (s *State) Viewport() Viewport {
	return s.viewport
}

func (s *State) Result() grounding.Result {
	return s.result
}

// Regions renders every box against the current viewport
func (s *State) Regions() []Region {
	return Render(s.result, s.viewport, s.active)
}

func (s *State) resolve() {
	s.result = grounding.Resolve(s.text, s.viewport.NativeWidth, s.viewport.NativeHeight, grounding.WithMapping(s.mapping))
}
