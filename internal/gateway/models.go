package gateway

import "slices"

// Task is the capability a generation call needs.
type Task string

const (
	TaskVision Task = "vision"
	TaskText   Task = "text"
)

// Candidate describes a provider model and what it can do.
type Candidate struct {
	ID             string
	AcceptsImages  bool
	ProducesImages bool
}

// Supports reports whether the candidate can serve task.
func (c Candidate) Supports(task Task) bool {
	if task == TaskVision {
		return c.AcceptsImages
	}
	return true
}

// FallbackModel is returned when no candidate is eligible.
const FallbackModel = "gemini-1.5-flash"

// Catalog is the ordered priority list walked by SelectModel. Earlier entries
// win.
var Catalog = []Candidate{
	{ID: "gemini-2.5-flash-image", AcceptsImages: true, ProducesImages: true},
	{ID: "gemini-2.0-flash-preview-image-generation", AcceptsImages: true, ProducesImages: true},
	{ID: "gemini-2.5-flash", AcceptsImages: true},
	{ID: "gemini-1.5-flash", AcceptsImages: true},
	{ID: "gemini-1.5-pro", AcceptsImages: true},
}

// Selector picks models from a priority list without contacting the
// provider. Availability is only known when a call fails.
type Selector struct {
	preferred string
	disabled  []string
	catalog   []Candidate
}

// NewSelector returns a selector over Catalog. A non-empty preferred model is
// tried first for every task; disabled models are skipped.
func NewSelector(preferred string, disabled []string) *Selector {
	return &Selector{preferred: preferred, disabled: disabled, catalog: Catalog}
}

// SelectModel returns the first eligible model identifier for task, or
// FallbackModel when none is.
func (s *Selector) SelectModel(task Task) string {
	return s.Select(task).ID
}

// Select is SelectModel returning the full candidate metadata.
func (s *Selector) Select(task Task) Candidate {
	if s.preferred != "" && !slices.Contains(s.disabled, s.preferred) {
		if c, ok := s.lookup(s.preferred); ok {
			if c.Supports(task) {
				return c
			}
		} else {
			return Candidate{ID: s.preferred, AcceptsImages: true}
		}
	}
	for _, c := range s.catalog {
		if slices.Contains(s.disabled, c.ID) || !c.Supports(task) {
			continue
		}
		return c
	}
	c, ok := s.lookup(FallbackModel)
	if !ok {
		c = Candidate{ID: FallbackModel, AcceptsImages: true}
	}
	return c
}

func (s *Selector) lookup(id string) (Candidate, bool) {
	idx := slices.IndexFunc(s.catalog, func(c Candidate) bool { return c.ID == id })
	if idx < 0 {
		return Candidate{}, false
	}
	return s.catalog[idx], true
}
