// Package wizard drives linear, multi-step creation flows where each step is
// validated and persisted to the backend before the next one opens.
package wizard

import (
	"errors"
	"time"
)

var (
	// ErrStepOutOfRange rejects a step index outside the definition.
	ErrStepOutOfRange = errors.New("wizard: step out of range")
	// ErrEntityRequired means a later step was submitted before step 0 created the entity.
	ErrEntityRequired = errors.New("wizard: entity not created yet")
	// ErrNotCommitted blocks moving forward past an unsaved step.
	ErrNotCommitted = errors.New("wizard: current step not saved")
	// ErrUnknownKind is returned for a wizard kind without definition.
	ErrUnknownKind = errors.New("wizard: unknown kind")
)

// Draft holds the values last entered for one step. They repopulate the
// form when the user navigates back to it.
type Draft struct {
	Fields map[string]string   `json:"fields,omitempty"`
	Rows   []map[string]string `json:"rows,omitempty"`
	Files  []string            `json:"files,omitempty"`
}

// Field returns an entered value or "".
func (d Draft) Field(name string) string {
	if d.Fields == nil {
		return ""
	}
	return d.Fields[name]
}

// State is one open wizard dialog.
type State struct {
	ID          string           `json:"id"`
	Kind        string           `json:"kind"`
	Owner       string           `json:"owner"`
	Total       int              `json:"total"`
	CurrentStep int              `json:"current_step"`
	EntityID    string           `json:"entity_id,omitempty"`
	StepData    map[string]Draft `json:"step_data"`
	Committed   map[int]bool     `json:"committed"`
	CreatedAt   time.Time        `json:"created_at"`
	// Return is the list query restored when the wizard closes.
	Return string `json:"return,omitempty"`
}

func newState(id, kind, owner string, total int, now time.Time) *State {
	return &State{
		ID:        id,
		Kind:      kind,
		Owner:     owner,
		Total:     total,
		StepData:  map[string]Draft{},
		Committed: map[int]bool{},
		CreatedAt: now,
	}
}

// IsCommitted reports whether step i completed its backend round-trip.
func (s *State) IsCommitted(i int) bool {
	return s.Committed[i]
}

// Draft returns the values kept for a step key.
func (s *State) Draft(key string) Draft {
	return s.StepData[key]
}

// IsLast reports whether the current step is the final one.
func (s *State) IsLast() bool {
	return s.CurrentStep >= s.Total-1
}

// GoBack moves one step back without touching stored drafts. It reports
// false on the first step.
func (s *State) GoBack() bool {
	if s.CurrentStep == 0 {
		return false
	}
	s.CurrentStep--
	return true
}

// GoForward moves to the next step when the current one is saved.
func (s *State) GoForward() error {
	if s.CurrentStep >= s.Total-1 {
		return ErrStepOutOfRange
	}
	if !s.Committed[s.CurrentStep] {
		return ErrNotCommitted
	}
	if s.EntityID == "" {
		return ErrEntityRequired
	}
	s.CurrentStep++
	return nil
}

// OnlyFirstCommitted reports whether the entity exists but nothing beyond
// step 0 was saved for it.
func (s *State) OnlyFirstCommitted() bool {
	if s.EntityID == "" || !s.Committed[0] {
		return false
	}
	for i, ok := range s.Committed {
		if ok && i != 0 {
			return false
		}
	}
	return true
}

func (s *State) markCommitted(i int) {
	s.Committed[i] = true
	if i < s.Total-1 {
		s.CurrentStep = i + 1
	} else {
		s.CurrentStep = i
	}
}
