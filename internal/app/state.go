// Package app holds the front-end state machine shared by every Go client of
// the schedule: the add, edit, update and delete controllers plus the table
// renderer.
package app

import "github.com/noah-isme/class-schedule/internal/models"

// Phase is the controller's position in the Idle -> Submitting -> Idle cycle.
type Phase int

const (
	Idle Phase = iota
	Confirming
	Submitting
)

func (p Phase) String() string {
	switch p {
	case Confirming:
		return "confirming"
	case Submitting:
		return "submitting"
	}
	return "idle"
}

// Modal is the open update form. ID is the class being edited.
type Modal struct {
	ID     int64
	Fields models.ClassInput
}

// State is a snapshot of everything a front end needs to draw itself.
type State struct {
	Filter  string
	Records []models.Class
	Phase   Phase
	AddForm models.ClassInput
	Modal   *Modal
	Error   string
	Notice  string
}

// InFlight reports whether a mutating request is outstanding.
func (s State) InFlight() bool {
	return s.Phase != Idle
}

func (s State) clone() State {
	out := s
	out.Records = append([]models.Class(nil), s.Records...)
	if s.Modal != nil {
		m := *s.Modal
		out.Modal = &m
	}
	return out
}
