package models

import "time"

// Class is one entry of the class schedule.
type Class struct {
	ID         int64     `db:"id" json:"id"`
	Subject    string    `db:"subject" json:"subject"`
	Time       string    `db:"time_slot" json:"time"`
	Day        string    `db:"day" json:"day"`
	Room       string    `db:"room" json:"room"`
	Instructor string    `db:"instructor" json:"instructor"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ClassInput carries the editable fields of a class. It is the body of both
// create and update requests.
type ClassInput struct {
	Subject    string `json:"subject" validate:"required,max=100"`
	Time       string `json:"time" validate:"required,max=20"`
	Day        string `json:"day" validate:"required,max=20"`
	Room       string `json:"room" validate:"required,max=50"`
	Instructor string `json:"instructor" validate:"required,max=100"`
}

// Input returns the editable fields of the class.
func (c Class) Input() ClassInput {
	return ClassInput{
		Subject:    c.Subject,
		Time:       c.Time,
		Day:        c.Day,
		Room:       c.Room,
		Instructor: c.Instructor,
	}
}

// Apply replaces every editable field with the values from in.
func (c *Class) Apply(in ClassInput) {
	c.Subject = in.Subject
	c.Time = in.Time
	c.Day = in.Day
	c.Room = in.Room
	c.Instructor = in.Instructor
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Day string
}

// ClassEventType names a change to the schedule.
type ClassEventType string

const (
	ClassCreated ClassEventType = "class.created"
	ClassUpdated ClassEventType = "class.updated"
	ClassDeleted ClassEventType = "class.deleted"
)

// ClassEvent is pushed to realtime subscribers after every mutation.
type ClassEvent struct {
	Event ClassEventType `json:"event"`
	ID    int64          `json:"id"`
	Day   string         `json:"day,omitempty"`
	At    time.Time      `json:"at"`
}
