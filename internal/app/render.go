package app

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/noah-isme/class-schedule/internal/models"
)

// Action is a per-row control bound to a class id.
type Action struct {
	Name string
	ID   int64
}

// String renders the action the way the CLI invokes it, e.g. "edit 7".
func (a Action) String() string {
	return a.Name + " " + strconv.FormatInt(a.ID, 10)
}

// Row is one rendered schedule line.
type Row struct {
	ID         int64
	Subject    string
	Time       string
	Day        string
	Room       string
	Instructor string
	Actions    []Action
}

// Render projects records into rows in the order given. It has no side
// effects, so rendering the same records twice yields equal rows.
func Render(records []models.Class) []Row {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, Row{
			ID:         r.ID,
			Subject:    r.Subject,
			Time:       r.Time,
			Day:        r.Day,
			Room:       r.Room,
			Instructor: r.Instructor,
			Actions:    []Action{{Name: "edit", ID: r.ID}, {Name: "delete", ID: r.ID}},
		})
	}
	return rows
}

// WriteTable prints rows as a rounded table. Colour is applied only when
// colour is true.
func WriteTable(w io.Writer, rows []Row, colour bool) {
	if len(rows) == 0 {
		msg := "No classes scheduled"
		if colour {
			msg = text.FgYellow.Sprint(msg)
		}
		fmt.Fprintln(w, msg)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)

	header := table.Row{"ID", "SUBJECT", "TIME", "DAY", "ROOM", "INSTRUCTOR", "ACTIONS"}
	if colour {
		for i, h := range header {
			header[i] = text.FgHiCyan.Sprint(h)
		}
	}
	t.AppendHeader(header)
	for _, r := range rows {
		t.AppendRow(table.Row{strconv.FormatInt(r.ID, 10), r.Subject, r.Time, r.Day, r.Room, r.Instructor, actionsCell(r.Actions)})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "TOTAL", len(rows)})
	t.Render()
}

func actionsCell(actions []Action) string {
	parts := make([]string, 0, len(actions))
	for _, a := range actions {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, " | ")
}
