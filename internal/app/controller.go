package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/class-schedule/internal/client"
	"github.com/noah-isme/class-schedule/internal/models"
)

// Notices shown after successful mutations.
const (
	NoticeAdded   = "Class added!"
	NoticeUpdated = "Class updated!"
	NoticeDeleted = "Class deleted!"
)

// DeletePrompt is the confirmation question asked before a delete.
const DeletePrompt = "Are you sure?"

var (
	// ErrBusy is returned when a mutation is attempted while another is in flight.
	ErrBusy = errors.New("another request is in flight")

	// ErrNoModal is returned by SubmitUpdate when no update form is open.
	ErrNoModal = errors.New("no class is being edited")
)

// API is the subset of client.Client the controller drives.
type API interface {
	ListClasses(ctx context.Context, day string) ([]models.Class, error)
	GetClass(ctx context.Context, id int64) (*models.Class, error)
	CreateClass(ctx context.Context, in models.ClassInput) (*models.Class, error)
	UpdateClass(ctx context.Context, id int64, in models.ClassInput) (*models.Class, error)
	DeleteClass(ctx context.Context, id int64) (*client.Ack, error)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Controller owns State and serialises mutations against the API.
type Controller struct {
	api    API
	logger *zap.Logger

	mu    sync.Mutex
	state State
	seq   uint64
}

// NewController builds a controller in the Idle phase.
func NewController(api API, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{api: api, logger: logger}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// SetFilter changes the day filter used by subsequent reloads.
func (c *Controller) SetFilter(day string) {
	c.mu.Lock()
	c.state.Filter = strings.TrimSpace(day)
	c.mu.Unlock()
}

// SetAddForm stores the add form contents.
func (c *Controller) SetAddForm(in models.ClassInput) {
	c.mu.Lock()
	c.state.AddForm = in
	c.mu.Unlock()
}

// DismissError clears the error banner.
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.state.Error = ""
	c.mu.Unlock()
}

// CloseModal discards the update form.
func (c *Controller) CloseModal() {
	c.mu.Lock()
	c.state.Modal = nil
	c.mu.Unlock()
}

// Reload fetches the list for the current filter. Only the most recently
// issued reload may write its result; older responses are dropped.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	c.seq++
	token := c.seq
	filter := c.state.Filter
	c.mu.Unlock()

	records, err := c.api.ListClasses(ctx, filter)

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.seq {
		c.logger.Debug("discarding stale reload", zap.Uint64("token", token), zap.Uint64("latest", c.seq))
		return nil
	}
	if err != nil {
		c.state.Error = describe("load classes", err)
		return err
	}
	c.state.Records = records
	return nil
}

// Add submits the add form input. On success the form is reset.
func (c *Controller) Add(ctx context.Context, in models.ClassInput) error {
	if err := c.begin(Submitting); err != nil {
		return err
	}
	created, err := c.api.CreateClass(ctx, in)
	if err != nil {
		return c.fail("add class", err)
	}
	c.logger.Debug("class added", zap.Int64("id", created.ID))
	c.succeed(NoticeAdded, func(s *State) { s.AddForm = models.ClassInput{} })
	return c.reloadAfter(ctx)
}

// BeginEdit opens the update form for id. The held list is searched first and
// the server is asked only when the id is not there. It returns false, with no
// error and the modal closed, when no such class exists.
func (c *Controller) BeginEdit(ctx context.Context, id int64) (bool, error) {
	c.mu.Lock()
	for _, r := range c.state.Records {
		if r.ID == id {
			c.state.Modal = &Modal{ID: id, Fields: r.Input()}
			c.mu.Unlock()
			return true, nil
		}
	}
	c.mu.Unlock()

	record, err := c.api.GetClass(ctx, id)
	if err != nil {
		if client.IsNotFound(err) {
			return false, nil
		}
		c.mu.Lock()
		c.state.Error = describe("load class", err)
		c.mu.Unlock()
		return false, err
	}

	c.mu.Lock()
	c.state.Modal = &Modal{ID: record.ID, Fields: record.Input()}
	c.mu.Unlock()
	return true, nil
}

// SubmitUpdate sends the open form with the given field values. The modal
// closes on success and stays open on failure.
func (c *Controller) SubmitUpdate(ctx context.Context, in models.ClassInput) error {
	c.mu.Lock()
	if c.state.Modal == nil {
		c.mu.Unlock()
		return ErrNoModal
	}
	id := c.state.Modal.ID
	c.state.Modal.Fields = in
	c.mu.Unlock()

	if err := c.begin(Submitting); err != nil {
		return err
	}
	if _, err := c.api.UpdateClass(ctx, id, in); err != nil {
		return c.fail("update class", err)
	}
	c.succeed(NoticeUpdated, func(s *State) { s.Modal = nil })
	return c.reloadAfter(ctx)
}

// Delete asks confirm before removing id. A declined confirmation makes no
// request and returns (false, nil).
func (c *Controller) Delete(ctx context.Context, id int64, confirm Confirmer) (bool, error) {
	if err := c.begin(Confirming); err != nil {
		return false, err
	}
	if confirm == nil || !confirm.Confirm(DeletePrompt) {
		c.mu.Lock()
		c.state.Phase = Idle
		c.mu.Unlock()
		return false, nil
	}

	c.mu.Lock()
	c.state.Phase = Submitting
	c.mu.Unlock()

	if _, err := c.api.DeleteClass(ctx, id); err != nil {
		return false, c.fail("delete class", err)
	}
	c.succeed(NoticeDeleted, nil)
	return true, c.reloadAfter(ctx)
}

func (c *Controller) begin(phase Phase) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.InFlight() {
		return ErrBusy
	}
	c.state.Phase = phase
	c.state.Error = ""
	c.state.Notice = ""
	return nil
}

func (c *Controller) succeed(notice string, mutate func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Phase = Idle
	c.state.Notice = notice
	if mutate != nil {
		mutate(&c.state)
	}
}

func (c *Controller) fail(action string, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Phase = Idle
	c.state.Error = describe(action, err)
	c.logger.Debug("request failed", zap.String("action", action), zap.Error(err))
	return err
}

// reloadAfter refreshes the list after a successful mutation. A reload
// failure leaves the notice in place and reports the error separately.
func (c *Controller) reloadAfter(ctx context.Context) error {
	if err := c.Reload(ctx); err != nil {
		return fmt.Errorf("reload after change: %w", err)
	}
	return nil
}

// describe turns a client error into a banner message.
func describe(action string, err error) string {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrTimeout):
		return fmt.Sprintf("Could not %s: the server did not answer in time.", action)
	case errors.Is(err, client.ErrNetwork):
		return fmt.Sprintf("Could not %s: the server is unreachable.", action)
	case client.IsNotFound(err):
		return fmt.Sprintf("Could not %s: class not found.", action)
	case errors.As(err, &apiErr):
		return fmt.Sprintf("Could not %s: %s", action, apiErr.Message)
	}
	return fmt.Sprintf("Could not %s: %v", action, err)
}
