package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/class-schedule/internal/client"
	"github.com/noah-isme/class-schedule/internal/models"
)

type fakeAPI struct {
	mu       sync.Mutex
	items    map[int64]models.Class
	nextID   int64
	calls    map[string]int
	failNext error

	// listHook, when set, runs inside ListClasses before it answers.
	listHook func(day string)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{items: make(map[int64]models.Class), calls: make(map[string]int)}
}

func (f *fakeAPI) take(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func notFound() error {
	return &client.APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "class not found"}
}

func (f *fakeAPI) ListClasses(ctx context.Context, day string) ([]models.Class, error) {
	if err := f.take("list"); err != nil {
		return nil, err
	}
	if f.listHook != nil {
		f.listHook(day)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Class{}
	for _, c := range f.items {
		if day == "" || c.Day == day {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAPI) GetClass(ctx context.Context, id int64) (*models.Class, error) {
	if err := f.take("get"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return nil, notFound()
	}
	return &c, nil
}

func (f *fakeAPI) CreateClass(ctx context.Context, in models.ClassInput) (*models.Class, error) {
	if err := f.take("create"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := models.Class{ID: f.nextID}
	c.Apply(in)
	f.items[c.ID] = c
	return &c, nil
}

func (f *fakeAPI) UpdateClass(ctx context.Context, id int64, in models.ClassInput) (*models.Class, error) {
	if err := f.take("update"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return nil, notFound()
	}
	c.Apply(in)
	f.items[id] = c
	return &c, nil
}

func (f *fakeAPI) DeleteClass(ctx context.Context, id int64) (*client.Ack, error) {
	if err := f.take("delete"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return nil, notFound()
	}
	delete(f.items, id)
	return &client.Ack{Message: "class deleted", ID: id}, nil
}

var math101 = models.ClassInput{Subject: "Math101", Time: "10:00", Day: "Mon", Room: "A1", Instructor: "Dr. Lee"}

func always(answer bool) Confirmer {
	return ConfirmFunc(func(string) bool { return answer })
}

func TestMath101Scenario(t *testing.T) {
	api := newFakeAPI()
	ctrl := NewController(api, nil)
	ctx := context.Background()

	ctrl.SetAddForm(math101)
	require.NoError(t, ctrl.Add(ctx, math101))
	st := ctrl.State()
	assert.Equal(t, NoticeAdded, st.Notice)
	assert.Equal(t, models.ClassInput{}, st.AddForm)
	require.Len(t, st.Records, 1)
	id := st.Records[0].ID

	rows := Render(st.Records)
	require.Len(t, rows, 1)
	assert.Equal(t, "Math101", rows[0].Subject)

	ok, err := ctrl.BeginEdit(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	st = ctrl.State()
	require.NotNil(t, st.Modal)
	assert.Equal(t, math101, st.Modal.Fields)
	assert.Zero(t, api.count("get"))

	changed := st.Modal.Fields
	changed.Room = "B2"
	require.NoError(t, ctrl.SubmitUpdate(ctx, changed))
	st = ctrl.State()
	assert.Nil(t, st.Modal)
	assert.Equal(t, NoticeUpdated, st.Notice)
	assert.Equal(t, "B2", Render(st.Records)[0].Room)

	deleted, err := ctrl.Delete(ctx, id, always(true))
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Empty(t, Render(ctrl.State().Records))
}

func TestAddFailureKeepsFormAndSetsError(t *testing.T) {
	api := newFakeAPI()
	ctrl := NewController(api, nil)
	ctrl.SetAddForm(math101)
	api.failNext = &client.NetworkError{Op: "POST /api/classes", Err: errors.New("connection refused")}

	err := ctrl.Add(context.Background(), math101)
	require.Error(t, err)
	st := ctrl.State()
	assert.Equal(t, Idle, st.Phase)
	assert.Contains(t, st.Error, "unreachable")
	assert.Empty(t, st.Notice)
	assert.Equal(t, math101, st.AddForm)

	ctrl.DismissError()
	assert.Empty(t, ctrl.State().Error)
}

func TestBeginEditFallsBackToServer(t *testing.T) {
	api := newFakeAPI()
	created, _ := api.CreateClass(context.Background(), math101)
	ctrl := NewController(api, nil)

	ok, err := ctrl.BeginEdit(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, api.count("get"))
	assert.Equal(t, created.ID, ctrl.State().Modal.ID)
}

func TestBeginEditMissingIsNoOp(t *testing.T) {
	ctrl := NewController(newFakeAPI(), nil)

	ok, err := ctrl.BeginEdit(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, ok)
	st := ctrl.State()
	assert.Nil(t, st.Modal)
	assert.Empty(t, st.Error)
}

func TestSubmitUpdateFailureKeepsModalOpen(t *testing.T) {
	api := newFakeAPI()
	ctrl := NewController(api, nil)
	ctx := context.Background()
	require.NoError(t, ctrl.Add(ctx, math101))
	id := ctrl.State().Records[0].ID
	_, err := ctrl.BeginEdit(ctx, id)
	require.NoError(t, err)

	api.failNext = &client.APIError{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: "failed to update class"}
	changed := math101
	changed.Room = "C3"
	require.Error(t, ctrl.SubmitUpdate(ctx, changed))

	st := ctrl.State()
	require.NotNil(t, st.Modal)
	assert.Equal(t, "C3", st.Modal.Fields.Room)
	assert.Equal(t, Idle, st.Phase)
	assert.Contains(t, st.Error, "failed to update class")
}

func TestSubmitUpdateWithoutModal(t *testing.T) {
	ctrl := NewController(newFakeAPI(), nil)
	assert.ErrorIs(t, ctrl.SubmitUpdate(context.Background(), math101), ErrNoModal)
}

func TestDeleteDeclinedMakesNoRequest(t *testing.T) {
	api := newFakeAPI()
	ctrl := NewController(api, nil)
	ctx := context.Background()
	require.NoError(t, ctrl.Add(ctx, math101))
	id := ctrl.State().Records[0].ID

	var prompt string
	deleted, err := ctrl.Delete(ctx, id, ConfirmFunc(func(p string) bool {
		prompt = p
		return false
	}))
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, "Are you sure?", prompt)
	assert.Zero(t, api.count("delete"))
	assert.Equal(t, Idle, ctrl.State().Phase)
	assert.Len(t, ctrl.State().Records, 1)
}

func TestDeleteTwiceReportsNotFound(t *testing.T) {
	api := newFakeAPI()
	ctrl := NewController(api, nil)
	ctx := context.Background()
	require.NoError(t, ctrl.Add(ctx, math101))
	id := ctrl.State().Records[0].ID

	_, err := ctrl.Delete(ctx, id, always(true))
	require.NoError(t, err)
	_, err = ctrl.Delete(ctx, id, always(true))
	require.Error(t, err)
	assert.True(t, client.IsNotFound(err))
	assert.Contains(t, ctrl.State().Error, "not found")
}

func TestBusyWhileInFlight(t *testing.T) {
	api := newFakeAPI()
	ctrl := NewController(api, nil)

	var nested error
	var inFlight bool
	_, err := ctrl.Delete(context.Background(), 1, ConfirmFunc(func(string) bool {
		inFlight = ctrl.State().InFlight()
		nested = ctrl.Add(context.Background(), math101)
		return false
	}))
	require.NoError(t, err)
	assert.True(t, inFlight)
	assert.False(t, ctrl.State().InFlight())
	assert.ErrorIs(t, nested, ErrBusy)
	assert.Zero(t, api.count("create"))
}

func TestCloseModalDiscardsUpdateForm(t *testing.T) {
	api := newFakeAPI()
	ctx := context.Background()
	created, err := api.CreateClass(ctx, math101)
	require.NoError(t, err)

	ctrl := NewController(api, nil)
	found, err := ctrl.BeginEdit(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, ctrl.State().Modal)

	ctrl.CloseModal()
	assert.Nil(t, ctrl.State().Modal)
	assert.ErrorIs(t, ctrl.SubmitUpdate(ctx, math101), ErrNoModal)
	assert.Zero(t, api.count("update"))
}

func TestStaleReloadIsDiscarded(t *testing.T) {
	api := newFakeAPI()
	ctx := context.Background()
	_, _ = api.CreateClass(ctx, math101)
	tue := math101
	tue.Day = "Tue"
	_, _ = api.CreateClass(ctx, tue)

	ctrl := NewController(api, nil)
	// The first reload (all days) is overtaken by a second reload filtered to
	// Tue that starts and finishes while the first is still waiting.
	var once sync.Once
	api.listHook = func(day string) {
		if day != "" {
			return
		}
		once.Do(func() {
			ctrl.SetFilter("Tue")
			require.NoError(t, ctrl.Reload(ctx))
		})
	}

	require.NoError(t, ctrl.Reload(ctx))
	st := ctrl.State()
	require.Len(t, st.Records, 1)
	assert.Equal(t, "Tue", st.Records[0].Day)
}

func TestReloadFailureSetsError(t *testing.T) {
	api := newFakeAPI()
	api.failNext = &client.NetworkError{Op: "GET /api/classes", Err: context.DeadlineExceeded}
	ctrl := NewController(api, nil)

	require.Error(t, ctrl.Reload(context.Background()))
	assert.Contains(t, ctrl.State().Error, "did not answer in time")
}

func TestRenderIsIdempotent(t *testing.T) {
	records := []models.Class{
		{ID: 1, Subject: "ECONOMICS", Time: "10:00", Day: "Monday", Room: "228", Instructor: "Dr. GCR"},
		{ID: 2, Subject: "DATA STRUCTURES", Time: "10:00", Day: "Tuesday", Room: "Lab 1", Instructor: "Dr. PSB"},
	}
	first := Render(records)
	second := Render(records)
	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, []Action{{Name: "edit", ID: 2}, {Name: "delete", ID: 2}}, first[1].Actions)
	assert.Empty(t, Render(nil))
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	WriteTable(&buf, Render([]models.Class{{ID: 7, Subject: "Math101", Time: "10:00", Day: "Mon", Room: "A1", Instructor: "Dr. Lee"}}), false)
	out := buf.String()
	assert.Contains(t, out, "Math101")
	assert.Contains(t, out, "INSTRUCTOR")
	assert.Contains(t, out, "ACTIONS")
	assert.Contains(t, out, "edit 7 | delete 7")

	buf.Reset()
	WriteTable(&buf, nil, false)
	assert.Equal(t, "No classes scheduled\n", buf.String())
}
