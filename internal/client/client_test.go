package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/class-schedule/internal/models"
)

// fakeServer is an in-memory rendition of /api/classes.
type fakeServer struct {
	mu     sync.Mutex
	items  map[int64]models.Class
	nextID int64
}

func newFakeServer(t *testing.T) (*httptest.Server, *fakeServer) {
	t.Helper()
	fs := &fakeServer{items: make(map[int64]models.Class)}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)
	return srv, fs
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]interface{}{"error": map[string]interface{}{"code": code, "message": msg, "status": status}})
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rest := strings.TrimPrefix(r.URL.Path, "/api/classes")
	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			out := []models.Class{}
			day := r.URL.Query().Get("day")
			for _, c := range f.items {
				if day == "" || c.Day == day {
					out = append(out, c)
				}
			}
			sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
			writeJSON(w, http.StatusOK, out)
		case http.MethodPost:
			var in models.ClassInput
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Subject == "" {
				writeErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "subject is required")
				return
			}
			f.nextID++
			c := models.Class{ID: f.nextID}
			c.Apply(in)
			f.items[c.ID] = c
			writeJSON(w, http.StatusCreated, c)
		}
		return
	}

	if rest == "/export" {
		w.Header().Set("Content-Disposition", `attachment; filename="classes_all.csv"`)
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("ID,Subject\n"))
		return
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(rest, "/"), 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "id must be a positive integer")
		return
	}
	c, ok := f.items[id]
	if !ok {
		writeErr(w, http.StatusNotFound, "NOT_FOUND", "class not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, c)
	case http.MethodPut:
		var in models.ClassInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		c.Apply(in)
		f.items[id] = c
		writeJSON(w, http.StatusOK, c)
	case http.MethodDelete:
		delete(f.items, id)
		writeJSON(w, http.StatusOK, Ack{Message: "class deleted", ID: id})
	}
}

var math101 = models.ClassInput{Subject: "Math101", Time: "10:00", Day: "Mon", Room: "A1", Instructor: "Dr. Lee"}

func TestClientCRUD(t *testing.T) {
	srv, _ := newFakeServer(t)
	c, err := New(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	created, err := c.CreateClass(ctx, math101)
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)

	list, err := c.ListClasses(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, math101, list[0].Input())

	changed := math101
	changed.Room = "B2"
	updated, err := c.UpdateClass(ctx, created.ID, changed)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "B2", updated.Room)

	got, err := c.GetClass(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, changed, got.Input())

	ack, err := c.DeleteClass(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, ack.ID)

	_, err = c.DeleteClass(ctx, created.ID)
	assert.True(t, IsNotFound(err))

	list, err = c.ListClasses(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)
}

func TestClientListByDay(t *testing.T) {
	srv, _ := newFakeServer(t)
	c, err := New(srv.URL + "/")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.CreateClass(ctx, math101)
	require.NoError(t, err)
	tue := math101
	tue.Day = "Tue"
	_, err = c.CreateClass(ctx, tue)
	require.NoError(t, err)

	list, err := c.ListClasses(ctx, "Tue")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Tue", list[0].Day)
}

func TestClientAPIErrors(t *testing.T) {
	srv, _ := newFakeServer(t)
	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.CreateClass(context.Background(), models.ClassInput{})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Equal(t, "subject is required", apiErr.Message)

	_, err = c.UpdateClass(context.Background(), 99, math101)
	assert.True(t, IsNotFound(err))
	assert.False(t, errors.Is(err, ErrNetwork))
}

func TestClientServerErrorWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()
	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.ListClasses(context.Background(), "")
	assert.True(t, IsServerError(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestClientNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)
	_, err = c.ListClasses(context.Background(), "")
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.False(t, IsNotFound(err))
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(srv.URL, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	_, err = c.ListClasses(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestClientExport(t *testing.T) {
	srv, _ := newFakeServer(t)
	c, err := New(srv.URL)
	require.NoError(t, err)

	dl, err := c.Export(context.Background(), "csv", "")
	require.NoError(t, err)
	assert.Equal(t, "classes_all.csv", dl.Filename)
	assert.Equal(t, "ID,Subject\n", string(dl.Body))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("localhost:8080")
	assert.Error(t, err)
}
