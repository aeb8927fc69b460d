package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/class-schedule/internal/client"
	"github.com/noah-isme/class-schedule/internal/handler"
	"github.com/noah-isme/class-schedule/internal/models"
	"github.com/noah-isme/class-schedule/internal/repository"
	"github.com/noah-isme/class-schedule/internal/router"
	"github.com/noah-isme/class-schedule/internal/service"
	"github.com/noah-isme/class-schedule/pkg/config"
	"github.com/noah-isme/class-schedule/pkg/database"
)

func TestSmokeScenarioPasses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Env:            config.EnvProduction,
		RequestTimeout: 5 * time.Second,
		Database:       config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "smoke.db")},
	}
	db, err := database.Open(cfg.Database)
	require.NoError(t, err)
	defer db.Close()
	_, err = database.Migrate(db, cfg.Database.Driver)
	require.NoError(t, err)

	classes := service.NewClassService(repository.NewClassRepository(db), nil, nil, nil, nil, zap.NewNop())
	srv := httptest.NewServer(router.Setup(cfg, &router.Handlers{
		Class:   handler.NewClassHandler(classes, nil),
		Metrics: handler.NewMetricsHandler(nil, classes),
	}, nil, zap.NewNop()))
	defer srv.Close()

	api, err := client.New(srv.URL)
	require.NoError(t, err)
	s := &scenario{api: api, input: models.ClassInput{Subject: "Math101", Time: "10:00", Day: "Mon", Room: "A1", Instructor: "Dr. Lee"}}

	results := run(context.Background(), s, steps())
	require.Len(t, results, len(steps()))
	for _, r := range results {
		assert.NoError(t, r.Err, r.Step.Name)
	}
}

func TestRunStopsAfterCriticalFailure(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	results := run(context.Background(), &scenario{}, []step{
		{Name: "optional", Run: func(context.Context, *scenario) error { calls++; return boom }},
		{Name: "critical", Critical: true, Run: func(context.Context, *scenario) error { calls++; return boom }},
		{Name: "skipped", Run: func(context.Context, *scenario) error { calls++; return nil }},
	})
	assert.Equal(t, 2, calls)
	require.Len(t, results, 2)

	var buf bytes.Buffer
	printReport(&buf, results)
	assert.Contains(t, buf.String(), "[FAIL] critical")
	assert.Contains(t, buf.String(), "Critical: true")
}
