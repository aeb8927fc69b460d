package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/class-schedule/internal/models"
	appErrors "github.com/noah-isme/class-schedule/pkg/errors"
)

const (
	classListCachePattern = "list:*"
	// classListGenerationKey must stay outside classListCachePattern so
	// invalidation never resets it.
	classListGenerationKey = "gen:list"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, error)
	FindByID(ctx context.Context, id int64) (*models.Class, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

type classEventPublisher interface {
	Publish(event models.ClassEvent)
}

// SampleClasses is the schedule seeded into an empty store.
var SampleClasses = []models.ClassInput{
	{Subject: "ECONOMICS", Time: "10:00", Day: "Monday", Room: "228", Instructor: "Dr. GCR"},
	{Subject: "SOFTWARE ENGINEERING", Time: "11:00", Day: "Monday", Room: "228", Instructor: "Dr. PSB"},
	{Subject: "DATA STRUCTURES", Time: "10:00", Day: "Tuesday", Room: "Lab 1", Instructor: "Dr. PSB"},
}

// ClassService coordinates class schedule operations.
type ClassService struct {
	repo      classRepository
	cache     *CacheService
	events    classEventPublisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService. cache, events and metrics may be nil.
func NewClassService(repo classRepository, cache *CacheService, events classEventPublisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, cache: cache, events: events, metrics: metrics, validator: validate, logger: logger}
}

// NewValidator returns a validator that reports JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// List returns classes in insertion order, restricted to one day when the
// filter names it.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, error) {
	filter.Day = strings.TrimSpace(filter.Day)

	// The generation is read before the store so a snapshot taken across a
	// mutation is filed under a generation no reader asks for again.
	gen, cacheable := s.cache.Generation(ctx, classListGenerationKey)
	key := listCacheKey(gen, filter)

	var cached []models.Class
	if cacheable && s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	classes, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, "failed to list classes")
	}
	if cacheable {
		s.cache.Set(ctx, key, classes)
	}
	return classes, nil
}

// Get returns a single class.
func (s *ClassService) Get(ctx context.Context, id int64) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load class")
	}
	return class, nil
}

// Create adds a new class; the store assigns its ID.
func (s *ClassService) Create(ctx context.Context, in models.ClassInput) (*models.Class, error) {
	in = normalizeInput(in)
	if err := s.validate(in); err != nil {
		return nil, err
	}

	class := &models.Class{}
	class.Apply(in)
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, storeError(err, "failed to create class")
	}

	s.afterMutation(ctx, models.ClassCreated, class)
	s.logger.Info("class created", zap.Int64("id", class.ID), zap.String("day", class.Day))
	return class, nil
}

// Update replaces all editable fields of the class with the given ID.
func (s *ClassService) Update(ctx context.Context, id int64, in models.ClassInput) (*models.Class, error) {
	in = normalizeInput(in)
	if err := s.validate(in); err != nil {
		return nil, err
	}

	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load class")
	}

	class.Apply(in)
	if err := s.repo.Update(ctx, class); err != nil {
		return nil, storeError(err, "failed to update class")
	}

	s.afterMutation(ctx, models.ClassUpdated, class)
	s.logger.Info("class updated", zap.Int64("id", class.ID))
	return class, nil
}

// Delete removes the class with the given ID.
func (s *ClassService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeError(err, "failed to delete class")
	}

	s.afterMutation(ctx, models.ClassDeleted, &models.Class{ID: id})
	s.logger.Info("class deleted", zap.Int64("id", id))
	return nil
}

// SeedSampleData inserts SampleClasses when the store is empty and returns
// how many classes were added.
func (s *ClassService) SeedSampleData(ctx context.Context) (int, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed classes: %w", err)
	}
	if count > 0 {
		return 0, nil
	}
	for i, in := range SampleClasses {
		class := &models.Class{}
		class.Apply(in)
		if err := s.repo.Create(ctx, class); err != nil {
			return i, fmt.Errorf("seed classes: %w", err)
		}
	}
	s.invalidateLists(ctx)
	return len(SampleClasses), nil
}

// Ready reports whether the backing store answers.
func (s *ClassService) Ready(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "store unavailable")
	}
	return nil
}

func (s *ClassService) validate(in models.ClassInput) error {
	if err := s.validator.Struct(in); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, describeValidation(err))
	}
	return nil
}

func (s *ClassService) afterMutation(ctx context.Context, kind models.ClassEventType, class *models.Class) {
	s.invalidateLists(ctx)
	s.metrics.RecordClassMutation(strings.TrimPrefix(string(kind), "class."))
	if s.events != nil {
		s.events.Publish(models.ClassEvent{Event: kind, ID: class.ID, Day: class.Day, At: time.Now().UTC()})
	}
}

func (s *ClassService) invalidateLists(ctx context.Context) {
	s.cache.Bump(ctx, classListGenerationKey)
	s.cache.Invalidate(ctx, classListCachePattern)
}

func listCacheKey(gen int64, filter models.ClassFilter) string {
	if filter.Day == "" {
		return fmt.Sprintf("list:%d:all", gen)
	}
	return fmt.Sprintf("list:%d:day:%s", gen, url.QueryEscape(filter.Day))
}

func normalizeInput(in models.ClassInput) models.ClassInput {
	return models.ClassInput{
		Subject:    strings.TrimSpace(in.Subject),
		Time:       strings.TrimSpace(in.Time),
		Day:        strings.TrimSpace(in.Day),
		Room:       strings.TrimSpace(in.Room),
		Instructor: strings.TrimSpace(in.Instructor),
	}
}

func storeError(err error, message string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "class not found")
	case errors.Is(err, context.DeadlineExceeded):
		return appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid class payload"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fe.Field()+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
