package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/class-schedule/internal/models"
)

const classColumns = "id, subject, time_slot, day, room, instructor, created_at, updated_at"

// ClassRepository manages persistence for classes. Queries are written with
// "?" placeholders and rebound for the active driver.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes matching the filter in insertion order.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, error) {
	query := "SELECT " + classColumns + " FROM classes"
	var args []interface{}
	if filter.Day != "" {
		query += " WHERE day = ?"
		args = append(args, filter.Day)
	}
	query += " ORDER BY id ASC"

	classes := []models.Class{}
	if err := r.db.SelectContext(ctx, &classes, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// FindByID returns a class record by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id int64) (*models.Class, error) {
	query := r.db.Rebind("SELECT " + classColumns + " FROM classes WHERE id = ?")
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// Count returns the number of stored classes.
func (r *ClassRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM classes"); err != nil {
		return 0, fmt.Errorf("count classes: %w", err)
	}
	return count, nil
}

// Create persists a class record and assigns its ID.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now

	query := r.db.Rebind(`INSERT INTO classes (subject, time_slot, day, room, instructor, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	if err := r.db.QueryRowxContext(ctx, query,
		class.Subject, class.Time, class.Day, class.Room, class.Instructor, class.CreatedAt, class.UpdatedAt,
	).Scan(&class.ID); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update replaces the editable fields of a class. It returns sql.ErrNoRows
// when the class does not exist.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	query := r.db.Rebind(`UPDATE classes SET subject = ?, time_slot = ?, day = ?, room = ?, instructor = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		class.Subject, class.Time, class.Day, class.Room, class.Instructor, class.UpdatedAt, class.ID,
	)
	if err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return expectAffected(res, "update class")
}

// Delete removes a class record. It returns sql.ErrNoRows when the class
// does not exist.
func (r *ClassRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM classes WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return expectAffected(res, "delete class")
}

// Ping checks that the store is reachable.
func (r *ClassRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func expectAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
