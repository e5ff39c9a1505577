package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"teetime/internal/database"
	"teetime/internal/models"

	"github.com/google/uuid"
)

type CourseRepository struct {
	db *database.DB
}

func NewCourseRepository(db *database.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = `id, slug, name, description, location, timezone, weekday_price, weekend_price, currency, created_at, updated_at`

func scanCourse(row interface{ Scan(...interface{}) error }) (*models.Course, error) {
	c := &models.Course{}
	err := row.Scan(
		&c.ID,
		&c.Slug,
		&c.Name,
		&c.Description,
		&c.Location,
		&c.Timezone,
		&c.WeekdayPrice,
		&c.WeekendPrice,
		&c.Currency,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

// Upsert inserts a course or updates it by slug.
func (r *CourseRepository) Upsert(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	query := `
		INSERT INTO courses (id, slug, name, description, location, timezone, weekday_price, weekend_price, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, location = EXCLUDED.location,
		    timezone = EXCLUDED.timezone, weekday_price = EXCLUDED.weekday_price,
		    weekend_price = EXCLUDED.weekend_price, currency = EXCLUDED.currency, updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := r.db.Conn(ctx).QueryRowContext(ctx, query,
		course.ID,
		course.Slug,
		course.Name,
		course.Description,
		course.Location,
		course.Timezone,
		course.WeekdayPrice,
		course.WeekendPrice,
		course.Currency,
	).Scan(&course.ID, &course.CreatedAt, &course.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert course: %w", err)
	}
	return nil
}

func (r *CourseRepository) GetByID(ctx context.Context, id string) (*models.Course, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id)
	c, err := scanCourse(row)
	if err == sql.ErrNoRows || database.IsInvalidInput(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return c, nil
}

func (r *CourseRepository) GetBySlug(ctx context.Context, slug string) (*models.Course, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE slug = $1`, slug)
	c, err := scanCourse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get course by slug: %w", err)
	}
	return c, nil
}

// List matches query against name and location; an empty query lists everything.
func (r *CourseRepository) List(ctx context.Context, query string, page, pageSize int) ([]models.Course, error) {
	var args []interface{}
	argIndex := 1

	sqlQuery := `SELECT ` + courseColumns + ` FROM courses WHERE 1=1`
	if q := strings.TrimSpace(query); q != "" {
		sqlQuery += fmt.Sprintf(" AND (name ILIKE $%d OR location ILIKE $%d OR slug ILIKE $%d)", argIndex, argIndex, argIndex)
		args = append(args, "%"+q+"%")
		argIndex++
	}
	sqlQuery += " ORDER BY name ASC, id ASC"

	if page > 0 && pageSize > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
		args = append(args, pageSize, (page-1)*pageSize)
	}

	rows, err := r.db.Conn(ctx).QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	courses := []models.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, *c)
	}
	return courses, rows.Err()
}

// UpdatedSince returns courses changed after since, for index sync.
func (r *CourseRepository) UpdatedSince(ctx context.Context, since time.Time) ([]models.Course, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE updated_at > $1 ORDER BY updated_at ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list updated courses: %w", err)
	}
	defer rows.Close()

	var courses []models.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, *c)
	}
	return courses, rows.Err()
}
