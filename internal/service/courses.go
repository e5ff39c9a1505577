package service

import (
	"context"
	"fmt"
	"time"

	apperrors "teetime/internal/errors"
	"teetime/internal/logger"
	"teetime/internal/models"
)

// CourseService resolves slugs to courses and serves the read-only catalog.
type CourseService struct {
	courses  CourseStore
	slots    SlotLister
	cache    CourseCache
	searcher CourseSearcher
}

// NewCourseService builds the service. cache and searcher may be nil.
func NewCourseService(courses CourseStore, slots SlotLister, cache CourseCache, searcher CourseSearcher) *CourseService {
	return &CourseService{
		courses:  courses,
		slots:    slots,
		cache:    cache,
		searcher: searcher,
	}
}

// Resolve finds a course by id, or by slug when id is empty.
func (s *CourseService) Resolve(ctx context.Context, id, slug string) (*models.Course, error) {
	switch {
	case id != "":
		return s.lookup(ctx, id, s.cacheByID, s.courses.GetByID)
	case slug != "":
		return s.lookup(ctx, slug, s.cacheBySlug, s.courses.GetBySlug)
	default:
		return nil, apperrors.Validation("course_id", "course_id or course_slug is required")
	}
}

type courseGetter func(ctx context.Context, v string) (*models.Course, error)

func (s *CourseService) cacheByID(ctx context.Context, id string) (*models.Course, error) {
	return s.cache.GetByID(ctx, id)
}

func (s *CourseService) cacheBySlug(ctx context.Context, slug string) (*models.Course, error) {
	return s.cache.GetBySlug(ctx, slug)
}

func (s *CourseService) lookup(ctx context.Context, v string, fromCache, fromStore courseGetter) (*models.Course, error) {
	if s.cache != nil {
		course, err := fromCache(ctx, v)
		if err != nil {
			logger.WithContext(ctx).Warn("Course cache lookup failed", "error", err, "key", v)
		} else if course != nil {
			return course, nil
		}
	}

	course, err := fromStore(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if course == nil {
		return nil, apperrors.ErrCourseNotFound
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, course); err != nil {
			logger.WithContext(ctx).Warn("Failed to cache course", "error", err, "course_id", course.ID)
		}
	}
	return course, nil
}

// Search queries the course index, falling back to Postgres when the index is absent or failing.
func (s *CourseService) Search(ctx context.Context, query string, page, pageSize int) ([]models.Course, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	if s.searcher != nil {
		courses, err := s.searcher.Search(ctx, query, page, pageSize)
		if err == nil {
			return courses, nil
		}
		logger.WithContext(ctx).Warn("Course search failed, falling back to database", "error", err, "query", query)
	}

	courses, err := s.courses.List(ctx, query, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return courses, nil
}

// Slots lists tee times and remaining capacity for a course on a date.
func (s *CourseService) Slots(ctx context.Context, slug, date string) (*models.ListSlotsResponse, error) {
	if _, err := models.ParseDate(date); err != nil {
		return nil, err
	}
	course, err := s.Resolve(ctx, "", slug)
	if err != nil {
		return nil, err
	}

	slots, err := s.slots.ListByCourseDate(ctx, course.ID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}

	resp := &models.ListSlotsResponse{
		CourseID: course.ID,
		Date:     date,
		Slots:    make([]models.SlotAvailability, len(slots)),
	}
	for i, slot := range slots {
		resp.Slots[i] = models.SlotAvailability{
			Time:      slot.StartTime,
			Capacity:  slot.Capacity,
			Available: slot.Available(),
		}
	}
	return resp, nil
}

// Reindex pushes every course changed since `since` into the search index.
func (s *CourseService) Reindex(ctx context.Context, since time.Time) (int, error) {
	if s.searcher == nil {
		return 0, fmt.Errorf("course index is not configured")
	}
	courses, err := s.courses.UpdatedSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to load courses: %w", err)
	}

	indexed := 0
	for i := range courses {
		if err := s.searcher.IndexCourse(ctx, &courses[i]); err != nil {
			return indexed, fmt.Errorf("failed to index course %s: %w", courses[i].Slug, err)
		}
		indexed++
	}
	return indexed, nil
}
