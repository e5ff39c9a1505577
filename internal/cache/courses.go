package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"teetime/internal/models"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// CourseCache keeps course lookups by slug and id in Redis/Valkey.
type CourseCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCourseCache(cfg Config) (*CourseCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to cache: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CourseCache{client: rdb, ttl: ttl}, nil
}

func courseKey(kind, v string) string {
	return "teetime:course:" + kind + ":" + v
}

func (c *CourseCache) get(ctx context.Context, key string) (*models.Course, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}

	var course models.Course
	if err := json.Unmarshal(raw, &course); err != nil {
		return nil, fmt.Errorf("invalid course in cache: %w", err)
	}
	return &course, nil
}

// GetBySlug returns nil on a miss.
func (c *CourseCache) GetBySlug(ctx context.Context, slug string) (*models.Course, error) {
	return c.get(ctx, courseKey("slug", slug))
}

// GetByID returns nil on a miss.
func (c *CourseCache) GetByID(ctx context.Context, id string) (*models.Course, error) {
	return c.get(ctx, courseKey("id", id))
}

func (c *CourseCache) Set(ctx context.Context, course *models.Course) error {
	raw, err := json.Marshal(course)
	if err != nil {
		return fmt.Errorf("failed to marshal course: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, courseKey("slug", course.Slug), raw, c.ttl)
	pipe.Set(ctx, courseKey("id", course.ID), raw, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache course: %w", err)
	}
	return nil
}

func (c *CourseCache) Invalidate(ctx context.Context, course *models.Course) error {
	if err := c.client.Del(ctx, courseKey("slug", course.Slug), courseKey("id", course.ID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate course: %w", err)
	}
	return nil
}

func (c *CourseCache) Close() error {
	return c.client.Close()
}
