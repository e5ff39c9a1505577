package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"teetime/internal/config"
	"teetime/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// CourseIndex is the full-text course catalog kept in Elasticsearch.
type CourseIndex struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// NewCourseIndex connects and creates the index when it is missing.
func NewCourseIndex(cfg config.ElasticsearchConfig) (*CourseIndex, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	idx := &CourseIndex{client: es, config: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := idx.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}
	return idx, nil
}

func (c *CourseIndex) ensureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{c.config.Index}}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}

	mapping := map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":            map[string]interface{}{"type": "keyword"},
				"slug":          map[string]interface{}{"type": "keyword"},
				"name":          map[string]interface{}{"type": "text", "analyzer": "english", "fields": map[string]interface{}{"keyword": map[string]interface{}{"type": "keyword", "ignore_above": 256}}},
				"description":   map[string]interface{}{"type": "text", "analyzer": "english"},
				"location":      map[string]interface{}{"type": "text"},
				"timezone":      map[string]interface{}{"type": "keyword"},
				"currency":      map[string]interface{}{"type": "keyword"},
				"weekday_price": map[string]interface{}{"type": "scaled_float", "scaling_factor": 100},
				"weekend_price": map[string]interface{}{"type": "scaled_float", "scaling_factor": 100},
				"updated_at":    map[string]interface{}{"type": "date"},
			},
		},
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createRes, err := esapi.IndicesCreateRequest{Index: c.config.Index, Body: bytes.NewReader(body)}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

// Search matches query against course name, location and description.
func (c *CourseIndex) Search(ctx context.Context, query string, page, pageSize int) ([]models.Course, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	from := 0
	if page > 1 {
		from = (page - 1) * pageSize
	}

	request := map[string]interface{}{
		"query": buildQuery(query),
		"sort":  buildSort(query),
		"from":  from,
		"size":  pageSize,
	}
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := esapi.SearchRequest{Index: []string{c.config.Index}, Body: bytes.NewReader(body)}.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Hits []struct {
				Source models.Course `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	courses := make([]models.Course, len(response.Hits.Hits))
	for i, hit := range response.Hits.Hits {
		courses[i] = hit.Source
	}
	return courses, nil
}

func buildQuery(query string) map[string]interface{} {
	if strings.TrimSpace(query) == "" {
		return map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	return map[string]interface{}{
		"multi_match": map[string]interface{}{
			"query":     query,
			"fields":    []string{"name^3", "location^2", "description"},
			"fuzziness": "AUTO",
		},
	}
}

func buildSort(query string) []map[string]interface{} {
	if strings.TrimSpace(query) != "" {
		return []map[string]interface{}{
			{"_score": map[string]interface{}{"order": "desc"}},
			{"name.keyword": map[string]interface{}{"order": "asc"}},
		}
	}
	return []map[string]interface{}{
		{"name.keyword": map[string]interface{}{"order": "asc"}},
	}
}

// IndexCourse creates or replaces the course document.
func (c *CourseIndex) IndexCourse(ctx context.Context, course *models.Course) error {
	if course.UpdatedAt.IsZero() {
		course.UpdatedAt = time.Now().UTC()
	}

	body, err := json.Marshal(course)
	if err != nil {
		return fmt.Errorf("failed to marshal course: %w", err)
	}

	res, err := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: course.ID,
		Body:       bytes.NewReader(body),
		Refresh:    "wait_for",
	}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index course: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}
	return nil
}

func (c *CourseIndex) DeleteCourse(ctx context.Context, id string) error {
	res, err := esapi.DeleteRequest{Index: c.config.Index, DocumentID: id, Refresh: "wait_for"}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to delete course: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete error: %s", res.String())
	}
	return nil
}

func (c *CourseIndex) HealthCheck(ctx context.Context) error {
	res, err := esapi.ClusterHealthRequest{WaitForStatus: "yellow", Timeout: 10 * time.Second}.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}
	return nil
}
