package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"teetime/internal/config"
	"teetime/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeES answers the handful of endpoints CourseIndex uses.
type fakeES struct {
	mu        sync.Mutex
	created   bool
	docs      map[string]json.RawMessage
	lastQuery map[string]interface{}
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodHead && r.URL.Path == "/courses":
		if f.created {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut && r.URL.Path == "/courses":
		f.created = true
		_, _ = io.WriteString(w, `{"acknowledged":true}`)
	case strings.HasPrefix(r.URL.Path, "/courses/_doc/"):
		id := strings.TrimPrefix(r.URL.Path, "/courses/_doc/")
		if r.Method == http.MethodDelete {
			delete(f.docs, id)
			_, _ = io.WriteString(w, `{"result":"deleted"}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.docs[id] = body
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	case r.URL.Path == "/courses/_search":
		var q map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&q)
		f.lastQuery = q
		var hits []map[string]json.RawMessage
		for _, d := range f.docs {
			hits = append(hits, map[string]json.RawMessage{"_source": d})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"hits": map[string]interface{}{"hits": hits}})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{}`)
	}
}

func newIndex(t *testing.T) (*CourseIndex, *fakeES) {
	fake := &fakeES{docs: make(map[string]json.RawMessage)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	idx, err := NewCourseIndex(config.ElasticsearchConfig{URL: srv.URL, Index: "courses", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return idx, fake
}

func TestCourseIndexCreatesIndex(t *testing.T) {
	_, fake := newIndex(t)
	assert.True(t, fake.created)
}

func TestCourseIndexIndexAndSearch(t *testing.T) {
	idx, fake := newIndex(t)
	ctx := context.Background()

	course := &models.Course{
		ID:           "c-1",
		Slug:         "pebble-beach",
		Name:         "Pebble Beach",
		Location:     "Monterey, CA",
		WeekdayPrice: decimal.RequireFromString("120"),
		WeekendPrice: decimal.RequireFromString("150"),
		Currency:     "USD",
	}
	require.NoError(t, idx.IndexCourse(ctx, course))
	assert.False(t, course.UpdatedAt.IsZero())

	found, err := idx.Search(ctx, "pebble", 1, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "pebble-beach", found[0].Slug)
	assert.Contains(t, fake.lastQuery["query"], "multi_match")

	_, err = idx.Search(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.Contains(t, fake.lastQuery["query"], "match_all")

	require.NoError(t, idx.DeleteCourse(ctx, "c-1"))
	found, err = idx.Search(ctx, "pebble", 1, 10)
	require.NoError(t, err)
	assert.Empty(t, found)
}
