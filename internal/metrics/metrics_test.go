package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("/x", http.MethodGet, 200, time.Millisecond)
	m.LabelResolved("tag", true)
	m.ImageUploaded(true)
	m.RecordGCRun(time.Second, 1, 10)
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLabelResolved(t *testing.T) {
	m := New()
	m.LabelResolved("tag", true)
	m.LabelResolved("tag", false)
	m.LabelResolved("tag", false)
	m.LabelResolved("ingredient", true)

	body := scrape(t, m)
	assert.Contains(t, body, `recipe_labels_resolved_total{kind="tag",outcome="created"} 1`)
	assert.Contains(t, body, `recipe_labels_resolved_total{kind="tag",outcome="reused"} 2`)
	assert.Contains(t, body, `recipe_labels_resolved_total{kind="ingredient",outcome="created"} 1`)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveHTTP("/api/recipe/recipes", http.MethodGet, 200, 5*time.Millisecond)
	m.ImageUploaded(false)

	body := scrape(t, m)
	assert.Contains(t, body, `recipe_http_requests_total{code="200",method="GET",route="/api/recipe/recipes"} 1`)
	assert.Contains(t, body, `recipe_image_uploads_total{result="rejected"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestRecordGCRun(t *testing.T) {
	m := New()
	m.RecordGCRun(50*time.Millisecond, 3, 2048)
	m.RecordGCRun(10*time.Millisecond, 0, 0)

	body := scrape(t, m)
	assert.Contains(t, body, "recipe_gc_images_deleted_total 3")
	assert.Contains(t, body, "recipe_gc_bytes_freed_total 2048")
	assert.Contains(t, body, "recipe_gc_run_duration_seconds_count 2")
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
