package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveHTTP(http.MethodGet, "/api/articles", http.StatusOK, 20*time.Millisecond)
	c.ObserveHTTP(http.MethodGet, "/api/articles", http.StatusOK, 30*time.Millisecond)
	c.MediaSaved("photos", 1024)
	c.MediaRejected("home", "size")
	c.LoginAttempt(false)
	c.ImportRecords("articles", 3, 1)
	c.ArticleViewed()

	assert.Equal(t, float64(2), testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/api/articles", "200")))
	assert.Equal(t, float64(1024), testutil.ToFloat64(c.mediaBytes.WithLabelValues("photos")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.mediaRejected.WithLabelValues("home", "size")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.logins.WithLabelValues("failure")))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.importRecords.WithLabelValues("articles", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.importRecords.WithLabelValues("articles", "failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.articleViews))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveHTTP(http.MethodGet, "", http.StatusOK, time.Millisecond)
		c.MediaSaved("photos", 1)
		c.BackupRun("export", true)
		c.ArticleViewed()
	})
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.BackupRun("export", true)

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Body)
	assert.Contains(t, string(body), "booknotes_backup_runs_total")
}
