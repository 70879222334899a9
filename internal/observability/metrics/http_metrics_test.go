package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{Environment: "test"})

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.POST("/api/users/:telegramId/pro", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/users/"+id+"/pro", nil))
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues("/api/users/:telegramId/pro", http.MethodPost, "200"))
	if got != 2 {
		t.Fatalf("expected 2 requests on the templated route, got %v", got)
	}
}
