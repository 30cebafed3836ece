package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/metrics"
	"github.com/weiwangfds/booknotes/internal/service/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubVerifier 只接受 "good" 令牌
type stubVerifier struct{}

func (stubVerifier) VerifyToken(token string) (*auth.Claims, error) {
	if token != "good" {
		return nil, errors.ErrUnauthorizedAccess.WithDetails("invalid token")
	}
	return &auth.Claims{UserID: "u1", Username: "admin"}, nil
}

func TestAuth(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.POST("/write", Auth(stubVerifier{}), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUserID(c))
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"缺少令牌", "", http.StatusUnauthorized},
		{"格式错误", "Token good", http.StatusUnauthorized},
		{"无效令牌", "Bearer bad", http.StatusUnauthorized},
		{"有效令牌", "Bearer good", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/write", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
			if tt.status == http.StatusOK {
				assert.Equal(t, "u1", w.Body.String())
			}
		})
	}
}

func TestRequestIDPropagates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextKeyRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	defer rl.Stop()

	r := gin.New()
	r.POST("/login", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, "60", w.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// 其他IP不受影响
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, rl.Count())

	rl.cleanup(time.Now().Add(time.Hour))
	assert.Equal(t, 0, rl.Count())
}

func TestRequestLoggerKeepsBody(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(DefaultRequestLoggerConfig(true)))
	r.POST("/api/auth/login", func(c *gin.Context) {
		var body map[string]string
		require.NoError(t, c.ShouldBindJSON(&body))
		c.JSON(http.StatusOK, body)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"admin","password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"admin","password":"secret"}`, w.Body.String())
}

func TestRedact(t *testing.T) {
	body := parseBody([]byte(`{"username":"admin","password":"secret","nested":[{"newPassword":"x"}]}`))
	m := body.(map[string]interface{})
	assert.Equal(t, "admin", m["username"])
	assert.Equal(t, redacted, m["password"])
	nested := m["nested"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, redacted, nested["newPassword"])

	headers := extractHeaders(map[string][]string{"Authorization": {"Bearer x"}, "Accept": {"*/*"}})
	assert.Equal(t, redacted, headers["Authorization"])
	assert.Equal(t, "*/*", headers["Accept"])
}

func TestMetricsMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	r := gin.New()
	r.Use(Metrics(collector))
	r.GET("/api/articles/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/articles/42", nil))

	count, err := testutil.GatherAndCount(reg, "booknotes_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
