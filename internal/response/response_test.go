package response

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/booknotes/internal/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(t *testing.T, lang string, handler gin.HandlerFunc) (*httptest.ResponseRecorder, ErrorResponse) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		c.Set("request_id", "req-1")
		handler(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if lang != "" {
		req.Header.Set("Accept-Language", lang)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body ErrorResponse
	if w.Code >= 400 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestErrorMapping(t *testing.T) {
	now = func() time.Time { return time.Unix(1704067200, 0) }
	defer func() { now = time.Now }()

	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"参数错误", errors.Validation("title is required"), http.StatusBadRequest, int(errors.ErrInvalidParams)},
		{"未授权", errors.ErrUnauthorizedAccess, http.StatusUnauthorized, int(errors.ErrUnauthorized)},
		{"记录不存在", errors.NotFound("Article"), http.StatusNotFound, int(errors.ErrRecordNotFound)},
		{"唯一冲突", errors.Conflict("Category"), http.StatusBadRequest, int(errors.ErrRecordAlreadyExists)},
		{"未知错误", stderrors.New("disk on fire"), http.StatusInternalServerError, int(errors.ErrInternalServer)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.err
			w, body := perform(t, "", func(c *gin.Context) { Error(c, err) })
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Message)
			assert.Equal(t, "req-1", body.RequestID)
			assert.Equal(t, int64(1704067200), body.Timestamp)
		})
	}
}

func TestErrorHidesInternalDetails(t *testing.T) {
	_, body := perform(t, "", func(c *gin.Context) {
		Error(c, errors.Internal(errors.ErrDatabaseQuery, stderrors.New("no such table: secrets")))
	})
	assert.Empty(t, body.Details)
	assert.NotContains(t, body.Message, "secrets")
}

func TestErrorLocalizedByAcceptLanguage(t *testing.T) {
	_, zh := perform(t, "zh-CN", func(c *gin.Context) { Error(c, errors.ErrUnauthorizedAccess) })
	_, en := perform(t, "en-US,en;q=0.9", func(c *gin.Context) { Error(c, errors.ErrUnauthorizedAccess) })
	assert.NotEqual(t, zh.Message, en.Message)
}

func TestSuccessHelpers(t *testing.T) {
	w, _ := perform(t, "", func(c *gin.Context) { Created(c, gin.H{"id": "1"}) })
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":"1"}`, w.Body.String())

	w, _ = perform(t, "", func(c *gin.Context) { Message(c, "删除成功") })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"删除成功"}`, w.Body.String())
}
