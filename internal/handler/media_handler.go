package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/booknotes/internal/logger"
	"github.com/weiwangfds/booknotes/internal/media"
	"github.com/weiwangfds/booknotes/internal/response"
)

// MediaHandler 媒体文件处理器
type MediaHandler struct {
	store *media.Store
}

// NewMediaHandler 创建媒体处理器实例
func NewMediaHandler(store *media.Store) *MediaHandler {
	return &MediaHandler{store: store}
}

// List 列出命名空间下的媒体文件
// @Summary 列出媒体文件
// @Description 按创建时间倒序返回，namespace 为 home/articles/photos/travels
// @Tags 媒体管理
// @Produce json
// @Security BearerAuth
// @Param namespace path string true "命名空间"
// @Success 200 {array} media.FileInfo
// @Failure 400 {object} response.ErrorResponse "命名空间无效"
// @Router /api/media/{namespace} [get]
func (h *MediaHandler) List(c *gin.Context) {
	ns, err := media.ParseNamespace(c.Param("namespace"))
	if err != nil {
		response.Error(c, err)
		return
	}

	files, err := h.store.List(c.Request.Context(), ns)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, files)
}

// Serve 读取媒体文件
// 路径在 Store 中校验，只允许已知命名空间下的单级文件名
func (h *MediaHandler) Serve(c *gin.Context) {
	url := media.URLPrefix + c.Param("namespace") + "/" + c.Param("filename")
	rc, info, err := h.store.Open(c.Request.Context(), url)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()

	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	if info.ContentType != "" {
		c.Header("Content-Type", info.ContentType)
	}

	// 本地文件支持 Range 请求
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(c.Writer, c.Request, info.Name, info.ModifiedAt, rs)
		return
	}

	if info.Size > 0 {
		c.Header("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logger.ForRequest(c).WithError(err).Warn("媒体文件传输中断")
	}
}
