package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/booknotes/internal/response"
	"github.com/weiwangfds/booknotes/internal/service/annotation"
)

// AnnotationHandler 批注处理器
type AnnotationHandler struct {
	annotationService annotation.Service
}

// NewAnnotationHandler 创建批注处理器实例
func NewAnnotationHandler(annotationService annotation.Service) *AnnotationHandler {
	return &AnnotationHandler{annotationService: annotationService}
}

// ListByArticle 获取文章的批注
// @Summary 获取文章的批注
// @Description 偏移量失效时按选中文本重新定位，无法定位的批注标记 stale
// @Tags 批注管理
// @Produce json
// @Param articleId path string true "文章ID"
// @Success 200 {array} database.Annotation
// @Failure 404 {object} response.ErrorResponse "文章不存在"
// @Router /api/annotations/article/{articleId} [get]
func (h *AnnotationHandler) ListByArticle(c *gin.Context) {
	annotations, err := h.annotationService.ListByArticle(c.Request.Context(), c.Param("articleId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, annotations)
}

// ListAll 获取全部批注
// @Summary 获取全部批注
// @Tags 批注管理
// @Produce json
// @Security BearerAuth
// @Success 200 {array} database.Annotation
// @Router /api/annotations/all [get]
func (h *AnnotationHandler) ListAll(c *gin.Context) {
	annotations, err := h.annotationService.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, annotations)
}

// Create 创建批注
// @Summary 创建批注
// @Tags 批注管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body annotation.CreateRequest true "创建批注请求"
// @Success 201 {object} database.Annotation
// @Failure 400 {object} response.ErrorResponse "参数错误"
// @Failure 404 {object} response.ErrorResponse "文章不存在"
// @Router /api/annotations [post]
func (h *AnnotationHandler) Create(c *gin.Context) {
	var req annotation.CreateRequest
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.annotationService.Create(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update 更新批注内容
// @Summary 更新批注内容
// @Tags 批注管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "批注ID"
// @Param request body annotation.UpdateRequest true "更新批注请求"
// @Success 200 {object} database.Annotation
// @Failure 404 {object} response.ErrorResponse "批注不存在"
// @Router /api/annotations/{id} [put]
func (h *AnnotationHandler) Update(c *gin.Context) {
	var req annotation.UpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.annotationService.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, updated)
}

// Delete 删除批注
// @Summary 删除批注
// @Tags 批注管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "批注ID"
// @Success 200 {object} response.MessageResponse
// @Failure 404 {object} response.ErrorResponse "批注不存在"
// @Router /api/annotations/{id} [delete]
func (h *AnnotationHandler) Delete(c *gin.Context) {
	if err := h.annotationService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "批注删除成功")
}
