package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/booknotes/internal/response"
	"github.com/weiwangfds/booknotes/internal/service/bookmark"
)

// BookmarkHandler 收藏处理器
type BookmarkHandler struct {
	bookmarkService bookmark.Service
}

// NewBookmarkHandler 创建收藏处理器实例
func NewBookmarkHandler(bookmarkService bookmark.Service) *BookmarkHandler {
	return &BookmarkHandler{bookmarkService: bookmarkService}
}

// Grouped 获取按分类分组的收藏
// @Summary 获取收藏
// @Description 返回分类名到收藏列表的映射，组内按 order 升序
// @Tags 收藏管理
// @Produce json
// @Success 200 {object} map[string][]database.Bookmark
// @Router /api/bookmarks [get]
func (h *BookmarkHandler) Grouped(c *gin.Context) {
	grouped, err := h.bookmarkService.Grouped(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, grouped)
}

// Categories 获取收藏分类
// @Summary 获取收藏分类
// @Tags 收藏管理
// @Produce json
// @Success 200 {array} string
// @Router /api/bookmarks/categories [get]
func (h *BookmarkHandler) Categories(c *gin.Context) {
	categories, err := h.bookmarkService.Categories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, categories)
}

// Create 创建收藏
// @Summary 创建收藏
// @Tags 收藏管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body bookmark.CreateRequest true "创建收藏请求"
// @Success 201 {object} database.Bookmark
// @Failure 400 {object} response.ErrorResponse "参数错误"
// @Router /api/bookmarks [post]
func (h *BookmarkHandler) Create(c *gin.Context) {
	var req bookmark.CreateRequest
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.bookmarkService.Create(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update 更新收藏
// @Summary 更新收藏
// @Tags 收藏管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "收藏ID"
// @Param request body bookmark.UpdateRequest true "更新收藏请求"
// @Success 200 {object} database.Bookmark
// @Failure 404 {object} response.ErrorResponse "收藏不存在"
// @Router /api/bookmarks/{id} [put]
func (h *BookmarkHandler) Update(c *gin.Context) {
	var req bookmark.UpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.bookmarkService.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, updated)
}

// Delete 删除收藏
// @Summary 删除收藏
// @Tags 收藏管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "收藏ID"
// @Success 200 {object} response.MessageResponse
// @Failure 404 {object} response.ErrorResponse "收藏不存在"
// @Router /api/bookmarks/{id} [delete]
func (h *BookmarkHandler) Delete(c *gin.Context) {
	if err := h.bookmarkService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "收藏删除成功")
}
