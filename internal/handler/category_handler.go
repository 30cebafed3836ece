package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/booknotes/internal/response"
	"github.com/weiwangfds/booknotes/internal/service/category"
)

// CategoryHandler 分类处理器
type CategoryHandler struct {
	categoryService category.Service
}

// NewCategoryHandler 创建分类处理器实例
func NewCategoryHandler(categoryService category.Service) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

// List 获取分类列表
// @Summary 获取分类列表
// @Description 按 sortOrder 升序返回全部分类
// @Tags 分类管理
// @Produce json
// @Success 200 {array} database.Category
// @Router /api/categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.categoryService.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, categories)
}

// Get 获取分类详情
// @Summary 获取分类详情
// @Tags 分类管理
// @Produce json
// @Param id path string true "分类ID"
// @Success 200 {object} database.Category
// @Failure 404 {object} response.ErrorResponse "分类不存在"
// @Router /api/categories/{id} [get]
func (h *CategoryHandler) Get(c *gin.Context) {
	result, err := h.categoryService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Create 创建分类
// @Summary 创建分类
// @Description 名称必须唯一
// @Tags 分类管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body category.CreateRequest true "创建分类请求"
// @Success 201 {object} database.Category
// @Failure 400 {object} response.ErrorResponse "参数错误"
// @Failure 409 {object} response.ErrorResponse "名称已存在"
// @Router /api/categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	var req category.CreateRequest
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.categoryService.Create(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update 更新分类
// @Summary 更新分类
// @Tags 分类管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "分类ID"
// @Param request body category.UpdateRequest true "更新分类请求"
// @Success 200 {object} database.Category
// @Failure 404 {object} response.ErrorResponse "分类不存在"
// @Failure 409 {object} response.ErrorResponse "名称已存在"
// @Router /api/categories/{id} [put]
func (h *CategoryHandler) Update(c *gin.Context) {
	var req category.UpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.categoryService.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, updated)
}

// Delete 删除分类
// @Summary 删除分类
// @Description 引用该分类的文章变为未分类
// @Tags 分类管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "分类ID"
// @Success 200 {object} response.MessageResponse
// @Failure 404 {object} response.ErrorResponse "分类不存在"
// @Router /api/categories/{id} [delete]
func (h *CategoryHandler) Delete(c *gin.Context) {
	if err := h.categoryService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "分类删除成功")
}

// BatchDelete 批量删除分类
// @Summary 批量删除分类
// @Tags 分类管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BatchDeleteRequest true "ID列表"
// @Success 200 {object} BatchDeleteResponse
// @Failure 400 {object} response.ErrorResponse "ID列表为空"
// @Router /api/categories/batch-delete [post]
func (h *CategoryHandler) BatchDelete(c *gin.Context) {
	var req BatchDeleteRequest
	if !bindJSON(c, &req) {
		return
	}

	count, err := h.categoryService.BatchDelete(c.Request.Context(), req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, BatchDeleteResponse{Message: "批量删除成功", DeletedCount: count})
}
