package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/booknotes/internal/response"
	"github.com/weiwangfds/booknotes/internal/service/photo"
)

// PhotoHandler 照片处理器
type PhotoHandler struct {
	photoService photo.Service
}

// NewPhotoHandler 创建照片处理器实例
func NewPhotoHandler(photoService photo.Service) *PhotoHandler {
	return &PhotoHandler{photoService: photoService}
}

// List 获取照片列表
// @Summary 获取照片列表
// @Description 按上传时间倒序返回，文件已丢失的照片不返回
// @Tags 相册管理
// @Produce json
// @Success 200 {array} database.Photo
// @Router /api/photos [get]
func (h *PhotoHandler) List(c *gin.Context) {
	photos, err := h.photoService.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, photos)
}

// Get 获取照片详情
// @Summary 获取照片详情
// @Tags 相册管理
// @Produce json
// @Param id path string true "照片ID"
// @Success 200 {object} database.Photo
// @Failure 404 {object} response.ErrorResponse "照片不存在"
// @Router /api/photos/{id} [get]
func (h *PhotoHandler) Get(c *gin.Context) {
	result, err := h.photoService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Create 上传照片
// @Summary 上传照片
// @Description multipart 上传文件字段为 photo，标题默认为原文件名，tags 以逗号分隔
// @Description 使用 JSON 时需提供已保存的 url
// @Tags 相册管理
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param photo formData file true "照片文件"
// @Param title formData string false "标题"
// @Param description formData string false "描述"
// @Param tags formData string false "标签，逗号分隔"
// @Success 201 {object} database.Photo
// @Failure 400 {object} response.ErrorResponse "文件类型不支持或超过大小限制"
// @Router /api/photos [post]
func (h *PhotoHandler) Create(c *gin.Context) {
	if !isMultipart(c) {
		var req photo.CreateRequest
		if !bindJSON(c, &req) {
			return
		}
		created, err := h.photoService.Create(c.Request.Context(), &req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, created)
		return
	}

	var req photo.UploadRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	// 缺少文件时由服务层返回参数错误
	file, _ := c.FormFile("photo")

	created, err := h.photoService.Upload(c.Request.Context(), &req, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update 更新照片信息
// @Summary 更新照片信息
// @Description 只更新标题、描述和标签
// @Tags 相册管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "照片ID"
// @Param request body photo.UpdateRequest true "更新照片请求"
// @Success 200 {object} database.Photo
// @Failure 404 {object} response.ErrorResponse "照片不存在"
// @Router /api/photos/{id} [put]
func (h *PhotoHandler) Update(c *gin.Context) {
	var req photo.UpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.photoService.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, updated)
}

// Delete 删除照片
// @Summary 删除照片
// @Tags 相册管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "照片ID"
// @Success 200 {object} response.MessageResponse
// @Failure 404 {object} response.ErrorResponse "照片不存在"
// @Router /api/photos/{id} [delete]
func (h *PhotoHandler) Delete(c *gin.Context) {
	if err := h.photoService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "照片删除成功")
}

// BatchDelete 批量删除照片
// @Summary 批量删除照片
// @Tags 相册管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BatchDeleteRequest true "ID列表"
// @Success 200 {object} BatchDeleteResponse
// @Router /api/photos/batch-delete [post]
func (h *PhotoHandler) BatchDelete(c *gin.Context) {
	var req BatchDeleteRequest
	if !bindJSON(c, &req) {
		return
	}

	count, err := h.photoService.BatchDelete(c.Request.Context(), req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, BatchDeleteResponse{Message: "批量删除成功", DeletedCount: count})
}
