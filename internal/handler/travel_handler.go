package handler

import (
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/response"
	"github.com/weiwangfds/booknotes/internal/service/common"
	"github.com/weiwangfds/booknotes/internal/service/travel"
)

// TravelHandler 旅行日记处理器
type TravelHandler struct {
	travelService travel.Service
}

// NewTravelHandler 创建旅行日记处理器实例
func NewTravelHandler(travelService travel.Service) *TravelHandler {
	return &TravelHandler{travelService: travelService}
}

// List 获取旅行日记列表
// @Summary 获取旅行日记列表
// @Description 按日期倒序返回
// @Tags 旅行日记
// @Produce json
// @Success 200 {array} database.Travel
// @Router /api/travels [get]
func (h *TravelHandler) List(c *gin.Context) {
	travels, err := h.travelService.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, travels)
}

// Get 获取旅行日记详情
// @Summary 获取旅行日记详情
// @Tags 旅行日记
// @Produce json
// @Param id path string true "日记ID"
// @Success 200 {object} database.Travel
// @Failure 404 {object} response.ErrorResponse "日记不存在"
// @Router /api/travels/{id} [get]
func (h *TravelHandler) Get(c *gin.Context) {
	result, err := h.travelService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Create 创建旅行日记
// @Summary 创建旅行日记
// @Description 图片字段为 images，最多20张，评分默认为5
// @Tags 旅行日记
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "标题"
// @Param date formData string true "日期"
// @Param location formData string false "地点"
// @Param rating formData int false "评分 1-5"
// @Param weather formData string false "天气"
// @Param transport formData string false "交通方式"
// @Param description formData string false "描述"
// @Param images formData file false "图片"
// @Success 201 {object} database.Travel
// @Failure 400 {object} response.ErrorResponse "参数错误"
// @Router /api/travels [post]
func (h *TravelHandler) Create(c *gin.Context) {
	var (
		req   travel.CreateRequest
		files []*multipart.FileHeader
	)
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		req.Title = common.StringValue(formValue(c, "title"))
		req.Location = common.StringValue(formValue(c, "location"))
		req.Date = common.StringValue(formValue(c, "date"))
		req.Weather = common.StringValue(formValue(c, "weather"))
		req.Transport = common.StringValue(formValue(c, "transport"))
		req.Description = common.StringValue(formValue(c, "description"))
		if req.Rating, err = formInt(c, "rating"); err != nil {
			response.Error(c, err)
			return
		}
		files = form.File["images"]
	} else if !bindJSON(c, &req) {
		return
	}

	created, err := h.travelService.Create(c.Request.Context(), &req, files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update 更新旅行日记
// @Summary 更新旅行日记
// @Description existingImages 为要保留的原有图片（JSON数组或重复字段），新上传的图片追加在后
// @Tags 旅行日记
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "日记ID"
// @Param existingImages formData string false "保留的图片"
// @Param images formData file false "新图片"
// @Success 200 {object} database.Travel
// @Failure 404 {object} response.ErrorResponse "日记不存在"
// @Router /api/travels/{id} [put]
func (h *TravelHandler) Update(c *gin.Context) {
	var (
		req   travel.UpdateRequest
		files []*multipart.FileHeader
	)
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		req.Title = formValue(c, "title")
		req.Location = formValue(c, "location")
		req.Date = formValue(c, "date")
		req.Weather = formValue(c, "weather")
		req.Transport = formValue(c, "transport")
		req.Description = formValue(c, "description")
		if req.Rating, err = formInt(c, "rating"); err != nil {
			response.Error(c, err)
			return
		}
		if req.ExistingImages, err = formList(c, "existingImages"); err != nil {
			response.Error(c, err)
			return
		}
		files = form.File["images"]
	} else if !bindJSON(c, &req) {
		return
	}

	updated, err := h.travelService.Update(c.Request.Context(), c.Param("id"), &req, files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, updated)
}

// Delete 删除旅行日记
// @Summary 删除旅行日记
// @Description 同时删除日记的全部图片
// @Tags 旅行日记
// @Produce json
// @Security BearerAuth
// @Param id path string true "日记ID"
// @Success 200 {object} response.MessageResponse
// @Failure 404 {object} response.ErrorResponse "日记不存在"
// @Router /api/travels/{id} [delete]
func (h *TravelHandler) Delete(c *gin.Context) {
	if err := h.travelService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "旅行日记删除成功")
}

// BatchDelete 批量删除旅行日记
// @Summary 批量删除旅行日记
// @Tags 旅行日记
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BatchDeleteRequest true "ID列表"
// @Success 200 {object} BatchDeleteResponse
// @Router /api/travels/batch-delete [post]
func (h *TravelHandler) BatchDelete(c *gin.Context) {
	var req BatchDeleteRequest
	if !bindJSON(c, &req) {
		return
	}

	count, err := h.travelService.BatchDelete(c.Request.Context(), req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, BatchDeleteResponse{Message: "批量删除成功", DeletedCount: count})
}

// formInt 读取整数表单字段，空值视为未提供
func formInt(c *gin.Context, key string) (*int, error) {
	v := formValue(c, key)
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(*v))
	if err != nil {
		return nil, errors.Validation(key + ": must be an integer")
	}
	return &n, nil
}
