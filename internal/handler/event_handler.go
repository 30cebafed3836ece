package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/booknotes/internal/response"
	"github.com/weiwangfds/booknotes/internal/service/event"
)

// EventHandler 时间线事件处理器
type EventHandler struct {
	eventService event.Service
}

// NewEventHandler 创建事件处理器实例
func NewEventHandler(eventService event.Service) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// List 获取事件列表
// @Summary 获取事件列表
// @Description 按日期倒序返回
// @Tags 时间线
// @Produce json
// @Success 200 {array} database.Event
// @Router /api/events [get]
func (h *EventHandler) List(c *gin.Context) {
	events, err := h.eventService.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, events)
}

// Get 获取事件详情
// @Summary 获取事件详情
// @Tags 时间线
// @Produce json
// @Param id path string true "事件ID"
// @Success 200 {object} database.Event
// @Failure 404 {object} response.ErrorResponse "事件不存在"
// @Router /api/events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	result, err := h.eventService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Create 创建事件
// @Summary 创建事件
// @Tags 时间线
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body event.CreateRequest true "创建事件请求"
// @Success 201 {object} database.Event
// @Failure 400 {object} response.ErrorResponse "参数错误"
// @Router /api/events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req event.CreateRequest
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.eventService.Create(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update 更新事件
// @Summary 更新事件
// @Tags 时间线
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "事件ID"
// @Param request body event.UpdateRequest true "更新事件请求"
// @Success 200 {object} database.Event
// @Failure 404 {object} response.ErrorResponse "事件不存在"
// @Router /api/events/{id} [put]
func (h *EventHandler) Update(c *gin.Context) {
	var req event.UpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.eventService.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, updated)
}

// Delete 删除事件
// @Summary 删除事件
// @Tags 时间线
// @Produce json
// @Security BearerAuth
// @Param id path string true "事件ID"
// @Success 200 {object} response.MessageResponse
// @Failure 404 {object} response.ErrorResponse "事件不存在"
// @Router /api/events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.eventService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "事件删除成功")
}

// BatchDelete 批量删除事件
// @Summary 批量删除事件
// @Tags 时间线
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BatchDeleteRequest true "ID列表"
// @Success 200 {object} BatchDeleteResponse
// @Router /api/events/batch-delete [post]
func (h *EventHandler) BatchDelete(c *gin.Context) {
	var req BatchDeleteRequest
	if !bindJSON(c, &req) {
		return
	}

	count, err := h.eventService.BatchDelete(c.Request.Context(), req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, BatchDeleteResponse{Message: "批量删除成功", DeletedCount: count})
}
