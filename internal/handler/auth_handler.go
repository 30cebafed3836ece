package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/booknotes/internal/middleware"
	"github.com/weiwangfds/booknotes/internal/response"
	"github.com/weiwangfds/booknotes/internal/service/auth"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	authService auth.Service
}

// NewAuthHandler 创建认证处理器实例
func NewAuthHandler(authService auth.Service) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// MeResponse 当前用户响应
type MeResponse struct {
	User *auth.UserView `json:"user"`
}

// Login 管理员登录
// @Summary 管理员登录
// @Description 校验用户名和密码，返回有效期7天的JWT令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body auth.LoginRequest true "登录请求"
// @Success 200 {object} auth.LoginResult "登录成功"
// @Failure 400 {object} response.ErrorResponse "用户名或密码为空"
// @Failure 401 {object} response.ErrorResponse "用户名或密码错误"
// @Failure 429 {object} response.ErrorResponse "请求过于频繁"
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Me 获取当前用户
// @Summary 获取当前用户
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MeResponse
// @Failure 401 {object} response.ErrorResponse "未登录"
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authService.Me(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, MeResponse{User: user})
}

// ChangePassword 修改密码
// @Summary 修改密码
// @Description 校验旧密码后设置新密码，新密码至少6位
// @Tags 认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body auth.ChangePasswordRequest true "修改密码请求"
// @Success 200 {object} response.MessageResponse
// @Failure 400 {object} response.ErrorResponse "参数错误"
// @Failure 401 {object} response.ErrorResponse "旧密码错误"
// @Router /api/auth/change-password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req auth.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), middleware.CurrentUserID(c), &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "密码修改成功")
}
