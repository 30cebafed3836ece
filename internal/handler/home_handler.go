package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/booknotes/internal/response"
	"github.com/weiwangfds/booknotes/internal/service/home"
)

// HomeHandler 首页资料处理器
type HomeHandler struct {
	homeService home.Service
}

// NewHomeHandler 创建首页处理器实例
func NewHomeHandler(homeService home.Service) *HomeHandler {
	return &HomeHandler{homeService: homeService}
}

// Get 获取首页资料
// @Summary 获取首页资料
// @Description 首次访问时创建默认资料
// @Tags 首页
// @Produce json
// @Success 200 {object} database.Home
// @Router /api/home [get]
func (h *HomeHandler) Get(c *gin.Context) {
	result, err := h.homeService.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Update 更新首页资料
// @Summary 更新首页资料
// @Description multipart 表单中 avatarImage/bannerImage 为图片文件，上传后替换旧图片
// @Description socialLinks、education、work、stats、siteInfo 以JSON字符串提交
// @Tags 首页
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param name formData string false "名称"
// @Param subtitle formData string false "副标题"
// @Param introduction formData string false "简介"
// @Param socialLinks formData string false "社交链接JSON"
// @Param education formData string false "教育经历JSON"
// @Param work formData string false "工作经历JSON"
// @Param stats formData string false "统计数字JSON"
// @Param siteInfo formData string false "站点信息JSON"
// @Param avatarImage formData file false "头像"
// @Param bannerImage formData file false "横幅"
// @Success 200 {object} database.Home
// @Failure 400 {object} response.ErrorResponse "图片类型不支持或超过5MB"
// @Router /api/home [put]
func (h *HomeHandler) Update(c *gin.Context) {
	var (
		req   *home.UpdateRequest
		files home.Files
	)
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		req = home.ParseForm(form.Value)
		if fhs := form.File["avatarImage"]; len(fhs) > 0 {
			files.Avatar = fhs[0]
		}
		if fhs := form.File["bannerImage"]; len(fhs) > 0 {
			files.Banner = fhs[0]
		}
	} else {
		req = &home.UpdateRequest{}
		if !bindJSON(c, req) {
			return
		}
	}

	updated, err := h.homeService.Update(c.Request.Context(), req, files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, updated)
}
