package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/media"
	"github.com/weiwangfds/booknotes/internal/response"
	"github.com/weiwangfds/booknotes/internal/service/article"
)

// ArticleHandler 文章处理器
type ArticleHandler struct {
	articleService article.Service
	store          *media.Store
}

// NewArticleHandler 创建文章处理器实例
func NewArticleHandler(articleService article.Service, store *media.Store) *ArticleHandler {
	return &ArticleHandler{articleService: articleService, store: store}
}

// BatchImportRequest 批量导入请求
type BatchImportRequest struct {
	Articles []article.ImportItem `json:"articles"`
}

// ViewsResponse 浏览量响应
type ViewsResponse struct {
	Views int64 `json:"views" example:"42"`
}

// UploadImageResponse 正文图片上传结果
type UploadImageResponse struct {
	URL string `json:"url" example:"/uploads/articles/1704067200000-a1b2c3d4e5.png"`
}

// List 获取文章列表
// @Summary 获取文章列表
// @Description 按创建时间倒序返回文章，可按分类筛选
// @Tags 文章管理
// @Produce json
// @Param category query string false "分类ID"
// @Success 200 {array} database.Article
// @Router /api/articles [get]
func (h *ArticleHandler) List(c *gin.Context) {
	articles, err := h.articleService.List(c.Request.Context(), article.ListFilter{CategoryID: c.Query("category")})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, articles)
}

// Get 获取文章详情
// @Summary 获取文章详情
// @Tags 文章管理
// @Produce json
// @Param id path string true "文章ID"
// @Success 200 {object} database.Article
// @Failure 404 {object} response.ErrorResponse "文章不存在"
// @Router /api/articles/{id} [get]
func (h *ArticleHandler) Get(c *gin.Context) {
	result, err := h.articleService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Create 创建文章
// @Summary 创建文章
// @Description 正文为富文本HTML，保存前按配置进行清洗
// @Tags 文章管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body article.CreateRequest true "创建文章请求"
// @Success 201 {object} database.Article
// @Failure 400 {object} response.ErrorResponse "参数错误"
// @Failure 404 {object} response.ErrorResponse "分类不存在"
// @Router /api/articles [post]
func (h *ArticleHandler) Create(c *gin.Context) {
	var req article.CreateRequest
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.articleService.Create(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update 更新文章
// @Summary 更新文章
// @Description category 为空字符串时清除分类
// @Tags 文章管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "文章ID"
// @Param request body article.UpdateRequest true "更新文章请求"
// @Success 200 {object} database.Article
// @Failure 404 {object} response.ErrorResponse "文章不存在"
// @Router /api/articles/{id} [put]
func (h *ArticleHandler) Update(c *gin.Context) {
	var req article.UpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.articleService.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, updated)
}

// Delete 删除文章
// @Summary 删除文章
// @Description 同时删除文章的全部批注
// @Tags 文章管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "文章ID"
// @Success 200 {object} response.MessageResponse
// @Failure 404 {object} response.ErrorResponse "文章不存在"
// @Router /api/articles/{id} [delete]
func (h *ArticleHandler) Delete(c *gin.Context) {
	if err := h.articleService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "文章删除成功")
}

// BatchDelete 批量删除文章
// @Summary 批量删除文章
// @Tags 文章管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BatchDeleteRequest true "ID列表"
// @Success 200 {object} BatchDeleteResponse
// @Failure 400 {object} response.ErrorResponse "ID列表为空"
// @Router /api/articles/batch-delete [post]
func (h *ArticleHandler) BatchDelete(c *gin.Context) {
	var req BatchDeleteRequest
	if !bindJSON(c, &req) {
		return
	}

	count, err := h.articleService.BatchDelete(c.Request.Context(), req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, BatchDeleteResponse{Message: "批量删除成功", DeletedCount: count})
}

// BatchImport 批量导入文章
// @Summary 批量导入文章
// @Description 逐条导入，单条失败记录在 errors 中，不影响其他文章
// @Tags 文章管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BatchImportRequest true "文章列表"
// @Success 200 {object} article.BatchImportResult
// @Failure 400 {object} response.ErrorResponse "文章列表为空"
// @Router /api/articles/batch-import [post]
func (h *ArticleHandler) BatchImport(c *gin.Context) {
	var req BatchImportRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.articleService.BatchImport(c.Request.Context(), req.Articles)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// IncrementViews 增加浏览量
// @Summary 增加浏览量
// @Tags 文章管理
// @Produce json
// @Param id path string true "文章ID"
// @Success 200 {object} ViewsResponse
// @Failure 404 {object} response.ErrorResponse "文章不存在"
// @Router /api/articles/{id}/views [post]
func (h *ArticleHandler) IncrementViews(c *gin.Context) {
	views, err := h.articleService.IncrementViews(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ViewsResponse{Views: views})
}

// UploadImage 上传正文图片
// @Summary 上传正文图片
// @Description 图片保存到 articles 命名空间，返回访问路径
// @Tags 文章管理
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param image formData file true "图片文件"
// @Success 200 {object} UploadImageResponse
// @Failure 400 {object} response.ErrorResponse "文件类型不支持或超过大小限制"
// @Router /api/articles/upload-image [post]
func (h *ArticleHandler) UploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		response.Error(c, errors.Validation("image: file is required"))
		return
	}

	url, err := h.store.SaveFileHeader(c.Request.Context(), media.NamespaceArticles, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, UploadImageResponse{URL: url})
}
