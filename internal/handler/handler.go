// Package handler 提供博客后台的HTTP处理器
// 处理器只负责参数绑定和响应，业务规则在 service 层
package handler

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/response"
)

// BatchDeleteRequest 批量删除请求
type BatchDeleteRequest struct {
	IDs []string `json:"ids" example:"3f1c2a9e-5b7d-4e8f-9a0b-1c2d3e4f5a6b"`
}

// BatchDeleteResponse 批量删除结果
type BatchDeleteResponse struct {
	Message      string `json:"message" example:"批量删除成功"`
	DeletedCount int64  `json:"deletedCount" example:"2"`
}

// bindJSON 绑定JSON请求体，失败时直接返回400
func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		response.BadRequest(c, err.Error())
		return false
	}
	return true
}

// formValue 读取表单字段，字段不存在时返回 nil
func formValue(c *gin.Context, key string) *string {
	values, ok := c.GetPostFormArray(key)
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

// formList 读取数组字段，支持 JSON 数组字符串和重复字段两种写法
// 字段不存在时返回 nil
func formList(c *gin.Context, key string) (*[]string, error) {
	values, ok := c.GetPostFormArray(key)
	if !ok {
		values, ok = c.GetPostFormArray(key + "[]")
	}
	if !ok {
		return nil, nil
	}

	items := []string{}
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		if err := json.Unmarshal([]byte(values[0]), &items); err != nil {
			return nil, errors.Validation(key + ": must be a JSON array of strings")
		}
		return &items, nil
	}
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			items = append(items, v)
		}
	}
	return &items, nil
}

// isMultipart 判断请求是否为 multipart 表单
func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}
