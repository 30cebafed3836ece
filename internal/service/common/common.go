// Package common 提供各业务服务共用的校验、日期解析和数据库错误转换
package common

import (
	stderrors "errors"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/weiwangfds/booknotes/internal/errors"
	"gorm.io/gorm"
)

// Validate 执行请求校验，将 ozzo-validation 错误转换为参数错误
func Validate(v validation.Validatable) error {
	return ValidationError(v.Validate())
}

// ValidationError 将校验错误转换为 AppError，details 形如 "date: cannot be blank; title: cannot be blank"
func ValidationError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.GetAppError(err); ok {
		return err
	}

	var internal validation.InternalError
	if stderrors.As(err, &internal) {
		return errors.Internal(errors.ErrInternalServer, internal.InternalError())
	}

	var fieldErrs validation.Errors
	if stderrors.As(err, &fieldErrs) {
		keys := make([]string, 0, len(fieldErrs))
		for k := range fieldErrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+fieldErrs[k].Error())
		}
		return errors.Validation(strings.Join(parts, "; "))
	}
	return errors.Validation(err.Error())
}

// 支持的日期格式，依次尝试
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate 解析 RFC3339 或 YYYY-MM-DD 格式的日期，结果统一为UTC
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Validation("date: invalid date " + s)
}

// IsDate 日期字段校验规则
var IsDate = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := ParseDate(s); err != nil {
		return stderrors.New("must be a valid date")
	}
	return nil
})

// DBError 将数据库错误转换为 AppError
// resource 用于记录不存在和唯一冲突时的提示
func DBError(code errors.ErrorCode, resource string, err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return errors.NotFound(resource)
	case stderrors.Is(err, gorm.ErrDuplicatedKey):
		return errors.Conflict(resource)
	}
	if _, ok := errors.GetAppError(err); ok {
		return err
	}
	return errors.Internal(code, err)
}

// CleanStrings 去除首尾空白和空项，结果不为 nil
func CleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// SplitTags 解析逗号分隔的标签
func SplitTags(s string) []string {
	return CleanStrings(strings.Split(s, ","))
}

// StringValue 安全解引用
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// ErrorText 返回面向用户的错误描述，用于批量导入报告
func ErrorText(err error) string {
	if appErr, ok := errors.GetAppError(err); ok {
		if appErr.Details != "" {
			return appErr.Message + ": " + appErr.Details
		}
		return appErr.Message
	}
	return err.Error()
}
