package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/weiwangfds/booknotes/internal/i18n"
)

// ErrorCode 错误码类型
type ErrorCode int

// 定义错误码常量
const (
	// 通用错误码 (1000-1999)
	ErrSuccess            ErrorCode = 0    // 成功
	ErrInternalServer     ErrorCode = 1000 // 服务器内部错误
	ErrInvalidParams      ErrorCode = 1001 // 参数错误（ValidationError）
	ErrUnauthorized       ErrorCode = 1002 // 未授权
	ErrForbidden          ErrorCode = 1003 // 禁止访问
	ErrNotFound           ErrorCode = 1004 // 资源未找到
	ErrTooManyRequests    ErrorCode = 1006 // 请求过于频繁
	ErrInvalidCredentials ErrorCode = 1008 // 用户名或密码错误

	// 媒体文件相关错误码 (2000-2999)
	ErrMediaNotFound      ErrorCode = 2000 // 文件未找到
	ErrFileUploadFailed   ErrorCode = 2002 // 文件上传失败
	ErrFileDeleteFailed   ErrorCode = 2003 // 文件删除失败
	ErrFileReadFailed     ErrorCode = 2004 // 文件读取失败
	ErrFileWriteFailed    ErrorCode = 2005 // 文件写入失败
	ErrFileSizeTooLarge   ErrorCode = 2006 // 文件大小超限
	ErrFileTypeNotAllowed ErrorCode = 2007 // 文件类型不允许
	ErrInvalidFilePath    ErrorCode = 2010 // 路径越界

	// 存储后端相关错误码 (3000-3999)
	ErrStorageProviderNotSupported ErrorCode = 3008 // 存储提供商不支持
	ErrStorageConnectionFailed     ErrorCode = 3002 // 存储连接失败

	// 数据库相关错误码 (4000-4999)
	ErrDatabaseQuery       ErrorCode = 4001 // 数据库查询错误
	ErrDatabaseInsert      ErrorCode = 4002 // 数据库插入错误
	ErrDatabaseUpdate      ErrorCode = 4003 // 数据库更新错误
	ErrDatabaseDelete      ErrorCode = 4004 // 数据库删除错误
	ErrRecordNotFound      ErrorCode = 4006 // 记录未找到
	ErrRecordAlreadyExists ErrorCode = 4007 // 记录已存在（Conflict）

	// 备份相关错误码 (5000-5999)
	ErrArchiveInvalid     ErrorCode = 5000 // 备份文件无效
	ErrArchiveWriteFailed ErrorCode = 5001 // 备份文件写入失败
	ErrArchiveVersion     ErrorCode = 5002 // 备份版本不支持
)

// AppError 应用错误结构体
// @Description 应用程序统一错误格式
type AppError struct {
	// 错误码
	Code ErrorCode `json:"code"`
	// 错误消息
	Message string `json:"message"`
	// 详细错误信息
	Details string `json:"details,omitempty"`
	// 消息参数，用于按请求语言重新翻译
	Params []string `json:"-"`
	// 原始错误
	OriginalError error `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误，支持 errors.Is / errors.As
func (e *AppError) Unwrap() error {
	return e.OriginalError
}

// Is 按错误码比较，使预定义错误可用于 errors.Is
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithDetails 返回带详细信息的副本，不修改原错误
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithOriginalError 返回带原始错误的副本
func (e *AppError) WithOriginalError(err error) *AppError {
	cp := *e
	cp.OriginalError = err
	if cp.Details == "" && err != nil {
		cp.Details = err.Error()
	}
	return &cp
}

// HTTPStatus 返回错误码对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrInvalidParams, ErrRecordAlreadyExists, ErrFileSizeTooLarge, ErrFileTypeNotAllowed,
		ErrInvalidFilePath, ErrArchiveInvalid, ErrArchiveVersion:
		return http.StatusBadRequest
	case ErrUnauthorized, ErrInvalidCredentials:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound, ErrRecordNotFound, ErrMediaNotFound:
		return http.StatusNotFound
	case ErrTooManyRequests:
		return http.StatusTooManyRequests
	case ErrStorageConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// LocalizedMessage 按指定语言返回错误消息
func (e *AppError) LocalizedMessage(lang string) string {
	if _, ok := errorCodeToKeyMap[e.Code]; !ok {
		return e.Message
	}
	// 自定义消息保持原样，只翻译目录中的标准消息
	for _, l := range []string{i18n.LangZhCN, i18n.LangEnUS} {
		if e.Message == GetErrorMessageWithLang(e.Code, l, e.Params...) {
			return GetErrorMessageWithLang(e.Code, lang, e.Params...)
		}
	}
	return e.Message
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewWithDetails 创建带详细信息的应用错误
func NewWithDetails(code ErrorCode, message string, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Wrap 包装原始错误
func Wrap(code ErrorCode, message string, err error) *AppError {
	appErr := &AppError{
		Code:          code,
		Message:       message,
		OriginalError: err,
	}
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// Validation 创建参数校验错误，details 描述缺失或非法的字段
func Validation(details string) *AppError {
	return ErrInvalidParameters.WithDetails(details)
}

// NotFound 创建指定资源不存在的错误
func NotFound(resource string) *AppError {
	return &AppError{
		Code:    ErrRecordNotFound,
		Message: GetErrorMessage(ErrRecordNotFound, resource),
		Params:  []string{resource},
	}
}

// Conflict 创建唯一性冲突错误
func Conflict(resource string) *AppError {
	return &AppError{
		Code:    ErrRecordAlreadyExists,
		Message: GetErrorMessage(ErrRecordAlreadyExists, resource),
		Params:  []string{resource},
	}
}

// FileTooLarge 创建文件超限错误
func FileTooLarge(limit string) *AppError {
	return &AppError{
		Code:    ErrFileSizeTooLarge,
		Message: GetErrorMessage(ErrFileSizeTooLarge, limit),
		Params:  []string{limit},
	}
}

// UnsupportedVersion 创建备份版本不支持的错误
func UnsupportedVersion(version string) *AppError {
	return &AppError{
		Code:    ErrArchiveVersion,
		Message: GetErrorMessage(ErrArchiveVersion, version),
		Params:  []string{version},
	}
}

// StorageUnavailable 存储后端无法访问
func StorageUnavailable(err error) *AppError {
	return Internal(ErrStorageConnectionFailed, err)
}

// Internal 包装未预期的错误为服务器错误
func Internal(code ErrorCode, err error) *AppError {
	return Wrap(code, GetErrorMessage(code), err)
}

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	_, ok := GetAppError(err)
	return ok
}

// GetAppError 从错误链中提取应用错误
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// 预定义的常用错误，使用 WithDetails 派生副本
var (
	ErrInternalServerError   = New(ErrInternalServer, GetErrorMessage(ErrInternalServer))
	ErrInvalidParameters     = New(ErrInvalidParams, GetErrorMessage(ErrInvalidParams))
	ErrUnauthorizedAccess    = New(ErrUnauthorized, GetErrorMessage(ErrUnauthorized))
	ErrInvalidCredentialsErr = New(ErrInvalidCredentials, GetErrorMessage(ErrInvalidCredentials))
	ErrForbiddenAccess       = New(ErrForbidden, GetErrorMessage(ErrForbidden))
	ErrResourceNotFound      = New(ErrNotFound, GetErrorMessage(ErrNotFound))
	ErrTooManyRequestsError  = New(ErrTooManyRequests, GetErrorMessage(ErrTooManyRequests))

	ErrMediaNotFoundError      = New(ErrMediaNotFound, GetErrorMessage(ErrMediaNotFound))
	ErrFileTypeNotAllowedError = New(ErrFileTypeNotAllowed, GetErrorMessage(ErrFileTypeNotAllowed))
	ErrInvalidFilePathError    = New(ErrInvalidFilePath, GetErrorMessage(ErrInvalidFilePath))

	ErrStorageProviderNotSupportedError = New(ErrStorageProviderNotSupported, GetErrorMessage(ErrStorageProviderNotSupported))

	ErrArchiveInvalidError = New(ErrArchiveInvalid, GetErrorMessage(ErrArchiveInvalid))
)

// 错误码到i18n键的映射
var errorCodeToKeyMap = map[ErrorCode]string{
	ErrSuccess:            "success",
	ErrInternalServer:     "internal_server_error",
	ErrInvalidParams:      "invalid_params",
	ErrUnauthorized:       "unauthorized",
	ErrForbidden:          "forbidden",
	ErrNotFound:           "not_found",
	ErrTooManyRequests:    "too_many_requests",
	ErrInvalidCredentials: "invalid_credentials",

	ErrMediaNotFound:      "media_not_found",
	ErrFileUploadFailed:   "file_upload_failed",
	ErrFileDeleteFailed:   "file_delete_failed",
	ErrFileReadFailed:     "file_read_failed",
	ErrFileWriteFailed:    "file_write_failed",
	ErrFileSizeTooLarge:   "file_size_too_large",
	ErrFileTypeNotAllowed: "file_type_not_allowed",
	ErrInvalidFilePath:    "invalid_file_path",

	ErrStorageProviderNotSupported: "storage_provider_not_supported",
	ErrStorageConnectionFailed:     "storage_connection_failed",

	ErrDatabaseQuery:       "database_query",
	ErrDatabaseInsert:      "database_insert",
	ErrDatabaseUpdate:      "database_update",
	ErrDatabaseDelete:      "database_delete",
	ErrRecordNotFound:      "record_not_found",
	ErrRecordAlreadyExists: "record_already_exists",

	ErrArchiveInvalid:     "archive_invalid",
	ErrArchiveWriteFailed: "archive_write_failed",
	ErrArchiveVersion:     "archive_version",
}

// GetErrorMessage 根据错误码获取错误消息（使用默认语言）
func GetErrorMessage(code ErrorCode, params ...string) string {
	return GetErrorMessageWithLang(code, i18n.GetInstance().GetDefaultLanguage(), params...)
}

// GetErrorMessageWithLang 根据错误码和语言获取错误消息
func GetErrorMessageWithLang(code ErrorCode, lang string, params ...string) string {
	key, exists := errorCodeToKeyMap[code]
	if !exists {
		key = "unknown_error"
	}
	return i18n.GetInstance().Translate(key, lang, params...)
}
