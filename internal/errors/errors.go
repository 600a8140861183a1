// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 工作流层错误类型
	ErrorTypeValidation ErrorType = "validation_error"  // 输入为空或非法，阻止状态转换
	ErrorTypeMalformed  ErrorType = "malformed_response" // 远端返回的计划/续写无法通过结构校验
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict" // 状态机不允许的操作（重复续写、已有结局等）

	// 远端生成服务错误类型
	ErrorTypeContentBlocked ErrorType = "content_blocked"  // 图像生成被策略拒绝
	ErrorTypeNoData         ErrorType = "no_data"          // 调用成功但缺少有效载荷
	ErrorTypeEntityNotFound ErrorType = "entity_not_found" // 视频路径的密钥/项目配置问题
	ErrorTypeOperation      ErrorType = "operation_error"  // 异步操作被远端报告为失败
	ErrorTypeRemote         ErrorType = "remote_error"     // 其他远端调用失败
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewMalformedError 创建响应结构错误
func NewMalformedError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeMalformed, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewConflictError 创建冲突错误
func NewConflictError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConflict, message, originalError)
}

// NewContentBlockedError 创建内容被拒错误
func NewContentBlockedError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeContentBlocked, message, originalError)
}

// NewNoDataError 创建空载荷错误
func NewNoDataError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNoData, message, originalError)
}

// NewEntityNotFoundError 创建远端实体未找到错误
func NewEntityNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeEntityNotFound, message, originalError)
}

// NewOperationError 创建异步操作失败错误
func NewOperationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeOperation, message, originalError)
}

// NewRemoteError 创建远端调用失败错误
func NewRemoteError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeRemote, message, originalError)
}

// TypeOf 提取错误的类型，非AppError返回空串
func TypeOf(err error) ErrorType {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type
	}
	return ""
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return TypeOf(err) == ErrorTypeValidation
}

// IsMalformedError 检查是否为响应结构错误
func IsMalformedError(err error) bool {
	return TypeOf(err) == ErrorTypeMalformed
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// IsConflictError 检查是否为冲突错误
func IsConflictError(err error) bool {
	return TypeOf(err) == ErrorTypeConflict
}

// IsContentBlockedError 检查是否为内容被拒错误
func IsContentBlockedError(err error) bool {
	return TypeOf(err) == ErrorTypeContentBlocked
}

// IsNoDataError 检查是否为空载荷错误
func IsNoDataError(err error) bool {
	return TypeOf(err) == ErrorTypeNoData
}

// IsEntityNotFoundError 检查是否为远端实体未找到错误
func IsEntityNotFoundError(err error) bool {
	return TypeOf(err) == ErrorTypeEntityNotFound
}

// IsOperationError 检查是否为异步操作失败错误
func IsOperationError(err error) bool {
	return TypeOf(err) == ErrorTypeOperation
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeMalformed:
		return "MALFORMED_RESPONSE"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeContentBlocked:
		return "CONTENT_BLOCKED"
	case ErrorTypeNoData:
		return "NO_DATA"
	case ErrorTypeEntityNotFound:
		return "ENTITY_NOT_FOUND"
	case ErrorTypeOperation:
		return "OPERATION_ERROR"
	case ErrorTypeRemote:
		return "REMOTE_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，只更新消息
		return &AppError{
			Type:    appError.Type,
			Message: message,
			Err:     appError,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
