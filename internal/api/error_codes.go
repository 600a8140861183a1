// internal/api/error_codes.go
package api

import (
	"net/http"

	apperrors "github.com/Corphon/StoryWeaverMCP/internal/errors"
)

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorForbidden     = "FORBIDDEN"
	ErrorUnauthorized  = "UNAUTHORIZED"

	// 项目相关错误
	ErrorProjectNotFound = "PROJECT_NOT_FOUND"
	ErrorSceneNotFound   = "SCENE_NOT_FOUND"
	ErrorInvalidState    = "INVALID_STATE"

	// 生成相关错误
	ErrorGenerationFailed = "GENERATION_FAILED"
	ErrorContentBlocked   = "CONTENT_BLOCKED"
	ErrorNoData           = "NO_DATA"
	ErrorMalformedPlan    = "MALFORMED_PLAN"
	ErrorEntityNotFound   = "ENTITY_NOT_FOUND"
	ErrorAPIKeyMissing    = "API_KEY_MISSING"

	// 文件相关错误
	ErrorFileUploadFailed = "FILE_UPLOAD_FAILED"
	ErrorFileInvalid      = "FILE_INVALID"

	// 导出相关错误
	ErrorExportFailed        = "EXPORT_FAILED"
	ErrorExportKindInvalid   = "EXPORT_KIND_INVALID"
	ErrorExportDataEmpty     = "EXPORT_DATA_EMPTY"
	ErrorExportFileNotFound  = "EXPORT_FILE_NOT_FOUND"
)

// mapAppError 将领域错误映射为HTTP状态码与API错误代码
func mapAppError(err error) (int, string) {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest, ErrorBadRequest
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound, ErrorNotFound
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict, ErrorInvalidState
	case apperrors.ErrorTypeMalformed:
		return http.StatusBadGateway, ErrorMalformedPlan
	case apperrors.ErrorTypeContentBlocked:
		return http.StatusUnprocessableEntity, ErrorContentBlocked
	case apperrors.ErrorTypeNoData:
		return http.StatusBadGateway, ErrorNoData
	case apperrors.ErrorTypeEntityNotFound:
		return http.StatusBadGateway, ErrorEntityNotFound
	case apperrors.ErrorTypeOperation:
		return http.StatusBadGateway, ErrorGenerationFailed
	case apperrors.ErrorTypeRemote:
		return http.StatusBadGateway, ErrorGenerationFailed
	default:
		return http.StatusInternalServerError, ErrorInternalError
	}
}
