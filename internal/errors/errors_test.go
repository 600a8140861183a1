package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppErrorMessage(t *testing.T) {
	plain := NewValidationError("输入为空", nil)
	if plain.Error() != "输入为空" {
		t.Errorf("无内层错误时消息不符: %q", plain.Error())
	}

	inner := errors.New("connection refused")
	wrapped := NewRemoteError("远端调用失败", inner)
	if wrapped.Error() != "远端调用失败: connection refused" {
		t.Errorf("带内层错误时消息不符: %q", wrapped.Error())
	}
	if !errors.Is(wrapped, inner) {
		t.Error("Unwrap应能找到内层错误")
	}
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorType
	}{
		{NewValidationError("m", nil), ErrorTypeValidation},
		{NewMalformedError("m", nil), ErrorTypeMalformed},
		{NewNotFoundError("m", nil), ErrorTypeNotFound},
		{NewConflictError("m", nil), ErrorTypeConflict},
		{NewContentBlockedError("m", nil), ErrorTypeContentBlocked},
		{NewNoDataError("m", nil), ErrorTypeNoData},
		{NewEntityNotFoundError("m", nil), ErrorTypeEntityNotFound},
		{NewOperationError("m", nil), ErrorTypeOperation},
		{NewRemoteError("m", nil), ErrorTypeRemote},
		{errors.New("plain"), ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := TypeOf(tt.err); got != tt.want {
			t.Errorf("TypeOf(%v) = %q，期望 %q", tt.err, got, tt.want)
		}
	}
}

func TestTypeOfWrappedError(t *testing.T) {
	inner := NewConflictError("状态冲突", nil)
	outer := fmt.Errorf("处理请求失败: %w", inner)

	if !IsConflictError(outer) {
		t.Error("包装后的AppError仍应能识别类型")
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, "msg", ErrorTypeOperation) != nil {
		t.Error("包装nil应返回nil")
	}

	plain := errors.New("disk full")
	wrapped := WrapError(plain, "写入失败", ErrorTypeOperation)
	if TypeOf(wrapped) != ErrorTypeOperation {
		t.Errorf("包装普通错误的类型不符: %q", TypeOf(wrapped))
	}

	// 包装已有AppError时保留原类型
	appErr := NewNotFoundError("项目不存在", nil)
	rewrapped := WrapError(appErr, "查询失败", ErrorTypeOperation)
	if TypeOf(rewrapped) != ErrorTypeNotFound {
		t.Errorf("重新包装应保留原类型，实际为 %q", TypeOf(rewrapped))
	}
}

func TestErrorCode(t *testing.T) {
	if e := NewValidationError("m", nil); e.Code != "VALIDATION_ERROR" {
		t.Errorf("校验错误代码不符: %q", e.Code)
	}
	if e := NewContentBlockedError("m", nil); e.Code != "CONTENT_BLOCKED" {
		t.Errorf("内容拦截错误代码不符: %q", e.Code)
	}
}
