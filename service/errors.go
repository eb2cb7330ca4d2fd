package service

import (
	"errors"
	"fmt"

	"github.com/BerniceZTT/pipeline_end/repository"
	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = repository.ErrNotFound
	// ErrValidation 参数校验失败，不会发起任何写入
	ErrValidation = errors.New("参数校验失败")
	// ErrNotAllowed 当前状态不允许该操作
	ErrNotAllowed = errors.New("当前状态不允许该操作")
	// ErrInvalidCredentials 用户名或密码错误
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	// ErrDuplicate 记录已存在
	ErrDuplicate = errors.New("记录已存在")
)

var validate = validator.New()

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notAllowed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotAllowed, fmt.Sprintf(format, args...))
}

// validateStruct 按 validate 标签校验请求
func validateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return validationError("字段 %s 不满足 %s", fe.Field(), fe.Tag())
		}
		return validationError("%v", err)
	}
	return nil
}
