package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrUnknownValidator 规则引用了未注册的验证器
	ErrUnknownValidator = errors.New("unknown validator")

	// ErrInvalidParam 验证器参数无效（如正则无法编译）
	ErrInvalidParam = errors.New("invalid validator param")
)

// errorMessageEstimateLen 单条错误消息的预估长度，用于预分配
const errorMessageEstimateLen = 64

// ValidationContext 验证上下文，收集一次验证过程中的全部错误
type ValidationContext struct {
	// Scenario 验证场景
	Scenario string `json:"scenario"`
	// Errors 所有验证错误的集合
	Errors []*FieldError `json:"errors,omitempty"`
}

// FieldError 单个属性的验证错误
// 国际化时，可以通过 Tag 和 Param 查找对应的翻译
type FieldError struct {
	// Attribute 属性名
	Attribute string `json:"attribute"`
	// Tag 验证标签（如 required, string, email 等）
	Tag string `json:"tag"`
	// Param 验证参数（如 max=10 中的 "10"）
	Param string `json:"param,omitempty"`
	// Value 属性的实际值
	Value any `json:"value,omitempty"`
	// Message 已格式化的错误消息
	Message string `json:"message,omitempty"`
}

// NewValidationContext 创建验证上下文
func NewValidationContext(scenario string) *ValidationContext {
	return &ValidationContext{
		Scenario: scenario,
		Errors:   make([]*FieldError, 0),
	}
}

// NewFieldError 创建字段错误
func NewFieldError(attribute, tag, param string, value any) *FieldError {
	return &FieldError{
		Attribute: attribute,
		Tag:       tag,
		Param:     param,
		Value:     value,
	}
}

// NewFieldErrorFromValidator 由 go-playground 的 FieldError 创建字段错误
func NewFieldErrorFromValidator(attribute string, e validator.FieldError) *FieldError {
	return NewFieldError(attribute, e.Tag(), e.Param(), e.Value())
}

// Error 实现 error 接口
func (vc *ValidationContext) Error() string {
	if len(vc.Errors) == 0 {
		return "validation passed: no errors"
	}

	var builder strings.Builder
	builder.Grow(len(vc.Errors) * errorMessageEstimateLen)

	for i, err := range vc.Errors {
		if i > 0 {
			builder.WriteString("; ")
		}
		builder.WriteString(err.String())
	}

	return builder.String()
}

// String 返回友好的错误信息
func (fe *FieldError) String() string {
	if fe.Message != "" {
		return fmt.Sprintf("attribute '%s': %s", fe.Attribute, fe.Message)
	}
	return fmt.Sprintf("attribute '%s' validation failed on tag '%s'", fe.Attribute, fe.Tag)
}

// WithMessage 设置错误消息
func (fe *FieldError) WithMessage(message string) *FieldError {
	fe.Message = message
	return fe
}

// HasErrors 检查是否有验证错误
func (vc *ValidationContext) HasErrors() bool {
	return len(vc.Errors) > 0
}

// AddError 添加字段错误
func (vc *ValidationContext) AddError(err *FieldError) {
	if err != nil {
		vc.Errors = append(vc.Errors, err)
	}
}

// ToJSON 转换为 JSON 格式
func (vc *ValidationContext) ToJSON() ([]byte, error) {
	return json.Marshal(vc)
}

// GetErrorsByAttribute 按属性获取错误
func (vc *ValidationContext) GetErrorsByAttribute(attribute string) []*FieldError {
	var errs []*FieldError
	for _, err := range vc.Errors {
		if err.Attribute == attribute {
			errs = append(errs, err)
		}
	}
	return errs
}

// GetErrorsByTag 按验证标签获取错误
func (vc *ValidationContext) GetErrorsByTag(tag string) []*FieldError {
	var errs []*FieldError
	for _, err := range vc.Errors {
		if err.Tag == tag {
			errs = append(errs, err)
		}
	}
	return errs
}
