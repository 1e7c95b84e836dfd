package validator

import (
	"context"
	"reflect"

	"github.com/go-playground/validator/v10"

	"katydid-common-form/pkg/dynamic"
)

// TagFunc 自定义标签验证函数（封装第三方库）
// 通过 RegisterTag 注册后，可在 tag 验证器中使用
type TagFunc func(fl FieldLevel) bool

// FieldLevel 标签验证上下文（封装第三方库）
// 除当前值外，还可以访问所属模型与属性名，用于跨属性校验
type FieldLevel interface {
	// Field 返回当前值的反射值
	Field() reflect.Value

	// Param 返回验证标签的参数
	Param() string

	// Model 返回被验证的模型，直接调用 Var 时为 nil
	Model() *dynamic.Model

	// Attribute 返回被验证的属性名
	Attribute() string
}

// inputKey 在 context 中携带 *Input
type inputKey struct{}

// fieldLevelWrapper 封装第三方库的 FieldLevel
type fieldLevelWrapper struct {
	fl validator.FieldLevel
	in *Input
}

// Field 实现 FieldLevel 接口
func (w *fieldLevelWrapper) Field() reflect.Value {
	return w.fl.Field()
}

// Param 实现 FieldLevel 接口
func (w *fieldLevelWrapper) Param() string {
	return w.fl.Param()
}

// Model 实现 FieldLevel 接口
func (w *fieldLevelWrapper) Model() *dynamic.Model {
	if w.in == nil {
		return nil
	}
	return w.in.Model
}

// Attribute 实现 FieldLevel 接口
func (w *fieldLevelWrapper) Attribute() string {
	if w.in == nil {
		return ""
	}
	return w.in.Attribute
}

// wrapTagFunc 将 TagFunc 适配为 go-playground 的 FuncCtx
func wrapTagFunc(fn TagFunc) validator.FuncCtx {
	return func(ctx context.Context, fl validator.FieldLevel) bool {
		in, _ := ctx.Value(inputKey{}).(*Input)
		return fn(&fieldLevelWrapper{fl: fl, in: in})
	}
}

// withInput 把本次验证输入放入 context
func withInput(in *Input) context.Context {
	return context.WithValue(context.Background(), inputKey{}, in)
}
