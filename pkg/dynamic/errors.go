package dynamic

import "errors"

var (
	// ErrInvalidRule 规则描述缺少属性列表或验证器标识
	ErrInvalidRule = errors.New("invalid validation rule: a rule must specify both attribute names and validator type")

	// ErrUnknownAttribute 访问了模型中不存在的属性
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrNoEngine 模型未挂载验证引擎
	ErrNoEngine = errors.New("no validation engine attached to model")
)
