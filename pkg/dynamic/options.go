package dynamic

import (
	"fmt"

	"go.uber.org/zap"
)

// Engine 规则执行引擎
// 负责解析规则、运行验证器并通过 Model.AddError 记录错误。
// attributeNames 为空表示验证全部受规则约束的属性。
// 返回的 error 仅用于规则配置错误（如 ErrInvalidRule），验证失败通过错误集合体现。
type Engine interface {
	Validate(m *Model, attributeNames []string) error
}

// Fallback 未知属性解析能力，由宿主环境提供
// 模型只处理已知属性，其余名称一律交给 Fallback 决定行为。
type Fallback interface {
	GetUnknown(name string) (any, error)
	SetUnknown(name string, value any) error
	HasUnknown(name string) bool
	UnsetUnknown(name string) error
}

// UnsafeHandler 安全赋值模式下遇到非安全属性时的回调
type UnsafeHandler func(m *Model, name string, value any)

// Option 模型构造选项
type Option func(*Model)

// WithRules 设置验证规则（构造后不可修改）
func WithRules(rules ...Rule) Option {
	return func(m *Model) {
		for _, rule := range rules {
			m.rules = append(m.rules, rule.clone())
		}
	}
}

// WithLabels 设置属性标签
func WithLabels(labels map[string]string) Option {
	return func(m *Model) {
		m.SetAttributeLabels(labels)
	}
}

// WithScenario 设置初始场景
func WithScenario(scenario string) Option {
	return func(m *Model) {
		m.scenario = scenario
	}
}

// WithEngine 挂载规则执行引擎
func WithEngine(engine Engine) Option {
	return func(m *Model) {
		m.engine = engine
	}
}

// WithFallback 设置未知属性解析器
func WithFallback(fallback Fallback) Option {
	return func(m *Model) {
		if fallback != nil {
			m.fallback = fallback
		}
	}
}

// WithUnsafeHandler 设置非安全属性回调，nil 表示静默忽略
func WithUnsafeHandler(handler UnsafeHandler) Option {
	return func(m *Model) {
		m.onUnsafe = handler
	}
}

// WithInit 设置初始化钩子，构造完成、扩展钩子执行前调用
func WithInit(fn func(*Model)) Option {
	return func(m *Model) {
		m.init = fn
	}
}

// WithBehaviors 追加扩展钩子，按顺序在初始化钩子之后执行
func WithBehaviors(fns ...func(*Model)) Option {
	return func(m *Model) {
		for _, fn := range fns {
			if fn != nil {
				m.behaviors = append(m.behaviors, fn)
			}
		}
	}
}

// WithLogger 设置日志器
func WithLogger(logger *zap.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// strictFallback 默认的未知属性解析：读写失败，存在性为 false，删除为空操作
type strictFallback struct{}

func (strictFallback) GetUnknown(name string) (any, error) {
	return nil, fmt.Errorf("getting %q: %w", name, ErrUnknownAttribute)
}

func (strictFallback) SetUnknown(name string, _ any) error {
	return fmt.Errorf("setting %q: %w", name, ErrUnknownAttribute)
}

func (strictFallback) HasUnknown(string) bool {
	return false
}

func (strictFallback) UnsetUnknown(string) error {
	return nil
}

// StrictFallback 返回默认的未知属性解析器
func StrictFallback() Fallback {
	return strictFallback{}
}

// logUnsafe 默认的非安全属性回调：记录 debug 日志后忽略
func logUnsafe(m *Model, name string, _ any) {
	m.logger.Debug("failed to set unsafe attribute",
		zap.String("attribute", name),
		zap.String("scenario", m.scenario),
	)
}
