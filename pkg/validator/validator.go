// Package validator 动态模型的规则执行引擎
//
// 基于 go-playground/validator 实现 dynamic.Engine：
// 解析规则描述中的验证器标识，按场景筛选规则，逐属性执行验证并生成错误消息。
package validator

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"katydid-common-form/pkg/dynamic"
	"katydid-common-form/pkg/logger"
)

// InlineFunc 内联验证函数
// 返回 error 表示验证失败，error 的文本作为错误消息（规则参数 message 优先）。
type InlineFunc func(m *dynamic.Model, attribute string, params map[string]any) error

// Validator 规则执行引擎
//
// 特性：
//   - 内置常用验证器（required、string、email、number 等），底层由 go-playground/validator 执行
//   - 支持注册内联验证函数与自定义 go-playground 标签
//   - 正则表达式与内联函数使用 sync.Map 缓存，可在多个 goroutine 中共享
type Validator struct {
	// validate 底层验证器实例（go-playground/validator）
	validate *validator.Validate
	// inline 注册的内联验证函数，key: 名称，value: InlineFunc
	inline *sync.Map
	// patterns 已编译的正则表达式，key: 模式字符串，value: *regexp.Regexp
	patterns *sync.Map
	// messages 覆盖默认消息模板
	messages map[string]string
	logger   *zap.Logger
}

// Option 引擎构造选项
type Option func(*Validator)

// WithLogger 设置日志器
func WithLogger(l *zap.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithMessages 覆盖消息模板，key 与默认模板相同（如 "required"、"string.max"）
func WithMessages(messages map[string]string) Option {
	return func(v *Validator) {
		for k, msg := range messages {
			v.messages[k] = msg
		}
	}
}

var (
	// defaultValidator 默认引擎实例，全局单例
	defaultValidator *Validator
	// once 确保默认引擎只初始化一次（线程安全）
	once sync.Once
)

// Default 获取默认引擎实例（单例模式）
func Default() *Validator {
	once.Do(func() {
		defaultValidator = New()
	})
	return defaultValidator
}

// Validate 使用默认引擎验证模型
func Validate(m *dynamic.Model, attributeNames ...string) (bool, error) {
	if err := Default().Validate(m, attributeNames); err != nil {
		return false, err
	}
	return !m.HasErrors(), nil
}

// New 创建新的引擎实例
func New(opts ...Option) *Validator {
	v := &Validator{
		validate: validator.New(),
		inline:   &sync.Map{},
		patterns: &sync.Map{},
		messages: make(map[string]string),
		logger:   logger.Named("validator"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Register 注册内联验证函数，名称不能与内置验证器重名
func (v *Validator) Register(name string, fn InlineFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("register %q: %w", name, ErrInvalidParam)
	}
	if _, exists := builtins[name]; exists {
		return fmt.Errorf("register %q: name is reserved by a built-in validator: %w", name, ErrInvalidParam)
	}
	v.inline.Store(name, fn)
	return nil
}

// RegisterTag 注册自定义标签，供 tag 验证器使用
func (v *Validator) RegisterTag(tag string, fn TagFunc) error {
	if tag == "" || fn == nil {
		return fmt.Errorf("register tag %q: %w", tag, ErrInvalidParam)
	}
	return v.validate.RegisterValidationCtx(tag, wrapTagFunc(fn))
}

// Validate 实现 dynamic.Engine：执行验证并把错误写入模型
func (v *Validator) Validate(m *dynamic.Model, attributeNames []string) error {
	ctx := acquireValidationContext(m.Scenario())
	defer releaseValidationContext(ctx)

	if err := v.run(m, attributeNames, ctx); err != nil {
		return err
	}
	for _, fe := range ctx.Errors {
		m.AddError(fe.Attribute, fe.Message)
	}
	return nil
}

// Check 执行验证并返回错误列表，不修改模型的错误集合
// 返回：验证错误列表，nil 表示验证通过
func (v *Validator) Check(m *dynamic.Model, attributeNames ...string) ([]*FieldError, error) {
	ctx := acquireValidationContext(m.Scenario())
	defer releaseValidationContext(ctx)

	if err := v.run(m, attributeNames, ctx); err != nil {
		return nil, err
	}
	if !ctx.HasErrors() {
		return nil, nil
	}
	return append([]*FieldError(nil), ctx.Errors...), nil
}

// run 按声明顺序执行当前场景下生效的规则
func (v *Validator) run(m *dynamic.Model, attributeNames []string, ctx *ValidationContext) error {
	var only map[string]struct{}
	if len(attributeNames) > 0 {
		only = make(map[string]struct{}, len(attributeNames))
		for _, name := range attributeNames {
			only[name] = struct{}{}
		}
	}

	for i, rule := range m.Rules() {
		if !rule.Valid() {
			return fmt.Errorf("rule #%d: %w", i, dynamic.ErrInvalidRule)
		}
		if !rule.AppliesTo(ctx.Scenario) {
			continue
		}

		for _, attr := range rule.AttributeNames() {
			if only != nil {
				if _, ok := only[attr]; !ok {
					continue
				}
			}
			value, err := m.Get(attr)
			if err != nil {
				return fmt.Errorf("rule #%d (%s): %w", i, rule.Validator, err)
			}

			in := &Input{Model: m, Attribute: attr, Value: value, Rule: rule}
			fe, err := v.apply(in)
			if err != nil {
				return fmt.Errorf("rule #%d (%s): %w", i, rule.Validator, err)
			}
			if fe != nil {
				v.logger.Debug("attribute validation failed",
					zap.String("attribute", attr),
					zap.String("validator", rule.Validator),
					zap.String("scenario", ctx.Scenario),
				)
				ctx.AddError(fe)
			}
		}
	}
	return nil
}

// apply 解析验证器标识并执行单个属性的验证
func (v *Validator) apply(in *Input) (*FieldError, error) {
	name := strings.TrimSpace(in.Rule.Validator)

	if b, ok := builtins[name]; ok {
		if paramBool(in.Rule, "skipOnEmpty", b.skipOnEmpty) && isEmpty(in.Value) {
			return nil, nil
		}
		return b.run(v, in)
	}

	if fn, ok := v.inline.Load(name); ok {
		// 内联验证函数默认不跳过空值
		if paramBool(in.Rule, "skipOnEmpty", false) && isEmpty(in.Value) {
			return nil, nil
		}
		if err := fn.(InlineFunc)(in.Model, in.Attribute, in.Rule.Params); err != nil {
			key := "inline"
			if _, has := in.Rule.Param("message"); !has {
				// 没有自定义消息时直接使用错误文本
				return NewFieldError(in.Attribute, name, "", in.Value).WithMessage(err.Error()), nil
			}
			return v.fail(in, name, "", key, nil), nil
		}
		return nil, nil
	}

	return nil, fmt.Errorf("%q: %w", name, ErrUnknownValidator)
}

// ValidateData 使用默认引擎验证一组临时数据
// 返回已验证的模型，可通过模型的错误集合读取验证结果
func ValidateData(values map[string]any, rules []dynamic.Rule, opts ...dynamic.Option) (*dynamic.Model, error) {
	options := append([]dynamic.Option{
		dynamic.WithRules(rules...),
		dynamic.WithEngine(Default()),
	}, opts...)

	m := dynamic.FromMap(values, options...)
	if _, err := m.Validate(); err != nil {
		return m, err
	}
	return m, nil
}
