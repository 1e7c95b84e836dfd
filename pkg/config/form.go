package config

import (
	"strings"

	"katydid-common-form/pkg/dynamic"
	"katydid-common-form/pkg/validator"
)

// FormSpec 表单定义
//
// 规则使用松散格式，与 dynamic.ParseRule 一致：
//
//	rules:
//	  - ["name, email", "required"]
//	  - attributes: email
//	    validator: email
//	  - ["city", "required", {on: registration}]
type FormSpec struct {
	// Attributes 额外声明的属性，规则中出现的属性会自动加入
	Attributes []string `mapstructure:"attributes"`
	// Labels 属性标签
	Labels map[string]string `mapstructure:"labels"`
	// Rules 验证规则
	Rules []any `mapstructure:"rules"`
	// Scenario 初始场景
	Scenario string `mapstructure:"scenario"`
	// Scenarios 允许客户端通过请求选择的场景，为空表示不允许选择
	Scenarios []string `mapstructure:"scenarios"`
}

// AllowsScenario 场景是否在允许列表中
func (f FormSpec) AllowsScenario(scenario string) bool {
	for _, allowed := range dynamic.SplitNames(f.Scenarios...) {
		if allowed == scenario {
			return true
		}
	}
	return false
}

// ParsedRules 解析规则列表
func (f FormSpec) ParsedRules() ([]dynamic.Rule, error) {
	return dynamic.ParseRules(f.Rules)
}

// Build 创建挂载默认引擎的新模型，opts 在默认选项之后应用
func (f FormSpec) Build(opts ...dynamic.Option) (*dynamic.Model, error) {
	rules, err := f.ParsedRules()
	if err != nil {
		return nil, err
	}

	names := f.attributeNames(rules)
	base := []dynamic.Option{
		dynamic.WithRules(rules...),
		dynamic.WithLabels(f.labelsFor(names)),
		dynamic.WithScenario(f.Scenario),
		dynamic.WithEngine(validator.Default()),
	}
	return dynamic.New(names, append(base, opts...)...), nil
}

// attributeNames 声明的属性加上所有规则（不区分场景）涉及的属性，保持顺序并去重
func (f FormSpec) attributeNames(rules []dynamic.Rule) []string {
	names := dynamic.SplitNames(f.Attributes...)
	for _, rule := range rules {
		names = append(names, rule.AttributeNames()...)
	}

	seen := make(map[string]struct{}, len(names))
	out := names[:0]
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// labelsFor 将标签键对齐到属性名
// viper 会把 map 的键转为小写，这里按不区分大小写的方式找回原属性名
func (f FormSpec) labelsFor(names []string) map[string]string {
	if len(f.Labels) == 0 {
		return nil
	}
	byLower := make(map[string]string, len(names))
	for _, name := range names {
		byLower[strings.ToLower(name)] = name
	}

	labels := make(map[string]string, len(f.Labels))
	for key, label := range f.Labels {
		if name, ok := byLower[strings.ToLower(key)]; ok {
			key = name
		}
		labels[key] = label
	}
	return labels
}
