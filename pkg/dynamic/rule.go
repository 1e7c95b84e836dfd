package dynamic

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/spf13/cast"
)

// nameSeparator 属性列表与场景列表的分隔符：一个或多个逗号/空白
var nameSeparator = regexp.MustCompile(`[\s,]+`)

// 规则描述中的保留键，其余键全部作为验证器参数透传
const (
	keyAttributes = "attributes"
	keyValidator  = "validator"
	keyOn         = "on"
	keyExcept     = "except"
)

// Rule 验证规则描述
//
// Attributes、On、Except 的每个元素本身也可以是逗号/空白分隔的列表，
// 例如 []string{"name, email"} 与 []string{"name", "email"} 等价。
//
// On 为 nil 表示未声明 on 场景；非 nil（包括空切片）表示已声明。
// Except 同理。两者同时存在时按顺序独立过滤：
// 场景必须在 On 中，且不在 Except 中。
type Rule struct {
	// Attributes 规则作用的属性名
	Attributes []string
	// Validator 验证器标识（内置验证器名、注册的内联验证器名等）
	Validator string
	// On 规则生效的场景
	On []string
	// Except 规则不生效的场景
	Except []string
	// Params 透传给验证器的额外参数（如 max、message）
	Params map[string]any
}

// NewRule 创建规则，attributes 支持 "name,email" 形式
func NewRule(attributes, validator string, params map[string]any) Rule {
	return Rule{
		Attributes: []string{attributes},
		Validator:  validator,
		Params:     params,
	}
}

// OnScenarios 返回仅在指定场景生效的规则副本
func (r Rule) OnScenarios(scenarios ...string) Rule {
	r.On = append([]string{}, scenarios...)
	return r
}

// ExceptScenarios 返回在指定场景不生效的规则副本
func (r Rule) ExceptScenarios(scenarios ...string) Rule {
	r.Except = append([]string{}, scenarios...)
	return r
}

// Valid 规则是否同时包含属性列表和验证器标识
func (r Rule) Valid() bool {
	return len(r.Attributes) > 0 && strings.TrimSpace(r.Validator) != ""
}

// AttributeNames 返回拆分后的属性名（保持声明顺序）
func (r Rule) AttributeNames() []string {
	return SplitNames(r.Attributes...)
}

// AppliesTo 判断规则在给定场景下是否生效
func (r Rule) AppliesTo(scenario string) bool {
	if r.On != nil && !slices.Contains(SplitNames(r.On...), scenario) {
		return false
	}
	if r.Except != nil && slices.Contains(SplitNames(r.Except...), scenario) {
		return false
	}
	return true
}

// Param 按名称查找参数，名称大小写不敏感（配置文件加载后键名可能被转为小写）
func (r Rule) Param(name string) (any, bool) {
	if v, ok := r.Params[name]; ok {
		return v, true
	}
	for k, v := range r.Params {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// clone 深拷贝规则中的切片与参数，避免与调用方共享底层数组
func (r Rule) clone() Rule {
	out := Rule{
		Attributes: slices.Clone(r.Attributes),
		Validator:  r.Validator,
		On:         slices.Clone(r.On),
		Except:     slices.Clone(r.Except),
	}
	if r.Params != nil {
		out.Params = make(map[string]any, len(r.Params))
		for k, v := range r.Params {
			out.Params[k] = v
		}
	}
	return out
}

// SplitNames 将若干名称项按逗号/空白拆分并丢弃空项
func SplitNames(items ...string) []string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		for _, name := range nameSeparator.Split(item, -1) {
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

// AttributesFromRules 计算在给定场景下受规则约束的属性集合
//
// 处理流程（逐条规则）：
//  1. 缺少属性列表或验证器标识时返回 ErrInvalidRule
//  2. 拆分属性列表
//  3. 声明了 on 且场景不在其中时跳过
//  4. 声明了 except 且场景在其中时跳过
//  5. 合并属性名，保持首次出现的顺序并去重
func AttributesFromRules(rules []Rule, scenario string) ([]string, error) {
	result := make([]string, 0, len(rules))
	seen := make(map[string]struct{}, len(rules))

	for i, rule := range rules {
		if !rule.Valid() {
			return nil, fmt.Errorf("rule #%d: %w", i, ErrInvalidRule)
		}
		names := rule.AttributeNames()
		if !rule.AppliesTo(scenario) {
			continue
		}
		for _, name := range names {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			result = append(result, name)
		}
	}

	return result, nil
}

// ParseRules 解析松散类型的规则列表（来自 YAML/JSON 等）
func ParseRules(raw any) ([]Rule, error) {
	if raw == nil {
		return nil, nil
	}
	if rules, ok := raw.([]Rule); ok {
		out := make([]Rule, 0, len(rules))
		for _, rule := range rules {
			out = append(out, rule.clone())
		}
		return out, nil
	}
	items, err := cast.ToSliceE(raw)
	if err != nil {
		return nil, fmt.Errorf("rules must be a list: %w", err)
	}

	rules := make([]Rule, 0, len(items))
	for i, item := range items {
		rule, err := ParseRule(item)
		if err != nil {
			return nil, fmt.Errorf("rule #%d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// ParseRule 解析单条松散类型的规则描述
//
// 支持两种形式：
//
//	[]any{"name,email", "string", map[string]any{"max": 10, "on": "registration"}}
//	map[string]any{"attributes": "name,email", "validator": "string", "max": 10}
func ParseRule(raw any) (Rule, error) {
	switch v := raw.(type) {
	case Rule:
		return v.clone(), nil
	case map[string]any:
		return parseMapRule(v)
	case map[any]any:
		return parseMapRule(cast.ToStringMap(v))
	case []string:
		items := make([]any, 0, len(v))
		for _, item := range v {
			items = append(items, item)
		}
		raw = items
	}

	items, err := cast.ToSliceE(raw)
	if err != nil {
		return Rule{}, fmt.Errorf("unsupported rule descriptor %T: %w", raw, ErrInvalidRule)
	}
	if len(items) < 2 {
		return Rule{}, ErrInvalidRule
	}

	attributes, ok := toNames(items[0])
	if !ok {
		return Rule{}, ErrInvalidRule
	}
	validator, err := cast.ToStringE(items[1])
	if err != nil {
		return Rule{}, ErrInvalidRule
	}

	rule := Rule{Attributes: attributes, Validator: validator}
	for _, extra := range items[2:] {
		params, err := cast.ToStringMapE(extra)
		if err != nil {
			return Rule{}, fmt.Errorf("rule params must be a map, got %T: %w", extra, ErrInvalidRule)
		}
		if err := rule.absorb(params); err != nil {
			return Rule{}, err
		}
	}

	if !rule.Valid() {
		return Rule{}, ErrInvalidRule
	}
	return rule, nil
}

func parseMapRule(m map[string]any) (Rule, error) {
	var rule Rule
	rest := make(map[string]any, len(m))
	for k, v := range m {
		switch strings.ToLower(k) {
		case keyAttributes:
			names, ok := toNames(v)
			if !ok {
				return Rule{}, ErrInvalidRule
			}
			rule.Attributes = names
		case keyValidator:
			validator, err := cast.ToStringE(v)
			if err != nil {
				return Rule{}, ErrInvalidRule
			}
			rule.Validator = validator
		default:
			rest[k] = v
		}
	}
	if err := rule.absorb(rest); err != nil {
		return Rule{}, err
	}
	if !rule.Valid() {
		return Rule{}, ErrInvalidRule
	}
	return rule, nil
}

// absorb 将参数合并进规则，on/except 单独提取
func (r *Rule) absorb(params map[string]any) error {
	for k, v := range params {
		switch strings.ToLower(k) {
		case keyOn:
			names, ok := toNames(v)
			if !ok {
				return fmt.Errorf("invalid 'on' value %T: %w", v, ErrInvalidRule)
			}
			r.On = names
		case keyExcept:
			names, ok := toNames(v)
			if !ok {
				return fmt.Errorf("invalid 'except' value %T: %w", v, ErrInvalidRule)
			}
			r.Except = names
		default:
			if r.Params == nil {
				r.Params = make(map[string]any, len(params))
			}
			r.Params[k] = v
		}
	}
	return nil
}

// toNames 将字符串或字符串列表转换为名称项（不拆分，拆分延迟到使用时）
func toNames(v any) ([]string, bool) {
	switch t := v.(type) {
	case string:
		return []string{t}, true
	case []string:
		return append([]string{}, t...), true
	case []any:
		names := make([]string, 0, len(t))
		for _, item := range t {
			s, err := cast.ToStringE(item)
			if err != nil {
				return nil, false
			}
			names = append(names, s)
		}
		return names, true
	}
	return nil, false
}
