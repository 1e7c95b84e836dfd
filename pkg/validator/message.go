package validator

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/spf13/cast"

	"katydid-common-form/pkg/dynamic"
)

// 默认错误消息模板
// {attribute} 替换为属性标签，{value} 替换为属性值，其余占位符替换为同名参数
var defaultMessages = map[string]string{
	"required":        "{attribute} cannot be blank.",
	"string":          "{attribute} must be a string.",
	"string.min":      "{attribute} should contain at least {min} characters.",
	"string.max":      "{attribute} should contain at most {max} characters.",
	"string.is":       "{attribute} should contain {is} characters.",
	"email":           "{attribute} is not a valid email address.",
	"url":             "{attribute} is not a valid URL.",
	"number":          "{attribute} must be a number.",
	"integer":         "{attribute} must be an integer.",
	"number.min":      "{attribute} must be no less than {min}.",
	"number.max":      "{attribute} must be no greater than {max}.",
	"boolean":         "{attribute} must be either true or false.",
	"in":              "{attribute} is invalid.",
	"match":           "{attribute} is invalid.",
	"compare.==":      "{attribute} must be equal to \"{compareValueOrAttribute}\".",
	"compare.!=":      "{attribute} must not be equal to \"{compareValueOrAttribute}\".",
	"compare.>":       "{attribute} must be greater than \"{compareValueOrAttribute}\".",
	"compare.>=":      "{attribute} must be greater than or equal to \"{compareValueOrAttribute}\".",
	"compare.<":       "{attribute} must be less than \"{compareValueOrAttribute}\".",
	"compare.<=":      "{attribute} must be less than or equal to \"{compareValueOrAttribute}\".",
	"tag":             "{attribute} is invalid.",
	"inline":          "{attribute} is invalid.",
}

// message 生成错误消息
// 规则参数 message 优先，其次是验证器配置的模板，最后是默认模板
func (v *Validator) message(in *Input, key string, extra map[string]any) string {
	tpl, ok := "", false
	if custom, has := in.Rule.Param("message"); has {
		tpl, ok = cast.ToString(custom), true
	}
	if !ok {
		tpl, ok = v.messages[key]
	}
	if !ok {
		tpl, ok = defaultMessages[key]
	}
	if !ok {
		tpl = defaultMessages["inline"]
	}

	// 参数与附加值按键排序，{attribute}、{value} 不允许被覆盖
	values := make(map[string]string, len(in.Rule.Params)+len(extra))
	for k, val := range in.Rule.Params {
		values[k] = cast.ToString(val)
	}
	for k, val := range extra {
		values[k] = cast.ToString(val)
	}
	delete(values, "attribute")
	delete(values, "value")

	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)

	pairs := make([]string, 0, 4+2*len(names))
	pairs = append(pairs,
		"{attribute}", attributeLabel(in.Model, in.Attribute),
		"{value}", fmt.Sprint(in.Value),
	)
	for _, k := range names {
		pairs = append(pairs, "{"+k+"}", values[k])
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

// attributeLabel 返回属性标签，未设置时自动生成
func attributeLabel(m *dynamic.Model, attribute string) string {
	if label, ok := m.AttributeLabel(attribute); ok {
		return label
	}
	return GenerateLabel(attribute)
}

// GenerateLabel 根据属性名生成标签
// 例如：first_name、firstName、first-name 均生成 "First Name"，userID 生成 "User ID"
func GenerateLabel(name string) string {
	sb := acquireStringBuilder()
	defer releaseStringBuilder(sb)

	runes := []rune(name)
	upperNext := true
	for i, r := range runes {
		if r == '_' || r == '-' || r == '.' || unicode.IsSpace(r) {
			if sb.Len() > 0 && !strings.HasSuffix(sb.String(), " ") {
				sb.WriteByte(' ')
			}
			upperNext = true
			continue
		}

		if i > 0 && unicode.IsUpper(r) && sb.Len() > 0 && !strings.HasSuffix(sb.String(), " ") {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				sb.WriteByte(' ')
			}
		}

		if upperNext {
			r = unicode.ToUpper(r)
			upperNext = false
		}
		sb.WriteRune(r)
	}

	return strings.TrimSpace(sb.String())
}
