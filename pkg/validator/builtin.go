package validator

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"

	"katydid-common-form/pkg/dynamic"
)

// Input 单次属性验证的输入
type Input struct {
	// Model 被验证的模型
	Model *dynamic.Model
	// Attribute 属性名
	Attribute string
	// Value 属性当前值
	Value any
	// Rule 触发本次验证的规则
	Rule dynamic.Rule
}

// builtin 内置验证器
// skipOnEmpty 为该验证器 skipOnEmpty 参数的默认值
type builtin struct {
	run         func(v *Validator, in *Input) (*FieldError, error)
	skipOnEmpty bool
}

// builtins 内置验证器表，length 为 string 的别名
var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"required": {run: validateRequired},
		"string":   {run: validateString, skipOnEmpty: true},
		"length":   {run: validateString, skipOnEmpty: true},
		"email":    {run: validateEmail, skipOnEmpty: true},
		"url":      {run: validateURL, skipOnEmpty: true},
		"number":   {run: validateNumber, skipOnEmpty: true},
		"integer":  {run: validateInteger, skipOnEmpty: true},
		"boolean":  {run: validateBoolean, skipOnEmpty: true},
		"in":       {run: validateIn, skipOnEmpty: true},
		"match":    {run: validateMatch, skipOnEmpty: true},
		"compare":  {run: validateCompare, skipOnEmpty: true},
		"tag":      {run: validateTag, skipOnEmpty: true},
		"default":  {run: applyDefault},
		"trim":     {run: applyTrim},
		"safe":     {run: func(*Validator, *Input) (*FieldError, error) { return nil, nil }},
	}
}

// fail 构造带消息的字段错误
func (v *Validator) fail(in *Input, tag, param, key string, extra map[string]any) *FieldError {
	return NewFieldError(in.Attribute, tag, param, in.Value).
		WithMessage(v.message(in, key, extra))
}

// isEmpty 值是否为空：nil、空字符串、空切片/map
func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return s == ""
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func validateRequired(v *Validator, in *Input) (*FieldError, error) {
	value := in.Value
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	// 数值零值与 false 视为已填写，只有空值才算缺失
	if isEmpty(value) {
		return v.fail(in, "required", "", "required", nil), nil
	}
	return nil, nil
}

// toText 将标量转换为字符串，JSON 中的数字按其文本处理；布尔值与集合类型不接受
func toText(value any) (string, bool) {
	switch t := value.(type) {
	case string:
		return t, true
	case bool, nil:
		return "", false
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct, reflect.Ptr, reflect.Interface, reflect.Func, reflect.Chan:
		return "", false
	}
	s, err := cast.ToStringE(value)
	return s, err == nil
}

func validateString(v *Validator, in *Input) (*FieldError, error) {
	str, ok := toText(in.Value)
	if !ok {
		return v.fail(in, "string", "", "string", nil), nil
	}

	// 按 is、min、max 的顺序检查，只报告第一个不满足的约束
	checks := []struct {
		param string
		tag   string
	}{
		{param: "is", tag: "len"},
		{param: "min", tag: "min"},
		{param: "max", tag: "max"},
	}
	for _, c := range checks {
		raw, has := in.Rule.Param(c.param)
		if !has {
			continue
		}
		n, err := cast.ToIntE(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("string %s=%v: %w", c.param, raw, ErrInvalidParam)
		}
		// go-playground 对字符串按字符数（rune）计算长度
		if err := v.validate.Var(str, fmt.Sprintf("%s=%d", c.tag, n)); err != nil {
			return v.fail(in, "string", fmt.Sprint(n), "string."+c.param, nil), nil
		}
	}
	return nil, nil
}

func validateEmail(v *Validator, in *Input) (*FieldError, error) {
	str, ok := in.Value.(string)
	if !ok || v.validate.Var(str, "email") != nil {
		return v.fail(in, "email", "", "email", nil), nil
	}
	return nil, nil
}

func validateURL(v *Validator, in *Input) (*FieldError, error) {
	str, ok := in.Value.(string)
	if !ok || v.validate.Var(str, "url") != nil {
		return v.fail(in, "url", "", "url", nil), nil
	}
	return nil, nil
}

// toNumber 将值转换为 float64，布尔值不视为数字
func toNumber(value any) (float64, bool) {
	if _, isBool := value.(bool); isBool {
		return 0, false
	}
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(value)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func validateNumber(v *Validator, in *Input) (*FieldError, error) {
	f, ok := toNumber(in.Value)
	if !ok {
		return v.fail(in, "number", "", "number", nil), nil
	}
	return v.checkRange(in, "number", f)
}

func validateInteger(v *Validator, in *Input) (*FieldError, error) {
	f, ok := toNumber(in.Value)
	if !ok || f != math.Trunc(f) {
		return v.fail(in, "integer", "", "integer", nil), nil
	}
	if s, isStr := in.Value.(string); isStr && strings.ContainsAny(s, ".eE") {
		return v.fail(in, "integer", "", "integer", nil), nil
	}
	return v.checkRange(in, "integer", f)
}

// checkRange 检查数值的 min/max 约束
func (v *Validator) checkRange(in *Input, tag string, f float64) (*FieldError, error) {
	for _, c := range []struct{ param, op string }{{"min", "gte"}, {"max", "lte"}} {
		raw, has := in.Rule.Param(c.param)
		if !has {
			continue
		}
		bound, err := cast.ToFloat64E(raw)
		if err != nil {
			return nil, fmt.Errorf("%s %s=%v: %w", tag, c.param, raw, ErrInvalidParam)
		}
		if err := v.validate.Var(f, fmt.Sprintf("%s=%v", c.op, bound)); err != nil {
			return v.fail(in, tag, fmt.Sprint(bound), "number."+c.param, nil), nil
		}
	}
	return nil, nil
}

func validateBoolean(v *Validator, in *Input) (*FieldError, error) {
	switch val := in.Value.(type) {
	case bool:
		return nil, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "0", "true", "false":
			return nil, nil
		}
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		if n := cast.ToInt64(val); n == 0 || n == 1 {
			return nil, nil
		}
	}
	return v.fail(in, "boolean", "", "boolean", nil), nil
}

func validateIn(v *Validator, in *Input) (*FieldError, error) {
	raw, has := in.Rule.Param("range")
	if !has {
		return nil, fmt.Errorf("in: missing range: %w", ErrInvalidParam)
	}
	items, err := toList(raw)
	if err != nil {
		return nil, fmt.Errorf("in range=%v: %w", raw, ErrInvalidParam)
	}

	// 非严格比较：按字符串形式比较
	needle := cast.ToString(in.Value)
	found := false
	for _, item := range items {
		if cast.ToString(item) == needle {
			found = true
			break
		}
	}
	if found == paramBool(in.Rule, "not", false) {
		return v.fail(in, "in", "", "in", nil), nil
	}
	return nil, nil
}

func validateMatch(v *Validator, in *Input) (*FieldError, error) {
	raw, has := in.Rule.Param("pattern")
	if !has {
		return nil, fmt.Errorf("match: missing pattern: %w", ErrInvalidParam)
	}
	re, err := v.compile(cast.ToString(raw))
	if err != nil {
		return nil, fmt.Errorf("match pattern=%v: %w: %v", raw, ErrInvalidParam, err)
	}

	str, ok := in.Value.(string)
	if !ok || re.MatchString(str) == paramBool(in.Rule, "not", false) {
		return v.fail(in, "match", re.String(), "match", nil), nil
	}
	return nil, nil
}

// compile 编译并缓存正则表达式
func (v *Validator) compile(pattern string) (*regexp.Regexp, error) {
	if cached, ok := v.patterns.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	actual, _ := v.patterns.LoadOrStore(pattern, re)
	return actual.(*regexp.Regexp), nil
}

func validateCompare(v *Validator, in *Input) (*FieldError, error) {
	var (
		target any
		label  string
	)
	if raw, has := in.Rule.Param("compareValue"); has {
		target, label = raw, cast.ToString(raw)
	} else {
		other := in.Attribute + "_repeat"
		if raw, has := in.Rule.Param("compareAttribute"); has {
			other = cast.ToString(raw)
		}
		// 对比属性不存在时按空值处理
		target, _ = in.Model.Get(other)
		label = attributeLabel(in.Model, other)
	}

	op := "=="
	if raw, has := in.Rule.Param("operator"); has {
		op = cast.ToString(raw)
	}
	key := "compare." + op
	if _, known := defaultMessages[key]; !known {
		return nil, fmt.Errorf("compare operator=%q: %w", op, ErrInvalidParam)
	}

	var cmp int
	kind := "string"
	if raw, has := in.Rule.Param("type"); has {
		kind = cast.ToString(raw)
	}
	if kind == "number" {
		a, okA := toNumber(in.Value)
		b, okB := toNumber(target)
		if !okA || !okB {
			return v.fail(in, "compare", op, key, map[string]any{"compareValueOrAttribute": label}), nil
		}
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(cast.ToString(in.Value), cast.ToString(target))
	}

	var ok bool
	switch op {
	case "==":
		ok = cmp == 0
	case "!=":
		ok = cmp != 0
	case ">":
		ok = cmp > 0
	case ">=":
		ok = cmp >= 0
	case "<":
		ok = cmp < 0
	case "<=":
		ok = cmp <= 0
	}
	if !ok {
		return v.fail(in, "compare", op, key, map[string]any{"compareValueOrAttribute": label}), nil
	}
	return nil, nil
}

// validateTag 直接使用 go-playground 标签语法验证
func validateTag(v *Validator, in *Input) (fe *FieldError, err error) {
	raw, has := in.Rule.Param("tag")
	if !has {
		return nil, fmt.Errorf("tag: missing tag: %w", ErrInvalidParam)
	}
	tag := cast.ToString(raw)

	// 未定义的标签会导致 go-playground panic，这里转换为参数错误
	defer func() {
		if r := recover(); r != nil {
			fe, err = nil, fmt.Errorf("tag=%q: %w: %v", tag, ErrInvalidParam, r)
		}
	}()

	verr := v.validate.VarCtx(withInput(in), in.Value, tag)
	if verr == nil {
		return nil, nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(verr, &validationErrors) {
		return nil, fmt.Errorf("tag=%q: %w: %v", tag, ErrInvalidParam, verr)
	}
	return NewFieldErrorFromValidator(in.Attribute, validationErrors[0]).
		WithMessage(v.message(in, "tag", nil)), nil
}

// applyDefault 属性为空时写入默认值
func applyDefault(_ *Validator, in *Input) (*FieldError, error) {
	if !isEmpty(in.Value) {
		return nil, nil
	}
	value, _ := in.Rule.Param("value")
	return nil, in.Model.Set(in.Attribute, value)
}

// applyTrim 去除字符串首尾空白
func applyTrim(_ *Validator, in *Input) (*FieldError, error) {
	if s, ok := in.Value.(string); ok {
		return nil, in.Model.Set(in.Attribute, strings.TrimSpace(s))
	}
	return nil, nil
}

// paramBool 读取布尔参数
func paramBool(rule dynamic.Rule, name string, def bool) bool {
	raw, has := rule.Param(name)
	if !has {
		return def
	}
	b, err := cast.ToBoolE(raw)
	if err != nil {
		return def
	}
	return b
}

// toList 将参数转换为列表，字符串按逗号/空白拆分
func toList(raw any) ([]any, error) {
	switch t := raw.(type) {
	case string:
		names := dynamic.SplitNames(t)
		out := make([]any, 0, len(names))
		for _, n := range names {
			out = append(out, n)
		}
		return out, nil
	case []string:
		out := make([]any, 0, len(t))
		for _, s := range t {
			out = append(out, s)
		}
		return out, nil
	}
	return cast.ToSliceE(raw)
}
