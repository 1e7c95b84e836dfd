package dynamic

import (
	"net/url"
	"slices"
	"sort"

	"dario.cat/mergo"
	"go.uber.org/zap"

	"katydid-common-form/pkg/logger"
)

// Model 动态属性模型
//
// 设计说明：
//   - 无需声明结构体，运行时提供属性名、验证规则与标签即可复用验证逻辑
//   - 适用于没有持久化表结构的临时数据（如联系表单）
//   - 属性按插入顺序保存，属性键集合是"已知属性"的唯一定义
//   - 规则在构造后不可修改；标签只能合并，不能整体替换
//
// 线程安全：
//   - 非线程安全，并发读写需要调用方加锁
type Model struct {
	// names 属性插入顺序
	names []string
	// values 属性值，键存在即为已知属性（值可以为 nil）
	values map[string]any

	rules    []Rule
	labels   map[string]string
	scenario string
	errors   map[string][]string

	engine    Engine
	fallback  Fallback
	onUnsafe  UnsafeHandler
	init      func(*Model)
	behaviors []func(*Model)
	logger    *zap.Logger
}

// Pair 有序的属性名/值对
type Pair struct {
	Name  string
	Value any
}

// New 以属性名列表创建模型，所有属性初始值为 nil
func New(names []string, opts ...Option) *Model {
	pairs := make([]Pair, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, Pair{Name: name})
	}
	return NewWithValues(pairs, opts...)
}

// NewWithValues 以有序的名/值对创建模型
// 名称重复时后者覆盖前者的值，顺序以首次出现为准。
func NewWithValues(pairs []Pair, opts ...Option) *Model {
	m := &Model{
		names:    make([]string, 0, len(pairs)),
		values:   make(map[string]any, len(pairs)),
		labels:   make(map[string]string),
		errors:   make(map[string][]string),
		fallback: strictFallback{},
		onUnsafe: logUnsafe,
		logger:   logger.Named("dynamic"),
	}
	for _, p := range pairs {
		m.DefineAttribute(p.Name, p.Value)
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.init != nil {
		m.init(m)
	}
	for _, behavior := range m.behaviors {
		behavior(m)
	}
	return m
}

// FromMap 以 map 创建模型，属性按名称排序插入
func FromMap(values map[string]any, opts ...Option) *Model {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]Pair, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, Pair{Name: name, Value: values[name]})
	}
	return NewWithValues(pairs, opts...)
}

// AttributeNames 返回全部已知属性名（插入顺序）
func (m *Model) AttributeNames() []string {
	return slices.Clone(m.names)
}

// HasAttribute 是否为已知属性（与属性值是否为 nil 无关）
func (m *Model) HasAttribute(name string) bool {
	_, ok := m.values[name]
	return ok
}

// DefineAttribute 定义属性，已存在时仅更新值
func (m *Model) DefineAttribute(name string, value any) {
	if _, ok := m.values[name]; !ok {
		m.names = append(m.names, name)
	}
	m.values[name] = value
}

// UndefineAttribute 移除属性定义
func (m *Model) UndefineAttribute(name string) {
	if _, ok := m.values[name]; !ok {
		return
	}
	delete(m.values, name)
	m.names = slices.DeleteFunc(m.names, func(n string) bool { return n == name })
}

// Attributes 返回属性值
// 未指定名称时返回全部已知属性；指定名称时只返回这些名称，未知名称的值为 nil。
// 传入空切片（如 m.Attributes(names...) 且 names 为空）同样返回全部属性，
// 需要区分"未指定"与"空列表"时使用 AttributesOf。
func (m *Model) Attributes(names ...string) map[string]any {
	if len(names) == 0 {
		return m.AttributesOf(m.names)
	}
	return m.AttributesOf(names)
}

// AttributesOf 只返回 names 中的属性，names 为空时返回空 map
func (m *Model) AttributesOf(names []string) map[string]any {
	out := make(map[string]any, len(names))
	for _, name := range names {
		out[name] = m.values[name]
	}
	return out
}

// SetAttributes 批量赋值
//
// 支持 map[string]any、map[string]string 与 url.Values（取每个键的第一个值），
// 其他类型的输入静默忽略。
//
// safeOnly 为 true 时仅允许为当前场景的安全属性赋值，
// 其余名称逐个触发非安全属性回调；为 false 时允许为任意已知属性赋值，未知名称忽略。
func (m *Model) SetAttributes(values any, safeOnly bool) error {
	input := toValueMap(values)
	if input == nil {
		return nil
	}

	if !safeOnly {
		for name, value := range input {
			if m.HasAttribute(name) {
				m.values[name] = value
			}
		}
		return nil
	}

	safe, err := m.SafeAttributes()
	if err != nil {
		return err
	}
	allowed := make(map[string]struct{}, len(safe))
	for _, name := range safe {
		allowed[name] = struct{}{}
	}

	for name, value := range input {
		if _, ok := allowed[name]; !ok {
			if m.onUnsafe != nil {
				m.onUnsafe(m, name, value)
			}
			continue
		}
		if err := m.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// UnsetAttributes 移除属性，未指定名称时移除全部已知属性
func (m *Model) UnsetAttributes(names ...string) {
	if len(names) == 0 {
		names = slices.Clone(m.names)
	}
	for _, name := range names {
		m.UndefineAttribute(name)
	}
}

// SafeAttributes 返回当前场景下允许批量赋值的属性
func (m *Model) SafeAttributes() ([]string, error) {
	return AttributesFromRules(m.rules, m.scenario)
}

// Rules 返回构造时提供的验证规则（副本）
func (m *Model) Rules() []Rule {
	out := make([]Rule, 0, len(m.rules))
	for _, rule := range m.rules {
		out = append(out, rule.clone())
	}
	return out
}

// AttributeLabels 返回属性标签（副本）
func (m *Model) AttributeLabels() map[string]string {
	out := make(map[string]string, len(m.labels))
	for k, v := range m.labels {
		out[k] = v
	}
	return out
}

// SetAttributeLabels 按键合并属性标签，不会删除已有的其他标签
func (m *Model) SetAttributeLabels(labels map[string]string) {
	if len(labels) == 0 {
		return
	}
	if err := mergo.Merge(&m.labels, labels, mergo.WithOverride); err != nil {
		// map 间合并只会在类型不一致时失败，这里退化为逐键覆盖
		for k, v := range labels {
			m.labels[k] = v
		}
	}
}

// AttributeLabel 返回属性标签，未设置时返回空字符串
func (m *Model) AttributeLabel(name string) (string, bool) {
	label, ok := m.labels[name]
	return label, ok
}

// Scenario 当前场景
func (m *Model) Scenario() string {
	return m.scenario
}

// SetScenario 切换场景
func (m *Model) SetScenario(scenario string) {
	m.scenario = scenario
}

// Logger 模型使用的日志器
func (m *Model) Logger() *zap.Logger {
	return m.logger
}

// Get 读取属性值，未知属性交给 Fallback
func (m *Model) Get(name string) (any, error) {
	if value, ok := m.values[name]; ok {
		return value, nil
	}
	return m.fallback.GetUnknown(name)
}

// Set 写入属性值，未知属性交给 Fallback
func (m *Model) Set(name string, value any) error {
	if _, ok := m.values[name]; ok {
		m.values[name] = value
		return nil
	}
	return m.fallback.SetUnknown(name, value)
}

// Has 属性是否已知且值不为 nil，未知属性交给 Fallback
func (m *Model) Has(name string) bool {
	if value, ok := m.values[name]; ok {
		return value != nil
	}
	return m.fallback.HasUnknown(name)
}

// Unset 移除属性，未知属性交给 Fallback
func (m *Model) Unset(name string) error {
	if _, ok := m.values[name]; ok {
		m.UndefineAttribute(name)
		return nil
	}
	return m.fallback.UnsetUnknown(name)
}

// Range 按插入顺序遍历属性，fn 返回 false 时停止
func (m *Model) Range(fn func(name string, value any) bool) {
	for _, name := range slices.Clone(m.names) {
		if !fn(name, m.values[name]) {
			return
		}
	}
}

// Len 已知属性数量
func (m *Model) Len() int {
	return len(m.names)
}

// Validate 使用挂载的引擎执行验证
// 验证前清空全部错误；attributeNames 为空时验证全部受规则约束的属性。
func (m *Model) Validate(attributeNames ...string) (bool, error) {
	if m.engine == nil {
		return false, ErrNoEngine
	}
	m.ClearErrors()
	if err := m.engine.Validate(m, attributeNames); err != nil {
		return false, err
	}
	return !m.HasErrors(), nil
}

// toValueMap 将批量赋值的输入转换为 map，不支持的类型返回 nil
func toValueMap(values any) map[string]any {
	switch v := values.(type) {
	case map[string]any:
		return v
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out
	case url.Values:
		out := make(map[string]any, len(v))
		for k, vs := range v {
			if len(vs) > 0 {
				out[k] = vs[0]
			}
		}
		return out
	}
	return nil
}
