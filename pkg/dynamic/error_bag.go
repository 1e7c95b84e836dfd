package dynamic

import "slices"

// AddError 为属性追加一条错误消息
func (m *Model) AddError(attribute, message string) {
	m.errors[attribute] = append(m.errors[attribute], message)
}

// HasErrors 是否存在错误，指定属性时只检查这些属性
func (m *Model) HasErrors(attributes ...string) bool {
	if len(attributes) == 0 {
		return len(m.errors) > 0
	}
	for _, attr := range attributes {
		if len(m.errors[attr]) > 0 {
			return true
		}
	}
	return false
}

// Errors 返回全部错误（副本）
func (m *Model) Errors() map[string][]string {
	out := make(map[string][]string, len(m.errors))
	for attr, msgs := range m.errors {
		out[attr] = slices.Clone(msgs)
	}
	return out
}

// AttributeErrors 返回单个属性的错误
func (m *Model) AttributeErrors(attribute string) []string {
	return slices.Clone(m.errors[attribute])
}

// FirstError 返回属性的第一条错误，没有时返回空字符串
func (m *Model) FirstError(attribute string) string {
	if msgs := m.errors[attribute]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// FirstErrors 返回每个属性的第一条错误
func (m *Model) FirstErrors() map[string]string {
	out := make(map[string]string, len(m.errors))
	for attr, msgs := range m.errors {
		if len(msgs) > 0 {
			out[attr] = msgs[0]
		}
	}
	return out
}

// ClearErrors 清空错误，指定属性时只清空这些属性
func (m *Model) ClearErrors(attributes ...string) {
	if len(attributes) == 0 {
		m.errors = make(map[string][]string)
		return
	}
	for _, attr := range attributes {
		delete(m.errors, attr)
	}
}
