package dynamic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 登记场景下的测试规则
func registrationRules() []Rule {
	return []Rule{
		NewRule("name,email", "string", map[string]any{"max": 10}),
		NewRule("city", "string", map[string]any{"max": 10}).OnScenarios("registration"),
		NewRule("code", "string", map[string]any{"max": 10}).ExceptScenarios("registration"),
	}
}

func TestAttributesFromRules_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		scenario string
		want     []string
	}{
		{name: "默认场景", scenario: "", want: []string{"code", "email", "name"}},
		{name: "注册场景", scenario: "registration", want: []string{"city", "email", "name"}},
		{name: "其他场景", scenario: "update", want: []string{"code", "email", "name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AttributesFromRules(registrationRules(), tt.scenario)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestAttributesFromRules_OrderAndDedup(t *testing.T) {
	rules := []Rule{
		{Attributes: []string{"b, a"}, Validator: "required"},
		{Attributes: []string{"a", "c  d,,e"}, Validator: "string"},
		{Attributes: []string{"\tb\n"}, Validator: "email"},
	}

	got, err := AttributesFromRules(rules, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c", "d", "e"}, got)
}

func TestAttributesFromRules_OnAndExcept(t *testing.T) {
	rule := Rule{
		Attributes: []string{"x"},
		Validator:  "required",
		On:         []string{"create, update"},
		Except:     []string{"update"},
	}

	got, err := AttributesFromRules([]Rule{rule}, "create")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got)

	// on 命中但 except 也命中时，规则不生效
	got, err = AttributesFromRules([]Rule{rule}, "update")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = AttributesFromRules([]Rule{rule}, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAttributesFromRules_EmptyOnDeclared(t *testing.T) {
	rule := Rule{Attributes: []string{"x"}, Validator: "required", On: []string{}}
	got, err := AttributesFromRules([]Rule{rule}, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAttributesFromRules_InvalidRule(t *testing.T) {
	valid := NewRule("name", "required", nil)
	invalids := []Rule{
		{Attributes: []string{"name"}},
		{Validator: "required"},
		{Attributes: []string{"name"}, Validator: "   "},
	}

	for _, invalid := range invalids {
		for pos := 0; pos < 3; pos++ {
			rules := []Rule{valid, valid}
			rules = append(rules[:pos], append([]Rule{invalid}, rules[pos:]...)...)

			_, err := AttributesFromRules(rules, "")
			assert.ErrorIs(t, err, ErrInvalidRule, "position %d", pos)
		}
	}
}

func TestSplitNames(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitNames(" a,b ,\n c, "))
	assert.Equal(t, []string{"a", "b"}, SplitNames("a", "", "b"))
	assert.Empty(t, SplitNames(", ,"))
}

func TestParseRule_Positional(t *testing.T) {
	rule, err := ParseRule([]any{"name,email", "string", map[string]any{"max": 10, "on": "registration"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "email"}, rule.AttributeNames())
	assert.Equal(t, "string", rule.Validator)
	assert.Equal(t, []string{"registration"}, rule.On)
	assert.Nil(t, rule.Except)
	assert.Equal(t, map[string]any{"max": 10}, rule.Params)
}

func TestParseRule_Map(t *testing.T) {
	rule, err := ParseRule(map[string]any{
		"attributes": []any{"code"},
		"validator":  "match",
		"pattern":    "^[a-z]+$",
		"Except":     []any{"registration", "admin"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"code"}, rule.Attributes)
	assert.Equal(t, "match", rule.Validator)
	assert.Equal(t, []string{"registration", "admin"}, rule.Except)
	v, ok := rule.Param("PATTERN")
	assert.True(t, ok)
	assert.Equal(t, "^[a-z]+$", v)
}

func TestParseRule_Invalid(t *testing.T) {
	cases := []any{
		[]any{"name"},
		[]string{"name"},
		[]any{"name", ""},
		map[string]any{"attributes": "name"},
		map[string]any{"validator": "required"},
		[]any{"name", "required", "not-a-map"},
		42,
	}
	for _, raw := range cases {
		_, err := ParseRule(raw)
		assert.ErrorIs(t, err, ErrInvalidRule, "%#v", raw)
	}
}

func TestParseRules(t *testing.T) {
	rules, err := ParseRules([]any{
		[]any{"name,email", "required"},
		[]string{"email", "email"},
		map[string]any{"attributes": "age", "validator": "integer", "min": 18},
	})
	require.NoError(t, err)
	require.Len(t, rules, 3)

	got, err := AttributesFromRules(rules, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "email", "age"}, got)

	_, err = ParseRules([]any{[]any{"name", "required"}, []any{"broken"}})
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestRule_CloneIsolation(t *testing.T) {
	params := map[string]any{"max": 10}
	m := New([]string{"name"}, WithRules(NewRule("name", "string", params)))

	params["max"] = 99
	rules := m.Rules()
	rules[0].Params["max"] = 1

	v, _ := m.Rules()[0].Param("max")
	assert.Equal(t, 10, v)
}
