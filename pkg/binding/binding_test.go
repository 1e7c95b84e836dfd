package binding

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katydid-common-form/pkg/dynamic"
	"katydid-common-form/pkg/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// contactForm 测试用的联系表单
var contactForm = BuilderFunc(func(opts ...dynamic.Option) (*dynamic.Model, error) {
	base := []dynamic.Option{
		dynamic.WithRules(
			dynamic.NewRule("name, email", "required", nil),
			dynamic.NewRule("email", "email", nil),
			dynamic.NewRule("company", "required", nil).OnScenarios("business"),
		),
		dynamic.WithEngine(validator.New()),
	}
	return dynamic.New([]string{"name", "email", "company", "role"}, append(base, opts...)...), nil
})

func newRouter(form Builder) *gin.Engine {
	r := gin.New()
	r.POST("/forms/contact", Handler(form, Respond))
	r.GET("/forms/contact", Handler(form, Respond))
	return r
}

func serve(r http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	body := make(map[string]any)
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestHandler_JSON(t *testing.T) {
	r := newRouter(contactForm)

	req := httptest.NewRequest(http.MethodPost, "/forms/contact",
		strings.NewReader(`{"name":"Ann","email":"ann@example.com","role":"admin"}`))
	req.Header.Set("Content-Type", "application/json")
	w, body := serve(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	attrs := body["attributes"].(map[string]any)
	assert.Equal(t, "Ann", attrs["name"])
	assert.Nil(t, attrs["role"], "非安全属性不应被赋值")
}

func TestHandler_ValidationFailed(t *testing.T) {
	r := newRouter(contactForm)

	req := httptest.NewRequest(http.MethodPost, "/forms/contact",
		strings.NewReader(`{"name":"Ann","email":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	w, body := serve(r, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	errs := body["errors"].(map[string]any)
	assert.Equal(t, []any{"Email is not a valid email address."}, errs["email"])
	assert.NotContains(t, errs, "name")
}

// scenarioForm 开放了部分场景的表单
type scenarioForm struct {
	BuilderFunc
	allowed []string
}

func (f scenarioForm) AllowsScenario(scenario string) bool {
	for _, s := range f.allowed {
		if s == scenario {
			return true
		}
	}
	return false
}

func TestHandler_PostForm(t *testing.T) {
	r := newRouter(scenarioForm{BuilderFunc: contactForm, allowed: []string{"business"}})

	form := url.Values{"name": {"Ann"}, "email": {"ann@example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/forms/contact?scenario=business", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w, body := serve(r, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, body["errors"], "company")
}

func TestHandler_ScenarioNotAllowed(t *testing.T) {
	// public 场景要求 captcha，admin 场景才允许写入 isAdmin
	adminForm := BuilderFunc(func(opts ...dynamic.Option) (*dynamic.Model, error) {
		base := []dynamic.Option{
			dynamic.WithRules(
				dynamic.NewRule("name", "required", nil),
				dynamic.NewRule("isAdmin", "boolean", nil).OnScenarios("admin"),
				dynamic.NewRule("captcha", "required", nil).ExceptScenarios("admin"),
			),
			dynamic.WithScenario("public"),
			dynamic.WithEngine(validator.New()),
		}
		return dynamic.New([]string{"name", "isAdmin", "captcha"}, append(base, opts...)...), nil
	})

	tests := []struct {
		name string
		form Builder
	}{
		{"form without policy", adminForm},
		{"scenario outside allowlist", scenarioForm{BuilderFunc: adminForm, allowed: []string{"public"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/f", Handler(tt.form, Respond))

			req := httptest.NewRequest(http.MethodPost, "/f?scenario=admin", strings.NewReader(`{"name":"x","isAdmin":true}`))
			req.Header.Set("Content-Type", "application/json")
			w, body := serve(r, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, ErrScenarioNotAllowed.Error(), body["error"])
		})
	}

	// 不指定场景时使用表单自身的场景，isAdmin 不可写且 captcha 必填
	r := gin.New()
	r.POST("/f", Handler(adminForm, Respond))
	req := httptest.NewRequest(http.MethodPost, "/f", strings.NewReader(`{"name":"x","isAdmin":true}`))
	req.Header.Set("Content-Type", "application/json")
	w, body := serve(r, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, body["errors"], "captcha")
}

func TestHandler_Query(t *testing.T) {
	r := newRouter(contactForm)

	req := httptest.NewRequest(http.MethodGet, "/forms/contact?name=Ann&email=ann@example.com", nil)
	w, _ := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_BadBody(t *testing.T) {
	r := newRouter(contactForm)

	req := httptest.NewRequest(http.MethodPost, "/forms/contact", strings.NewReader(`{"name":`))
	req.Header.Set("Content-Type", "application/json")
	w, body := serve(r, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], ErrBadRequest.Error())
}

func TestHandler_Misconfigured(t *testing.T) {
	broken := BuilderFunc(func(...dynamic.Option) (*dynamic.Model, error) {
		return nil, errors.New("boom")
	})
	req := httptest.NewRequest(http.MethodPost, "/forms/contact", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w, _ := serve(newRouter(broken), req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	unknown := BuilderFunc(func(opts ...dynamic.Option) (*dynamic.Model, error) {
		return dynamic.New([]string{"name"}, append(opts,
			dynamic.WithRules(dynamic.NewRule("name", "no_such_validator", nil)),
			dynamic.WithEngine(validator.New()))...), nil
	})
	req = httptest.NewRequest(http.MethodPost, "/forms/contact", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w, _ = serve(newRouter(unknown), req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestBind(t *testing.T) {
	m, _ := contactForm.Build()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ann","role":"x"}`))
	c.Request.Header.Set("Content-Type", "application/json; charset=utf-8")

	require.NoError(t, Bind(c, m))
	assert.Equal(t, map[string]any{"name": "Ann", "email": nil}, m.Attributes("name", "email"))
	role, err := m.Get("role")
	require.NoError(t, err)
	assert.Nil(t, role)
}

func TestHandler_JSONNumberAsString(t *testing.T) {
	zipForm := BuilderFunc(func(opts ...dynamic.Option) (*dynamic.Model, error) {
		return dynamic.New([]string{"zip"}, append([]dynamic.Option{
			dynamic.WithRules(dynamic.NewRule("zip", "string", map[string]any{"max": 10})),
			dynamic.WithEngine(validator.New()),
		}, opts...)...), nil
	})

	req := httptest.NewRequest(http.MethodPost, "/forms/contact", strings.NewReader(`{"zip":12345}`))
	req.Header.Set("Content-Type", "application/json")
	w, _ := serve(newRouter(zipForm), req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
