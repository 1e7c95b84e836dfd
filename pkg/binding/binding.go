// Package binding gin 请求与动态模型之间的绑定
package binding

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	gbinding "github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"katydid-common-form/pkg/dynamic"
	"katydid-common-form/pkg/logger"
)

// ScenarioQuery 指定场景的查询参数名
const ScenarioQuery = "scenario"

var (
	// ErrBadRequest 请求体无法解析
	ErrBadRequest = errors.New("bad request body")

	// ErrScenarioNotAllowed 请求指定了表单未开放的场景
	ErrScenarioNotAllowed = errors.New("scenario not allowed")
)

// Builder 模型构建器，config.FormSpec 实现了该接口
type Builder interface {
	Build(opts ...dynamic.Option) (*dynamic.Model, error)
}

// ScenarioPolicy 由表单决定客户端可以选择哪些场景
// 场景决定安全属性与生效规则，未实现该接口的表单不接受客户端指定场景。
type ScenarioPolicy interface {
	AllowsScenario(scenario string) bool
}

// BuilderFunc 函数形式的 Builder
type BuilderFunc func(opts ...dynamic.Option) (*dynamic.Model, error)

// Build 实现 Builder 接口
func (f BuilderFunc) Build(opts ...dynamic.Option) (*dynamic.Model, error) {
	return f(opts...)
}

// Bind 将请求数据以安全模式赋值给模型
// JSON 请求读取请求体，表单请求读取 POST 表单，GET 请求读取查询参数。
func Bind(c *gin.Context, m *dynamic.Model) error {
	values, err := requestValues(c)
	if err != nil {
		return err
	}
	return m.SetAttributes(values, true)
}

func requestValues(c *gin.Context) (any, error) {
	if c.Request.Method == http.MethodGet {
		return c.Request.URL.Query(), nil
	}

	switch c.ContentType() {
	case gin.MIMEJSON:
		payload := make(map[string]any)
		if err := c.ShouldBindWith(&payload, gbinding.JSON); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		return payload, nil
	case gin.MIMEMultipartPOSTForm:
		form, err := c.MultipartForm()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		return url.Values(form.Value), nil
	default:
		if err := c.Request.ParseForm(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		return c.Request.PostForm, nil
	}
}

// Handler 创建表单处理器
// 每个请求构建新模型，绑定并验证；验证失败返回 422 与错误集合，成功时交给 onValid。
func Handler(form Builder, onValid func(c *gin.Context, m *dynamic.Model)) gin.HandlerFunc {
	log := logger.Named("binding")

	return func(c *gin.Context) {
		m, err := form.Build(dynamic.WithLogger(log))
		if err != nil {
			log.Error("build form model failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "form is misconfigured"})
			return
		}

		if scenario := c.Query(ScenarioQuery); scenario != "" {
			if !allowsScenario(form, scenario) {
				log.Debug("rejected client scenario", zap.String("scenario", scenario))
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ErrScenarioNotAllowed.Error()})
				return
			}
			m.SetScenario(scenario)
		}

		if err := Bind(c, m); err != nil {
			if errors.Is(err, ErrBadRequest) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log.Error("bind form failed", zap.String("path", c.FullPath()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "form is misconfigured"})
			return
		}

		valid, err := m.Validate()
		if err != nil {
			log.Error("validate form failed", zap.String("path", c.FullPath()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "form is misconfigured"})
			return
		}
		if !valid {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"errors": m.Errors()})
			return
		}

		onValid(c, m)
	}
}

func allowsScenario(form Builder, scenario string) bool {
	policy, ok := form.(ScenarioPolicy)
	return ok && policy.AllowsScenario(scenario)
}

// Respond 默认的成功处理：返回模型的全部属性
func Respond(c *gin.Context, m *dynamic.Model) {
	c.JSON(http.StatusOK, gin.H{"attributes": m.Attributes()})
}
