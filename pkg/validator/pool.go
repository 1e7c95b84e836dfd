package validator

import (
	"strings"
	"sync"
)

// ============================================================================
// 对象池优化 - 减少内存分配和 GC 压力
// ============================================================================

var (
	// validationContextPool ValidationContext 对象池
	// 每次 Validate/Check 都会创建上下文，复用以减少分配
	validationContextPool = sync.Pool{
		New: func() interface{} {
			return &ValidationContext{
				Errors: make([]*FieldError, 0, 8), // 预分配8个错误容量
			}
		},
	}

	// stringBuilderPool strings.Builder 对象池
	// 用于标签生成等字符串拼接
	stringBuilderPool = sync.Pool{
		New: func() interface{} {
			return &strings.Builder{}
		},
	}
)

// acquireValidationContext 从对象池获取 ValidationContext
// 使用后必须调用 releaseValidationContext 归还
func acquireValidationContext(scenario string) *ValidationContext {
	ctx := validationContextPool.Get().(*ValidationContext)
	ctx.Scenario = scenario
	ctx.Errors = ctx.Errors[:0] // 清空错误列表，保留底层数组
	return ctx
}

// releaseValidationContext 将 ValidationContext 归还到对象池
func releaseValidationContext(ctx *ValidationContext) {
	if ctx == nil {
		return
	}

	// 防止内存泄漏：清空大容量的错误列表
	if cap(ctx.Errors) > 1000 {
		ctx.Errors = make([]*FieldError, 0, 8)
	} else {
		for i := range ctx.Errors {
			ctx.Errors[i] = nil
		}
		ctx.Errors = ctx.Errors[:0]
	}
	ctx.Scenario = ""

	validationContextPool.Put(ctx)
}

// acquireStringBuilder 从对象池获取 strings.Builder
func acquireStringBuilder() *strings.Builder {
	sb := stringBuilderPool.Get().(*strings.Builder)
	sb.Reset()
	return sb
}

// releaseStringBuilder 将 strings.Builder 归还到对象池
func releaseStringBuilder(sb *strings.Builder) {
	if sb == nil {
		return
	}

	// 超过 10KB 的 Builder 不归还，让其被 GC 回收
	if sb.Cap() > 10*1024 {
		return
	}

	sb.Reset()
	stringBuilderPool.Put(sb)
}
