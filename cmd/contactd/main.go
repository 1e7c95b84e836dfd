// contactd 按配置提供表单验证接口：POST /forms/:name
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"katydid-common-form/pkg/binding"
	"katydid-common-form/pkg/config"
	"katydid-common-form/pkg/logger"
)

var (
	buildVersion string
	buildCommit  string
)

func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "path to the config file")
	pflag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logger); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Named("contactd")
	log.Info("starting",
		zap.String("version", orNA(buildVersion)),
		zap.String("commit", orNA(buildCommit)),
		zap.String("addr", cfg.Server.Addr),
		zap.Int("forms", len(cfg.Forms)),
	)

	gin.SetMode(cfg.Server.Mode)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newRouter(cfg, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRouter 为每个配置的表单挂载处理器
func newRouter(cfg *config.Config, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), accessLog(log))

	handlers := make(map[string]gin.HandlerFunc, len(cfg.Forms))
	for name, form := range cfg.Forms {
		handlers[name] = binding.Handler(form, binding.Respond)
	}

	// viper 读取的表单名均为小写
	r.POST("/forms/:name", func(c *gin.Context) {
		handler, ok := handlers[strings.ToLower(c.Param("name"))]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown form"})
			return
		}
		handler(c)
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

// accessLog 记录请求日志
func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
