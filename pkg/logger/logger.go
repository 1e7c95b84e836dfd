// Package logger 基于 zap 的全局日志器
//
// 未调用 Init 前 L() 返回 no-op 日志器，库代码可以放心使用而不产生输出。
// 配置了 File 时日志写入文件并由 lumberjack 负责切割。
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 日志配置
type Config struct {
	// Level 日志级别：debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format 输出格式：json 或 console
	Format string `mapstructure:"format"`
	// File 日志文件路径，为空时输出到 stdout
	File string `mapstructure:"file"`
	// MaxSizeMB 单个文件最大尺寸（MB）
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups 保留的旧文件数量
	MaxBackups int `mapstructure:"max_backups"`
	// MaxAgeDays 旧文件保留天数
	MaxAgeDays int `mapstructure:"max_age_days"`
	// Compress 是否压缩旧文件
	Compress bool `mapstructure:"compress"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		MaxSizeMB:  100,
		MaxBackups: 7,
		MaxAgeDays: 30,
	}
}

var (
	mu     sync.RWMutex
	global = zap.NewNop()
)

// New 根据配置创建日志器
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	case "console":
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	core := zapcore.NewCore(encoder, writer(cfg), level)
	return zap.New(core, zap.AddCaller()), nil
}

func writer(cfg Config) zapcore.WriteSyncer {
	if cfg.File == "" {
		return zapcore.Lock(os.Stdout)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
}

// Init 根据配置初始化全局日志器
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	Replace(l)
	return nil
}

// Replace 替换全局日志器，nil 恢复为 no-op
func Replace(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	global = l
	mu.Unlock()
}

// L 返回全局日志器
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Named 返回带名称的子日志器
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// Sync 刷新缓冲
func Sync() error {
	return L().Sync()
}
