// Package config 服务配置加载
//
// 使用 viper 读取配置文件（YAML/JSON/TOML 等），支持 KATYDID_ 前缀的环境变量覆盖，
// 未填写的字段由 mergo 合并默认值。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/spf13/viper"

	"katydid-common-form/pkg/logger"
)

// EnvPrefix 环境变量前缀，例如 KATYDID_SERVER_ADDR 覆盖 server.addr
const EnvPrefix = "KATYDID"

// ErrInvalidConfig 配置内容无效
var ErrInvalidConfig = errors.New("invalid config")

// Config 服务配置
type Config struct {
	Logger logger.Config        `mapstructure:"logger"`
	Server ServerConfig         `mapstructure:"server"`
	Forms  map[string]FormSpec `mapstructure:"forms"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	// Addr 监听地址
	Addr string `mapstructure:"addr"`
	// Mode gin 运行模式：debug, release, test
	Mode string `mapstructure:"mode"`
	// ShutdownTimeout 优雅退出的最长等待时间
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// envKeys 允许通过环境变量覆盖的配置项
var envKeys = []string{
	"logger.level",
	"logger.format",
	"logger.file",
	"server.addr",
	"server.mode",
	"server.shutdown_timeout",
}

// Default 默认配置
func Default() Config {
	return Config{
		Logger: logger.DefaultConfig(),
		Server: ServerConfig{
			Addr:            ":8080",
			Mode:            "release",
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// Load 加载配置
// path 为空时只使用环境变量与默认值
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := mergo.Merge(cfg, Default()); err != nil {
		return nil, fmt.Errorf("error merging defaults: %w", err)
	}

	return cfg, cfg.validate()
}

// Form 按名称查找表单，名称不区分大小写
func (c *Config) Form(name string) (FormSpec, bool) {
	form, ok := c.Forms[strings.ToLower(name)]
	return form, ok
}

func (c *Config) validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("server.addr is empty: %w", ErrInvalidConfig))
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("server.mode %q: %w", c.Server.Mode, ErrInvalidConfig))
	}
	for name, form := range c.Forms {
		if _, err := form.ParsedRules(); err != nil {
			errs = append(errs, fmt.Errorf("forms.%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
