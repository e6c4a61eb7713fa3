package web

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/logging"
)

const (
	// Section 默认配置节
	Section = "web"
	// HostBean Web 主机的 Bean 名称
	HostBean = "web.host"
	// EngineBean Gin 引擎的 Bean 名称
	EngineBean = "web.engine"
)

// WebOptions Web 主机配置
//
//	web:
//	  port: 8080
//	  mode: debug
//	  basePath: /api
//	  introspection: true
type WebOptions struct {
	Port              int    `json:"port"`
	Mode              string `json:"mode"`
	BasePath          string `json:"basePath"`
	Introspection     bool   `json:"introspection"`
	IntrospectionPath string `json:"introspectionPath"`
}

// DefaultOptions 返回默认配置
func DefaultOptions() WebOptions {
	return WebOptions{
		Port:              8080,
		IntrospectionPath: "/beans",
	}
}

// Validate 验证配置
func (o WebOptions) Validate() error {
	if o.Port < 0 || o.Port > 65535 {
		return fmt.Errorf("web port %d out of range", o.Port)
	}
	switch o.Mode {
	case "", gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		return fmt.Errorf("unknown gin mode %q", o.Mode)
	}
	return nil
}

// Register 读取 web 配置节，注册 web.host 与 web.engine
// 使用示例: web.Register(reg, cfg, logger, func(b *web.Builder) { b.AddControllers("userController") })
func Register(reg *di.Registry, cfg config.Configuration, logger logging.Logger, options ...func(*Builder)) error {
	opts, err := config.LoadOrDefault(cfg, Section, DefaultOptions())
	if err != nil {
		return fmt.Errorf("web: %w", err)
	}
	return Configure(reg, logger, opts, options...)
}

// Starter 返回可交给 beans.ApplicationBuilder.Use 的注册函数
func Starter(options ...func(*Builder)) func(*di.Registry, config.Configuration, logging.Logger) error {
	return func(reg *di.Registry, cfg config.Configuration, logger logging.Logger) error {
		return Register(reg, cfg, logger, options...)
	}
}

// Configure 以代码方式配置 Web 主机
func Configure(reg *di.Registry, logger logging.Logger, opts WebOptions, options ...func(*Builder)) error {
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("web: %w", err)
	}
	if opts.IntrospectionPath == "" {
		opts.IntrospectionPath = DefaultOptions().IntrospectionPath
	}
	if logger == nil {
		logger = logging.Nop()
	}

	builder := NewBuilder(logger, opts)
	for _, option := range options {
		option(builder)
	}

	// 控制器作为 Host 的依赖声明，参与循环检查
	inject := make([]di.BindingOption, 0, len(builder.controllers))
	for _, name := range builder.controllers {
		inject = append(inject, di.InjectInto(name, func(h *Host, c Controller) {
			h.addController(c)
		}))
	}
	di.Provide(reg, HostBean, func() (*Host, error) {
		return builder.Build(reg), nil
	}, inject...)
	// 引擎依赖 Host，在路由映射完成之后才缓存
	di.Provide(reg, EngineBean, func() (*gin.Engine, error) {
		return builder.Engine(), nil
	}, di.InjectInto(HostBean, func(*gin.Engine, *Host) {}))

	logger.Info("Web host configured",
		logging.Field{Key: "port", Value: opts.Port},
		logging.Field{Key: "controllers", Value: len(builder.controllers)})
	return nil
}
