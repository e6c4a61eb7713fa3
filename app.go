package beans

import (
	"context"
	"fmt"
	"time"

	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/hosting"
	"github.com/gocrud/beans/logging"
	"github.com/gocrud/beans/scan"
)

const (
	// RegistrySection 注册表配置节，见 di.OptionsFromConfig
	RegistrySection = "beans"
	// LoggingSection 日志配置节，见 logging.FromConfig
	LoggingSection = "logging"

	// ConfigBean 配置对象的 Bean 名称
	ConfigBean = "beans.config"
	// LoggerBean 应用日志的 Bean 名称
	LoggerBean = "beans.logger"
)

// Starter 读取配置并向注册表注册 Bean，各 configure 子包的 Register 均满足该签名
//
//	builder.Use(redis.Register, mongodb.Register)
type Starter func(reg *di.Registry, cfg config.Configuration, logger logging.Logger) error

// ApplicationBuilder 应用程序构建器
type ApplicationBuilder struct {
	configBuilder   *config.ConfigurationBuilder
	loggerFactory   logging.LoggerFactory
	registryOptions []di.Option
	starters        []Starter
	configurators   []func(*di.Registry) error
	scanner         *scan.Scanner
	catalog         scan.Catalog
	services        []string
	shutdownTimeout time.Duration
}

// NewApplicationBuilder 创建应用程序构建器
// 这是创建应用程序的入口点
func NewApplicationBuilder() *ApplicationBuilder {
	return &ApplicationBuilder{
		configBuilder:   config.NewConfigurationBuilder(),
		shutdownTimeout: 30 * time.Second,
	}
}

// ConfigureConfiguration 配置配置系统
func (b *ApplicationBuilder) ConfigureConfiguration(configure func(*config.ConfigurationBuilder)) *ApplicationBuilder {
	if configure != nil {
		configure(b.configBuilder)
	}
	return b
}

// UseLoggerFactory 使用指定的日志工厂，未设置时从 logging 配置节构建
func (b *ApplicationBuilder) UseLoggerFactory(factory logging.LoggerFactory) *ApplicationBuilder {
	b.loggerFactory = factory
	return b
}

// UseRegistryOptions 追加注册表选项，在配置节之后应用
func (b *ApplicationBuilder) UseRegistryOptions(opts ...di.Option) *ApplicationBuilder {
	b.registryOptions = append(b.registryOptions, opts...)
	return b
}

// Use 添加 Starter，按添加顺序执行
func (b *ApplicationBuilder) Use(starters ...Starter) *ApplicationBuilder {
	b.starters = append(b.starters, starters...)
	return b
}

// ConfigureBeans 以代码方式注册 Bean，在 Starter 之后执行
func (b *ApplicationBuilder) ConfigureBeans(configure func(*di.Registry) error) *ApplicationBuilder {
	if configure != nil {
		b.configurators = append(b.configurators, configure)
	}
	return b
}

// ScanComponents 在构建时扫描带标记的组件并注册
func (b *ApplicationBuilder) ScanComponents(s *scan.Scanner, catalog scan.Catalog) *ApplicationBuilder {
	b.scanner = s
	b.catalog = catalog
	return b
}

// AddHostedService 添加托管服务的 Bean 名称
func (b *ApplicationBuilder) AddHostedService(names ...string) *ApplicationBuilder {
	b.services = append(b.services, names...)
	return b
}

// UseShutdownTimeout 设置关闭超时
func (b *ApplicationBuilder) UseShutdownTimeout(timeout time.Duration) *ApplicationBuilder {
	b.shutdownTimeout = timeout
	return b
}

// Build 构建应用程序。任何 Bean 都不会在此阶段实例化。
func (b *ApplicationBuilder) Build(ctx context.Context) (*Application, error) {
	cfg, err := b.configBuilder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build configuration: %w", err)
	}

	factory := b.loggerFactory
	if factory == nil {
		if factory, err = logging.FromConfig(cfg, LoggingSection); err != nil {
			return nil, err
		}
	}
	logger := factory.CreateLogger("Application")

	opts, err := di.OptionsFromConfig(cfg, RegistrySection)
	if err != nil {
		return nil, err
	}
	opts = append(opts, di.WithLogger(factory.CreateLogger("di")))
	opts = append(opts, b.registryOptions...)
	reg := di.New(opts...)

	// 核心对象
	di.Provide(reg, ConfigBean, func() (config.Configuration, error) { return cfg, nil })
	di.Provide(reg, LoggerBean, func() (logging.Logger, error) { return logger, nil })

	for _, starter := range b.starters {
		if err := starter(reg, cfg, logger); err != nil {
			return nil, err
		}
	}
	for _, configure := range b.configurators {
		if err := configure(reg); err != nil {
			return nil, err
		}
	}

	if b.scanner != nil {
		if b.scanner.Logger == nil {
			b.scanner.Logger = factory.CreateLogger("scan")
		}
		components, err := scan.AutoRegister(ctx, reg, b.scanner, b.catalog)
		if err != nil {
			return nil, err
		}
		logger.Info("Components registered", logging.Field{Key: "count", Value: len(components)})
	}

	host := hosting.NewHost(reg, logger).
		AddService(b.services...).
		WithShutdownTimeout(b.shutdownTimeout)

	return &Application{
		registry: reg,
		config:   cfg,
		logger:   logger,
		host:     host,
	}, nil
}

// Application 已构建的应用程序
type Application struct {
	registry *di.Registry
	config   config.Configuration
	logger   logging.Logger
	host     *hosting.Host
}

// Registry 返回应用的注册表
func (a *Application) Registry() *di.Registry {
	return a.registry
}

// Configuration 返回应用配置
func (a *Application) Configuration() config.Configuration {
	return a.config
}

// Logger 返回应用日志
func (a *Application) Logger() logging.Logger {
	return a.logger
}

// GetBean 从注册表获取 Bean
func (a *Application) GetBean(name string) (any, error) {
	return a.registry.GetBean(name)
}

// Run 启动所有托管服务并阻塞，直到 ctx 取消或某个服务失败
func (a *Application) Run(ctx context.Context) error {
	return a.host.Run(ctx)
}
