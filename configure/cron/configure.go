package cron

import (
	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/logging"
)

// Register 读取 cron 配置节并注册调度器 Bean，options 可追加代码中定义的任务
// 使用示例: cron.Register(reg, cfg, logger, func(b *cron.Builder) { b.AddJob("@every 1m", "tick", tick) })
func Register(reg *di.Registry, cfg config.Configuration, logger logging.Logger, options ...func(*Builder)) error {
	return Configure(reg, logger, append([]func(*Builder){func(b *Builder) {
		b.LoadConfig(cfg, Section)
	}}, options...)...)
}

// Starter 返回可交给 beans.ApplicationBuilder.Use 的注册函数
func Starter(options ...func(*Builder)) func(*di.Registry, config.Configuration, logging.Logger) error {
	return func(reg *di.Registry, cfg config.Configuration, logger logging.Logger) error {
		return Register(reg, cfg, logger, options...)
	}
}

// Configure 以代码方式配置调度器
func Configure(reg *di.Registry, logger logging.Logger, options ...func(*Builder)) error {
	if logger == nil {
		logger = logging.Nop()
	}
	builder := NewBuilder()
	for _, option := range options {
		option(builder)
	}
	return builder.Register(reg, logger)
}
