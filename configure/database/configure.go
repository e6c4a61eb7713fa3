package database

import (
	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/logging"
)

// Section 默认配置节
const Section = "database"

// Register 读取 database 配置节并注册数据库 Bean，migrate 为需要自动迁移的模型
func Register(reg *di.Registry, cfg config.Configuration, logger logging.Logger, migrate ...any) error {
	return Configure(reg, logger, func(b *Builder) {
		b.LoadConfig(cfg, Section, migrate...)
	})
}

// Starter 返回可交给 beans.ApplicationBuilder.Use 的注册函数
func Starter(migrate ...any) func(*di.Registry, config.Configuration, logging.Logger) error {
	return func(reg *di.Registry, cfg config.Configuration, logger logging.Logger) error {
		return Register(reg, cfg, logger, migrate...)
	}
}

// Configure 以代码方式配置数据库
func Configure(reg *di.Registry, logger logging.Logger, options func(*Builder)) error {
	if logger == nil {
		logger = logging.Nop()
	}
	builder := NewBuilder()
	if options != nil {
		options(builder)
	}

	_, err := builder.Register(reg, logger)
	return err
}
