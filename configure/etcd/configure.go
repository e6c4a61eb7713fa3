package etcd

import (
	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/logging"
)

// Section 默认配置节
const Section = "etcd"

// Register 读取 etcd 配置节并注册客户端 Bean
func Register(reg *di.Registry, cfg config.Configuration, logger logging.Logger) error {
	return Configure(reg, logger, func(b *Builder) {
		b.LoadConfig(cfg, Section)
	})
}

// Configure 以代码方式配置客户端
// 使用示例: etcd.Configure(reg, logger, func(b *etcd.Builder) { b.AddClient("master", nil) })
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
