package redis

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/logging"
	"github.com/redis/go-redis/v9"
)

const (
	// BeanPrefix 客户端 Bean 名称前缀，客户端 cache 注册为 "redis.cache"
	BeanPrefix = "redis."
	// FactoryBean 工厂 Bean 名称
	FactoryBean = "redis.factory"
	// DefaultBean 默认客户端的 Bean 名称
	DefaultBean = "redis.default"
)

// BeanName 返回客户端对应的 Bean 名称
func BeanName(client string) string {
	return BeanPrefix + client
}

// Builder Redis 客户端配置构建器
type Builder struct {
	configs     map[string]RedisClientOptions
	order       []string
	defaultName string
	errors      []error
}

// NewBuilder 创建 Redis 构建器
func NewBuilder() *Builder {
	return &Builder{
		configs: make(map[string]RedisClientOptions),
	}
}

// AddClient 添加一个 Redis 客户端配置
func (b *Builder) AddClient(name string, configure func(*RedisClientOptions)) *Builder {
	if err := checkName(name); err != nil {
		b.errors = append(b.errors, err)
		return b
	}
	if _, exists := b.configs[name]; exists {
		b.errors = append(b.errors, fmt.Errorf("redis client '%s' already configured", name))
		return b
	}

	// 创建默认配置
	opts := NewDefaultOptions(name)

	// 应用用户配置
	if configure != nil {
		configure(opts)
	}

	// 验证配置
	if err := opts.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid redis configuration for '%s': %w", name, err))
		return b
	}

	b.configs[name] = *opts
	b.order = append(b.order, name)
	return b
}

// UseDefault 指定作为 redis.default 的客户端
func (b *Builder) UseDefault(name string) *Builder {
	b.defaultName = name
	return b
}

// LoadConfig 从配置节读取客户端
//
//	redis:
//	  default: cache
//	  clients:
//	    cache:
//	      addr: localhost:6379
//	      dialTimeout: 2s
func (b *Builder) LoadConfig(cfg config.Configuration, section string) *Builder {
	if !cfg.Exists(section) {
		return b
	}
	sec := cfg.GetSection(section)
	if name := sec.Get("default"); name != "" {
		b.UseDefault(name)
	}

	clients := sec.GetSection("clients")
	names := make([]string, 0)
	for name := range clients.GetAll() {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var bindErr error
		b.AddClient(name, func(o *RedisClientOptions) {
			bindErr = clients.Bind(name, o)
		})
		if bindErr != nil {
			b.errors = append(b.errors, fmt.Errorf("redis client '%s': %w", name, bindErr))
		}
	}
	return b
}

// Register 将工厂和每个客户端注册为延迟创建的 Bean。
// 注册阶段不会建立任何连接。
func (b *Builder) Register(reg *di.Registry, logger logging.Logger) (*RedisClientFactory, error) {
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("redis configuration errors: %w", errors.Join(b.errors...))
	}
	if len(b.configs) == 0 {
		return nil, nil // 没有配置任何 Redis 客户端
	}

	defaultName, err := pickDefault(b.defaultName, b.order, b.configs)
	if err != nil {
		return nil, err
	}
	if err := checkDefault(defaultName, b.configs); err != nil {
		return nil, err
	}

	opts := make([]RedisClientOptions, 0, len(b.order))
	for _, name := range b.order {
		opts = append(opts, b.configs[name])
	}
	factory := NewRedisClientFactory(opts...)

	di.Provide(reg, FactoryBean, func() (*RedisClientFactory, error) { return factory, nil })
	for _, o := range opts {
		name := o.Name
		di.Provide(reg, BeanName(name), func() (*redis.Client, error) {
			return factory.Get(name)
		})

		logger.Info("redis client registered",
			logging.Field{Key: "name", Value: name},
			logging.Field{Key: "addr", Value: o.Addr},
			logging.Field{Key: "db", Value: o.DB})
	}

	if defaultName != "" && BeanName(defaultName) != DefaultBean {
		di.Alias(reg, DefaultBean, BeanName(defaultName))
	}
	return factory, nil
}

// pickDefault 决定默认客户端：显式指定优先，其次是唯一的客户端
func pickDefault(explicit string, order []string, configs map[string]RedisClientOptions) (string, error) {
	if explicit != "" {
		if _, ok := configs[explicit]; !ok {
			return "", fmt.Errorf("default redis client '%s' is not configured", explicit)
		}
		return explicit, nil
	}
	if _, ok := configs["default"]; ok {
		return "default", nil
	}
	if len(order) == 1 {
		return order[0], nil
	}
	return "", nil
}

// checkName 拒绝空名称、含 "." 的名称和与工厂 Bean 冲突的名称
func checkName(name string) error {
	switch {
	case name == "":
		return errors.New("redis client name is required")
	case strings.Contains(name, "."):
		return fmt.Errorf("redis client name '%s' must not contain '.'", name)
	case BeanName(name) == FactoryBean:
		return fmt.Errorf("redis client name '%s' is reserved", name)
	}
	return nil
}

// checkDefault 名为 default 的配置只能作为默认项，否则与 redis.default 别名冲突
func checkDefault(defaultName string, configs map[string]RedisClientOptions) error {
	if _, ok := configs["default"]; ok && defaultName != "default" {
		return fmt.Errorf("redis client 'default' conflicts with default '%s'", defaultName)
	}
	return nil
}
