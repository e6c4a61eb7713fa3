package etcd

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/logging"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	// BeanPrefix 客户端 Bean 名称前缀
	BeanPrefix = "etcd."
	// FactoryBean 工厂 Bean 名称
	FactoryBean = "etcd.factory"
	// DefaultBean 默认客户端的 Bean 名称
	DefaultBean = "etcd.default"
)

// BeanName 返回客户端对应的 Bean 名称
func BeanName(client string) string {
	return BeanPrefix + client
}

// Builder Etcd 客户端配置构建器
type Builder struct {
	configs     map[string]EtcdClientOptions
	order       []string
	defaultName string
	errors      []error
}

// NewBuilder 创建 Etcd 构建器
func NewBuilder() *Builder {
	return &Builder{
		configs: make(map[string]EtcdClientOptions),
	}
}

// AddClient 添加一个 etcd 客户端配置
func (b *Builder) AddClient(name string, configure func(*EtcdClientOptions)) *Builder {
	if err := checkName(name); err != nil {
		b.errors = append(b.errors, err)
		return b
	}
	// 检查名称冲突
	if _, exists := b.configs[name]; exists {
		b.errors = append(b.errors, fmt.Errorf("etcd client '%s' already configured", name))
		return b
	}

	opts := NewDefaultOptions(name)
	if configure != nil {
		configure(opts)
	}

	if err := opts.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid etcd configuration for '%s': %w", name, err))
		return b
	}

	b.configs[name] = *opts
	b.order = append(b.order, name)
	return b
}

// UseDefault 指定作为 etcd.default 的客户端
func (b *Builder) UseDefault(name string) *Builder {
	b.defaultName = name
	return b
}

// LoadConfig 从配置节读取客户端
//
//	etcd:
//	  clients:
//	    master:
//	      endpoints: [localhost:2379]
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
		b.AddClient(name, func(o *EtcdClientOptions) {
			bindErr = clients.Bind(name, o)
		})
		if bindErr != nil {
			b.errors = append(b.errors, fmt.Errorf("etcd client '%s': %w", name, bindErr))
		}
	}
	return b
}

// Register 将工厂和每个客户端注册为延迟创建的 Bean
func (b *Builder) Register(reg *di.Registry, logger logging.Logger) (*EtcdClientFactory, error) {
	// 检查是否有配置错误
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("etcd configuration errors: %w", errors.Join(b.errors...))
	}
	if len(b.configs) == 0 {
		return nil, nil // 没有配置任何 etcd 客户端
	}

	defaultName := b.defaultName
	if defaultName != "" {
		if _, ok := b.configs[defaultName]; !ok {
			return nil, fmt.Errorf("default etcd client '%s' is not configured", defaultName)
		}
	} else if _, ok := b.configs["default"]; ok {
		defaultName = "default"
	} else if len(b.order) == 1 {
		defaultName = b.order[0]
	}
	if err := checkDefault(defaultName, b.configs); err != nil {
		return nil, err
	}

	opts := make([]EtcdClientOptions, 0, len(b.order))
	for _, name := range b.order {
		opts = append(opts, b.configs[name])
	}
	factory := NewEtcdClientFactory(opts...)

	di.Provide(reg, FactoryBean, func() (*EtcdClientFactory, error) { return factory, nil })
	for _, o := range opts {
		name := o.Name
		di.Provide(reg, BeanName(name), func() (*clientv3.Client, error) {
			return factory.Get(name)
		})

		logger.Info("etcd client registered",
			logging.Field{Key: "name", Value: name},
			logging.Field{Key: "endpoints", Value: fmt.Sprintf("%v", o.Endpoints)})
	}

	if defaultName != "" && BeanName(defaultName) != DefaultBean {
		di.Alias(reg, DefaultBean, BeanName(defaultName))
	}
	return factory, nil
}

// checkName 拒绝空名称、含 "." 的名称和与工厂 Bean 冲突的名称
func checkName(name string) error {
	switch {
	case name == "":
		return errors.New("etcd client name is required")
	case strings.Contains(name, "."):
		return fmt.Errorf("etcd client name '%s' must not contain '.'", name)
	case BeanName(name) == FactoryBean:
		return fmt.Errorf("etcd client name '%s' is reserved", name)
	}
	return nil
}

// checkDefault 名为 default 的配置只能作为默认项，否则与 etcd.default 别名冲突
func checkDefault(defaultName string, configs map[string]EtcdClientOptions) error {
	if _, ok := configs["default"]; ok && defaultName != "default" {
		return fmt.Errorf("etcd client 'default' conflicts with default '%s'", defaultName)
	}
	return nil
}
