package mongodb

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/logging"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const (
	// BeanPrefix 客户端 Bean 名称前缀
	BeanPrefix = "mongodb."
	// DatabaseSuffix 数据库 Bean 名称后缀，例如 "mongodb.main.db"
	DatabaseSuffix = ".db"
	// FactoryBean 工厂 Bean 名称
	FactoryBean = "mongodb.factory"
	// DefaultBean 默认客户端的 Bean 名称
	DefaultBean = "mongodb.default"
)

// BeanName 返回客户端对应的 Bean 名称
func BeanName(client string) string {
	return BeanPrefix + client
}

// DatabaseBeanName 返回客户端默认数据库对应的 Bean 名称
func DatabaseBeanName(client string) string {
	return BeanPrefix + client + DatabaseSuffix
}

// Builder MongoDB 配置构建器
type Builder struct {
	configs     map[string]MongoOptions
	order       []string
	defaultName string
	errors      []error
}

// NewBuilder 创建构建器
func NewBuilder() *Builder {
	return &Builder{
		configs: make(map[string]MongoOptions),
	}
}

// Add 添加 MongoDB 客户端配置
func (b *Builder) Add(name string, uri string, configure func(*MongoOptions)) *Builder {
	if err := checkName(name); err != nil {
		b.errors = append(b.errors, err)
		return b
	}
	if _, exists := b.configs[name]; exists {
		b.errors = append(b.errors, fmt.Errorf("mongo client '%s' already configured", name))
		return b
	}

	opts := NewDefaultOptions(name, uri)
	if configure != nil {
		configure(opts)
	}

	if err := opts.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid mongo configuration for '%s': %w", name, err))
		return b
	}

	b.configs[name] = *opts
	b.order = append(b.order, name)
	return b
}

// UseDefault 指定作为 mongodb.default 的客户端
func (b *Builder) UseDefault(name string) *Builder {
	b.defaultName = name
	return b
}

// LoadConfig 从配置节读取客户端
//
//	mongodb:
//	  clients:
//	    main:
//	      uri: mongodb://localhost:27017
//	      database: app
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
		b.Add(name, clients.Get(name+".uri"), func(o *MongoOptions) {
			bindErr = clients.Bind(name, o)
		})
		if bindErr != nil {
			b.errors = append(b.errors, fmt.Errorf("mongo client '%s': %w", name, bindErr))
		}
	}
	return b
}

// Register 将工厂、客户端和已配置的数据库注册为延迟创建的 Bean
func (b *Builder) Register(reg *di.Registry, logger logging.Logger) (*MongoFactory, error) {
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("mongo configuration errors: %w", errors.Join(b.errors...))
	}
	if len(b.configs) == 0 {
		return nil, nil
	}

	defaultName := b.defaultName
	if defaultName != "" {
		if _, ok := b.configs[defaultName]; !ok {
			return nil, fmt.Errorf("default mongo client '%s' is not configured", defaultName)
		}
	} else if _, ok := b.configs["default"]; ok {
		defaultName = "default"
	} else if len(b.order) == 1 {
		defaultName = b.order[0]
	}
	if err := checkDefault(defaultName, b.configs); err != nil {
		return nil, err
	}

	opts := make([]MongoOptions, 0, len(b.order))
	for _, name := range b.order {
		opts = append(opts, b.configs[name])
	}
	factory := NewMongoFactory(opts...)

	di.Provide(reg, FactoryBean, func() (*MongoFactory, error) { return factory, nil })
	for _, o := range opts {
		name := o.Name
		di.Provide(reg, BeanName(name), func() (*mongo.Client, error) {
			return factory.Get(name)
		})
		if o.Database != "" {
			di.Provide(reg, DatabaseBeanName(name), func() (*mongo.Database, error) {
				return factory.Database(name)
			})
		}

		logger.Info("Mongo client registered",
			logging.Field{Key: "name", Value: name},
			logging.Field{Key: "database", Value: o.Database})
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
		return errors.New("mongo client name is required")
	case strings.Contains(name, "."):
		return fmt.Errorf("mongo client name '%s' must not contain '.'", name)
	case BeanName(name) == FactoryBean:
		return fmt.Errorf("mongo client name '%s' is reserved", name)
	}
	return nil
}

// checkDefault 名为 default 的配置只能作为默认项，否则与 mongodb.default 别名冲突
func checkDefault(defaultName string, configs map[string]MongoOptions) error {
	if _, ok := configs["default"]; ok && defaultName != "default" {
		return fmt.Errorf("mongo client 'default' conflicts with default '%s'", defaultName)
	}
	return nil
}
