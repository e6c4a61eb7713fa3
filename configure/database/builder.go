package database

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/logging"
	"gorm.io/gorm"
)

const (
	// BeanPrefix 数据库 Bean 名称前缀，数据库 master 注册为 "database.master"
	BeanPrefix = "database."
	// FactoryBean 工厂 Bean 名称
	FactoryBean = "database.factory"
	// DefaultBean 默认数据库的 Bean 名称
	DefaultBean = "database.default"
)

// BeanName 返回数据库对应的 Bean 名称
func BeanName(name string) string {
	return BeanPrefix + name
}

// Builder 数据库配置构建器
type Builder struct {
	configs     map[string]DatabaseOptions
	order       []string
	defaultName string
	errors      []error
}

// NewBuilder 创建构建器
func NewBuilder() *Builder {
	return &Builder{
		configs: make(map[string]DatabaseOptions),
	}
}

// Add 添加数据库。dialector 为 nil 时根据 Driver/DSN 创建
func (b *Builder) Add(name string, dialector gorm.Dialector, configure func(*DatabaseOptions)) *Builder {
	if err := checkName(name); err != nil {
		b.errors = append(b.errors, err)
		return b
	}
	if _, exists := b.configs[name]; exists {
		b.errors = append(b.errors, fmt.Errorf("database '%s' already configured", name))
		return b
	}

	opts := NewDefaultOptions(name, dialector)
	if configure != nil {
		configure(opts)
	}

	if err := opts.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid database configuration for '%s': %w", name, err))
		return b
	}

	b.configs[name] = *opts
	b.order = append(b.order, name)
	return b
}

// UseDefault 指定作为 database.default 的数据库
func (b *Builder) UseDefault(name string) *Builder {
	b.defaultName = name
	return b
}

// LoadConfig 从配置节读取数据库。
// migrate 中的模型会迁移到每个从配置加载的数据库。
//
//	database:
//	  default: master
//	  connections:
//	    master:
//	      driver: sqlite
//	      dsn: file:app.db
//	      maxOpenConns: 5
func (b *Builder) LoadConfig(cfg config.Configuration, section string, migrate ...any) *Builder {
	if !cfg.Exists(section) {
		return b
	}
	sec := cfg.GetSection(section)
	if name := sec.Get("default"); name != "" {
		b.UseDefault(name)
	}

	conns := sec.GetSection("connections")
	names := make([]string, 0)
	for name := range conns.GetAll() {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var bindErr error
		b.Add(name, nil, func(o *DatabaseOptions) {
			bindErr = conns.Bind(name, o)
			o.AutoMigrate = append(o.AutoMigrate, migrate...)
		})
		if bindErr != nil {
			b.errors = append(b.errors, fmt.Errorf("database '%s': %w", name, bindErr))
		}
	}
	return b
}

// Register 将工厂和每个数据库注册为延迟打开的 Bean
func (b *Builder) Register(reg *di.Registry, logger logging.Logger) (*DatabaseFactory, error) {
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("database configuration errors: %w", errors.Join(b.errors...))
	}
	if len(b.configs) == 0 {
		return nil, nil
	}

	defaultName := b.defaultName
	if defaultName != "" {
		if _, ok := b.configs[defaultName]; !ok {
			return nil, fmt.Errorf("default database '%s' is not configured", defaultName)
		}
	} else if _, ok := b.configs["default"]; ok {
		defaultName = "default"
	} else if len(b.order) == 1 {
		defaultName = b.order[0]
	}
	if err := checkDefault(defaultName, b.configs); err != nil {
		return nil, err
	}

	opts := make([]DatabaseOptions, 0, len(b.order))
	for _, name := range b.order {
		opts = append(opts, b.configs[name])
	}
	factory := NewDatabaseFactory(logger.WithCategory("database"), opts...)

	di.Provide(reg, FactoryBean, func() (*DatabaseFactory, error) { return factory, nil })
	for _, o := range opts {
		name := o.Name
		di.Provide(reg, BeanName(name), func() (*gorm.DB, error) {
			return factory.Get(name)
		})

		logger.Info("Database registered",
			logging.Field{Key: "name", Value: name},
			logging.Field{Key: "dialect", Value: o.Dialector.Name()})
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
		return errors.New("database name is required")
	case strings.Contains(name, "."):
		return fmt.Errorf("database name '%s' must not contain '.'", name)
	case BeanName(name) == FactoryBean:
		return fmt.Errorf("database name '%s' is reserved", name)
	}
	return nil
}

// checkDefault 名为 default 的配置只能作为默认项，否则与 database.default 别名冲突
func checkDefault(defaultName string, configs map[string]DatabaseOptions) error {
	if _, ok := configs["default"]; ok && defaultName != "default" {
		return fmt.Errorf("database 'default' conflicts with default '%s'", defaultName)
	}
	return nil
}
