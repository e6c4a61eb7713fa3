package database

import (
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/logging"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DatabaseOptions 数据库配置选项
type DatabaseOptions struct {
	Name         string          `json:"-"`
	Driver       string          `json:"driver"` // 配置文件中使用，目前支持 sqlite
	DSN          string          `json:"dsn"`
	MaxIdleConns int             `json:"maxIdleConns"`
	MaxOpenConns int             `json:"maxOpenConns"`
	MaxLifetime  config.Duration `json:"maxLifetime"`
	SlowQuery    config.Duration `json:"slowQuery"` // 超过该时长的 SQL 以 WARN 输出
	LogSQL       bool            `json:"logSql"`    // 以 DEBUG 输出所有 SQL

	Dialector   gorm.Dialector `json:"-"` // 代码配置时直接指定，优先于 Driver/DSN
	GormConfig  *gorm.Config   `json:"-"`
	AutoMigrate []any          `json:"-"` // 需要自动迁移的模型
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string, dialector gorm.Dialector) *DatabaseOptions {
	return &DatabaseOptions{
		Name:         name,
		Dialector:    dialector,
		MaxIdleConns: 10,
		MaxOpenConns: 100,
		MaxLifetime:  config.Duration(time.Hour),
		SlowQuery:    config.Duration(200 * time.Millisecond),
	}
}

// Validate 验证配置，并在未指定 Dialector 时根据 Driver/DSN 创建
func (o *DatabaseOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if o.Dialector != nil {
		return nil
	}
	switch o.Driver {
	case "", "sqlite":
		if o.DSN == "" {
			return fmt.Errorf("database dialector or dsn is required")
		}
		o.Dialector = sqlite.Open(o.DSN)
		return nil
	default:
		return fmt.Errorf("unsupported database driver %q", o.Driver)
	}
}

// DatabaseFactory 按名称打开并持有数据库连接
type DatabaseFactory struct {
	options map[string]DatabaseOptions
	dbs     map[string]*gorm.DB
	logger  logging.Logger
	mu      sync.Mutex
}

// NewDatabaseFactory 创建数据库工厂，SQL 日志输出到 logger
func NewDatabaseFactory(logger logging.Logger, opts ...DatabaseOptions) *DatabaseFactory {
	if logger == nil {
		logger = logging.Nop()
	}
	f := &DatabaseFactory{
		options: make(map[string]DatabaseOptions, len(opts)),
		dbs:     make(map[string]*gorm.DB),
		logger:  logger,
	}
	for _, o := range opts {
		f.options[o.Name] = o
	}
	return f
}

// Get 获取数据库实例，首次调用时打开连接并执行迁移
func (f *DatabaseFactory) Get(name string) (*gorm.DB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if db, ok := f.dbs[name]; ok {
		return db, nil
	}
	opts, ok := f.options[name]
	if !ok {
		return nil, fmt.Errorf("database '%s' not configured", name)
	}

	gormConfig := &gorm.Config{}
	if opts.GormConfig != nil {
		c := *opts.GormConfig
		gormConfig = &c
	}
	if gormConfig.Logger == nil {
		gormConfig.Logger = newGormLogger(f.logger.WithFields(logging.Field{Key: "database", Value: name}), opts)
	}

	// 打开数据库连接
	db, err := gorm.Open(opts.Dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database '%s': %w", name, err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB for '%s': %w", name, err)
	}

	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.MaxLifetime.Std())

	// 执行自动迁移
	if len(opts.AutoMigrate) > 0 {
		if err := db.AutoMigrate(opts.AutoMigrate...); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("auto migrate failed for '%s': %w", name, err)
		}
	}

	f.dbs[name] = db
	return db, nil
}

// Close 关闭所有数据库连接
func (f *DatabaseFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for name, db := range f.dbs {
		sqlDB, err := db.DB()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to get sql.DB for '%s': %w", name, err))
			continue
		}
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database '%s': %w", name, err))
		}
	}

	f.dbs = make(map[string]*gorm.DB)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing databases: %v", errs)
	}
	return nil
}
