package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/beans/config"
	"github.com/redis/go-redis/v9"
)

// RedisClientOptions Redis 客户端配置选项
type RedisClientOptions struct {
	Name         string          `json:"-"`            // 客户端名称
	Addr         string          `json:"addr"`         // Redis 服务器地址 (host:port)
	Password     string          `json:"password"`     // 密码（可选）
	DB           int             `json:"db"`           // 数据库编号
	DialTimeout  config.Duration `json:"dialTimeout"`  // 连接超时时间
	ReadTimeout  config.Duration `json:"readTimeout"`  // 读取超时时间
	WriteTimeout config.Duration `json:"writeTimeout"` // 写入超时时间
	PoolSize     int             `json:"poolSize"`     // 连接池大小
	MinIdleConns int             `json:"minIdleConns"` // 最小空闲连接数
	MaxRetries   int             `json:"maxRetries"`   // 最大重试次数
	Ping         bool            `json:"ping"`         // 创建时检查连接
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *RedisClientOptions {
	return &RedisClientOptions{
		Name:         name,
		Addr:         "localhost:6379",
		DB:           0,
		DialTimeout:  config.Duration(5 * time.Second),
		ReadTimeout:  config.Duration(3 * time.Second),
		WriteTimeout: config.Duration(3 * time.Second),
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	}
}

// Validate 验证配置
func (o *RedisClientOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("redis client name is required")
	}
	if o.Addr == "" {
		return fmt.Errorf("redis address is required")
	}
	if o.DB < 0 {
		return fmt.Errorf("redis database number must be non-negative")
	}
	if o.DialTimeout <= 0 {
		return fmt.Errorf("redis dial timeout must be positive")
	}
	return nil
}

// RedisClientFactory 按名称创建并持有 Redis 客户端。
// 客户端在首次 Get 时创建，供 Bean 工厂调用。
type RedisClientFactory struct {
	options map[string]RedisClientOptions
	clients map[string]*redis.Client
	mu      sync.Mutex
}

// NewRedisClientFactory 创建客户端工厂
func NewRedisClientFactory(opts ...RedisClientOptions) *RedisClientFactory {
	f := &RedisClientFactory{
		options: make(map[string]RedisClientOptions, len(opts)),
		clients: make(map[string]*redis.Client),
	}
	for _, o := range opts {
		f.options[o.Name] = o
	}
	return f
}

// Get 获取指定名称的 Redis 客户端，不存在时创建
func (f *RedisClientFactory) Get(name string) (*redis.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[name]; ok {
		return client, nil
	}
	opts, ok := f.options[name]
	if !ok {
		return nil, fmt.Errorf("redis client '%s' not configured", name)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout.Std(),
		ReadTimeout:  opts.ReadTimeout.Std(),
		WriteTimeout: opts.WriteTimeout.Std(),
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		MaxRetries:   opts.MaxRetries,
	})

	if opts.Ping {
		ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout.Std())
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis '%s': %w", name, err)
		}
	}

	f.clients[name] = client
	return client, nil
}

// Names 返回已配置的客户端名称
func (f *RedisClientFactory) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.options))
	for name := range f.options {
		names = append(names, name)
	}
	return names
}

// Close 关闭所有已创建的 Redis 客户端
func (f *RedisClientFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for name, client := range f.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close client '%s': %w", name, err))
		}
	}

	// 清空客户端列表
	f.clients = make(map[string]*redis.Client)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing redis clients: %v", errs)
	}

	return nil
}
