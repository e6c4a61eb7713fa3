package mongodb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/beans/config"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoOptions MongoDB 客户端配置选项
type MongoOptions struct {
	Name        string          `json:"-"`
	Uri         string          `json:"uri"`
	Database    string          `json:"database"` // 非空时额外注册 *mongo.Database
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	MaxPoolSize uint64          `json:"maxPoolSize"`
	MinPoolSize uint64          `json:"minPoolSize"`
	Timeout     config.Duration `json:"timeout"`
	Ping        bool            `json:"ping"`
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string, uri string) *MongoOptions {
	return &MongoOptions{
		Name:        name,
		Uri:         uri,
		MaxPoolSize: 100,
		MinPoolSize: 5,
		Timeout:     config.Duration(10 * time.Second),
	}
}

// Validate 验证配置
func (o *MongoOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("mongo client name is required")
	}
	if o.Uri == "" {
		return fmt.Errorf("mongo uri is required")
	}
	if o.MinPoolSize > o.MaxPoolSize && o.MaxPoolSize > 0 {
		return fmt.Errorf("mongo min pool size exceeds max pool size")
	}
	return nil
}

func (o *MongoOptions) clientOptions() *options.ClientOptions {
	clientOpts := options.Client().ApplyURI(o.Uri)
	if o.Username != "" || o.Password != "" {
		clientOpts.SetAuth(options.Credential{
			Username: o.Username,
			Password: o.Password,
		})
	}
	if o.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(o.MaxPoolSize)
	}
	if o.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(o.MinPoolSize)
	}
	if o.Timeout > 0 {
		clientOpts.SetConnectTimeout(o.Timeout.Std())
	}
	return clientOpts
}

// MongoFactory 按名称创建并持有 MongoDB 客户端
type MongoFactory struct {
	options map[string]MongoOptions
	clients map[string]*mongo.Client
	mu      sync.Mutex
}

// NewMongoFactory 创建客户端工厂
func NewMongoFactory(opts ...MongoOptions) *MongoFactory {
	f := &MongoFactory{
		options: make(map[string]MongoOptions, len(opts)),
		clients: make(map[string]*mongo.Client),
	}
	for _, o := range opts {
		f.options[o.Name] = o
	}
	return f
}

// Get 获取指定名称的客户端，不存在时创建。
// 驱动在后台建立连接，只有 Ping 为 true 时才等待服务器响应。
func (f *MongoFactory) Get(name string) (*mongo.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[name]; ok {
		return client, nil
	}
	opts, ok := f.options[name]
	if !ok {
		return nil, fmt.Errorf("mongo client '%s' not configured", name)
	}

	client, err := mongo.Connect(opts.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client '%s': %w", name, err)
	}

	if opts.Ping {
		ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout.Std())
		defer cancel()

		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("failed to connect to mongo '%s': %w", name, err)
		}
	}

	f.clients[name] = client
	return client, nil
}

// Database 返回客户端配置的默认数据库
func (f *MongoFactory) Database(name string) (*mongo.Database, error) {
	client, err := f.Get(name)
	if err != nil {
		return nil, err
	}
	database := f.options[name].Database
	if database == "" {
		return nil, fmt.Errorf("mongo client '%s' has no database configured", name)
	}
	return client.Database(database), nil
}

// Close 关闭所有客户端
func (f *MongoFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for name, client := range f.clients {
		if err := client.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close client '%s': %w", name, err))
		}
	}

	f.clients = make(map[string]*mongo.Client)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing mongo clients: %v", errs)
	}
	return nil
}
