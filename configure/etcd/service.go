package etcd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/beans/config"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdClientOptions etcd 客户端配置选项
type EtcdClientOptions struct {
	Name               string          `json:"-"`                  // 客户端名称
	Endpoints          []string        `json:"endpoints"`          // etcd 服务器地址列表
	DialTimeout        config.Duration `json:"dialTimeout"`        // 连接超时时间
	Username           string          `json:"username"`           // 用户名（可选）
	Password           string          `json:"password"`           // 密码（可选）
	AutoSyncInterval   config.Duration `json:"autoSyncInterval"`   // 自动同步间隔（可选）
	MaxCallSendMsgSize int             `json:"maxCallSendMsgSize"` // 最大发送消息大小（可选）
	MaxCallRecvMsgSize int             `json:"maxCallRecvMsgSize"` // 最大接收消息大小（可选）
	Ping               bool            `json:"ping"`               // 创建时检查第一个节点的状态
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *EtcdClientOptions {
	return &EtcdClientOptions{
		Name:        name,
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: config.Duration(5 * time.Second),
	}
}

// Validate 验证配置
func (o *EtcdClientOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("etcd client name is required")
	}
	if len(o.Endpoints) == 0 {
		return fmt.Errorf("etcd endpoints are required")
	}
	if o.DialTimeout <= 0 {
		return fmt.Errorf("etcd dial timeout must be positive")
	}
	return nil
}

func (o *EtcdClientOptions) clientConfig() clientv3.Config {
	cfg := clientv3.Config{
		Endpoints:   o.Endpoints,
		DialTimeout: o.DialTimeout.Std(),
	}

	// 设置认证信息
	if o.Username != "" {
		cfg.Username = o.Username
		cfg.Password = o.Password
	}
	if o.AutoSyncInterval > 0 {
		cfg.AutoSyncInterval = o.AutoSyncInterval.Std()
	}

	// 设置消息大小限制
	if o.MaxCallSendMsgSize > 0 {
		cfg.MaxCallSendMsgSize = o.MaxCallSendMsgSize
	}
	if o.MaxCallRecvMsgSize > 0 {
		cfg.MaxCallRecvMsgSize = o.MaxCallRecvMsgSize
	}
	return cfg
}

// EtcdClientFactory 按名称创建并持有 etcd 客户端
type EtcdClientFactory struct {
	options map[string]EtcdClientOptions
	clients map[string]*clientv3.Client
	mu      sync.Mutex
}

// NewEtcdClientFactory 创建客户端工厂
func NewEtcdClientFactory(opts ...EtcdClientOptions) *EtcdClientFactory {
	f := &EtcdClientFactory{
		options: make(map[string]EtcdClientOptions, len(opts)),
		clients: make(map[string]*clientv3.Client),
	}
	for _, o := range opts {
		f.options[o.Name] = o
	}
	return f
}

// Get 获取指定名称的客户端，不存在时创建
func (f *EtcdClientFactory) Get(name string) (*clientv3.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[name]; ok {
		return client, nil
	}
	opts, ok := f.options[name]
	if !ok {
		return nil, fmt.Errorf("etcd client '%s' not configured", name)
	}

	client, err := clientv3.New(opts.clientConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client '%s': %w", name, err)
	}

	if opts.Ping {
		ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout.Std())
		defer cancel()

		if _, err := client.Status(ctx, opts.Endpoints[0]); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to etcd '%s': %w", name, err)
		}
	}

	f.clients[name] = client
	return client, nil
}

// Close 关闭所有 etcd 客户端
func (f *EtcdClientFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for name, client := range f.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close client '%s': %w", name, err))
		}
	}

	// 清空客户端列表
	f.clients = make(map[string]*clientv3.Client)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing etcd clients: %v", errs)
	}

	return nil
}
