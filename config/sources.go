package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"gopkg.in/yaml.v3"
)

// FileSource 文件配置源，Format 为空时按扩展名识别（.json 为 JSON，其余为 YAML）
type FileSource struct {
	Path     string
	Format   string
	Optional bool
}

// AddFile 添加文件配置源，格式按扩展名识别
func (b *ConfigurationBuilder) AddFile(path string, optional ...bool) *ConfigurationBuilder {
	return b.Add(&FileSource{Path: path, Optional: len(optional) > 0 && optional[0]})
}

// AddJsonFile 添加 JSON 文件配置源
func (b *ConfigurationBuilder) AddJsonFile(path string, optional ...bool) *ConfigurationBuilder {
	return b.Add(&FileSource{Path: path, Format: "json", Optional: len(optional) > 0 && optional[0]})
}

// AddYamlFile 添加 YAML 文件配置源
func (b *ConfigurationBuilder) AddYamlFile(path string, optional ...bool) *ConfigurationBuilder {
	return b.Add(&FileSource{Path: path, Format: "yaml", Optional: len(optional) > 0 && optional[0]})
}

func (s *FileSource) format() string {
	if s.Format != "" {
		return strings.ToLower(s.Format)
	}
	if strings.EqualFold(filepath.Ext(s.Path), ".json") {
		return "json"
	}
	return "yaml"
}

func (s *FileSource) Name() string {
	return fmt.Sprintf("%sFile(%s)", s.format(), s.Path)
}

func (s *FileSource) Load() (map[string]any, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if s.Optional && errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	result := map[string]any{}
	switch s.format() {
	case "json":
		err = json.Unmarshal(data, &result)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &result)
	default:
		return nil, fmt.Errorf("unsupported config format %q", s.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.Path, err)
	}
	return result, nil
}

// EnvironmentVariableSource 环境变量配置源。
// 去掉 Prefix 后转为小写，"_" 作为层级分隔：BEANS_WEB_PORT=8080 得到 web:port = 8080。
type EnvironmentVariableSource struct {
	Prefix string
}

// AddEnvironmentVariables 添加环境变量配置源
func (b *ConfigurationBuilder) AddEnvironmentVariables(prefix string) *ConfigurationBuilder {
	return b.Add(&EnvironmentVariableSource{Prefix: prefix})
}

func (s *EnvironmentVariableSource) Name() string {
	return fmt.Sprintf("EnvironmentVariables(%s)", s.Prefix)
}

func (s *EnvironmentVariableSource) Load() (map[string]any, error) {
	result := make(map[string]any)
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		key, ok = strings.CutPrefix(key, s.Prefix)
		if !ok || key == "" {
			continue
		}
		parts := strings.FieldsFunc(strings.ToLower(key), func(r rune) bool { return r == '_' })
		setPath(result, parts, parseScalar(value))
	}
	return result, nil
}

// parseScalar 将字符串转换为整数、浮点数或布尔值，均不匹配时保持原样
func parseScalar(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// InMemorySource 内存配置源
type InMemorySource struct {
	Data map[string]any
}

// AddInMemory 添加内存配置源
func (b *ConfigurationBuilder) AddInMemory(data map[string]any) *ConfigurationBuilder {
	return b.Add(&InMemorySource{Data: data})
}

func (s *InMemorySource) Name() string {
	return "InMemory"
}

func (s *InMemorySource) Load() (map[string]any, error) {
	result := make(map[string]any)
	mergeMaps(result, s.Data)
	return result, nil
}

// EtcdOptions etcd 配置源选项
type EtcdOptions struct {
	Endpoints   []string
	Username    string
	Password    string
	Prefix      string        // 键前缀，为空时读取全部键
	Timeout     time.Duration // 读取超时，默认 5 秒
	DialTimeout time.Duration // 拨号超时，默认 5 秒
}

// EtcdSource etcd 配置源。
// 键按 "/" 分层：<prefix>/web/port = 8080 得到 web:port；值按 YAML 解析（兼容 JSON），失败时作为字符串。
// KV 不为空时直接使用，否则按 Options 创建临时客户端。
type EtcdSource struct {
	Options EtcdOptions
	KV      clientv3.KV
}

// AddEtcd 添加 etcd 配置源
func (b *ConfigurationBuilder) AddEtcd(opts EtcdOptions) *ConfigurationBuilder {
	return b.Add(&EtcdSource{Options: opts})
}

// AddEtcdKV 使用已有的 etcd 客户端添加配置源
func (b *ConfigurationBuilder) AddEtcdKV(kv clientv3.KV, prefix string) *ConfigurationBuilder {
	return b.Add(&EtcdSource{Options: EtcdOptions{Prefix: prefix}, KV: kv})
}

func (s *EtcdSource) Name() string {
	if s.KV != nil {
		return fmt.Sprintf("Etcd(%s)", s.Options.Prefix)
	}
	return fmt.Sprintf("Etcd(%v)", s.Options.Endpoints)
}

func (s *EtcdSource) Load() (map[string]any, error) {
	timeout := s.Options.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	kv := s.KV
	if kv == nil {
		dialTimeout := s.Options.DialTimeout
		if dialTimeout == 0 {
			dialTimeout = 5 * time.Second
		}
		cli, err := clientv3.New(clientv3.Config{
			Endpoints:   s.Options.Endpoints,
			Username:    s.Options.Username,
			Password:    s.Options.Password,
			DialTimeout: dialTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create etcd client: %w", err)
		}
		defer cli.Close()
		kv = cli
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	prefix := s.Options.Prefix
	if prefix == "" {
		prefix = "/"
	}
	resp, err := kv.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to get config from etcd: %w", err)
	}

	result := make(map[string]any)
	for _, item := range resp.Kvs {
		key := strings.TrimPrefix(string(item.Key), s.Options.Prefix)
		parts := strings.FieldsFunc(key, func(r rune) bool { return r == '/' })
		if len(parts) == 0 {
			continue
		}
		setPath(result, parts, decodeEtcdValue(item.Value))
	}
	return result, nil
}

func decodeEtcdValue(raw []byte) any {
	var value any
	if err := yaml.Unmarshal(raw, &value); err != nil || value == nil {
		return string(raw)
	}
	return value
}
