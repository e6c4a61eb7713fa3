package config

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Configuration 只读的分层配置，键路径使用 ":" 或 "." 分隔
type Configuration interface {
	// Get 返回键对应的值的字符串形式，不存在时返回空串
	Get(key string) string
	// GetInt 返回整数值
	GetInt(key string) (int, error)
	// GetSection 返回子配置节，不存在时为空配置
	GetSection(key string) Configuration
	// Bind 将配置节绑定到结构体，key 为空时绑定全部配置
	Bind(key string, target any) error
	// GetAll 返回全部配置的副本
	GetAll() map[string]any
	// Exists 报告 key 是否存在
	Exists(key string) bool
}

// ConfigurationSource 配置源，Build 时按添加顺序加载，后加载的覆盖先加载的
type ConfigurationSource interface {
	Load() (map[string]any, error)
	Name() string
}

// ConfigurationBuilder 配置构建器
//
//	cfg, err := config.NewConfigurationBuilder().
//		AddYamlFile("beans.yaml", true).
//		AddEnvironmentVariables("BEANS_").
//		Build()
type ConfigurationBuilder struct {
	sources []ConfigurationSource
}

// NewConfigurationBuilder 创建配置构建器
func NewConfigurationBuilder() *ConfigurationBuilder {
	return &ConfigurationBuilder{}
}

// Add 添加配置源
func (b *ConfigurationBuilder) Add(source ConfigurationSource) *ConfigurationBuilder {
	b.sources = append(b.sources, source)
	return b
}

// Build 加载全部配置源并合并
func (b *ConfigurationBuilder) Build() (Configuration, error) {
	merged := make(map[string]any)
	for _, source := range b.sources {
		data, err := source.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load config source %s: %w", source.Name(), err)
		}
		mergeMaps(merged, data)
	}
	return newConfiguration(merged), nil
}

type configuration struct {
	store *ValueStore
}

func newConfiguration(data map[string]any) *configuration {
	store := NewValueStore()
	store.Store(data)
	return &configuration{store: store}
}

func (c *configuration) Get(key string) string {
	switch v := c.lookup(key).(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func (c *configuration) GetInt(key string) (int, error) {
	switch v := c.lookup(key).(type) {
	case nil:
		return 0, fmt.Errorf("key %s not found", key)
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("key %s: cannot convert %T to int", key, v)
	}
}

func (c *configuration) GetSection(key string) Configuration {
	m, _ := c.lookup(key).(map[string]any)
	return newConfiguration(m)
}

func (c *configuration) Bind(key string, target any) error {
	data := c.lookup(key)
	if data == nil {
		return fmt.Errorf("key %s not found", key)
	}

	// 经由 JSON 绑定，目标结构体使用 json 标签
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to bind %s: %w", key, err)
	}
	return nil
}

func (c *configuration) GetAll() map[string]any {
	result := make(map[string]any)
	mergeMaps(result, c.store.Load())
	return result
}

func (c *configuration) Exists(key string) bool {
	return c.lookup(key) != nil
}

// lookup 按路径查找值，key 为空时返回整个快照
func (c *configuration) lookup(key string) any {
	var current any = c.store.Load()
	for _, part := range globalPathCache.GetPathSegments(key) {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

// mergeMaps 将 src 合并进 dst，嵌套 map 总是复制，dst 不与 src 共享可变状态
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		srcMap, isMap := v.(map[string]any)
		if !isMap {
			dst[k] = v
			continue
		}
		dstMap, ok := dst[k].(map[string]any)
		if !ok {
			dstMap = make(map[string]any, len(srcMap))
			dst[k] = dstMap
		}
		mergeMaps(dstMap, srcMap)
	}
}

// setPath 沿 parts 创建中间节点并写入 value，路径被标量占用时放弃
func setPath(data map[string]any, parts []string, value any) {
	if len(parts) == 0 {
		return
	}
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, exists := current[part]
		if !exists {
			m := make(map[string]any)
			current[part] = m
			current = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return
		}
		current = m
	}

	last := parts[len(parts)-1]
	if m, ok := value.(map[string]any); ok {
		if existing, ok := current[last].(map[string]any); ok {
			mergeMaps(existing, m)
			return
		}
	}
	current[last] = value
}
