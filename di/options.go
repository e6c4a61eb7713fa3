package di

import (
	"fmt"

	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/logging"
)

// Option 配置 Registry。
type Option func(*Registry)

// WithLogger 设置日志记录器，默认不输出。
func WithLogger(logger logging.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger.WithCategory("beans")
		}
	}
}

// WithStrategy 设置依赖名称的推导策略。
func WithStrategy(strategy BindingStrategy) Option {
	return func(r *Registry) {
		r.strategy = strategy
	}
}

// WithTagKey 设置注入标记使用的结构体标签键，默认 "di"。
func WithTagKey(key string) Option {
	return func(r *Registry) {
		if key != "" {
			r.tagKey = key
		}
	}
}

// Settings 是 Registry 在配置文件中的形态。
//
//	beans:
//	  strategy: type
//	  tagKey: inject
type Settings struct {
	Strategy string `json:"strategy"`
	TagKey   string `json:"tagKey"`
}

// OptionsFromConfig 读取 section 配置节并转换为 Option。
// 配置节不存在时返回空列表，使用默认值。
func OptionsFromConfig(cfg config.Configuration, section string) ([]Option, error) {
	if !cfg.Exists(section) {
		return nil, nil
	}

	var settings Settings
	if err := cfg.Bind(section, &settings); err != nil {
		return nil, fmt.Errorf("di: failed to bind section '%s': %w", section, err)
	}

	strategy, err := ParseBindingStrategy(settings.Strategy)
	if err != nil {
		return nil, err
	}

	return []Option{WithStrategy(strategy), WithTagKey(settings.TagKey)}, nil
}
