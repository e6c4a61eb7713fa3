package logging

import (
	"fmt"
	"os"
	"sync"

	"github.com/gocrud/beans/config"
)

// LoggingBuilder 日志构建器
type LoggingBuilder struct {
	providers    []LoggerProvider
	minimumLevel LogLevel
	mu           sync.RWMutex
}

// NewLoggingBuilder 创建日志构建器
func NewLoggingBuilder() *LoggingBuilder {
	return &LoggingBuilder{
		providers:    make([]LoggerProvider, 0),
		minimumLevel: LogLevelInfo,
	}
}

// SetMinimumLevel 设置最小日志级别
func (b *LoggingBuilder) SetMinimumLevel(level LogLevel) *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.minimumLevel = level
	return b
}

// AddProvider 添加日志提供者
func (b *LoggingBuilder) AddProvider(provider LoggerProvider) *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	provider.SetMinimumLevel(b.minimumLevel)
	b.providers = append(b.providers, provider)
	return b
}

// AddConsole 添加控制台日志（默认彩色文本格式）
func (b *LoggingBuilder) AddConsole(options ...ConsoleLoggerOptions) *LoggingBuilder {
	formatter := NewTextFormatter()
	formatter.ColorOutput = true
	opts := ConsoleLoggerOptions{
		Formatter: formatter,
		Output:    os.Stdout,
	}
	if len(options) > 0 {
		opts = options[0]
	}
	return b.AddProvider(NewConsoleLoggerProvider(opts))
}

// AddJsonConsole 添加 JSON 格式的控制台日志
func (b *LoggingBuilder) AddJsonConsole() *LoggingBuilder {
	return b.AddProvider(NewConsoleLoggerProvider(ConsoleLoggerOptions{
		Formatter: NewJsonFormatter(),
		Output:    os.Stdout,
	}))
}

// Build 构建日志工厂
func (b *LoggingBuilder) Build() LoggerFactory {
	b.mu.RLock()
	defer b.mu.RUnlock()

	factory := &loggerFactory{
		providers:    make([]LoggerProvider, 0),
		minimumLevel: b.minimumLevel,
	}

	for _, provider := range b.providers {
		factory.AddProvider(provider)
	}

	return factory
}

// Settings 日志配置节
//
//	logging:
//	  level: debug
//	  format: json
type Settings struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Color  bool   `json:"color"`
}

// FromConfig 根据配置节构建日志工厂，配置节不存在时使用 INFO 级别的文本输出
func FromConfig(cfg config.Configuration, section string) (LoggerFactory, error) {
	var settings Settings
	if cfg.Exists(section) {
		if err := cfg.Bind(section, &settings); err != nil {
			return nil, fmt.Errorf("logging: failed to bind section '%s': %w", section, err)
		}
	}

	level, err := ParseLevel(settings.Level)
	if err != nil {
		return nil, err
	}

	builder := NewLoggingBuilder().SetMinimumLevel(level)
	switch settings.Format {
	case "", "text":
		formatter := NewTextFormatter()
		formatter.ColorOutput = settings.Color
		builder.AddConsole(ConsoleLoggerOptions{Formatter: formatter, Output: os.Stdout})
	case "json":
		builder.AddJsonConsole()
	default:
		return nil, fmt.Errorf("logging: unknown format %q", settings.Format)
	}

	return builder.Build(), nil
}
