package logging

import (
	"fmt"
	"strconv"
	"strings"
)

// TextFormatter 单行文本格式：
//
//	2024-01-02 15:04:05 INFO  [di] bean created name=web.host type=*web.Host
//
// 含空白或引号的字段值会被加引号。
type TextFormatter struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
}

// NewTextFormatter 创建带时间戳、无颜色的文本格式化器
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{
		IncludeTimestamp: true,
		TimestampFormat:  "2006-01-02 15:04:05",
	}
}

func (f *TextFormatter) Format(entry *LogEntry) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	if f.IncludeTimestamp {
		layout := f.TimestampFormat
		if layout == "" {
			layout = "2006-01-02 15:04:05"
		}
		buf.WriteString(entry.Time.Format(layout))
		buf.WriteByte(' ')
	}

	level := fmt.Sprintf("%-5s", entry.Level.String())
	if f.ColorOutput {
		level = colorize(entry.Level, level)
	}
	buf.WriteString(level)

	if entry.Category != "" {
		buf.WriteString(" [")
		buf.WriteString(entry.Category)
		buf.WriteByte(']')
	}
	buf.WriteByte(' ')
	buf.WriteString(entry.Message)

	for _, field := range entry.Fields {
		buf.WriteByte(' ')
		buf.WriteString(field.Key)
		buf.WriteByte('=')
		buf.WriteString(textValue(fieldValue(field.Value)))
	}
	buf.WriteByte('\n')

	return append([]byte(nil), buf.Bytes()...), nil
}

func textValue(v any) string {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

var levelColors = map[LogLevel]string{
	LogLevelTrace: "\033[90m",
	LogLevelDebug: "\033[36m",
	LogLevelInfo:  "\033[32m",
	LogLevelWarn:  "\033[33m",
	LogLevelError: "\033[31m",
	LogLevelFatal: "\033[35m",
}

// colorize 为日志级别添加 ANSI 颜色
func colorize(level LogLevel, text string) string {
	color, ok := levelColors[level]
	if !ok {
		return text
	}
	return color + text + "\033[0m"
}
