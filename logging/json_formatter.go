package logging

import (
	"encoding/json"
)

// JsonFormatter JSON 格式化器，每条日志输出为一行 JSON 对象：
//
//	{"time":"...","level":"INFO","category":"di","msg":"bean created","fields":{"name":"foo"}}
type JsonFormatter struct {
	TimestampFormat string
}

// NewJsonFormatter 创建 JSON 格式化器
func NewJsonFormatter() *JsonFormatter {
	return &JsonFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	}
}

type jsonEntry struct {
	Time     string         `json:"time"`
	Level    string         `json:"level"`
	Category string         `json:"category,omitempty"`
	Message  string         `json:"msg"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// Format 格式化日志，同名字段后者覆盖前者
func (f *JsonFormatter) Format(entry *LogEntry) ([]byte, error) {
	e := jsonEntry{
		Time:     entry.Time.Format(f.TimestampFormat),
		Level:    entry.Level.String(),
		Category: entry.Category,
		Message:  entry.Message,
	}
	if len(entry.Fields) > 0 {
		e.Fields = make(map[string]any, len(entry.Fields))
		for _, field := range entry.Fields {
			e.Fields[field.Key] = fieldValue(field.Value)
		}
	}

	buffer := getBuffer()
	defer putBuffer(buffer)

	enc := json.NewEncoder(buffer)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}

	result := make([]byte, buffer.Len())
	copy(result, buffer.Bytes())
	return result, nil
}
