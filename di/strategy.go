package di

import (
	"fmt"
	"reflect"
	"strings"
)

// DefaultTagKey 默认的注入标记。
const DefaultTagKey = "di"

// BindingStrategy 决定标记字段未显式给出名称时，依赖名称如何推导。
// 标签中显式写出的名称总是优先。
type BindingStrategy int

const (
	// ByTagName 使用标签值；`di:""` 时回退到字段名。
	ByTagName BindingStrategy = iota
	// ByFieldName 使用字段的 Go 名称。
	ByFieldName
	// ByTypeName 使用字段声明类型的名称（去掉指针，格式同 TypeName）。
	ByTypeName
)

// String 返回策略名称
func (s BindingStrategy) String() string {
	switch s {
	case ByTagName:
		return "tag"
	case ByFieldName:
		return "field"
	case ByTypeName:
		return "type"
	default:
		return fmt.Sprintf("BindingStrategy(%d)", int(s))
	}
}

// ParseBindingStrategy 解析策略名称，大小写不敏感。
func ParseBindingStrategy(s string) (BindingStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tag", "tagname":
		return ByTagName, nil
	case "field", "fieldname":
		return ByFieldName, nil
	case "type", "typename":
		return ByTypeName, nil
	default:
		return ByTagName, fmt.Errorf("di: unknown binding strategy %q", s)
	}
}

// UnmarshalText 实现 encoding.TextUnmarshaler。
func (s *BindingStrategy) UnmarshalText(text []byte) error {
	v, err := ParseBindingStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MarshalText 实现 encoding.TextMarshaler。
func (s BindingStrategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TypeName 返回类型的绑定名称，例如 *app.UserService -> "app.UserService"。
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}

// NameOf 返回类型 T 的绑定名称。
func NameOf[T any]() string {
	return TypeName(TypeOf[T]())
}

// TypeOf 获取类型 T 的 reflect.Type（泛型辅助函数）
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// dependencyName 根据策略计算字段依赖的名称。
func (s BindingStrategy) dependencyName(field reflect.StructField, explicit string) string {
	if explicit != "" {
		return explicit
	}
	switch s {
	case ByTypeName:
		return TypeName(field.Type)
	default:
		return field.Name
	}
}

// parseTag 解析标签: "name,option1,option2"
// 支持 "?"、"optional" 作为可选标记，单独出现时名称为空。
func parseTag(tag string) (name string, optional bool) {
	parts := strings.Split(tag, ",")
	name = strings.TrimSpace(parts[0])

	if name == "?" || name == "optional" {
		name = ""
		optional = true
	}

	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "optional" || part == "?" {
			optional = true
		}
	}
	return name, optional
}
