package scan

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/gocrud/beans/di"
)

// Catalog 将 "pkg.Type" 映射到 reflect.Type。
// Go 无法按名称加载类型，扫描结果需要通过 Catalog 找到真实类型。
// 标记中只有短包名，两个短包名相同的不同类型无法区分，这样的键值为 nil。
type Catalog map[string]reflect.Type

// NewCatalog 用给定类型创建 Catalog，键冲突时返回 AmbiguousTypeError
func NewCatalog(types ...reflect.Type) (Catalog, error) {
	c := make(Catalog, len(types))
	var errs []error
	for _, t := range types {
		if err := c.Add(t); err != nil {
			errs = append(errs, err)
		}
	}
	return c, errors.Join(errs...)
}

// Add 以 di.TypeName(t) 为键加入类型，T 与 *T 视为同一类型。
// 键已被另一个类型占用时该键标记为冲突，Register 遇到引用它的组件同样失败。
func (c Catalog) Add(t reflect.Type) error {
	key := di.TypeName(t)
	prev, exists := c[key]
	if exists && (prev == nil || baseType(prev) != baseType(t)) {
		c[key] = nil
		return &AmbiguousTypeError{TypeName: key, Types: []reflect.Type{prev, t}}
	}
	c[key] = t
	return nil
}

// AddType 泛型版本的 Add
func AddType[T any](c Catalog) error {
	return c.Add(di.TypeOf[T]())
}

func baseType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// AmbiguousTypeError 表示 Catalog 中同一个 "pkg.Type" 对应多个类型
type AmbiguousTypeError struct {
	TypeName string
	Types    []reflect.Type // 冲突的类型，已被标记的键为 nil
}

func (e *AmbiguousTypeError) Error() string {
	var paths []string
	for _, t := range e.Types {
		if t != nil {
			t = baseType(t)
			paths = append(paths, t.PkgPath()+"."+t.Name())
		}
	}
	return fmt.Sprintf("scan: type name %s is ambiguous %v", e.TypeName, paths)
}

// UnknownTypeError 表示组件类型不在 Catalog 中
type UnknownTypeError struct {
	Component Component
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("scan: component %s (%s:%d) has no type in catalog",
		e.Component.TypeName(), e.Component.File, e.Component.Line)
}

// DuplicateComponentError 表示两个组件使用了同一个名称
type DuplicateComponentError struct {
	Name   string
	First  Component
	Second Component
}

func (e *DuplicateComponentError) Error() string {
	return fmt.Sprintf("scan: component name %s declared by %s:%d and %s:%d",
		e.Name, e.First.File, e.First.Line, e.Second.File, e.Second.Line)
}

// Register 将组件注册到 reg。
// 先校验全部组件，任一失败时不注册任何组件。
// Catalog 中的结构体类型以指针形式注册，注入到 *T 字段时共享同一实例。
func Register(reg *di.Registry, catalog Catalog, components []Component) error {
	types := make([]reflect.Type, len(components))
	seen := make(map[string]Component, len(components))

	for i, c := range components {
		if prev, ok := seen[c.Name]; ok {
			return &DuplicateComponentError{Name: c.Name, First: prev, Second: c}
		}
		seen[c.Name] = c

		t, ok := catalog[c.TypeName()]
		if !ok {
			return &UnknownTypeError{Component: c}
		}
		if t == nil {
			return &AmbiguousTypeError{TypeName: c.TypeName()}
		}
		if t.Kind() == reflect.Struct {
			t = reflect.PointerTo(t)
		}
		types[i] = t
	}

	for i, c := range components {
		reg.RegisterType(c.Name, types[i])
	}
	return nil
}

// AutoRegister 扫描并注册所有组件
func AutoRegister(ctx context.Context, reg *di.Registry, s *Scanner, catalog Catalog) ([]Component, error) {
	components, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	if err := Register(reg, catalog, components); err != nil {
		return nil, err
	}
	return components, nil
}
