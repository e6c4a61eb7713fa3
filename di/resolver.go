package di

import (
	"errors"
	"fmt"
	"reflect"
	"unsafe"
)

// createObject 创建 b 描述的新实例并完成字段注入。
// 依赖通过 GetBean 递归解析，失败时返回的实例被丢弃。
func (r *Registry) createObject(b *TypeBinding) (any, error) {
	if b.Target != "" {
		return r.resolveDependency(b.Name, b.Points[0])
	}
	if b.Factory != nil {
		return r.createFromFactory(b)
	}
	return r.createStruct(b)
}

func (r *Registry) createFromFactory(b *TypeBinding) (obj any, err error) {
	obj, err = callFactory(b.Factory)
	if err != nil {
		return nil, &InstantiationError{Name: b.Name, Type: b.ImplType, Cause: err}
	}
	if obj == nil {
		return nil, &InstantiationError{Name: b.Name, Type: b.ImplType, Cause: errors.New("factory returned nil instance")}
	}

	for _, p := range b.Points {
		dep, err := r.resolveDependency(b.Name, p)
		if err != nil {
			return nil, err
		}
		if dep == nil {
			continue
		}
		if err := callSetter(p.setter, obj, dep); err != nil {
			return nil, &InjectionError{Name: b.Name, Field: p.Field, Dependency: p.Dependency, Cause: err}
		}
	}

	if err := postConstruct(b, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// createStruct 通过零值构造实例化结构体并注入标记字段。
func (r *Registry) createStruct(b *TypeBinding) (any, error) {
	implType := b.ImplType
	if implType == nil {
		return nil, &InstantiationError{Name: b.Name, Cause: ErrNotInstantiable}
	}

	isPtr := implType.Kind() == reflect.Pointer
	structType := implType
	if isPtr {
		structType = implType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return nil, &InstantiationError{Name: b.Name, Type: implType, Cause: ErrNotInstantiable}
	}

	// val 始终是指向结构体的指针
	val := reflect.New(structType)

	for _, p := range b.Points {
		dep, err := r.resolveDependency(b.Name, p)
		if err != nil {
			return nil, err
		}
		if dep == nil {
			continue
		}
		if err := setField(val.Elem().Field(p.Index), dep); err != nil {
			return nil, &InjectionError{Name: b.Name, Field: p.Field, Dependency: p.Dependency, Cause: err}
		}
	}

	if err := postConstruct(b, val.Interface()); err != nil {
		return nil, err
	}

	if isPtr {
		return val.Interface(), nil
	}
	return val.Elem().Interface(), nil
}

// resolveDependency 解析单个注入点。可选依赖未注册时返回 (nil, nil)。
func (r *Registry) resolveDependency(owner string, p InjectionPoint) (any, error) {
	dep, err := r.GetBean(p.Dependency)
	if err == nil {
		return dep, nil
	}
	if p.Optional && errors.Is(err, ErrBindingNotFound) && !r.Has(p.Dependency) {
		return nil, nil
	}
	return nil, &InjectionError{Name: owner, Field: p.Field, Dependency: p.Dependency, Cause: err}
}

// analyzeStruct 收集 typ 上带注入标记的字段。
func (r *Registry) analyzeStruct(typ reflect.Type) []InjectionPoint {
	if typ == nil {
		return nil
	}
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil
	}

	var points []InjectionPoint
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tagValue, hasTag := field.Tag.Lookup(r.tagKey)
		if !hasTag {
			continue
		}

		name, optional := parseTag(tagValue)
		points = append(points, InjectionPoint{
			Field:      field.Name,
			Index:      i,
			Dependency: r.strategy.dependencyName(field, name),
			Optional:   optional,
		})
	}
	return points
}

// setField 赋值字段，未导出字段也会被写入。
func setField(field reflect.Value, dep any) error {
	depVal := reflect.ValueOf(dep)
	if !depVal.Type().AssignableTo(field.Type()) {
		return fmt.Errorf("%v is not assignable to field of type %v", depVal.Type(), field.Type())
	}

	if !field.CanSet() {
		field = reflect.NewAt(field.Type(), unsafe.Pointer(field.UnsafeAddr())).Elem()
	}
	field.Set(depVal)
	return nil
}

func callFactory(factory Factory) (obj any, err error) {
	defer func() {
		if p := recover(); p != nil {
			obj, err = nil, &panicError{value: p}
		}
	}()
	return factory()
}

func callSetter(set Setter, obj, dep any) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &panicError{value: p}
		}
	}()
	return set(obj, dep)
}

func postConstruct(b *TypeBinding, obj any) (err error) {
	initializer, ok := obj.(Initializer)
	if !ok {
		return nil
	}

	defer func() {
		if p := recover(); p != nil {
			err = &InstantiationError{Name: b.Name, Type: b.ImplType, Cause: &panicError{value: p}}
		}
	}()
	if err := initializer.PostConstruct(); err != nil {
		return &InstantiationError{Name: b.Name, Type: b.ImplType, Cause: fmt.Errorf("post construct: %w", err)}
	}
	return nil
}
