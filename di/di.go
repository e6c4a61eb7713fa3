package di

import (
	"fmt"
	"reflect"
)

// RegisterFor registers type T under name.
// T 通常是结构体指针，带 `di` 标签的字段会被注入。
func RegisterFor[T any](r *Registry, name string) {
	r.RegisterType(name, TypeOf[T]())
}

// Provide registers a typed constructor under name.
// 依赖通过 opts 中的 Inject / InjectInto 声明，构造函数本身不接受参数。
func Provide[T any](r *Registry, name string, fn func() (T, error), opts ...BindingOption) {
	factory := func() (any, error) {
		v, err := fn()
		if err != nil {
			return nil, err
		}
		if isNil(v) {
			return nil, nil
		}
		return v, nil
	}

	b := &TypeBinding{
		Name:     name,
		ImplType: TypeOf[T](),
		Factory:  factory,
	}
	for _, opt := range opts {
		opt(b)
	}
	r.put(b)
}

// Resolve resolves the bean registered under name as T.
func Resolve[T any](r *Registry, name string) (T, error) {
	var zero T

	val, err := r.GetBean(name)
	if err != nil {
		return zero, err
	}

	if v, ok := val.(T); ok {
		return v, nil
	}
	return zero, &TypeMismatchError{Name: name, Expected: TypeOf[T](), Actual: reflect.TypeOf(val)}
}

// MustResolve 与 Resolve 相同，失败时 panic。
func MustResolve[T any](r *Registry, name string) T {
	v, err := Resolve[T](r, name)
	if err != nil {
		panic(fmt.Sprintf("di: failed to resolve %s: %v", name, err))
	}
	return v
}

// Alias 将 alias 绑定为 target 的同一个实例，不会再次构造或执行 PostConstruct。
func Alias(r *Registry, alias, target string) {
	r.put(&TypeBinding{
		Name:   alias,
		Target: target,
		Points: []InjectionPoint{{Field: "alias", Index: -1, Dependency: target}},
	})
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
