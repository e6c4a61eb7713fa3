package di

import (
	"fmt"
	"reflect"
)

// BindingState 描述一个名称在注册表中的状态。
//
// 状态只会向前推进：Unregistered -> TypeBound -> Instantiated。
// TypeBound 可以被重新注册覆盖；Instantiated 是终态，实例不会被替换或刷新。
type BindingState int

const (
	// Unregistered 名称尚未绑定任何类型。
	Unregistered BindingState = iota
	// TypeBound 名称已绑定类型或工厂，但尚未创建实例。
	TypeBound
	// Instantiated 实例已创建并缓存。
	Instantiated
)

// String 返回状态的字符串表示
func (s BindingState) String() string {
	switch s {
	case Unregistered:
		return "Unregistered"
	case TypeBound:
		return "TypeBound"
	case Instantiated:
		return "Instantiated"
	default:
		return fmt.Sprintf("BindingState(%d)", int(s))
	}
}

// MarshalText 实现 encoding.TextMarshaler，便于在 JSON 中输出状态名称。
func (s BindingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Factory 是零参数构造函数。
// 依赖不通过参数传入，而是通过 Inject 声明的注入点在构造之后赋值。
type Factory func() (any, error)

// Setter 将已解析的依赖赋值到新创建的实例上。
type Setter func(instance, dependency any) error

// InjectionPoint 描述实例上的一个注入点。
type InjectionPoint struct {
	Field      string // 字段名；显式注册时为依赖描述
	Index      int    // 结构体字段下标，显式 Setter 时为 -1
	Dependency string // 依赖的绑定名称
	Optional   bool   // 依赖无法解析时保留零值

	setter Setter
}

// TypeBinding 是名称到构造方式的绑定。注册后不可变，同名再次注册会整体替换。
type TypeBinding struct {
	Name     string
	ImplType reflect.Type // 反射注册时的实现类型，工厂注册时可能为 nil
	Factory  Factory      // 显式注册的构造函数
	Target   string       // 别名指向的名称
	Points   []InjectionPoint
}

// Dependencies 返回该绑定的依赖名称列表（按声明顺序）。
func (b *TypeBinding) Dependencies() []string {
	deps := make([]string, 0, len(b.Points))
	for _, p := range b.Points {
		deps = append(deps, p.Dependency)
	}
	return deps
}

// BindingInfo 是绑定的只读快照，用于诊断和展示。
type BindingInfo struct {
	Name         string       `json:"name"`
	Type         string       `json:"type"`
	State        BindingState `json:"state"`
	Dependencies []string     `json:"dependencies,omitempty"`
}

// BindingOption 配置显式注册的绑定。
type BindingOption func(*TypeBinding)

// Inject 声明一个注入点：构造完成后解析 dep 并通过 set 赋值。
func Inject(dep string, set Setter) BindingOption {
	return func(b *TypeBinding) {
		b.Points = append(b.Points, InjectionPoint{
			Field:      dep,
			Index:      -1,
			Dependency: dep,
			setter:     set,
		})
	}
}

// InjectOptional 与 Inject 相同，但 dep 未注册时跳过赋值。
func InjectOptional(dep string, set Setter) BindingOption {
	return func(b *TypeBinding) {
		Inject(dep, set)(b)
		b.Points[len(b.Points)-1].Optional = true
	}
}

// InjectInto 是 Inject 的泛型版本，在赋值前完成类型断言。
//
//	di.Provide(r, "bar", NewBar, di.InjectInto("foo", func(b *Bar, f *Foo) { b.Foo = f }))
func InjectInto[T, D any](dep string, set func(T, D)) BindingOption {
	return Inject(dep, func(instance, dependency any) error {
		target, ok := instance.(T)
		if !ok {
			return &TypeMismatchError{Name: dep, Expected: TypeOf[T](), Actual: reflect.TypeOf(instance)}
		}
		value, ok := dependency.(D)
		if !ok {
			return &TypeMismatchError{Name: dep, Expected: TypeOf[D](), Actual: reflect.TypeOf(dependency)}
		}
		set(target, value)
		return nil
	})
}

// Initializer 由需要在注入完成后执行初始化的 Bean 实现。
// 返回错误时实例被丢弃，不会缓存。
type Initializer interface {
	PostConstruct() error
}
