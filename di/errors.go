package di

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrBindingNotFound 名称没有注册任何类型。
	ErrBindingNotFound = errors.New("binding not found")
	// ErrInstantiation 实例无法创建。
	ErrInstantiation = errors.New("cannot instantiate")
	// ErrCyclicDependency 依赖图中存在环。
	ErrCyclicDependency = errors.New("cyclic dependency")
	// ErrNotInstantiable 类型不是结构体或结构体指针，无法零值构造。
	ErrNotInstantiable = errors.New("type has no zero-argument constructor")
)

// BindingNotFoundError 表示 GetBean 请求的名称未注册。
type BindingNotFoundError struct {
	Name string
}

func (e *BindingNotFoundError) Error() string {
	return fmt.Sprintf("di: %s not found", e.Name)
}

func (e *BindingNotFoundError) Is(target error) bool {
	return target == ErrBindingNotFound
}

// InstantiationError 表示构造失败：类型不可实例化、工厂返回错误、panic 或 PostConstruct 失败。
type InstantiationError struct {
	Name  string
	Type  reflect.Type
	Cause error
}

func (e *InstantiationError) Error() string {
	if e.Type != nil {
		return fmt.Sprintf("di: %s cannot instantiate %v: %v", e.Name, e.Type, e.Cause)
	}
	return fmt.Sprintf("di: %s cannot instantiate: %v", e.Name, e.Cause)
}

func (e *InstantiationError) Unwrap() error {
	return e.Cause
}

func (e *InstantiationError) Is(target error) bool {
	return target == ErrInstantiation
}

// InjectionError 表示某个注入点的依赖解析或赋值失败。
type InjectionError struct {
	Name       string
	Field      string
	Dependency string
	Cause      error
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("di: %s field %s (-> %s): %v", e.Name, e.Field, e.Dependency, e.Cause)
}

func (e *InjectionError) Unwrap() error {
	return e.Cause
}

// CyclicDependencyError 表示依赖图中存在环，Path 首尾相同。
type CyclicDependencyError struct {
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("di: 检测到循环依赖: %s", strings.Join(e.Path, " -> "))
}

func (e *CyclicDependencyError) Is(target error) bool {
	return target == ErrCyclicDependency
}

// TypeMismatchError 表示 Bean 的实际类型与期望不符。
type TypeMismatchError struct {
	Name     string
	Expected reflect.Type
	Actual   reflect.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("di: %s is %v, expected %v", e.Name, e.Actual, e.Expected)
}

// panicError 包装构造过程中的 panic。
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
