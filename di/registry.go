package di

import (
	"reflect"
	"sort"
	"sync"

	"github.com/gocrud/beans/logging"
	"golang.org/x/sync/singleflight"
)

// Registry 是名称到类型、名称到实例的注册表。
//
// 类型绑定通过 RegisterType / Register 写入；实例在首次 GetBean 时才创建，
// 注入完成后缓存，在 Registry 的整个生命周期内保持不变。
// Registry 没有全局默认实例，需要显式创建并传递。
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]*TypeBinding

	// instances 只增不删；flights 保证同一名称同时只有一次构造。
	instances sync.Map
	flights   singleflight.Group
	active    *resolutions

	strategy BindingStrategy
	tagKey   string
	logger   logging.Logger
}

// New 创建一个空的注册表。
func New(opts ...Option) *Registry {
	r := &Registry{
		bindings: make(map[string]*TypeBinding),
		active:   newResolutions(),
		strategy: ByTagName,
		tagKey:   DefaultTagKey,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterType 将 name 绑定到 typ。
// typ 上带有注入标记的字段会在实例创建后被注入。
// 这里不检查 typ 是否可实例化，错误在 GetBean 时才会出现。
func (r *Registry) RegisterType(name string, typ reflect.Type) {
	r.put(&TypeBinding{
		Name:     name,
		ImplType: typ,
		Points:   r.analyzeStruct(typ),
	})
}

// Register 将 name 绑定到显式的构造函数，依赖通过 Inject 声明。
func (r *Registry) Register(name string, factory Factory, opts ...BindingOption) {
	b := &TypeBinding{
		Name:    name,
		Factory: factory,
	}
	for _, opt := range opts {
		opt(b)
	}
	r.put(b)
}

func (r *Registry) put(b *TypeBinding) {
	r.mu.Lock()
	r.bindings[b.Name] = b
	r.mu.Unlock()

	if _, ok := r.instances.Load(b.Name); ok {
		// 已实例化的名称不会被刷新
		r.logger.Warn("binding replaced after instantiation, cached bean is kept",
			logging.Field{Key: "name", Value: b.Name})
		return
	}
	r.logger.Debug("binding registered",
		logging.Field{Key: "name", Value: b.Name},
		logging.Field{Key: "type", Value: bindingTypeName(b)})
}

// GetBean 返回 name 对应的实例。
//
// 已缓存时直接返回同一实例；否则创建、注入并缓存。同一名称并发调用时，
// 构造最多执行一次，所有调用方拿到同一实例。构造的任何一步失败都不会缓存。
// 工厂在构造期间再次请求自身（直接或经由其他 Bean）时返回 CyclicDependencyError。
func (r *Registry) GetBean(name string) (any, error) {
	if v, ok := r.instances.Load(name); ok {
		return v, nil
	}

	if _, ok := r.binding(name); !ok {
		return nil, &BindingNotFoundError{Name: name}
	}
	if err := r.checkCycles(name); err != nil {
		return nil, err
	}

	// 工厂内部的 GetBean 不在静态依赖图中，重入在这里发现
	gid := goroutineID()
	if err := r.active.wait(gid, name); err != nil {
		return nil, err
	}
	defer r.active.done(gid)

	v, err, _ := r.flights.Do(name, func() (any, error) {
		// 双重检查
		if v, ok := r.instances.Load(name); ok {
			return v, nil
		}
		defer r.active.enter(gid, name)()

		b, ok := r.binding(name)
		if !ok {
			return nil, &BindingNotFoundError{Name: name}
		}

		obj, err := r.createObject(b)
		if err != nil {
			r.logger.Warn("bean creation failed",
				logging.Field{Key: "name", Value: name},
				logging.Field{Key: "error", Value: err.Error()})
			return nil, err
		}

		r.instances.Store(name, obj)
		r.logger.Debug("bean created",
			logging.Field{Key: "name", Value: name},
			logging.Field{Key: "type", Value: bindingTypeName(b)})
		return obj, nil
	})
	return v, err
}

// MustGetBean 与 GetBean 相同，失败时 panic。
func (r *Registry) MustGetBean(name string) any {
	v, err := r.GetBean(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Has 报告 name 是否已注册。
func (r *Registry) Has(name string) bool {
	_, ok := r.binding(name)
	return ok
}

// State 返回 name 的当前状态。
func (r *Registry) State(name string) BindingState {
	if _, ok := r.instances.Load(name); ok {
		return Instantiated
	}
	if r.Has(name) {
		return TypeBound
	}
	return Unregistered
}

// Names 返回所有已注册的名称（排序后）。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bindings 返回所有绑定的快照（按名称排序）。
func (r *Registry) Bindings() []BindingInfo {
	names := r.Names()
	infos := make([]BindingInfo, 0, len(names))
	for _, name := range names {
		b, ok := r.binding(name)
		if !ok {
			continue
		}
		infos = append(infos, BindingInfo{
			Name:         name,
			Type:         bindingTypeName(b),
			State:        r.State(name),
			Dependencies: b.Dependencies(),
		})
	}
	return infos
}

// Strategy 返回依赖名称的推导策略。
func (r *Registry) Strategy() BindingStrategy {
	return r.strategy
}

func (r *Registry) binding(name string) (*TypeBinding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[name]
	return b, ok
}

func bindingTypeName(b *TypeBinding) string {
	if b.Target != "" {
		return "alias:" + b.Target
	}
	if b.ImplType != nil {
		return b.ImplType.String()
	}
	return "factory"
}
