package di

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// checkCycles 从 root 出发沿注入点做深度优先遍历，发现环时返回 CyclicDependencyError。
// 未注册的依赖不参与检查，它们会在解析时以 BindingNotFoundError 失败。
func (r *Registry) checkCycles(root string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string

	var visit func(string) error
	visit = func(u string) error {
		visited[u] = true
		onStack[u] = true
		stack = append(stack, u)

		b := r.bindings[u]
		for _, p := range b.Points {
			v := p.Dependency
			if _, exists := r.bindings[v]; !exists {
				continue
			}
			// 已实例化的依赖直接命中缓存，不会再次展开
			if _, ok := r.instances.Load(v); ok {
				continue
			}

			if onStack[v] {
				return &CyclicDependencyError{Path: cyclePath(stack, v)}
			}
			if !visited[v] {
				if err := visit(v); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		onStack[u] = false
		return nil
	}

	if _, ok := r.bindings[root]; !ok {
		return nil
	}
	return visit(root)
}

// cyclePath 截取从 v 开始的环路径，并以 v 结尾。
func cyclePath(stack []string, v string) []string {
	start := 0
	for i, name := range stack {
		if name == v {
			start = i
			break
		}
	}
	path := make([]string, 0, len(stack)-start+1)
	path = append(path, stack[start:]...)
	return append(path, v)
}

// resolutions 记录各 goroutine 正在构造的名称链，以及阻塞等待中的名称。
// 工厂内部调用 GetBean 时依赖对静态检查不可见，这里在进入 singleflight 之前拦截重入。
type resolutions struct {
	mu      sync.Mutex
	chains  map[uint64][]string // goroutine -> 构造中的名称，外层在前
	owners  map[string]uint64   // 名称 -> 正在构造它的 goroutine
	waiting map[uint64]string   // goroutine -> 等待中的名称
}

func newResolutions() *resolutions {
	return &resolutions{
		chains:  make(map[uint64][]string),
		owners:  make(map[string]uint64),
		waiting: make(map[uint64]string),
	}
}

// wait 在 gid 等待 name 之前调用。若 name 已由 gid 自身构造，或沿等待链最终回到 gid，
// 返回 CyclicDependencyError；否则登记等待关系，由 done 清除。
func (s *resolutions) wait(gid uint64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var path []string
	target := name
	owner, ok := s.owners[name]
	for steps := 0; ok && steps <= len(s.owners); steps++ {
		path = append(path, chainFrom(s.chains[owner], target)...)
		if owner == gid {
			return &CyclicDependencyError{Path: append(path, name)}
		}
		if target, ok = s.waiting[owner]; !ok {
			break
		}
		owner, ok = s.owners[target]
	}

	s.waiting[gid] = name
	return nil
}

func (s *resolutions) done(gid uint64) {
	s.mu.Lock()
	delete(s.waiting, gid)
	s.mu.Unlock()
}

// enter 标记 gid 开始构造 name，返回的函数结束构造。
func (s *resolutions) enter(gid uint64, name string) func() {
	s.mu.Lock()
	delete(s.waiting, gid)
	s.chains[gid] = append(s.chains[gid], name)
	s.owners[name] = gid
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.owners, name)
		chain := s.chains[gid]
		if len(chain) <= 1 {
			delete(s.chains, gid)
			return
		}
		s.chains[gid] = chain[:len(chain)-1]
	}
}

// chainFrom 返回 chain 中从 name 开始的部分，name 不在链中时只返回 name。
func chainFrom(chain []string, name string) []string {
	for i, n := range chain {
		if n == name {
			return chain[i:]
		}
	}
	return []string{name}
}

// goroutineID 解析当前 goroutine 的编号，格式为 "goroutine 42 [running]:"。
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	line := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(line, ' '); i > 0 {
		line = line[:i]
	}
	id, _ := strconv.ParseUint(string(line), 10, 64)
	return id
}
