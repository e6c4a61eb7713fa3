package config

import (
	"sync/atomic"
)

// ValueStore 持有配置数据的快照，读取无锁。
// 快照在 Store 之后只读，修改必须整体替换。
type ValueStore struct {
	data atomic.Pointer[map[string]any]
}

// NewValueStore 创建空的 ValueStore
func NewValueStore() *ValueStore {
	s := &ValueStore{}
	s.Store(nil)
	return s
}

// Load 返回当前快照，不会为 nil
func (s *ValueStore) Load() map[string]any {
	if p := s.data.Load(); p != nil {
		return *p
	}
	return map[string]any{}
}

// Store 原子替换快照，nil 视为空配置
func (s *ValueStore) Store(data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	s.data.Store(&data)
}
