package config

import (
	"strings"
	"sync"
)

// PathCache 缓存键路径的切分结果。"a:b.c"、"a.b.c" 与 "a::b." 都得到 [a b c]。
type PathCache struct {
	cache sync.Map // string -> []string
}

// GetPathSegments 返回 path 的各级键，空片段被忽略
func (c *PathCache) GetPathSegments(path string) []string {
	if v, ok := c.cache.Load(path); ok {
		return v.([]string)
	}

	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == ':' || r == '.'
	})
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	c.cache.Store(path, parts)
	return parts
}

var globalPathCache = &PathCache{}
