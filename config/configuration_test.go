package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

func TestValueStore(t *testing.T) {
	store := NewValueStore()

	data := map[string]any{"key": "value"}
	store.Store(data)

	loaded := store.Load()
	assert.Equal(t, "value", loaded["key"])

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Load()
		}()
	}
	wg.Wait()

	store.Store(nil)
	assert.NotNil(t, store.Load())
	assert.Empty(t, store.Load())
}

func TestPathCache(t *testing.T) {
	cache := &PathCache{}

	parts := cache.GetPathSegments("a:b.c")
	assert.Equal(t, []string{"a", "b", "c"}, parts)

	// 命中缓存
	assert.Equal(t, parts, cache.GetPathSegments("a:b.c"))

	assert.Equal(t, []string{"a", "b"}, cache.GetPathSegments("a::b."))
	assert.Empty(t, cache.GetPathSegments(":"))
}

func TestYamlFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
beans:
  strategy: type
  tagKey: inject
redis:
  clients:
    cache:
      addr: "127.0.0.1:6379"
      db: 2
`), 0o644))

	cfg, err := NewConfigurationBuilder().AddYamlFile(path).Build()
	require.NoError(t, err)

	assert.Equal(t, "type", cfg.Get("beans:strategy"))
	assert.Equal(t, "inject", cfg.Get("beans.tagKey"))
	db, err := cfg.GetInt("redis:clients:cache:db")
	require.NoError(t, err)
	assert.Equal(t, 2, db)
	assert.True(t, cfg.Exists("redis:clients:cache"))
	assert.False(t, cfg.Exists("redis:clients:queue"))
}

func TestJsonFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beans.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"web":{"port":8081,"mode":"test"},"cron":{"seconds":true}}`), 0o644))

	for _, b := range []*ConfigurationBuilder{
		NewConfigurationBuilder().AddJsonFile(path),
		NewConfigurationBuilder().AddFile(path),
	} {
		cfg, err := b.Build()
		require.NoError(t, err)
		port, err := cfg.GetInt("web.port")
		require.NoError(t, err)
		assert.Equal(t, 8081, port)
		assert.Equal(t, "true", cfg.Get("cron:seconds"))
	}

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"web":`), 0o644))
	_, err := NewConfigurationBuilder().AddFile(broken).Build()
	assert.ErrorContains(t, err, "broken.json")
}

func TestFileFormatByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beans.yml")
	require.NoError(t, os.WriteFile(path, []byte("beans:\n  strategy: field\n"), 0o644))

	cfg, err := NewConfigurationBuilder().AddFile(path).Build()
	require.NoError(t, err)
	assert.Equal(t, "field", cfg.Get("beans:strategy"))

	_, err = NewConfigurationBuilder().Add(&FileSource{Path: path, Format: "toml"}).Build()
	assert.ErrorContains(t, err, "toml")
}

func TestOptionalFileMissing(t *testing.T) {
	cfg, err := NewConfigurationBuilder().
		AddYamlFile(filepath.Join(t.TempDir(), "missing.yaml"), true).
		Build()
	require.NoError(t, err)
	assert.Empty(t, cfg.GetAll())

	_, err = NewConfigurationBuilder().
		AddYamlFile(filepath.Join(t.TempDir(), "missing.yaml")).
		Build()
	assert.Error(t, err)
}

func TestSourcesOverrideInOrder(t *testing.T) {
	base := map[string]any{
		"web": map[string]any{"addr": ":8080", "mode": "release"},
	}
	cfg, err := NewConfigurationBuilder().
		AddInMemory(base).
		AddInMemory(map[string]any{"web": map[string]any{"addr": ":9090"}}).
		Build()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Get("web:addr"))
	assert.Equal(t, "release", cfg.Get("web:mode"))
	// 源数据不被合并过程修改
	assert.Equal(t, ":8080", base["web"].(map[string]any)["addr"])
}

func TestEnvironmentVariableSource(t *testing.T) {
	t.Setenv("BEANS_TEST_BEANS_STRATEGY", "field")
	t.Setenv("BEANS_TEST_WEB_PORT", "8081")

	cfg, err := NewConfigurationBuilder().AddEnvironmentVariables("BEANS_TEST_").Build()
	require.NoError(t, err)

	assert.Equal(t, "field", cfg.Get("beans:strategy"))
	port, err := cfg.GetInt("web:port")
	require.NoError(t, err)
	assert.Equal(t, 8081, port)
}

type fakeKV struct {
	clientv3.KV
	kvs    []*mvccpb.KeyValue
	err    error
	prefix string
}

func (f *fakeKV) Get(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	f.prefix = key
	if f.err != nil {
		return nil, f.err
	}
	return &clientv3.GetResponse{Kvs: f.kvs}, nil
}

func TestEtcdSource(t *testing.T) {
	kv := &fakeKV{kvs: []*mvccpb.KeyValue{
		{Key: []byte("/app/web/port"), Value: []byte("8082")},
		{Key: []byte("/app/web/mode"), Value: []byte("test")},
		{Key: []byte("/app/redis"), Value: []byte(`{"clients":{"cache":{"addr":"127.0.0.1:6379"}}}`)},
		{Key: []byte("/app/cron/jobs"), Value: []byte("- name: tick\n  spec: \"@every 1s\"\n  bean: tick\n")},
		{Key: []byte("/app/motd"), Value: []byte("hello: [")},
		{Key: []byte("/app/"), Value: []byte("ignored")},
	}}

	cfg, err := NewConfigurationBuilder().
		AddInMemory(map[string]any{"web": map[string]any{"port": 8080, "basePath": "/api"}}).
		AddEtcdKV(kv, "/app").
		Build()
	require.NoError(t, err)
	assert.Equal(t, "/app", kv.prefix)

	port, err := cfg.GetInt("web:port")
	require.NoError(t, err)
	assert.Equal(t, 8082, port)
	assert.Equal(t, "/api", cfg.Get("web:basePath"))
	assert.Equal(t, "test", cfg.Get("web:mode"))
	assert.Equal(t, "127.0.0.1:6379", cfg.Get("redis:clients:cache:addr"))
	assert.Equal(t, "hello: [", cfg.Get("motd"))

	type job struct {
		Name string `json:"name"`
		Spec string `json:"spec"`
	}
	jobs, err := Load[[]job](cfg, "cron:jobs")
	require.NoError(t, err)
	assert.Equal(t, []job{{Name: "tick", Spec: "@every 1s"}}, jobs)
}

func TestEtcdSourceError(t *testing.T) {
	_, err := NewConfigurationBuilder().
		AddEtcdKV(&fakeKV{err: errors.New("etcdserver: request timed out")}, "").
		Build()
	assert.ErrorContains(t, err, "request timed out")
	assert.ErrorContains(t, err, "Etcd")
}

func TestBindAndLoad(t *testing.T) {
	type settings struct {
		Strategy string `json:"strategy"`
		TagKey   string `json:"tagKey"`
	}

	cfg, err := NewConfigurationBuilder().
		AddInMemory(map[string]any{"beans": map[string]any{"strategy": "type"}}).
		Build()
	require.NoError(t, err)

	s, err := Load[settings](cfg, "beans")
	require.NoError(t, err)
	assert.Equal(t, "type", s.Strategy)

	_, err = Load[settings](cfg, "missing")
	assert.Error(t, err)

	d, err := LoadOrDefault(cfg, "missing", settings{TagKey: "di"})
	require.NoError(t, err)
	assert.Equal(t, "di", d.TagKey)

	d, err = LoadOrDefault(cfg, "beans", settings{TagKey: "di"})
	require.NoError(t, err)
	assert.Equal(t, "type", d.Strategy)
	assert.Equal(t, "di", d.TagKey)
}

func TestGetSection(t *testing.T) {
	cfg, err := NewConfigurationBuilder().
		AddInMemory(map[string]any{"cron": map[string]any{"location": "UTC"}}).
		Build()
	require.NoError(t, err)

	section := cfg.GetSection("cron")
	assert.Equal(t, "UTC", section.Get("location"))
	assert.Empty(t, cfg.GetSection("missing").GetAll())
}

func TestDurationBinding(t *testing.T) {
	type timeouts struct {
		Dial  Duration `json:"dial"`
		Read  Duration `json:"read"`
		Write Duration `json:"write"`
	}

	cfg, err := NewConfigurationBuilder().
		AddInMemory(map[string]any{"t": map[string]any{"dial": "150ms", "read": 2000000000}}).
		Build()
	require.NoError(t, err)

	v, err := Load[timeouts](cfg, "t")
	require.NoError(t, err)
	assert.Equal(t, 150*time.Millisecond, v.Dial.Std())
	assert.Equal(t, 2*time.Second, v.Read.Std())
	assert.Zero(t, v.Write)

	bad, err := NewConfigurationBuilder().
		AddInMemory(map[string]any{"t": map[string]any{"dial": "soon"}}).
		Build()
	require.NoError(t, err)
	_, err = Load[timeouts](bad, "t")
	assert.Error(t, err)
}

func BenchmarkConfigGet(b *testing.B) {
	config, _ := NewConfigurationBuilder().
		AddInMemory(map[string]any{
			"server": map[string]any{
				"host": "localhost",
				"port": 8080,
			},
		}).
		Build()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		config.Get("server:host")
	}
}
