package etcd_test

import (
	"testing"

	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/configure/etcd"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// MockService 模拟依赖 Etcd 客户端的服务
type MockService struct {
	Master *clientv3.Client `di:"etcd.master"`
	Slave  *clientv3.Client `di:"etcd.slave,?"`
}

func TestEtcdConfiguration(t *testing.T) {
	cfg, err := config.NewConfigurationBuilder().
		AddInMemory(map[string]any{
			"etcd": map[string]any{
				"clients": map[string]any{
					"master": map[string]any{
						"endpoints":   []any{"localhost:2379", "localhost:22379"},
						"dialTimeout": "2s",
					},
				},
			},
		}).
		Build()
	require.NoError(t, err)

	reg := di.New()
	require.NoError(t, etcd.Register(reg, cfg, logging.Nop()))
	di.RegisterFor[*MockService](reg, "svc")

	assert.Equal(t, []string{"etcd.default", "etcd.factory", "etcd.master", "svc"}, reg.Names())
	assert.Equal(t, di.TypeBound, reg.State("etcd.master"))

	info := reg.Bindings()
	assert.Equal(t, []string{"etcd.master"}, info[0].Dependencies)

	// 客户端创建不会阻塞等待服务器
	svc, err := di.Resolve[*MockService](reg, "svc")
	require.NoError(t, err)
	require.NotNil(t, svc.Master)
	assert.Nil(t, svc.Slave)
	assert.ElementsMatch(t, []string{"localhost:2379", "localhost:22379"}, svc.Master.Endpoints())

	factory := di.MustResolve[*etcd.EtcdClientFactory](reg, etcd.FactoryBean)
	assert.NoError(t, factory.Close())
}

func TestEtcdBuilder_Errors(t *testing.T) {
	builder := etcd.NewBuilder()

	// 添加无效配置
	builder.AddClient("invalid", func(o *etcd.EtcdClientOptions) {
		o.Endpoints = nil // 必填项缺失
	})

	// 添加重复配置
	builder.AddClient("duplicate", nil)
	builder.AddClient("duplicate", nil)

	reg := di.New()
	_, err := builder.Register(reg, logging.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoints are required")
	assert.Empty(t, reg.Names())
}

func TestEtcdMultipleClientsWithoutDefault(t *testing.T) {
	reg := di.New()
	err := etcd.Configure(reg, nil, func(b *etcd.Builder) {
		b.AddClient("a", nil)
		b.AddClient("b", nil)
	})
	require.NoError(t, err)

	assert.True(t, reg.Has("etcd.a"))
	assert.True(t, reg.Has("etcd.b"))
	assert.False(t, reg.Has(etcd.DefaultBean))
}
