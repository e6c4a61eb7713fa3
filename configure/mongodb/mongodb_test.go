package mongodb_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/configure/mongodb"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type MockRepository struct {
	Client *mongo.Client   `di:"mongodb.main"`
	DB     *mongo.Database `di:"mongodb.main.db"`
}

func newConfig(t *testing.T, clients map[string]any) config.Configuration {
	t.Helper()
	cfg, err := config.NewConfigurationBuilder().
		AddInMemory(map[string]any{"mongodb": map[string]any{"clients": clients}}).
		Build()
	require.NoError(t, err)
	return cfg
}

func TestMongoRegistrationIsLazy(t *testing.T) {
	cfg := newConfig(t, map[string]any{
		"main": map[string]any{
			"uri":      "mongodb://localhost:27017/?directConnection=true",
			"database": "beans",
			"timeout":  "1s",
		},
	})

	reg := di.New()
	require.NoError(t, mongodb.Register(reg, cfg, logging.Nop()))
	di.RegisterFor[*MockRepository](reg, "repo")

	assert.Equal(t, []string{"mongodb.default", "mongodb.factory", "mongodb.main", "mongodb.main.db", "repo"}, reg.Names())
	assert.Equal(t, di.TypeBound, reg.State("mongodb.main"))

	// 驱动不会在创建时阻塞等待服务器
	repo, err := di.Resolve[*MockRepository](reg, "repo")
	require.NoError(t, err)
	require.NotNil(t, repo.Client)
	assert.Equal(t, "beans", repo.DB.Name())
	assert.Same(t, repo.Client, repo.DB.Client())
	assert.Same(t, repo.Client, di.MustResolve[*mongo.Client](reg, mongodb.DefaultBean))

	factory := di.MustResolve[*mongodb.MongoFactory](reg, mongodb.FactoryBean)
	assert.NoError(t, factory.Close())
}

func TestMongoInvalidUriFailsAtResolve(t *testing.T) {
	reg := di.New()
	err := mongodb.Configure(reg, nil, func(b *mongodb.Builder) {
		b.Add("broken", "not-a-mongo-uri", nil)
	})
	require.NoError(t, err)

	_, err = reg.GetBean("mongodb.broken")
	require.ErrorIs(t, err, di.ErrInstantiation)
	assert.Equal(t, di.TypeBound, reg.State("mongodb.broken"))
}

func TestMongoBuilder_Errors(t *testing.T) {
	builder := mongodb.NewBuilder()
	builder.Add("no-uri", "", nil)
	builder.Add("dup", "mongodb://localhost", nil)
	builder.Add("dup", "mongodb://localhost", nil)
	builder.Add("pool", "mongodb://localhost", func(o *mongodb.MongoOptions) {
		o.MinPoolSize = 10
		o.MaxPoolSize = 1
	})

	reg := di.New()
	_, err := builder.Register(reg, logging.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uri is required")
	assert.Contains(t, err.Error(), "already configured")
	assert.Contains(t, err.Error(), "pool size")
	assert.Empty(t, reg.Names())
}

func TestMongoDatabaseWithoutName(t *testing.T) {
	factory := mongodb.NewMongoFactory(*mongodb.NewDefaultOptions("x", "mongodb://localhost:27017"))
	defer factory.Close()

	_, err := factory.Database("x")
	assert.Error(t, err)
}

func TestMongoPing(t *testing.T) {
	uri := os.Getenv("BEANS_MONGO_URI")
	if uri == "" {
		t.Skip("BEANS_MONGO_URI not set")
	}

	reg := di.New()
	require.NoError(t, mongodb.Configure(reg, nil, func(b *mongodb.Builder) {
		b.Add("live", uri, func(o *mongodb.MongoOptions) {
			o.Ping = true
			o.Timeout = config.Duration(3 * time.Second)
		})
	}))

	client := di.MustResolve[*mongo.Client](reg, "mongodb.live")
	assert.NoError(t, client.Ping(context.Background(), nil))
	assert.NoError(t, client.Disconnect(context.Background()))
}
