package beans_test

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/beans"
	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/configure"
	"github.com/gocrud/beans/configure/cron"
	"github.com/gocrud/beans/configure/database"
	"github.com/gocrud/beans/configure/web"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/logging"
	"github.com/gocrud/beans/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type Visit struct {
	gorm.Model
	Path string
}

// VisitService 记录访问
type VisitService struct {
	DB     *gorm.DB             `di:"database.default"`
	Config config.Configuration `di:"beans.config"`
}

func (s *VisitService) AppName() string {
	return s.Config.Get("app.name")
}

func (s *VisitService) Record(path string) (int64, error) {
	if err := s.DB.Create(&Visit{Path: path}).Error; err != nil {
		return 0, err
	}
	var count int64
	err := s.DB.Model(&Visit{}).Count(&count).Error
	return count, err
}

// PingController 映射 /ping
type PingController struct {
	Visits *VisitService `di:"visitService"`
}

func (c *PingController) RegisterRoutes(r gin.IRouter) {
	r.GET("/ping", func(ctx *gin.Context) {
		count, err := c.Visits.Record("/ping")
		if err != nil {
			ctx.String(http.StatusInternalServerError, err.Error())
			return
		}
		ctx.String(http.StatusOK, fmt.Sprintf("pong: %s #%d", c.Visits.AppName(), count))
	})
}

// Heartbeat 定时任务
type Heartbeat struct {
	beats atomic.Int32
}

func (h *Heartbeat) Run() {
	h.beats.Add(1)
}

const componentsSrc = `package beans_test

//di:component name=visitService
type VisitService struct{}

//di:component name=pingController
type PingController struct{}

//di:component name=heartbeat
type Heartbeat struct{}
`

func newApplication(t *testing.T) *beans.Application {
	t.Helper()

	catalog, err := scan.NewCatalog(
		di.TypeOf[VisitService](),
		di.TypeOf[PingController](),
		di.TypeOf[Heartbeat](),
	)
	require.NoError(t, err)

	app, err := beans.NewApplicationBuilder().
		ConfigureConfiguration(func(c *config.ConfigurationBuilder) {
			c.AddInMemory(map[string]any{
				"app": map[string]any{"name": "integration"},
				"web": map[string]any{"port": 0, "mode": "test", "introspection": true},
				"database": map[string]any{
					"connections": map[string]any{
						"main": map[string]any{
							"driver": "sqlite",
							"dsn":    "file:beans_app?mode=memory&cache=shared",
						},
					},
				},
				"cron": map[string]any{
					"seconds": true,
					"jobs": []any{
						map[string]any{"name": "heartbeat", "spec": "@every 1s", "bean": "heartbeat"},
					},
				},
			})
		}).
		UseLoggerFactory(logging.NewLoggingBuilder().
			AddConsole(logging.ConsoleLoggerOptions{Output: io.Discard}).
			Build()).
		Use(configure.DataSources(&Visit{})...).
		Use(
			web.Starter(func(b *web.Builder) { b.AddControllers("pingController") }),
			cron.Starter(),
		).
		ScanComponents(&scan.Scanner{FS: fstest.MapFS{
			"components.go": {Data: []byte(componentsSrc)},
		}}, catalog).
		AddHostedService(web.HostBean, cron.SchedulerBean).
		UseShutdownTimeout(5 * time.Second).
		Build(context.Background())
	require.NoError(t, err)
	return app
}

func TestApplicationBuildIsLazy(t *testing.T) {
	app := newApplication(t)
	reg := app.Registry()

	for _, name := range []string{"visitService", "pingController", "heartbeat", web.HostBean, cron.SchedulerBean, database.DefaultBean} {
		assert.Equal(t, di.TypeBound, reg.State(name), name)
	}

	cfg, err := app.GetBean(beans.ConfigBean)
	require.NoError(t, err)
	assert.Same(t, app.Configuration(), cfg)
}

func TestApplicationRun(t *testing.T) {
	app := newApplication(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(ctx) }()

	host := di.MustResolve[*web.Host](app.Registry(), web.HostBean)
	require.Eventually(t, func() bool { return host.Addr() != nil }, 5*time.Second, 10*time.Millisecond)
	base := fmt.Sprintf("http://127.0.0.1:%d", host.Addr().(*net.TCPAddr).Port)

	for i := 1; i <= 2; i++ {
		resp, err := http.Get(base + "/ping")
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, fmt.Sprintf("pong: integration #%d", i), string(body))
	}

	resp, err := http.Get(base + "/beans/visitService")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	heartbeat := di.MustResolve[*Heartbeat](app.Registry(), "heartbeat")
	assert.Eventually(t, func() bool { return heartbeat.beats.Load() > 0 }, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("application did not stop")
	}
}

func TestApplicationStarterError(t *testing.T) {
	_, err := beans.NewApplicationBuilder().
		ConfigureConfiguration(func(c *config.ConfigurationBuilder) {
			c.AddInMemory(map[string]any{"web": map[string]any{"port": -1}})
		}).
		UseLoggerFactory(logging.NewLoggingBuilder().Build()).
		Use(web.Starter()).
		Build(context.Background())
	assert.ErrorContains(t, err, "out of range")
}

func TestApplicationRegistryOptionsFromConfig(t *testing.T) {
	app, err := beans.NewApplicationBuilder().
		ConfigureConfiguration(func(c *config.ConfigurationBuilder) {
			c.AddInMemory(map[string]any{"beans": map[string]any{"strategy": "type"}})
		}).
		UseLoggerFactory(logging.NewLoggingBuilder().Build()).
		Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, di.ByTypeName, app.Registry().Strategy())
}
