package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/logging"
)

// Controller 由控制器 Bean 实现，在 Host 创建时注册路由
type Controller interface {
	RegisterRoutes(router gin.IRouter)
}

// Builder Web 主机构建器（基于 Gin）
type Builder struct {
	logger      logging.Logger
	options     WebOptions
	engine      *gin.Engine
	controllers []string
}

// NewBuilder 创建 Web 构建器
func NewBuilder(logger logging.Logger, options WebOptions) *Builder {
	if logger == nil {
		logger = logging.Nop()
	}
	if options.Mode != "" {
		gin.SetMode(options.Mode)
	} else {
		// 设置 Gin 为发布模式（默认）
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// 默认中间件：恢复 panic
	engine.Use(gin.Recovery())

	return &Builder{
		logger:  logger,
		options: options,
		engine:  engine,
	}
}

// UsePort 设置端口
func (b *Builder) UsePort(port int) *Builder {
	b.options.Port = port
	return b
}

// AddControllers 添加控制器的 Bean 名称，Bean 必须实现 Controller
func (b *Builder) AddControllers(names ...string) *Builder {
	b.controllers = append(b.controllers, names...)
	return b
}

// Get 注册 GET 路由
func (b *Builder) Get(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.GET(path, handlers...)
	return b
}

// Post 注册 POST 路由
func (b *Builder) Post(path string, handlers ...gin.HandlerFunc) *Builder {
	b.engine.POST(path, handlers...)
	return b
}

// Group 创建路由组
func (b *Builder) Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup {
	return b.engine.Group(relativePath, handlers...)
}

// Use 使用全局中间件
func (b *Builder) Use(middleware ...gin.HandlerFunc) *Builder {
	b.engine.Use(middleware...)
	return b
}

// NoRoute 处理 404
func (b *Builder) NoRoute(handlers ...gin.HandlerFunc) *Builder {
	b.engine.NoRoute(handlers...)
	return b
}

// Engine 获取 Gin 引擎（用于高级定制）
func (b *Builder) Engine() *gin.Engine {
	return b.engine
}

// Build 构建 Web 主机。控制器由注册表注入，路由在 PostConstruct 中注册。
func (b *Builder) Build(reg *di.Registry) *Host {
	return &Host{
		reg:         reg,
		options:     b.options,
		engine:      b.engine,
		controllers: append([]string(nil), b.controllers...),
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", b.options.Port),
			Handler: b.engine, // Gin Engine 实现了 http.Handler
		},
		logger: b.logger,
	}
}

// Host Web 主机
type Host struct {
	reg         *di.Registry
	options     WebOptions
	engine      *gin.Engine
	controllers []string
	resolved    []Controller
	server      *http.Server
	logger      logging.Logger

	mu   sync.Mutex
	addr net.Addr
}

func (h *Host) addController(c Controller) {
	h.resolved = append(h.resolved, c)
}

// PostConstruct 在控制器注入完成后注册路由
func (h *Host) PostConstruct() error {
	router := gin.IRouter(h.engine)
	if h.options.BasePath != "" {
		router = h.engine.Group(h.options.BasePath)
	}

	for i, controller := range h.resolved {
		controller.RegisterRoutes(router)
		h.logger.Debug("controller mapped", logging.Field{Key: "name", Value: h.controllers[i]})
	}

	if h.options.Introspection {
		MountBeans(h.engine.Group(h.options.IntrospectionPath), h.reg)
	}
	return nil
}

// Engine 返回 Gin 引擎
func (h *Host) Engine() *gin.Engine {
	return h.engine
}

// Addr 返回实际监听的地址，未启动时为 nil
func (h *Host) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

// Start 启动 Web 主机，阻塞直到 ctx 取消或监听失败
func (h *Host) Start(ctx context.Context) error {
	h.logger.Info("Starting web host",
		logging.Field{Key: "port", Value: h.options.Port})

	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.addr = ln.Addr()
	h.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	h.logger.Info("Web host started",
		logging.Field{Key: "address", Value: ln.Addr().String()})

	// 等待错误或上下文取消
	select {
	case err := <-errCh:
		if err != nil {
			h.logger.Error("Web host error",
				logging.Field{Key: "error", Value: err.Error()})
			return err
		}
		return nil
	case <-ctx.Done():
		// Stop 负责关闭
		return nil
	}
}

// Stop 停止 Web 主机
func (h *Host) Stop(ctx context.Context) error {
	h.logger.Info("Stopping web host")

	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Error("Failed to shutdown web host gracefully",
			logging.Field{Key: "error", Value: err.Error()})
		return err
	}

	h.logger.Info("Web host stopped")
	return nil
}
