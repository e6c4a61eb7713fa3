package hosting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/logging"
	"golang.org/x/sync/errgroup"
)

// HostedService 托管服务接口（类似于 .NET Core IHostedService）
// Host 会在独立的 goroutine 中调用 Start
type HostedService interface {
	// Start 启动服务。该方法应阻塞执行，直到 context 被取消或发生错误。
	Start(ctx context.Context) error

	// Stop 执行优雅关闭逻辑。
	Stop(ctx context.Context) error
}

// Host 从注册表中解析托管服务 Bean 并管理其生命周期
type Host struct {
	reg             *di.Registry
	names           []string
	logger          logging.Logger
	shutdownTimeout time.Duration
}

// NewHost 创建 Host
func NewHost(reg *di.Registry, logger logging.Logger) *Host {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Host{
		reg:             reg,
		logger:          logger.WithCategory("hosting"),
		shutdownTimeout: 5 * time.Second,
	}
}

// AddService 添加托管服务的 Bean 名称，按添加顺序启动，逆序停止
func (h *Host) AddService(names ...string) *Host {
	h.names = append(h.names, names...)
	return h
}

// WithShutdownTimeout 设置停止阶段的超时时间
func (h *Host) WithShutdownTimeout(d time.Duration) *Host {
	h.shutdownTimeout = d
	return h
}

// resolve 在启动任何服务之前解析全部 Bean
func (h *Host) resolve() ([]HostedService, error) {
	services := make([]HostedService, 0, len(h.names))
	for _, name := range h.names {
		bean, err := h.reg.GetBean(name)
		if err != nil {
			return nil, fmt.Errorf("hosting: resolve %s: %w", name, err)
		}
		svc, ok := bean.(HostedService)
		if !ok {
			return nil, fmt.Errorf("hosting: bean %s (%T) is not a HostedService", name, bean)
		}
		services = append(services, svc)
	}
	return services, nil
}

// Run 启动所有服务并阻塞，直到 ctx 取消、某个服务返回错误或全部服务结束，随后逆序停止所有服务
func (h *Host) Run(ctx context.Context) error {
	services, err := h.resolve()
	if err != nil {
		return err
	}

	h.logger.Info(fmt.Sprintf("Starting %d hosted services", len(services)))

	g, gctx := errgroup.WithContext(ctx)
	for i, svc := range services {
		svc := svc
		name := h.names[i]
		g.Go(func() error {
			err := svc.Start(gctx)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				h.logger.Error("Hosted service error",
					logging.Field{Key: "service", Value: name},
					logging.Field{Key: "error", Value: err.Error()})
				return fmt.Errorf("hosting: %s: %w", name, err)
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-gctx.Done():
	case <-done:
	}

	h.stopAll(services)
	return g.Wait()
}

func (h *Host) stopAll(services []HostedService) {
	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()

	h.logger.Info(fmt.Sprintf("Stopping %d hosted services", len(services)))
	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Stop(ctx); err != nil {
			h.logger.Error("Failed to stop hosted service",
				logging.Field{Key: "service", Value: h.names[i]},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
	h.logger.Info("All hosted services stopped")
}

// RunUntilSignal 与 Run 相同，额外在收到 SIGINT / SIGTERM 时退出
func (h *Host) RunUntilSignal(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return h.Run(ctx)
}
