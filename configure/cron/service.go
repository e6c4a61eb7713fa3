package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gocrud/beans/logging"
	"github.com/robfig/cron/v3"
)

// Scheduler Cron 定时任务托管服务，实现 hosting.HostedService
type Scheduler struct {
	cron   *cron.Cron
	logger logging.Logger
	mu     sync.RWMutex
	jobs   map[string]cron.EntryID // 任务名称到任务ID的映射
}

// newScheduler 根据配置创建调度器，任务由 Builder 添加
func newScheduler(logger logging.Logger, opts CronOptions) (*Scheduler, error) {
	loc, err := opts.location()
	if err != nil {
		return nil, err
	}

	cronOpts := []cron.Option{
		cron.WithParser(opts.parser()),
		cron.WithLocation(loc),
	}

	// 只在启用时添加 cron 库的日志记录器
	if opts.SchedulerLog {
		cronOpts = append(cronOpts, cron.WithLogger(newCronLogger(logger)))
	}

	wrappers := []cron.JobWrapper{cron.Recover(newCronLogger(logger))}
	if opts.SkipIfRunning {
		wrappers = append(wrappers, cron.SkipIfStillRunning(newCronLogger(logger)))
	}
	cronOpts = append(cronOpts, cron.WithChain(wrappers...))

	return &Scheduler{
		cron:   cron.New(cronOpts...),
		logger: logger,
		jobs:   make(map[string]cron.EntryID),
	}, nil
}

// schedule 以已解析的计划添加任务
func (s *Scheduler) schedule(name string, sched cron.Schedule, job cron.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID := s.cron.Schedule(sched, cron.FuncJob(func() {
		s.logger.Debug(fmt.Sprintf("Cron job '%s' started", name))
		defer s.logger.Debug(fmt.Sprintf("Cron job '%s' completed", name))
		job.Run()
	}))
	s.jobs[name] = entryID
}

// Remove 移除定时任务，返回任务是否存在
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, exists := s.jobs[name]
	if !exists {
		return false
	}
	s.cron.Remove(entryID)
	delete(s.jobs, name)
	s.logger.Info(fmt.Sprintf("Cron job '%s' removed", name))
	return true
}

// Jobs 返回已注册的任务名称（按名称排序）
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entry 返回任务的调度信息
func (s *Scheduler) Entry(name string) (cron.Entry, bool) {
	s.mu.RLock()
	entryID, exists := s.jobs[name]
	s.mu.RUnlock()
	if !exists {
		return cron.Entry{}, false
	}
	return s.cron.Entry(entryID), true
}

// Start 启动调度并阻塞直到上下文取消
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info(fmt.Sprintf("Cron scheduler starting with %d jobs", len(s.Jobs())))
	s.cron.Start()

	<-ctx.Done()
	return nil
}

// Stop 停止调度，等待正在运行的任务完成或 ctx 超时
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("Cron scheduler stopping")

	stopCtx := s.cron.Stop()

	select {
	case <-stopCtx.Done():
		s.logger.Info("Cron scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Cron scheduler stop timeout, running jobs abandoned")
		return ctx.Err()
	}
}

// cronLogger 适配器：将框架日志接口适配到 cron 的日志接口
type cronLogger struct {
	logger logging.Logger
}

func newCronLogger(logger logging.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, convertToFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := convertToFields(keysAndValues)
	fields = append(fields, logging.Field{Key: "error", Value: err.Error()})
	l.logger.Error(msg, fields...)
}

func convertToFields(keysAndValues []any) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Field{
			Key:   fmt.Sprintf("%v", keysAndValues[i]),
			Value: keysAndValues[i+1],
		})
	}
	return fields
}
