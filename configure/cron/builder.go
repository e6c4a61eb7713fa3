package cron

import (
	"errors"
	"fmt"
	"time"

	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/logging"
	"github.com/robfig/cron/v3"
)

const (
	// Section 默认配置节
	Section = "cron"
	// SchedulerBean 调度器的 Bean 名称
	SchedulerBean = "cron.scheduler"
)

// CronOptions 调度器配置
//
//	cron:
//	  seconds: true
//	  location: Asia/Shanghai
//	  jobs:
//	    - name: cleanup
//	      spec: "0 */5 * * * *"
//	      bean: cleanupJob
type CronOptions struct {
	Seconds       bool         `json:"seconds"`       // 启用秒级精度
	Location      string       `json:"location"`      // 时区，默认 UTC
	SchedulerLog  bool         `json:"schedulerLog"`  // 启用 cron 库的内部调度日志
	SkipIfRunning bool         `json:"skipIfRunning"` // 上一次未结束时跳过本次执行
	Jobs          []JobOptions `json:"jobs"`
}

// JobOptions 配置文件中声明的任务，Bean 必须实现 cron.Job
type JobOptions struct {
	Name string `json:"name"`
	Spec string `json:"spec"`
	Bean string `json:"bean"`
}

func (o CronOptions) parser() cron.Parser {
	fields := cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor
	if o.Seconds {
		fields |= cron.Second
	}
	return cron.NewParser(fields)
}

func (o CronOptions) location() (*time.Location, error) {
	if o.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(o.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid cron location '%s': %w", o.Location, err)
	}
	return loc, nil
}

// jobDefinition 任务定义，fn 与 bean 二选一
type jobDefinition struct {
	name     string
	spec     string
	schedule cron.Schedule
	fn       func()
	bean     string
}

// Builder Cron 配置构建器
type Builder struct {
	options CronOptions
	jobs    []jobDefinition
	names   map[string]struct{}
	errors  []error
}

// NewBuilder 创建 Cron 构建器
func NewBuilder() *Builder {
	return &Builder{
		names: make(map[string]struct{}),
	}
}

// WithSeconds 启用秒级精度（六段表达式）
func (b *Builder) WithSeconds() *Builder {
	b.options.Seconds = true
	return b
}

// WithLocation 设置时区
func (b *Builder) WithLocation(location string) *Builder {
	b.options.Location = location
	return b
}

// EnableCronLogger 启用 cron 库的内部调度日志
func (b *Builder) EnableCronLogger() *Builder {
	b.options.SchedulerLog = true
	return b
}

// SkipIfRunning 上一次执行未结束时跳过本次执行
func (b *Builder) SkipIfRunning() *Builder {
	b.options.SkipIfRunning = true
	return b
}

// AddJob 添加函数任务
func (b *Builder) AddJob(spec, name string, handler func()) *Builder {
	if handler == nil {
		b.errors = append(b.errors, fmt.Errorf("cron job '%s' has no handler", name))
		return b
	}
	b.add(jobDefinition{name: name, spec: spec, fn: handler})
	return b
}

// AddBeanJob 添加由 Bean 执行的任务，Bean 必须实现 cron.Job，在创建调度器时解析
//
//	builder.AddBeanJob("0 */5 * * * *", "sync-data", "syncJob")
func (b *Builder) AddBeanJob(spec, name, bean string) *Builder {
	if bean == "" {
		b.errors = append(b.errors, fmt.Errorf("cron job '%s' has no bean", name))
		return b
	}
	b.add(jobDefinition{name: name, spec: spec, bean: bean})
	return b
}

func (b *Builder) add(job jobDefinition) {
	if job.name == "" {
		b.errors = append(b.errors, fmt.Errorf("cron job name is required (spec '%s')", job.spec))
		return
	}
	if _, exists := b.names[job.name]; exists {
		b.errors = append(b.errors, fmt.Errorf("cron job '%s' already configured", job.name))
		return
	}
	b.names[job.name] = struct{}{}
	b.jobs = append(b.jobs, job)
}

// LoadConfig 从配置节读取调度器选项和任务
func (b *Builder) LoadConfig(cfg config.Configuration, section string) *Builder {
	if !cfg.Exists(section) {
		return b
	}
	var opts CronOptions
	if err := cfg.Bind(section, &opts); err != nil {
		b.errors = append(b.errors, fmt.Errorf("cron: %w", err))
		return b
	}

	b.options.Seconds = b.options.Seconds || opts.Seconds
	b.options.SchedulerLog = b.options.SchedulerLog || opts.SchedulerLog
	b.options.SkipIfRunning = b.options.SkipIfRunning || opts.SkipIfRunning
	if opts.Location != "" {
		b.options.Location = opts.Location
	}
	for _, job := range opts.Jobs {
		b.AddBeanJob(job.Spec, job.Name, job.Bean)
	}
	return b
}

// Register 校验全部任务并将调度器注册为延迟创建的 Bean。
// Bean 任务作为调度器的依赖声明，缺失或类型不符时解析调度器失败且不会缓存。
func (b *Builder) Register(reg *di.Registry, logger logging.Logger) error {
	errs := append([]error(nil), b.errors...)
	if _, err := b.options.location(); err != nil {
		errs = append(errs, err)
	}

	parser := b.options.parser()
	for i := range b.jobs {
		sched, err := parser.Parse(b.jobs[i].spec)
		if err != nil {
			errs = append(errs, fmt.Errorf("cron job '%s': invalid spec '%s': %w", b.jobs[i].name, b.jobs[i].spec, err))
			continue
		}
		b.jobs[i].schedule = sched
	}
	if len(errs) > 0 {
		return fmt.Errorf("cron configuration errors: %w", errors.Join(errs...))
	}

	opts := b.options
	jobs := append([]jobDefinition(nil), b.jobs...)
	logger = logger.WithCategory("cron")

	inject := make([]di.BindingOption, 0, len(jobs))
	for _, job := range jobs {
		if job.bean == "" {
			continue
		}
		inject = append(inject, di.Inject(job.bean, func(instance, dependency any) error {
			runner, ok := dependency.(cron.Job)
			if !ok {
				return fmt.Errorf("bean %s (%T) does not implement cron.Job", job.bean, dependency)
			}
			instance.(*Scheduler).schedule(job.name, job.schedule, runner)
			return nil
		}))
	}

	di.Provide(reg, SchedulerBean, func() (*Scheduler, error) {
		s, err := newScheduler(logger, opts)
		if err != nil {
			return nil, err
		}
		for _, job := range jobs {
			if job.fn != nil {
				s.schedule(job.name, job.schedule, cron.FuncJob(job.fn))
			}
		}
		return s, nil
	}, inject...)

	for _, job := range jobs {
		logger.Info(fmt.Sprintf("Cron job '%s' registered with spec '%s'", job.name, job.spec))
	}
	return nil
}
