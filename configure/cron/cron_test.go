package cron_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/configure/cron"
	"github.com/gocrud/beans/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterJob struct {
	runs atomic.Int32
}

func (j *counterJob) Run() {
	j.runs.Add(1)
}

type notAJob struct{}

func runScheduler(t *testing.T, s *cron.Scheduler) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	return func() {
		cancel()
		require.NoError(t, <-done)
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		require.NoError(t, s.Stop(stopCtx))
	}
}

func TestBeanJobFromConfig(t *testing.T) {
	cfg, err := config.NewConfigurationBuilder().
		AddInMemory(map[string]any{
			"cron": map[string]any{
				"seconds":  true,
				"location": "UTC",
				"jobs": []any{
					map[string]any{"name": "count", "spec": "@every 1s", "bean": "counter"},
				},
			},
		}).
		Build()
	require.NoError(t, err)

	reg := di.New()
	reg.RegisterType("counter", di.TypeOf[*counterJob]())
	require.NoError(t, cron.Register(reg, cfg, nil))

	s, err := di.Resolve[*cron.Scheduler](reg, cron.SchedulerBean)
	require.NoError(t, err)
	assert.Equal(t, []string{"count"}, s.Jobs())

	counter := di.MustResolve[*counterJob](reg, "counter")
	stop := runScheduler(t, s)
	assert.Eventually(t, func() bool { return counter.runs.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
	stop()
}

func TestFuncJob(t *testing.T) {
	var runs atomic.Int32
	reg := di.New()
	require.NoError(t, cron.Configure(reg, nil, func(b *cron.Builder) {
		b.WithSeconds().SkipIfRunning().AddJob("* * * * * *", "tick", func() { runs.Add(1) })
	}))

	s := di.MustResolve[*cron.Scheduler](reg, cron.SchedulerBean)
	entry, ok := s.Entry("tick")
	require.True(t, ok)
	assert.NotNil(t, entry.Schedule)

	stop := runScheduler(t, s)
	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
	stop()

	assert.True(t, s.Remove("tick"))
	assert.False(t, s.Remove("tick"))
	assert.Empty(t, s.Jobs())
}

func TestPanickingJobIsRecovered(t *testing.T) {
	var runs atomic.Int32
	reg := di.New()
	require.NoError(t, cron.Configure(reg, nil, func(b *cron.Builder) {
		b.WithSeconds().AddJob("@every 1s", "boom", func() {
			runs.Add(1)
			panic("boom")
		})
	}))

	s := di.MustResolve[*cron.Scheduler](reg, cron.SchedulerBean)
	stop := runScheduler(t, s)
	assert.Eventually(t, func() bool { return runs.Load() > 1 }, 5*time.Second, 50*time.Millisecond)
	stop()
}

func TestConfigurationErrors(t *testing.T) {
	reg := di.New()
	err := cron.Configure(reg, nil, func(b *cron.Builder) {
		b.AddJob("not a spec", "bad", func() {})
		b.AddJob("@hourly", "dup", func() {})
		b.AddJob("@hourly", "dup", func() {})
		b.AddJob("@hourly", "", func() {})
		b.AddJob("@hourly", "nil", nil)
		b.AddBeanJob("@hourly", "nobean", "")
		b.WithLocation("Mars/Olympus")
	})
	require.Error(t, err)
	for _, want := range []string{"'bad'", "'dup' already configured", "name is required", "'nil' has no handler", "'nobean' has no bean", "Mars/Olympus"} {
		assert.Contains(t, err.Error(), want)
	}
	assert.False(t, reg.Has(cron.SchedulerBean))
}

func TestSecondsFieldRequiresWithSeconds(t *testing.T) {
	err := cron.Configure(di.New(), nil, func(b *cron.Builder) {
		b.AddJob("*/5 * * * * *", "six", func() {})
	})
	assert.ErrorContains(t, err, "'six'")

	err = cron.Configure(di.New(), nil, func(b *cron.Builder) {
		b.AddJob("*/5 * * * *", "five", func() {})
	})
	assert.NoError(t, err)
}

func TestMissingBeanIsNotCached(t *testing.T) {
	reg := di.New()
	require.NoError(t, cron.Configure(reg, nil, func(b *cron.Builder) {
		b.AddBeanJob("@hourly", "count", "counter")
	}))

	_, err := reg.GetBean(cron.SchedulerBean)
	assert.ErrorIs(t, err, di.ErrBindingNotFound)

	reg.RegisterType("counter", di.TypeOf[*counterJob]())
	s, err := di.Resolve[*cron.Scheduler](reg, cron.SchedulerBean)
	require.NoError(t, err)
	assert.Equal(t, []string{"count"}, s.Jobs())
}

func TestBeanMustImplementJob(t *testing.T) {
	reg := di.New()
	reg.RegisterType("plain", di.TypeOf[*notAJob]())
	require.NoError(t, cron.Configure(reg, nil, func(b *cron.Builder) {
		b.AddBeanJob("@hourly", "plain", "plain")
	}))

	_, err := reg.GetBean(cron.SchedulerBean)
	var injErr *di.InjectionError
	require.ErrorAs(t, err, &injErr)
	assert.Contains(t, err.Error(), "cron.Job")
}

func TestRegisterWithoutSection(t *testing.T) {
	cfg, err := config.NewConfigurationBuilder().Build()
	require.NoError(t, err)

	reg := di.New()
	require.NoError(t, cron.Register(reg, cfg, nil))
	s := di.MustResolve[*cron.Scheduler](reg, cron.SchedulerBean)
	assert.Empty(t, s.Jobs())
}
