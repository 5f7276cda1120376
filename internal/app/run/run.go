package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/framefeed/internal/config"
	"github.com/John-Robertt/framefeed/internal/domain"
	"github.com/John-Robertt/framefeed/internal/frameseq"
	"github.com/John-Robertt/framefeed/internal/infra/cache"
	"github.com/John-Robertt/framefeed/internal/infra/httpx"
	"github.com/John-Robertt/framefeed/internal/infra/metrics"
	"github.com/John-Robertt/framefeed/internal/loader"
	"github.com/John-Robertt/framefeed/internal/source"
)

// Deps 是 run 的外部依赖（全部可选）。
type Deps struct {
	// Source 为 nil 时按模板 scheme 构造（http/https 或本地文件）。
	Source  source.Source
	Logger  *zap.Logger
	Metrics *metrics.LoaderMetrics
	// Scheduler 为 nil 时使用 DelayScheduler(eff.IdleDelay)。
	Scheduler loader.Scheduler
}

// Execute 加载一次完整序列，并返回对外稳定的 RunReport。
// 单帧失败/超时只记录在 failures 中，不影响其他帧。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, deps, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/批次信息（由上层决定是否启用）。
//
// ctx 结束时停止等待：仍在队列/在途的帧计入 summary.pending。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Template:   eff.Template,
		Sequence:   eff.Sequence,
		FrameCount: eff.FrameCount,
		StartedAt:  started,
		Failures:   []domain.FrameFailure{},
	}
	fail := func(code string, err error) domain.RunReport {
		rr.Error = &domain.ReportError{Code: code, Msg: err.Error()}
		rr.Summary.Pending = eff.FrameCount
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	tpl, err := frameseq.ParseTemplate(eff.Template)
	if err != nil {
		return fail(domain.ErrCodeConfigInvalid, err)
	}

	src, err := buildSource(eff, deps, log)
	if err != nil {
		return fail(domain.ErrCodeSourceInvalid, err)
	}

	sched := deps.Scheduler
	if sched == nil {
		sched = loader.DelayScheduler(eff.IdleDelay)
	}

	opts := loader.Options{
		FrameCount:   eff.FrameCount,
		Template:     tpl,
		Source:       src,
		Sequence:     eff.Sequence,
		BatchSize:    eff.BatchSize,
		FrameTimeout: eff.FrameTimeout,
		Scheduler:    sched,
		Logger:       log,
		Metrics:      deps.Metrics,
	}
	if obs != nil {
		opts.Observer = obs
	}
	l, err := loader.New(opts)
	if err != nil {
		return fail(domain.ErrCodeConfigInvalid, err)
	}
	defer l.Close()

	if eff.Scrub.Enabled {
		scrubStarted := time.Now()
		st := Scrub(ctx, l, eff.Scrub.Duration, eff.Scrub.FPS)
		rr.Scrub = &st
		if obs != nil {
			obs.OnScrubDone(st, time.Since(scrubStarted))
		}
	}

	if err := l.Wait(ctx); err != nil {
		log.Warn("等待加载完成被中断", zap.Error(err))
	}

	st := l.Stats()
	rr.Summary.Loaded = st.Loaded
	rr.Summary.Pending = st.Pending + st.InFlight
	for _, o := range l.Failures() {
		f := domain.FrameFailure{Index: o.Index, Path: o.Path, Reason: o.Result}
		if o.Err != nil {
			f.Error = o.Err.Error()
		}
		rr.Failures = append(rr.Failures, f)
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

func buildSource(eff config.EffectiveConfig, deps Deps, log *zap.Logger) (source.Source, error) {
	src := deps.Source
	if src == nil {
		kind, err := source.Kind(eff.Template)
		if err != nil {
			return nil, err
		}
		if kind == "http" {
			c, err := httpx.NewFrameClient(eff.ProxyURL)
			if err != nil {
				return nil, fmt.Errorf("proxy.url 无效：%w", err)
			}
			src, err = source.New(eff.Template, c)
			if err != nil {
				return nil, err
			}
		} else {
			src = source.Dir{}
		}
	}
	if eff.Cache {
		if eff.CacheRoot == "" {
			return nil, errors.New("cache=true 但 cache root 为空")
		}
		src = source.Cached{
			Next:     src,
			Store:    cache.New(eff.CacheRoot, false),
			Sequence: eff.Sequence,
			Logger:   log,
		}
	}
	return src, nil
}
