package loader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/framefeed/internal/app/planner"
	"github.com/John-Robertt/framefeed/internal/domain"
	"github.com/John-Robertt/framefeed/internal/frameseq"
	"github.com/John-Robertt/framefeed/internal/infra/imgx"
	"github.com/John-Robertt/framefeed/internal/infra/metrics"
	"github.com/John-Robertt/framefeed/internal/source"
)

const (
	// DefaultBatchSize 是每批并发拉取的帧数：有界并发，避免大序列打满网络。
	DefaultBatchSize = 4
	// DefaultFrameTimeout 是单帧超时：超时即跳过，保证网络卡住时仍能前进。
	DefaultFrameTimeout = 2 * time.Second
	// DefaultIdleDelay 是批次之间的让出间隔（约一帧 @60fps）。
	DefaultIdleDelay = 16 * time.Millisecond
)

// ErrFrameTimeout 表示单帧在 FrameTimeout 内没有落定。
var ErrFrameTimeout = errors.New("帧加载超时")

// Options 是 Loader 的构造参数。FrameCount/Template/Source 必填，其余有默认值。
type Options struct {
	FrameCount int
	Template   frameseq.Template
	Source     source.Source

	// Sequence 只用于日志与指标标签。
	Sequence string

	BatchSize    int
	FrameTimeout time.Duration
	Scheduler    Scheduler

	Observer Observer
	Logger   *zap.Logger
	Metrics  *metrics.LoaderMetrics
}

// Stats 是 loader 状态的一次快照。
type Stats struct {
	FrameCount int
	Loaded     int
	Pending    int
	InFlight   int
	Failed     int
	TimedOut   int
	Progress   float64
}

// Loader 是渐进式帧加载器。
//
// 任一时刻，[1, N] 中每个帧号恰好处于 {已加载, 待拉取, 拉取中, 已放弃} 之一。
// GetFrame/PrioritizeFrame 只读写内存结构，不会因网络 I/O 阻塞，可以在渲染循环的每一帧调用。
type Loader struct {
	n         int
	tpl       frameseq.Template
	src       source.Source
	seq       string
	batchSize int
	timeout   time.Duration
	sched     Scheduler
	obs       Observer
	log       *zap.Logger
	metrics   *metrics.LoaderMetrics

	// ctx 在 Close 时取消，用于中断仍在进行的请求。
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.RWMutex
	store      *store
	queue      *queue
	inflight   map[int]struct{}
	failed     map[int]domain.FrameOutcome
	processing bool
	mounted    bool
	progress   float64
	cancelNext func()
	done       chan struct{}
	doneClosed bool
}

// New 构造 Loader：按三档优先级播种队列，并立即开始拉取第一批。
func New(opts Options) (*Loader, error) {
	if opts.FrameCount < 1 {
		return nil, fmt.Errorf("frame_count 必须 >= 1，实际 %d", opts.FrameCount)
	}
	if opts.Template.IsZero() {
		return nil, errors.New("template 不能为空")
	}
	if opts.Source == nil {
		return nil, errors.New("source 不能为空")
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	timeout := opts.FrameTimeout
	if timeout <= 0 {
		timeout = DefaultFrameTimeout
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = DelayScheduler(DefaultIdleDelay)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		n:         opts.FrameCount,
		tpl:       opts.Template,
		src:       opts.Source,
		seq:       opts.Sequence,
		batchSize: batchSize,
		timeout:   timeout,
		sched:     sched,
		obs:       opts.Observer,
		log:       log.With(zap.String("sequence", opts.Sequence)),
		metrics:   opts.Metrics,
		ctx:       ctx,
		cancel:    cancel,
		store:     newStore(opts.FrameCount),
		queue:     newQueue(planner.SeedOrder(opts.FrameCount)),
		inflight:  make(map[int]struct{}, batchSize),
		failed:    make(map[int]domain.FrameOutcome),
		mounted:   true,
		done:      make(chan struct{}),
	}
	l.metrics.SetProgress(l.seq, 0)

	l.processQueue()
	return l, nil
}

// FrameCount 返回 N。
func (l *Loader) FrameCount() int { return l.n }

// GetFrame 返回 pos 处“最佳可用帧”。
//
// pos 先截断到 [1, N]，小数向上取整（动画进度落在两帧之间时取下一帧边界）。
// 命中则直接返回；未命中则向 1 回退，返回最近的已加载帧；一帧都没有时返回 ok=false。
// 纯读操作：不阻塞、不触发拉取。
func (l *Loader) GetFrame(pos float64) (domain.Frame, bool) {
	target := ClampIndex(pos, l.n)

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store.nearest(target)
}

// PrioritizeFrame 把仍在队列中的帧 i 移到队首；若拉取器空闲则立即开始下一批。
//
// 已加载、正在拉取、已放弃或越界的帧不改变队列。
func (l *Loader) PrioritizeFrame(i int) {
	if i < 1 || i > l.n {
		return
	}

	l.mu.Lock()
	if !l.mounted || l.store.has(i) {
		l.mu.Unlock()
		return
	}
	moved := l.queue.moveToFront(i)
	idle := !l.processing
	l.mu.Unlock()

	if moved {
		l.metrics.RecordPrioritize(l.seq)
	}
	if idle {
		l.processQueue()
	}
}

// Progress 返回 |已加载| / N，范围 [0, 1]。
func (l *Loader) Progress() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.progress
}

// Done 在队列耗尽且没有批次在进行时关闭；Close 也会关闭它。
func (l *Loader) Done() <-chan struct{} { return l.done }

// Wait 阻塞直到 Done 或 ctx 结束。
func (l *Loader) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats 返回当前状态快照。
func (l *Loader) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st := Stats{
		FrameCount: l.n,
		Loaded:     l.store.len(),
		Pending:    l.queue.len(),
		InFlight:   len(l.inflight),
		Progress:   l.progress,
	}
	for _, o := range l.failed {
		if o.Result == domain.FrameResultTimeout {
			st.TimedOut++
		} else {
			st.Failed++
		}
	}
	return st
}

// Failures 返回被跳过的帧（按帧号升序）。
func (l *Loader) Failures() []domain.FrameOutcome {
	l.mu.RLock()
	out := make([]domain.FrameOutcome, 0, len(l.failed))
	for _, o := range l.failed {
		out = append(out, o)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Close 卸载 loader：清空队列、取消在途请求，并等待后台批次退出。
//
// 在途请求的结果会被丢弃：Close 返回后 Frame Store 不再变化。可重复调用。
func (l *Loader) Close() {
	l.mu.Lock()
	if !l.mounted {
		l.mu.Unlock()
		l.wg.Wait()
		return
	}
	l.mounted = false
	l.queue.clear()
	if l.cancelNext != nil {
		l.cancelNext()
		l.cancelNext = nil
	}
	l.closeDoneLocked()
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
}

// processQueue 从队首取一批并发拉取。
//
// 幂等、可重入：已有批次在进行（或已关闭、队列为空）时直接返回。
func (l *Loader) processQueue() {
	l.mu.Lock()
	if !l.mounted || l.processing {
		l.mu.Unlock()
		return
	}
	if l.queue.len() == 0 {
		l.closeDoneLocked()
		l.mu.Unlock()
		return
	}
	batch := l.queue.popFront(l.batchSize)
	for _, i := range batch {
		l.inflight[i] = struct{}{}
	}
	l.processing = true
	l.wg.Add(1)
	l.mu.Unlock()

	if l.obs != nil {
		l.obs.OnBatchStart(append([]int(nil), batch...))
	}
	go l.runBatch(batch)
}

func (l *Loader) runBatch(batch []int) {
	defer l.wg.Done()
	started := time.Now()

	frames := make([]*domain.Frame, len(batch))
	outcomes := make([]domain.FrameOutcome, len(batch))

	// 每帧失败/超时都“当作成功落定”返回 nil：一帧坏掉不能拖住整批。
	var g errgroup.Group
	for k, idx := range batch {
		g.Go(func() error {
			frames[k], outcomes[k] = l.loadOne(idx)
			return nil
		})
	}
	_ = g.Wait()

	l.mu.Lock()
	mounted := l.mounted
	for k, idx := range batch {
		delete(l.inflight, idx)
		if !mounted {
			outcomes[k].Result = domain.FrameResultDiscarded
			continue
		}
		if frames[k] != nil {
			l.store.put(*frames[k])
			continue
		}
		l.failed[idx] = outcomes[k]
	}
	loaded := l.store.len()
	if mounted {
		l.progress = float64(loaded) / float64(l.n)
	}
	progress := l.progress
	l.processing = false
	l.mu.Unlock()

	for _, o := range outcomes {
		l.metrics.RecordFrame(l.seq, o.Result)
	}
	if !mounted {
		return
	}

	l.metrics.RecordBatch(l.seq, time.Since(started))
	l.metrics.SetProgress(l.seq, progress)
	l.log.Debug("批次完成",
		zap.Ints("batch", batch),
		zap.Int("loaded", loaded),
		zap.Float64("progress", progress),
		zap.Duration("dur", time.Since(started)),
	)
	if l.obs != nil {
		for _, o := range outcomes {
			l.obs.OnFrameDone(o)
		}
		l.obs.OnProgress(loaded, l.n, progress)
	}

	l.scheduleNext()
}

// scheduleNext 在队列非空时通过 Scheduler 让出后继续下一批；队列耗尽则关闭 Done。
func (l *Loader) scheduleNext() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.mounted || l.processing {
		// 关闭，或 PrioritizeFrame 已经抢先启动了下一批。
		return
	}
	if l.queue.len() == 0 {
		l.closeDoneLocked()
		return
	}
	if l.cancelNext != nil {
		l.cancelNext()
	}
	l.cancelNext = l.sched.Schedule(l.processQueue)
}

// loadOne 拉取并校验单帧：加载与计时器赛跑，先落定者胜出。
//
// 返回 nil frame 表示跳过（失败/超时/已关闭）；不会重试。
func (l *Loader) loadOne(idx int) (*domain.Frame, domain.FrameOutcome) {
	path := l.tpl.Path(idx)
	out := domain.FrameOutcome{Index: idx, Path: path}

	ctx, cancel := context.WithTimeout(l.ctx, l.timeout)
	defer cancel()

	type result struct {
		b   []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		b, err := l.src.Fetch(ctx, path)
		ch <- result{b: b, err: err}
	}()

	var r result
	select {
	case r = <-ch:
	case <-ctx.Done():
		r = result{err: ctx.Err()}
	}

	if r.err != nil {
		switch {
		case l.ctx.Err() != nil:
			out.Result = domain.FrameResultDiscarded
			out.Err = r.err
		case errors.Is(r.err, context.DeadlineExceeded):
			out.Result = domain.FrameResultTimeout
			out.Err = ErrFrameTimeout
			l.log.Warn("帧加载超时，跳过", zap.Int("frame", idx), zap.String("path", path), zap.Duration("timeout", l.timeout))
		default:
			out.Result = domain.FrameResultFailed
			out.Err = r.err
			l.log.Warn("帧加载失败，跳过", zap.Int("frame", idx), zap.String("path", path), zap.Error(r.err))
		}
		return nil, out
	}

	info, err := imgx.Probe(r.b)
	if err != nil {
		out.Result = domain.FrameResultFailed
		out.Err = err
		l.log.Warn("帧不是有效图片，跳过", zap.Int("frame", idx), zap.String("path", path), zap.Error(err))
		return nil, out
	}

	out.Result = domain.FrameResultLoaded
	return &domain.Frame{
		Index:  idx,
		Path:   path,
		Data:   r.b,
		Format: info.Format,
		Width:  info.Width,
		Height: info.Height,
	}, out
}

func (l *Loader) closeDoneLocked() {
	if l.doneClosed {
		return
	}
	l.doneClosed = true
	close(l.done)
}

// ClampIndex 把动画位置映射为帧号：截断到 [1, n]，小数向上取整；NaN 视为 1。
func ClampIndex(pos float64, n int) int {
	if n < 1 {
		return 0
	}
	if math.IsNaN(pos) || pos <= 1 {
		return 1
	}
	if pos >= float64(n) {
		return n
	}
	return int(math.Ceil(pos))
}
