package main

import (
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/John-Robertt/framefeed/internal/app/run"
	"github.com/John-Robertt/framefeed/internal/config"
	"github.com/John-Robertt/framefeed/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是一个“简洁版”的交互终端进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run/loader 只发事件，CLI 决定如何展示
// - 每个批次一行；失败/超时的帧单独一行
// - keepalive：长时间没有批次完成时也会定期输出一行，降低等待焦虑
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total    int
	loaded   int
	fail     int
	timeout  int
	batches  int
	inFlight []int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.startedAt.IsZero() {
		p.startedAt = now
	}
	p.total = eff.FrameCount

	fmt.Fprintf(p.w, "[%s] framefeed run\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  template: %s\n", truncate(eff.Template, 160))
	fmt.Fprintf(p.w, "  frames: %d\n", eff.FrameCount)
	fmt.Fprintf(p.w, "  sequence: %s\n", eff.Sequence)
	fmt.Fprintf(p.w, "  batch_size: %d\n", eff.BatchSize)
	fmt.Fprintf(p.w, "  frame_timeout: %s\n", eff.FrameTimeout)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  cache: %s\n", onOff(eff.Cache))
	if eff.Scrub.Enabled {
		fmt.Fprintf(p.w, "  scrub: on (%s @ %dfps)\n", eff.Scrub.Duration, eff.Scrub.FPS)
	} else {
		fmt.Fprintln(p.w, "  scrub: off")
	}
	if eff.MetricsAddr != "" {
		fmt.Fprintf(p.w, "  metrics: http://%s/metrics\n", eff.MetricsAddr)
	}
	if eff.Cache {
		fmt.Fprintln(p.w, "输出:")
		fmt.Fprintf(p.w, "  cache: %s\n", filepath.Join(eff.CacheRoot, "cache", "frames", eff.Sequence))
		fmt.Fprintf(p.w, "  report: %s\n", filepath.Join(eff.CacheRoot, "cache", "report.json"))
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
	if p.total > 0 && !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnBatchStart(batch []int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = append(p.inFlight[:0], batch...)
}

func (p *progressUI) OnFrameDone(o domain.FrameOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch o.Result {
	case domain.FrameResultFailed:
		p.fail++
		fmt.Fprintf(p.w, "  #%03d FAIL %s: %s\n", o.Index, truncate(o.Path, 120), truncate(errString(o.Err), 160))
		p.lastPrinted = time.Now()
	case domain.FrameResultTimeout:
		p.timeout++
		fmt.Fprintf(p.w, "  #%03d TIMEOUT %s\n", o.Index, truncate(o.Path, 120))
		p.lastPrinted = time.Now()
	}
}

func (p *progressUI) OnProgress(loaded, total int, progress float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.batches++
	p.loaded = loaded
	p.total = total
	p.inFlight = p.inFlight[:0]

	fmt.Fprintf(p.w, "[%d/%d] %5.1f%% batch=%d fail=%d timeout=%d elapsed=%s\n",
		loaded, total, progress*100, p.batches, p.fail, p.timeout, formatElapsed(time.Since(p.startedAt)),
	)
	p.lastPrinted = time.Now()

	// 所有帧都已落定：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted && p.loaded+p.fail+p.timeout >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) OnScrubDone(st domain.ScrubStats, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "拖动模拟: ticks=%d exact=%d held=%d missing=%d (%s)\n",
		st.Ticks, st.Exact, st.Held, st.Missing, formatShortDuration(dur),
	)
	p.lastPrinted = time.Now()
}

// Close 停止 keepalive（run 提前结束时由 CLI 调用）。
func (p *progressUI) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stop := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "进度: loaded=%d/%d fail=%d timeout=%d active=%s elapsed=%s\n",
						p.loaded, p.total, p.fail, p.timeout, formatFrames(p.inFlight), formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

// formatFrames 把帧号列表格式化为 "[7 8 9]"；空列表为 "-"。
func formatFrames(xs []int) string {
	if len(xs) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(xs))
	for _, x := range xs {
		parts = append(parts, fmt.Sprintf("%d", x))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// truncate 按字符（rune）截断，避免把中文等多字节字符切成半个。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
