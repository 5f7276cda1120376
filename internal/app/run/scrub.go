package run

import (
	"context"
	"time"

	"github.com/John-Robertt/framefeed/internal/domain"
	"github.com/John-Robertt/framefeed/internal/loader"
)

// maxScrubFPS 保证 tick 间隔不小于 1ms（time.NewTicker 不接受非正间隔）。
const maxScrubFPS = 1000

// FrameQuerier 是渲染循环对 loader 的全部依赖。
type FrameQuerier interface {
	FrameCount() int
	GetFrame(pos float64) (domain.Frame, bool)
	PrioritizeFrame(i int)
}

// Scrub 模拟一个从第 1 帧匀速拖到第 N 帧的渲染循环：共 ceil(d*fps) 步，每步间隔 1/fps。
//
// 每个 tick：先把当前帧与下一帧提到队首，再取“最佳可用帧”，
// 并按返回结果统计 exact（正好是目标帧）/ held（回退到更早的帧）/ missing（还没有任何帧）。
// 第一个 tick 落在第 1 帧，最后一个 tick 一定落在第 N 帧；ctx 结束时提前返回已统计部分。
func Scrub(ctx context.Context, q FrameQuerier, d time.Duration, fps int) domain.ScrubStats {
	if fps < 1 {
		fps = 1
	}
	if fps > maxScrubFPS {
		fps = maxScrubFPS
	}
	n := q.FrameCount()
	steps := 0
	if d > 0 {
		steps = int((int64(d)*int64(fps) + int64(time.Second) - 1) / int64(time.Second))
	}

	t := time.NewTicker(time.Second / time.Duration(fps))
	defer t.Stop()

	var st domain.ScrubStats
	for k := 0; ; k++ {
		pos, last := scrubPosition(k, steps, n)
		target := loader.ClampIndex(pos, n)

		q.PrioritizeFrame(target)
		if target < n {
			q.PrioritizeFrame(target + 1)
		}

		f, ok := q.GetFrame(pos)
		st.Ticks++
		switch {
		case !ok:
			st.Missing++
		case f.Index == target:
			st.Exact++
		default:
			st.Held++
		}

		if last {
			return st
		}
		select {
		case <-ctx.Done():
			return st
		case <-t.C:
		}
	}
}

// scrubPosition 把第 k 步线性映射到 [1, n] 上的动画位置；last=true 表示已到终点。
func scrubPosition(k, steps, n int) (pos float64, last bool) {
	if steps <= 0 || k >= steps || n <= 1 {
		return float64(n), true
	}
	if k < 0 {
		k = 0
	}
	return 1 + float64(k)*float64(n-1)/float64(steps), false
}
