package loader

import (
	"runtime"
	"time"
)

// Scheduler 决定两个批次之间如何“让出并继续”。
//
// Schedule 必须异步执行 fn，并返回一个取消函数（Close 时调用；fn 已执行时取消为 no-op）。
type Scheduler interface {
	Schedule(fn func()) (cancel func())
}

// DelayScheduler 在固定延迟后执行下一批：批次之间给渲染循环与交互留出时间片。
type DelayScheduler time.Duration

func (d DelayScheduler) Schedule(fn func()) func() {
	t := time.AfterFunc(time.Duration(d), fn)
	return func() { t.Stop() }
}

// YieldScheduler 让出一次调度后立即执行下一批（吞吐优先，常用于批处理/测试）。
type YieldScheduler struct{}

func (YieldScheduler) Schedule(fn func()) func() {
	go func() {
		runtime.Gosched()
		fn()
	}()
	return func() {}
}
