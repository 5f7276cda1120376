package loader

import "github.com/John-Robertt/framefeed/internal/domain"

// Observer 接收加载过程事件（进度 UI、统计、测试断言）。
//
// 约束：
// - 回调在 loader 锁外、由后台 goroutine 调用，实现必须并发安全
// - 回调不应阻塞：会拖慢下一批次的调度
// - loader 关闭后不再发出 OnFrameDone/OnProgress
type Observer interface {
	// OnBatchStart 在一个批次从队首取出后调用，batch 按拉取顺序排列。
	OnBatchStart(batch []int)
	// OnFrameDone 在单帧落定（loaded/failed/timeout）后调用。
	OnFrameDone(o domain.FrameOutcome)
	// OnProgress 在每个批次结束后调用；progress = loaded / total。
	OnProgress(loaded, total int, progress float64)
}
