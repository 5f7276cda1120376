package run

import (
	"time"

	"github.com/John-Robertt/framefeed/internal/config"
	"github.com/John-Robertt/framefeed/internal/domain"
	"github.com/John-Robertt/framefeed/internal/loader"
)

// Observer 用于把“运行进度/批次/单帧结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：批次事件来自 loader 的后台 goroutine。
type Observer interface {
	loader.Observer

	// OnStart 在 ExecuteWithObserver 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig)
	// OnScrubDone 在模拟拖动结束时调用（仅 scrub.enabled=true）。
	OnScrubDone(st domain.ScrubStats, dur time.Duration)
}
