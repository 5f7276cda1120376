package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	ErrCodeConfigNotFound        = "config_not_found"
	ErrCodeConfigInvalid         = "config_invalid"
	ErrCodeConfigMissingTemplate = "config_missing_template"
	ErrCodeSourceInvalid         = "source_invalid"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	Template   string `json:"template"`
	Sequence   string `json:"sequence"`
	FrameCount int    `json:"frame_count"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary  ReportSummary  `json:"summary"`
	Failures []FrameFailure `json:"failures"`
	Scrub    *ScrubStats    `json:"scrub,omitempty"`
	Error    *ReportError   `json:"error,omitempty"`
}

type ReportSummary struct {
	Loaded   int     `json:"loaded"`
	Failed   int     `json:"failed"`
	TimedOut int     `json:"timed_out"`
	Pending  int     `json:"pending"`
	Progress float64 `json:"progress"`
}

// FrameFailure 记录一个被跳过的帧（出错或超时）。
type FrameFailure struct {
	Index  int    `json:"index"`
	Path   string `json:"path"`
	Reason string `json:"reason"` // FrameResultFailed / FrameResultTimeout
	Error  string `json:"error"`
}

// ScrubStats 是模拟渲染循环的统计。
//
// Held：返回的帧早于目标帧（回退到更早的已加载帧）；Missing：尚无任何帧可用。
type ScrubStats struct {
	Ticks   int `json:"ticks"`
	Exact   int `json:"exact"`
	Held    int `json:"held"`
	Missing int `json:"missing"`
}

// ReportError 是运行前置阶段（配置/数据源）的失败。
type ReportError struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) failures 稳定排序：按帧号升序
// 3) summary 的失败计数由 failures 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Failures == nil {
		r.Failures = []FrameFailure{}
	}
	sort.SliceStable(r.Failures, func(i, j int) bool { return r.Failures[i].Index < r.Failures[j].Index })

	r.Summary.Failed = 0
	r.Summary.TimedOut = 0
	for _, f := range r.Failures {
		switch f.Reason {
		case FrameResultTimeout:
			r.Summary.TimedOut++
		default:
			r.Summary.Failed++
		}
	}
	if r.FrameCount > 0 {
		r.Summary.Progress = float64(r.Summary.Loaded) / float64(r.FrameCount)
	}
}

// Complete 表示所有帧都已加载（CLI 用它决定退出码）。
func (r RunReport) Complete() bool {
	return r.Error == nil && r.FrameCount > 0 && r.Summary.Loaded == r.FrameCount
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
