package discover

import (
	"errors"
	"fmt"

	"github.com/John-Robertt/framefeed/internal/frameseq"
)

// Result 是一次 discover 的输出：最佳序列 + 其余候选。
type Result struct {
	Origin     string              `json:"origin"` // 页面 URL 或目录
	Best       frameseq.Sequence   `json:"best"`
	Candidates []frameseq.Sequence `json:"candidates"`
	Unmatched  int                 `json:"unmatched"`
	// Declared 表示 Best 来自页面显式声明（data-frame-template），而不是从 URL 推断。
	Declared bool `json:"declared"`
}

// ErrNoSequence 表示没有找到任何帧序列。
var ErrNoSequence = errors.New("未找到帧序列")

// fromNames 把候选名分组并挑选最佳序列（出现帧最多者）。
func fromNames(origin string, names []string) (Result, error) {
	seqs, unmatched := frameseq.Infer(names)
	if len(seqs) == 0 {
		return Result{}, fmt.Errorf("%s：%w", origin, ErrNoSequence)
	}
	return Result{
		Origin:     origin,
		Best:       seqs[0],
		Candidates: seqs,
		Unmatched:  len(unmatched),
	}, nil
}
