package planner

const (
	// ImmediateCount 是 Immediate tier 的帧数（1..10）：保证首帧与一小段跑道几乎立即可用。
	ImmediateCount = 10
	// SparseStride 是 Sparse tier 的步长：从 ImmediateCount+1 开始每 10 帧取一帧（11, 21, 31, ...）。
	SparseStride = 10
)

// Tier 标识帧在初始排序中所属的优先级档位。
type Tier int

const (
	TierImmediate Tier = iota
	TierSparse
	TierFill
)

func (t Tier) String() string {
	switch t {
	case TierImmediate:
		return "immediate"
	case TierSparse:
		return "sparse"
	case TierFill:
		return "fill"
	default:
		return "unknown"
	}
}

// SeedOrder 返回 1..n 的初始拉取顺序：Immediate + Sparse + Fill 三档拼接。
//
// 约束：
// - 三档互不重叠；先出现的档位优先（用成员检查去重）
// - 结果恰好覆盖 [1, n] 每个帧号一次
// - n <= 0 返回空
func SeedOrder(n int) []int {
	if n <= 0 {
		return []int{}
	}

	order := make([]int, 0, n)
	placed := make([]bool, n+1)
	add := func(i int) {
		if i < 1 || i > n || placed[i] {
			return
		}
		placed[i] = true
		order = append(order, i)
	}

	for i := 1; i <= ImmediateCount; i++ {
		add(i)
	}
	for i := ImmediateCount + 1; i <= n; i += SparseStride {
		add(i)
	}
	for i := 1; i <= n; i++ {
		add(i)
	}
	return order
}

// TierOf 返回帧号 i 在 SeedOrder 中所属的档位。
func TierOf(i int) Tier {
	switch {
	case i >= 1 && i <= ImmediateCount:
		return TierImmediate
	case i > ImmediateCount && (i-ImmediateCount-1)%SparseStride == 0:
		return TierSparse
	default:
		return TierFill
	}
}
