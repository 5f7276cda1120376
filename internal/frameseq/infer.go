package frameseq

import "sort"

// Sequence 是按模板聚合后的帧序列候选。
type Sequence struct {
	Template string `json:"template"`
	Count    int    `json:"frame_count"` // 最大帧号（即 N）
	Present  int    `json:"present"`     // 实际出现的不同帧号数量
}

// Missing 返回 [1, Count] 中未出现的帧数量。
func (s Sequence) Missing() int { return s.Count - s.Present }

// Infer 把一组文件名/URL 按模板分组。
//
// - sequences 稳定排序：Present 降序，其次 Template 字典序
// - unmatched 保持输入顺序
func Infer(names []string) (sequences []Sequence, unmatched []string) {
	type acc struct {
		max  int
		seen map[int]struct{}
	}
	index := make(map[string]*acc, 8)
	unmatched = make([]string, 0, 8)

	for _, s := range names {
		n, ok := ParseName(s)
		if !ok {
			unmatched = append(unmatched, s)
			continue
		}
		key := n.Template()
		a, ok := index[key]
		if !ok {
			a = &acc{seen: make(map[int]struct{}, 64)}
			index[key] = a
		}
		a.seen[n.Number] = struct{}{}
		if n.Number > a.max {
			a.max = n.Number
		}
	}

	sequences = make([]Sequence, 0, len(index))
	for tpl, a := range index {
		sequences = append(sequences, Sequence{Template: tpl, Count: a.max, Present: len(a.seen)})
	}
	sort.Slice(sequences, func(i, j int) bool {
		if sequences[i].Present != sequences[j].Present {
			return sequences[i].Present > sequences[j].Present
		}
		return sequences[i].Template < sequences[j].Template
	})
	return sequences, unmatched
}
