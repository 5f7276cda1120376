package loader

import "github.com/John-Robertt/framefeed/internal/domain"

// store 是帧号 -> 已加载帧的映射。
//
// 只增不删（不做淘汰）；不自带锁，由 Loader.mu 保护。
type store struct {
	frames map[int]domain.Frame
}

func newStore(capacity int) *store {
	return &store{frames: make(map[int]domain.Frame, capacity)}
}

func (s *store) get(i int) (domain.Frame, bool) {
	f, ok := s.frames[i]
	return f, ok
}

func (s *store) has(i int) bool {
	_, ok := s.frames[i]
	return ok
}

// put 写入新帧；同一帧号只接受第一次写入（帧不可变）。
func (s *store) put(f domain.Frame) bool {
	if _, ok := s.frames[f.Index]; ok {
		return false
	}
	s.frames[f.Index] = f
	return true
}

func (s *store) len() int { return len(s.frames) }

// nearest 从 target 向 1 回退，返回第一个已加载的帧。
func (s *store) nearest(target int) (domain.Frame, bool) {
	for i := target; i >= 1; i-- {
		if f, ok := s.frames[i]; ok {
			return f, true
		}
	}
	return domain.Frame{}, false
}
