package loader

// queue 是待拉取帧号的有序队列：队首最先拉取；同一帧号最多出现一次。
//
// 不自带锁，由 Loader.mu 保护。
type queue struct {
	items  []int
	member map[int]struct{}
}

func newQueue(order []int) *queue {
	q := &queue{
		items:  make([]int, 0, len(order)),
		member: make(map[int]struct{}, len(order)),
	}
	for _, i := range order {
		q.pushBack(i)
	}
	return q
}

func (q *queue) pushBack(i int) bool {
	if _, ok := q.member[i]; ok {
		return false
	}
	q.member[i] = struct{}{}
	q.items = append(q.items, i)
	return true
}

func (q *queue) contains(i int) bool {
	_, ok := q.member[i]
	return ok
}

func (q *queue) len() int { return len(q.items) }

// popFront 从队首取出最多 n 个帧号。
func (q *queue) popFront(n int) []int {
	if n > len(q.items) {
		n = len(q.items)
	}
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	copy(out, q.items[:n])
	q.items = q.items[n:]
	for _, i := range out {
		delete(q.member, i)
	}
	return out
}

// moveToFront 把已在队列中的 i 移到队首（先删除原位置，保证不重复）。
// i 不在队列中时返回 false。
func (q *queue) moveToFront(i int) bool {
	if !q.contains(i) {
		return false
	}
	pos := -1
	for k, v := range q.items {
		if v == i {
			pos = k
			break
		}
	}
	if pos == 0 {
		return true
	}
	copy(q.items[1:pos+1], q.items[:pos])
	q.items[0] = i
	return true
}

func (q *queue) clear() {
	q.items = nil
	q.member = make(map[int]struct{})
}

func (q *queue) snapshot() []int {
	return append([]int(nil), q.items...)
}
