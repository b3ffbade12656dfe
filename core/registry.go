package core

import (
	"sync"
	"sync/atomic"

	"github.com/godyy/gutils/container/heap"
)

// registry 定时器注册表. 独占持有全部在册定时器, 负责ID签发、到期
// 排序与移除.
type registry struct {
	mtx     sync.Mutex           // 互斥锁.
	idGen   uint32               // 定时器ID生成自增键.
	tickers map[TickerId]*ticker // 定时器映射.
	dueHeap *heap.Heap[*ticker]  // 按到期时间排序的最小堆.
	closed  bool                 // 是否已关闭.
}

// newRegistry 构造 registry. expected 为预期的定时器数量.
func newRegistry(expected int) *registry {
	if expected < 0 {
		expected = 0
	}
	return &registry{
		tickers: make(map[TickerId]*ticker, expected),
		dueHeap: heap.NewHeap[*ticker](),
	}
}

// genTickerId 生成定时器ID.
func (r *registry) genTickerId() TickerId {
	id := atomic.AddUint32(&r.idGen, 1)
	if id == TickerIdNone {
		id = atomic.AddUint32(&r.idGen, 1)
	}
	return id
}

// issued 返回已签发的ID计数.
func (r *registry) issued() uint32 {
	return atomic.LoadUint32(&r.idGen)
}

// add 添加定时器. 注册表已关闭时返回 false.
func (r *registry) add(t *ticker) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.closed {
		return false
	}

	r.tickers[t.id] = t
	r.dueHeap.Push(t)
	return true
}

// has 返回 id 指向的定时器是否在册.
func (r *registry) has(id TickerId) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.closed {
		return false
	}

	_, exists := r.tickers[id]
	return exists
}

// remove 移除 id 指向的定时器. id 不在册时为静默空操作.
// 返回是否由本次调用完成移除.
func (r *registry) remove(id TickerId) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.closed {
		return false
	}

	// 获取定时器.
	t, exists := r.tickers[id]
	if !exists {
		return false
	}

	// 置为已移除. 若已由其它路径移除, 交由该路径完成清理.
	if !t.kill() {
		return false
	}

	delete(r.tickers, t.id)
	if t.heapIndex >= 0 {
		r.dueHeap.Remove(t.heapIndex)
		t.SetHeapIndex(-1)
	}
	return true
}

// removeFired 移除终止触发后的定时器. 仅由派发阶段在 kill 成功后调用,
// 此时定时器已不在堆中.
func (r *registry) removeFired(t *ticker) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.closed {
		return
	}

	delete(r.tickers, t.id)
}

// removeAll 移除全部在册定时器. 此后注册的定时器不受影响.
func (r *registry) removeAll() {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.closed {
		return
	}

	for _, t := range r.tickers {
		if t.kill() {
			t.SetHeapIndex(-1)
		}
	}
	r.tickers = make(map[TickerId]*ticker)
	r.dueHeap = heap.NewHeap[*ticker]()
}

// popDue 弹出 now 时刻已到期的全部定时器, 按到期时间与ID排序.
func (r *registry) popDue(now uint32) []*ticker {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.closed {
		return nil
	}

	var due []*ticker
	for r.dueHeap.Len() > 0 {
		top := r.dueHeap.Top()
		if !top.due(now) {
			break
		}
		r.dueHeap.Remove(top.heapIndex)
		top.SetHeapIndex(-1)
		due = append(due, top)
	}
	return due
}

// pushBack 将仍存续的到期定时器重新入堆.
func (r *registry) pushBack(ts []*ticker) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.closed {
		return
	}

	for _, t := range ts {
		if t.isDead() {
			continue
		}
		r.dueHeap.Push(t)
	}
}

// close 关闭注册表并移除全部定时器. 返回是否由本次调用完成关闭.
func (r *registry) close() bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.closed {
		return false
	}

	for _, t := range r.tickers {
		t.kill()
	}
	r.tickers = nil
	r.dueHeap = nil
	r.closed = true
	return true
}

// isClosed 返回注册表是否已关闭.
func (r *registry) isClosed() bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.closed
}
