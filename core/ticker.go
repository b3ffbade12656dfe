package core

import (
	"sync/atomic"

	"github.com/godyy/gticker/clock"
)

// ticker 状态.
const (
	tickerStateArmed int32 = iota // 在册.
	tickerStateDead               // 已移除.
)

// ticker 一个已注册的定时器.
type ticker struct {
	id        TickerId     // 定时器ID.
	heapIndex int          // 堆索引. -1 表示不在堆中.
	interval  uint32       // 基础间隔, 单位毫秒. 随机间隔时作为下限.
	randMax   uint32       // 随机间隔上限. 大于 interval 时每周期重抽实际间隔.
	cont      Continuation // 存续策略.
	fn        Callback     // 触发回调.
	chain     Callback     // 终止触发后的链式回调.
	dueAt     uint32       // 下次到期时间戳, 单位毫秒.
	state     int32        // 状态(原子).
}

// due 返回定时器在 now 时刻是否到期. 比较基于带符号差值, 容忍时间戳回绕.
func (t *ticker) due(now uint32) bool {
	return int32(now-t.dueAt) >= 0
}

// rearm 以 now 为基准重新计算下次到期时间. 随机间隔时重抽本周期的实际间隔.
func (t *ticker) rearm(now uint32, r clock.Rand) {
	iv := t.interval
	if t.randMax > t.interval {
		iv = r.Uniform(t.interval, t.randMax)
	}
	t.dueAt = now + iv
}

// kill 尝试将定时器置为已移除状态. 返回是否由本次调用完成置位.
func (t *ticker) kill() bool {
	return atomic.CompareAndSwapInt32(&t.state, tickerStateArmed, tickerStateDead)
}

// isDead 返回定时器是否已移除.
func (t *ticker) isDead() bool {
	return atomic.LoadInt32(&t.state) == tickerStateDead
}

func (t *ticker) HeapLess(other *ticker) bool {
	if n := int32(t.dueAt - other.dueAt); n == 0 {
		return t.id < other.id
	} else {
		return n < 0
	}
}

func (t *ticker) HeapIndex() int {
	return t.heapIndex
}

func (t *ticker) SetHeapIndex(index int) {
	t.heapIndex = index
}
