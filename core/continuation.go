package core

import (
	"github.com/godyy/gticker/clock"
)

// Continuation 存续策略. 定时器每次触发时被调用一次, 返回 0 表示
// 定时器在本次触发后终止, 非 0 表示继续存活.
type Continuation interface {
	// Continue 返回存续信号.
	Continue() uint32
}

// ContinuationFunc 函数形式的存续策略.
type ContinuationFunc func() uint32

func (f ContinuationFunc) Continue() uint32 { return f() }

// Forever 永不终止的存续策略, 用于周期性定时器.
var Forever Continuation = ContinuationFunc(func() uint32 { return 1 })

// Countdown 固定次数倒计数. 初始计数为 n 时恰好允许 n 次触发.
type Countdown struct {
	count uint32 // 剩余次数.
}

// NewCountdown 构造 Countdown. n 必须大于 0.
func NewCountdown(n uint32) *Countdown {
	if n == 0 {
		panic("count must > 0")
	}
	return &Countdown{count: n}
}

// NewRandomCountdown 构造随机倒计数: 自 [min, max) 中一次性抽取计数,
// 此后行为与固定倒计数一致. 计数至少为 1.
func NewRandomCountdown(r clock.Rand, min, max uint32) *Countdown {
	n := r.Uniform(min, max)
	if n == 0 {
		n = 1
	}
	return &Countdown{count: n}
}

// Continue 递减并返回剩余次数.
func (c *Countdown) Continue() uint32 {
	c.count--
	return c.count
}
