package clock

import (
	"math/rand/v2"
	"time"
)

// Clock 毫秒级单调时钟.
type Clock interface {
	// NowMs 当前时间戳, 单位毫秒. 时间戳允许回绕, 使用方需通过
	// 无符号差值计算经过时间.
	NowMs() uint32
}

// Rand 均匀随机源.
type Rand interface {
	// Uniform 返回 [min, max) 区间内均匀分布的随机数.
	// max <= min 时返回 min.
	Uniform(min, max uint32) uint32
}

// systemClock 基于运行时单调时钟的 Clock 实现.
type systemClock struct {
	start time.Time // 构造时刻.
}

// NewSystemClock 构造系统时钟, 计量自构造时刻起经过的毫秒数.
func NewSystemClock() Clock {
	return &systemClock{start: time.Now()}
}

func (c *systemClock) NowMs() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

// mathRand 基于 math/rand/v2 的 Rand 实现.
type mathRand struct{}

// NewMathRand 构造默认随机源.
func NewMathRand() Rand {
	return mathRand{}
}

func (mathRand) Uniform(min, max uint32) uint32 {
	if max <= min {
		return min
	}
	return min + rand.Uint32N(max-min)
}
