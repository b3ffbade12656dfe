package gticker

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/godyy/glog"
	"github.com/godyy/gticker/core"
	pkgerrors "github.com/pkg/errors"
)

// TickerId 定时器ID.
type TickerId = core.TickerId

// TickerIdNone 定时器ID为0, 表示无效ID.
const TickerIdNone = core.TickerIdNone

// Callback 定时器回调函数.
type Callback = core.Callback

// Predicate 观察断言. 观察点的每个观察周期求值一次, 返回 0 表示被
// 观察的条件成立.
type Predicate = core.ContinuationFunc

// Scheduler 状态.
const (
	stateInit    int32 = iota // 初始化.
	stateStarted              // 已启动.
	stateClosed               // 已关闭.
)

// Config Scheduler 配置.
type Config struct {
	// TickInterval 驱动周期. 仅在通过 Start 启动内部驱动时使用, 决定
	// 内部以何种频率执行调度. 实际定时粒度不小于该值. 为 0 时使用
	// 默认值 1ms.
	TickInterval time.Duration

	// Core 核心引擎配置.
	Core core.Config
}

func (c *Config) init() error {
	if c == nil {
		return errors.New("config nil")
	}

	if c.TickInterval < 0 {
		return errors.New("Config.TickInterval must >= 0")
	}
	if c.TickInterval == 0 {
		c.TickInterval = time.Millisecond
	}

	return nil
}

// Scheduler 协作式定时器调度器. 包装 core.Engine, 提供声明式的定时器
// 构造接口. 全部回调串行执行于调度协程, 两个回调永不并发. 驱动方式
// 二选一: 通过 Start 启动内部驱动协程, 或由调用方的单一协程反复调用
// Loop 自行驱动.
type Scheduler struct {
	cfg    *Config      // 配置.
	engine *core.Engine // 核心引擎.
	logger glog.Logger  // 日志工具.

	state    int32         // 状态.
	chClosed chan struct{} // 关闭 chan.
}

// CreateScheduler 构造 Scheduler.
func CreateScheduler(cfg *Config, options ...Option) (*Scheduler, error) {
	if err := cfg.init(); err != nil {
		return nil, err
	}

	// 选项.
	var optSet optionSet
	for _, opt := range options {
		opt(&optSet)
	}

	engine, err := core.CreateEngine(&cfg.Core, optSet.engineOptions...)
	if err != nil {
		return nil, pkgerrors.WithMessage(err, "create engine")
	}

	s := &Scheduler{
		cfg:      cfg,
		engine:   engine,
		state:    stateInit,
		chClosed: make(chan struct{}),
	}

	// 初始化日志工具.
	if optSet.logger != nil {
		s.setLogger(optSet.logger)
	}
	s.initLogger()

	return s, nil
}

// Start 启动内部驱动协程, 以 TickInterval 为周期执行调度. 与手动
// 调用 Loop 的驱动方式不可混用.
func (s *Scheduler) Start() error {
	if !atomic.CompareAndSwapInt32(&s.state, stateInit, stateStarted) {
		if atomic.LoadInt32(&s.state) >= stateClosed {
			return ErrSchedulerClosed
		}
		return ErrSchedulerStarted
	}

	go s.tick()

	s.logger.InfoFields("started", lfdTickInterval(s.cfg.TickInterval))

	return nil
}

// tick 内部驱动逻辑.
func (s *Scheduler) tick() {
	ticker := time.NewTicker(s.cfg.TickInterval)

	closed := false
	for !closed {
		select {
		case <-ticker.C:
			s.engine.Loop()
		case <-s.chClosed:
			closed = true
		}
	}

	ticker.Stop()
}

// Close 关闭 Scheduler 并移除全部定时器. 进行中的调度轮次不被中断,
// 会自行执行完毕; 此后不再有任何回调执行.
func (s *Scheduler) Close() error {
	for {
		state := atomic.LoadInt32(&s.state)
		if state >= stateClosed {
			return ErrSchedulerClosed
		}
		if atomic.CompareAndSwapInt32(&s.state, state, stateClosed) {
			break
		}
	}

	close(s.chClosed)
	s.engine.Close()

	s.logger.Info("closed")

	return nil
}

// Loop 手动驱动一轮调度: 扫描到期定时器并串行派发回调. 仅用于未调用
// Start 的自驱动方式, 必须由单一协程反复调用, 调用频率决定实际定时
// 粒度.
func (s *Scheduler) Loop() {
	s.engine.Loop()
}

// Every 注册以 interval 为周期无限重复的定时器. interval 单位毫秒.
func (s *Scheduler) Every(interval uint32, fn Callback) TickerId {
	return s.engine.StartTicker(interval, 0, core.Forever, fn, nil)
}

// EveryRandom 同 Every, 但每个周期的实际间隔自 [min, max) 中均匀抽取.
func (s *Scheduler) EveryRandom(min, max uint32, fn Callback) TickerId {
	return s.engine.StartTicker(min, max, core.Forever, fn, nil)
}

// Once 注册延迟 delay 毫秒触发一次的定时器. chain 可为 nil, 在触发
// 完成且定时器移出注册表之后执行一次.
func (s *Scheduler) Once(delay uint32, fn, chain Callback) TickerId {
	return s.engine.StartTicker(delay, 0, core.NewCountdown(1), fn, chain)
}

// OnceRandom 同 Once, 但延迟自 [min, max) 中均匀抽取.
func (s *Scheduler) OnceRandom(min, max uint32, fn, chain Callback) TickerId {
	return s.engine.StartTicker(min, max, core.NewCountdown(1), fn, chain)
}

// NTimes 注册以 interval 为周期触发恰好 n 次的定时器. n 必须大于 0.
// chain 在第 n 次触发完成且定时器移出注册表之后执行一次.
func (s *Scheduler) NTimes(n, interval uint32, fn, chain Callback) TickerId {
	return s.engine.StartTicker(interval, 0, core.NewCountdown(n), fn, chain)
}

// NTimesRandom 同 NTimes, 但每个周期的实际间隔自 [min, max) 中均匀抽取.
func (s *Scheduler) NTimesRandom(n, min, max uint32, fn, chain Callback) TickerId {
	return s.engine.StartTicker(min, max, core.NewCountdown(n), fn, chain)
}

// RandomTimes 注册触发次数自 [minTimes, maxTimes) 中一次性抽取的定时器.
// 抽取结果至少为 1.
func (s *Scheduler) RandomTimes(minTimes, maxTimes, interval uint32, fn, chain Callback) TickerId {
	return s.engine.StartTicker(interval, 0, core.NewRandomCountdown(s.engine.Rand(), minTimes, maxTimes), fn, chain)
}

// RandomTimesRandom 同 RandomTimes, 但每个周期的实际间隔自 [min, max)
// 中均匀抽取.
func (s *Scheduler) RandomTimesRandom(minTimes, maxTimes, min, max uint32, fn, chain Callback) TickerId {
	return s.engine.StartTicker(min, max, core.NewRandomCountdown(s.engine.Rand(), minTimes, maxTimes), fn, chain)
}

// When 注册观察点: 每个观察周期求值一次 pred, 首次返回 0 时执行一次
// fn, 随后定时器移除. fn 执行时定时器已不在册.
func (s *Scheduler) When(pred Predicate, fn Callback) TickerId {
	if pred == nil {
		panic("predicate is nil")
	}
	if fn == nil {
		panic("callback func is nil")
	}

	return s.engine.StartTicker(s.engine.WatchInterval(), 0, pred, func() {}, fn)
}

// Whenever 注册持续观察点: pred 每次自非 0 变为 0 时执行 fn, 直到
// 显式取消. 注册时条件已成立视作一次变化.
func (s *Scheduler) Whenever(pred Predicate, fn Callback) TickerId {
	if pred == nil {
		panic("predicate is nil")
	}
	if fn == nil {
		panic("callback func is nil")
	}

	prev := uint32(1)
	watch := func() {
		cur := pred()
		if prev != 0 && cur == 0 {
			fn()
		}
		prev = cur
	}
	return s.engine.StartTicker(s.engine.WatchInterval(), 0, core.Forever, watch, nil)
}

// QueueFunction 将 fn 投递到派发队列, 在下一轮调度的派发阶段执行.
// 可从任意协程调用, 不执行任何用户代码, 是异步生产者向调度协程转移
// 工作的安全途径.
func (s *Scheduler) QueueFunction(fn Callback) {
	s.engine.QueueFunc(fn)
}

// Never 取消 id 指向的定时器. 取消是同步的: 返回后该定时器不会再触发,
// 链式回调亦不会执行. id 未知或已移除时为静默空操作.
func (s *Scheduler) Never(id TickerId) {
	s.engine.StopTicker(id)
}

// NeverAll 取消全部在册定时器. 之后注册的定时器不受影响.
func (s *Scheduler) NeverAll() {
	s.engine.StopAll()
}

// Has 返回 id 指向的定时器是否在册.
func (s *Scheduler) Has(id TickerId) bool {
	return s.engine.HasTicker(id)
}

// Load 负载指标: 最近一秒内注册的定时器数. 可从任意协程读取.
func (s *Scheduler) Load() uint32 {
	return s.engine.Load()
}

// initLogger 初始化日志工具.
func (s *Scheduler) initLogger() {
	if s.logger != nil {
		return
	}

	s.logger = createStdLogger(glog.WarnLevel).Named("Scheduler")
}

// setLogger 设置日志工具.
func (s *Scheduler) setLogger(logger glog.Logger) {
	s.logger = logger.Named("Scheduler")
}
