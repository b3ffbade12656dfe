package core

import (
	"errors"
	"sync/atomic"

	"github.com/godyy/glog"
	"github.com/godyy/gticker/clock"
)

// Config Engine 配置.
type Config struct {
	// Clock 毫秒级单调时钟. 为 nil 时使用 clock.NewSystemClock().
	Clock clock.Clock

	// Rand 均匀随机源, 用于随机间隔与随机倒计数. 为 nil 时使用
	// clock.NewMathRand().
	Rand clock.Rand

	// WatchInterval 观察点的轮询间隔, 单位毫秒. 为 0 时使用默认值 1.
	WatchInterval uint32

	// ExpectedTickers 预期的在册定时器数量, 用于预分配.
	ExpectedTickers int
}

func (c *Config) init() error {
	if c == nil {
		return errors.New("engine config nil")
	}

	if c.WatchInterval >= maxIntervalMs {
		return errors.New("Config.WatchInterval must < 1<<31")
	}

	return nil
}

// Engine 协作式定时器引擎. 持有注册表与派发队列, 由宿主通过 Loop
// 反复驱动. 全部回调串行执行于驱动 Loop 的协程, 两个回调永不并发;
// 其它协程仅允许通过 QueueFunc 向派发队列投递, 或经加锁的注册表
// 接口注册/移除定时器.
type Engine struct {
	clock         clock.Clock    // 毫秒时钟.
	rand          clock.Rand     // 随机源.
	watchInterval uint32         // 观察点轮询间隔.
	reg           *registry      // 定时器注册表.
	queue         *dispatchQueue // 派发队列.

	loadMark   uint32 // 上次负载统计的时间戳.
	prevIssued uint32 // 上次负载统计时已签发的ID计数.
	load       uint32 // 负载指标(原子): 最近一秒内签发的ID数.

	logger glog.Logger // 日志工具.
}

// CreateEngine 构造 Engine.
func CreateEngine(cfg *Config, options ...Option) (*Engine, error) {
	if err := cfg.init(); err != nil {
		return nil, err
	}

	e := &Engine{
		clock:         cfg.Clock,
		rand:          cfg.Rand,
		watchInterval: cfg.WatchInterval,
		reg:           newRegistry(cfg.ExpectedTickers),
		queue:         newDispatchQueue(),
	}

	// 外部依赖缺省值.
	if e.clock == nil {
		e.clock = clock.NewSystemClock()
	}
	if e.rand == nil {
		e.rand = clock.NewMathRand()
	}
	if e.watchInterval == 0 {
		e.watchInterval = 1
	}

	e.loadMark = e.clock.NowMs()

	// 选项.
	for _, opt := range options {
		opt(e)
	}

	// 初始化日志工具.
	e.initLogger()

	return e, nil
}

// Rand 随机源.
func (e *Engine) Rand() clock.Rand {
	return e.rand
}

// WatchInterval 观察点轮询间隔, 单位毫秒.
func (e *Engine) WatchInterval() uint32 {
	return e.watchInterval
}

// StartTicker 注册定时器并返回其ID. interval 为基础间隔; randMax 大于
// interval 时, 每个周期的实际间隔自 [interval, randMax) 中均匀抽取.
// cont 决定每次触发后是否继续存活, chain 可为 nil, 在终止触发完成且
// 定时器移出注册表之后执行一次. 注册不会同步执行任何回调, 新注册的
// 定时器自下一轮 Loop 起参与调度. Engine 已关闭时返回 TickerIdNone.
func (e *Engine) StartTicker(interval, randMax uint32, cont Continuation, fn, chain Callback) TickerId {
	if interval >= maxIntervalMs {
		panic("interval must < 1<<31")
	}

	if randMax >= maxIntervalMs {
		panic("random max must < 1<<31")
	}

	if cont == nil {
		panic("continuation is nil")
	}

	if fn == nil {
		panic("callback func is nil")
	}

	// 创建定时器.
	t := &ticker{
		id:        e.reg.genTickerId(),
		heapIndex: -1,
		interval:  interval,
		randMax:   randMax,
		cont:      cont,
		fn:        fn,
		chain:     chain,
	}
	t.rearm(e.clock.NowMs(), e.rand)

	// 添加定时器.
	if !e.reg.add(t) {
		return TickerIdNone
	}

	e.logger.DebugFields("ticker started", lfdTickerId(t.id), lfdIntervalMs(interval), lfdRandMaxMs(randMax))

	return t.id
}

// StopTicker 移除 id 指向的定时器. 取消是同步的: 返回后该定时器不会
// 再触发, 链式回调亦不会执行. id 未知或已移除时为静默空操作.
func (e *Engine) StopTicker(id TickerId) {
	if !e.reg.remove(id) {
		return
	}

	e.logger.DebugFields("ticker stopped", lfdTickerId(id))
}

// StopAll 移除全部在册定时器. 回调中调用时, 本轮派发内晚于调用注册的
// 定时器不受影响.
func (e *Engine) StopAll() {
	e.reg.removeAll()
	e.logger.Debug("stop all tickers")
}

// HasTicker 返回 id 指向的定时器是否在册.
func (e *Engine) HasTicker(id TickerId) bool {
	return e.reg.has(id)
}

// QueueFunc 将 fn 投递到派发队列, 在下一轮 Loop 的派发阶段执行.
// 可从任意协程调用, 仅在短临界区内追加, 不执行任何用户代码, 是
// 异步生产者向协作线程转移工作的安全途径. Engine 已关闭时为空操作.
func (e *Engine) QueueFunc(fn Callback) {
	if fn == nil {
		panic("callback func is nil")
	}

	if e.reg.isClosed() {
		return
	}

	e.queue.push(fireEvent{fn: fn})
}

// Loop 协作式循环. 由宿主以尽可能高的频率反复调用, 每次调用完成一轮
// 扫描与派发; 不阻塞, 不睡眠, 实际定时粒度由调用频率决定. 只能由单一
// 协程驱动.
func (e *Engine) Loop() {
	if e.reg.isClosed() {
		return
	}

	now := e.clock.NowMs()
	e.scan(now)
	e.drain()
	e.updateLoad(now)
}

// scan 弹出到期定时器, 评估存续策略并生成触发事件. 策略评估在无锁
// 状态下进行; 仍存续的定时器以 now 为基准重新入堆.
func (e *Engine) scan(now uint32) {
	due := e.reg.popDue(now)
	if len(due) == 0 {
		return
	}

	living := due[:0]
	for _, t := range due {
		if t.isDead() {
			continue
		}

		terminal := t.cont.Continue() == 0
		e.queue.push(fireEvent{t: t, fn: t.fn, terminal: terminal})

		if !terminal {
			t.rearm(now, e.rand)
			living = append(living, t)
		}
	}
	e.reg.pushBack(living)
}

// drain 换出并执行全部待执行事件. 回调在无锁状态下按入队顺序执行;
// 本轮内已被取消的定时器事件被跳过. 终止触发先执行触发回调, 再将
// 定时器移出注册表, 最后执行链式回调.
func (e *Engine) drain() {
	events := e.queue.detach()
	for i := range events {
		ev := &events[i]

		if ev.t == nil {
			ev.fn()
			continue
		}

		if ev.t.isDead() {
			continue
		}

		ev.fn()

		if !ev.terminal {
			continue
		}

		// 终止触发. 若回调内部已显式取消自身, 不再执行链式回调.
		if !ev.t.kill() {
			continue
		}

		e.reg.removeFired(ev.t)
		e.logger.DebugFields("ticker expired", lfdTickerId(ev.t.id))

		if ev.t.chain != nil {
			ev.t.chain()
		}
	}
}

// updateLoad 每经过一秒刷新一次负载指标.
func (e *Engine) updateLoad(now uint32) {
	if now-e.loadMark < 1000 {
		return
	}

	issued := e.reg.issued()
	load := issued - e.prevIssued
	atomic.StoreUint32(&e.load, load)
	e.prevIssued = issued
	e.loadMark = now

	e.logger.DebugFields("load updated", lfdLoad(load))
}

// Load 负载指标: 最近一秒内签发的定时器ID数. 可从任意协程读取.
func (e *Engine) Load() uint32 {
	return atomic.LoadUint32(&e.load)
}

// Close 关闭 Engine 并移除全部定时器. 此后 StartTicker 返回
// TickerIdNone, Loop 与 QueueFunc 为空操作. 进行中的派发轮次不被
// 中断, 会自行执行完毕.
func (e *Engine) Close() {
	if !e.reg.close() {
		return
	}

	e.logger.Info("closed")
}

// initLogger 初始化日志工具.
func (e *Engine) initLogger() {
	if e.logger != nil {
		return
	}

	e.logger = createStdLogger(glog.WarnLevel).Named("Engine")
}

// setLogger 设置日志工具.
func (e *Engine) setLogger(logger glog.Logger) {
	e.logger = logger.Named("Engine")
}
