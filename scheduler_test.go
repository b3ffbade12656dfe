package gticker

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/godyy/glog"
	"github.com/godyy/gticker/core"
)

type testClock struct {
	now uint32
}

func (c *testClock) NowMs() uint32 {
	return atomic.LoadUint32(&c.now)
}

func (c *testClock) advance(ms uint32) {
	atomic.AddUint32(&c.now, ms)
}

type testRand struct{}

func (r *testRand) Uniform(min, max uint32) uint32 {
	if max <= min {
		return min
	}
	return min + (max-min)/2
}

func createTestScheduler(t *testing.T, clk *testClock) *Scheduler {
	s, err := CreateScheduler(&Config{
		Core: core.Config{
			Clock: clk,
			Rand:  &testRand{},
		},
	})
	if err != nil {
		t.Fatalf("create scheduler: %v", err)
	}
	return s
}

func TestSchedulerEvery(t *testing.T) {
	clk := &testClock{}
	s := createTestScheduler(t, clk)

	fired := 0
	id := s.Every(100, func() { fired++ })
	if id == TickerIdNone {
		t.Fatal("register: got TickerIdNone")
	}

	clk.advance(100)
	s.Loop()
	clk.advance(100)
	s.Loop()
	if fired != 2 {
		t.Fatalf("fired: got %d, want 2", fired)
	}

	s.Never(id)
	clk.advance(100)
	s.Loop()
	if fired != 2 {
		t.Fatalf("fired after cancel: got %d, want 2", fired)
	}
	if s.Has(id) {
		t.Fatal("canceled ticker still registered")
	}
}

func TestSchedulerNTimes(t *testing.T) {
	clk := &testClock{}
	s := createTestScheduler(t, clk)

	counter := 0
	flag := false
	id := s.NTimes(3, 100, func() { counter++ }, func() { flag = true })

	for i := 0; i < 3; i++ {
		clk.advance(100)
		s.Loop()
	}
	if counter != 3 {
		t.Fatalf("counter: got %d, want 3", counter)
	}
	if !flag {
		t.Fatal("flag not set")
	}

	// 自然到期后取消为静默空操作.
	s.Never(id)

	clk.advance(100)
	s.Loop()
	if counter != 3 {
		t.Fatalf("counter after expiry: got %d, want 3", counter)
	}
}

func TestSchedulerOnceRandom(t *testing.T) {
	clk := &testClock{}
	s := createTestScheduler(t, clk)

	// testRand 取中点, 延迟为 75.
	fired := 0
	s.OnceRandom(50, 100, func() { fired++ }, nil)

	clk.advance(74)
	s.Loop()
	if fired != 0 {
		t.Fatal("fired before drawn delay")
	}

	clk.advance(1)
	s.Loop()
	if fired != 1 {
		t.Fatalf("fired: got %d, want 1", fired)
	}
}

func TestSchedulerRandomTimes(t *testing.T) {
	clk := &testClock{}
	s := createTestScheduler(t, clk)

	// testRand 取中点, 触发次数为 4.
	fired := 0
	chained := 0
	s.RandomTimes(2, 6, 100, func() { fired++ }, func() { chained++ })

	for i := 0; i < 6; i++ {
		clk.advance(100)
		s.Loop()
	}
	if fired != 4 {
		t.Fatalf("fired: got %d, want 4", fired)
	}
	if chained != 1 {
		t.Fatalf("chained: got %d, want 1", chained)
	}
}

func TestSchedulerWhen(t *testing.T) {
	clk := &testClock{}
	s := createTestScheduler(t, clk)

	cond := uint32(1)
	fired := 0
	id := s.When(func() uint32 { return cond }, func() { fired++ })
	if id == TickerIdNone {
		t.Fatal("register: got TickerIdNone")
	}

	clk.advance(1)
	s.Loop()
	clk.advance(1)
	s.Loop()
	if fired != 0 {
		t.Fatal("fired before condition")
	}
	if !s.Has(id) {
		t.Fatal("watchpoint gone before condition")
	}

	cond = 0
	clk.advance(1)
	s.Loop()
	if fired != 1 {
		t.Fatalf("fired: got %d, want 1", fired)
	}
	if s.Has(id) {
		t.Fatal("watchpoint still registered after firing")
	}

	// 条件保持成立也不再触发.
	clk.advance(1)
	s.Loop()
	if fired != 1 {
		t.Fatalf("fired: got %d, want 1", fired)
	}
}

func TestSchedulerWhenever(t *testing.T) {
	clk := &testClock{}
	s := createTestScheduler(t, clk)

	cond := uint32(1)
	fired := 0
	id := s.Whenever(func() uint32 { return cond }, func() { fired++ })

	clk.advance(1)
	s.Loop()
	if fired != 0 {
		t.Fatal("fired before condition")
	}

	cond = 0
	clk.advance(1)
	s.Loop()
	if fired != 1 {
		t.Fatalf("fired: got %d, want 1", fired)
	}

	// 条件持续成立不重复触发.
	clk.advance(1)
	s.Loop()
	if fired != 1 {
		t.Fatalf("fired: got %d, want 1", fired)
	}

	// 条件解除后再次成立, 再次触发.
	cond = 1
	clk.advance(1)
	s.Loop()
	cond = 0
	clk.advance(1)
	s.Loop()
	if fired != 2 {
		t.Fatalf("fired: got %d, want 2", fired)
	}
	if !s.Has(id) {
		t.Fatal("watchpoint gone without cancel")
	}

	s.Never(id)
	cond = 1
	clk.advance(1)
	s.Loop()
	cond = 0
	clk.advance(1)
	s.Loop()
	if fired != 2 {
		t.Fatalf("fired after cancel: got %d, want 2", fired)
	}
}

func TestSchedulerWheneverImmediate(t *testing.T) {
	clk := &testClock{}
	s := createTestScheduler(t, clk)

	// 注册时条件已成立.
	fired := 0
	s.Whenever(func() uint32 { return 0 }, func() { fired++ })

	clk.advance(1)
	s.Loop()
	if fired != 1 {
		t.Fatalf("fired: got %d, want 1", fired)
	}
}

func TestSchedulerQueueFunction(t *testing.T) {
	clk := &testClock{}
	s := createTestScheduler(t, clk)

	ran := false
	done := make(chan struct{})
	go func() {
		s.QueueFunction(func() { ran = true })
		close(done)
	}()
	<-done

	s.Loop()
	if !ran {
		t.Fatal("queued function not executed")
	}
}

func TestSchedulerNeverAll(t *testing.T) {
	clk := &testClock{}
	s := createTestScheduler(t, clk)

	fired := 0
	for i := 0; i < 5; i++ {
		s.Every(100, func() { fired++ })
	}

	s.NeverAll()

	clk.advance(100)
	s.Loop()
	if fired != 0 {
		t.Fatalf("fired after cancel all: got %d, want 0", fired)
	}
}

func TestSchedulerLoad(t *testing.T) {
	clk := &testClock{}
	s := createTestScheduler(t, clk)

	for i := 0; i < 3; i++ {
		s.Every(100000, func() {})
	}

	clk.advance(1000)
	s.Loop()
	if load := s.Load(); load != 3 {
		t.Fatalf("load: got %d, want 3", load)
	}
}

func TestSchedulerIndependence(t *testing.T) {
	clk := &testClock{}
	s1 := createTestScheduler(t, clk)
	s2 := createTestScheduler(t, clk)

	fired1 := 0
	fired2 := 0
	id1 := s1.Every(100, func() { fired1++ })
	id2 := s2.Every(100, func() { fired2++ })

	clk.advance(100)
	s1.Loop()
	if fired1 != 1 || fired2 != 0 {
		t.Fatalf("after s1 loop: fired1 %d fired2 %d, want 1 0", fired1, fired2)
	}

	// 实例间互不影响.
	s1.NeverAll()
	clk.advance(100)
	s1.Loop()
	s2.Loop()
	if fired1 != 1 {
		t.Fatalf("fired1: got %d, want 1", fired1)
	}
	if fired2 != 1 {
		t.Fatalf("fired2: got %d, want 1", fired2)
	}
	if s1.Has(id1) {
		t.Fatal("s1 ticker survived cancel all")
	}
	if !s2.Has(id2) {
		t.Fatal("s2 ticker affected by s1 cancel all")
	}
}

func TestSchedulerCloseWithoutStart(t *testing.T) {
	clk := &testClock{}
	s := createTestScheduler(t, clk)

	fired := 0
	s.Every(100, func() { fired++ })

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	clk.advance(100)
	s.Loop()
	if fired != 0 {
		t.Fatal("fired after close")
	}
	if id := s.Every(100, func() {}); id != TickerIdNone {
		t.Fatalf("register after close: got %d, want TickerIdNone", id)
	}
}

func TestSchedulerConfig(t *testing.T) {
	if _, err := CreateScheduler(nil); err == nil {
		t.Fatal("nil config: no error")
	}

	if _, err := CreateScheduler(&Config{TickInterval: -1}); err == nil {
		t.Fatal("negative tick interval: no error")
	}

	if _, err := CreateScheduler(&Config{Core: core.Config{WatchInterval: 1 << 31}}); err == nil {
		t.Fatal("bad core config: no error")
	}

	s, err := CreateScheduler(&Config{})
	if err != nil {
		t.Fatalf("create scheduler: %v", err)
	}
	if s.cfg.TickInterval != time.Millisecond {
		t.Fatalf("default tick interval: got %v, want 1ms", s.cfg.TickInterval)
	}
}

func TestSchedulerDriven(t *testing.T) {
	logger := glog.NewLogger(&glog.Config{
		Level:        glog.DebugLevel,
		EnableCaller: true,
		CallerSkip:   0,
		Development:  true,
		Cores:        []glog.CoreConfig{glog.NewStdCoreConfig()},
	})

	s, err := CreateScheduler(&Config{
		TickInterval: time.Millisecond,
	}, WithLogger(logger))
	if err != nil {
		t.Fatal("create scheduler: ", err)
	}

	if err := s.Start(); err != nil {
		t.Fatal("start scheduler: ", err)
	}
	if err := s.Start(); !errors.Is(err, ErrSchedulerStarted) {
		t.Fatalf("second start: got %v, want %v", err, ErrSchedulerStarted)
	}

	onceFired := new(atomic.Int64)
	onceChained := new(atomic.Int64)
	s.Once(20, func() { onceFired.Add(1) }, func() { onceChained.Add(1) })

	everyFired := new(atomic.Int64)
	everyId := s.Every(10, func() { everyFired.Add(1) })

	queueRan := new(atomic.Int64)
	s.QueueFunction(func() { queueRan.Add(1) })

	time.Sleep(200 * time.Millisecond)

	if n := onceFired.Load(); n != 1 {
		t.Fatalf("once fired: got %d, want 1", n)
	}
	if n := onceChained.Load(); n != 1 {
		t.Fatalf("once chained: got %d, want 1", n)
	}
	if n := everyFired.Load(); n < 5 {
		t.Fatalf("every fired: got %d, want >= 5", n)
	}
	if n := queueRan.Load(); n != 1 {
		t.Fatalf("queued function ran: got %d, want 1", n)
	}

	s.Never(everyId)

	if err := s.Close(); err != nil {
		t.Fatal("close scheduler: ", err)
	}
	if err := s.Close(); !errors.Is(err, ErrSchedulerClosed) {
		t.Fatalf("second close: got %v, want %v", err, ErrSchedulerClosed)
	}
	if err := s.Start(); !errors.Is(err, ErrSchedulerClosed) {
		t.Fatalf("start after close: got %v, want %v", err, ErrSchedulerClosed)
	}
}
