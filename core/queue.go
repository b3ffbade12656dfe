package core

import "sync"

// fireEvent 触发事件. t 为 nil 时表示经 QueueFunc 直接投递的裸函数事件.
type fireEvent struct {
	t        *ticker  // 关联的定时器.
	fn       Callback // 回调函数.
	terminal bool     // 本次触发是否为终止触发.
}

// dispatchQueue 派发队列. 生产端可以是任意协程, 仅在短临界区内追加,
// 不执行任何用户代码; 消费端为协作循环, 整体换出待执行序列后在无锁
// 状态下执行, 保证回调中再注册/再投递不会阻塞生产端.
type dispatchQueue struct {
	mtx    sync.Mutex  // 互斥锁.
	events []fireEvent // 待执行事件.
}

// newDispatchQueue 构造 dispatchQueue.
func newDispatchQueue() *dispatchQueue {
	return &dispatchQueue{}
}

// push 追加事件.
func (q *dispatchQueue) push(e fireEvent) {
	q.mtx.Lock()
	q.events = append(q.events, e)
	q.mtx.Unlock()
}

// detach 原子换出全部待执行事件, 按入队顺序返回.
func (q *dispatchQueue) detach() []fireEvent {
	q.mtx.Lock()
	events := q.events
	q.events = nil
	q.mtx.Unlock()
	return events
}
