package core

// TickerId 定时器ID.
type TickerId = uint32

// TickerIdNone 定时器ID为0, 表示无效ID.
const TickerIdNone = 0

// Callback 定时器回调函数. 不携带参数, 所需状态在注册时由调用方捕获.
type Callback func()

// maxIntervalMs 间隔上限. 到期比较基于带符号差值, 间隔必须小于 2^31 毫秒.
const maxIntervalMs uint32 = 1 << 31
