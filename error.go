package gticker

import (
	"errors"
)

// ErrSchedulerStarted 调度器已启动.
var ErrSchedulerStarted = errors.New("scheduler started")

// ErrSchedulerClosed 调度器已关闭.
var ErrSchedulerClosed = errors.New("scheduler closed")
