package core

import "github.com/godyy/glog"

// Option Engine 选项.
type Option func(*Engine)

// WithLogger 日志工具选项.
func WithLogger(logger glog.Logger) Option {
	return func(e *Engine) {
		e.setLogger(logger.Named("core"))
	}
}
