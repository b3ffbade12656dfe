package gticker

import (
	"github.com/godyy/glog"
	"github.com/godyy/gticker/core"
)

// optionSet 选项集合.
type optionSet struct {
	logger        glog.Logger   // 日志工具.
	engineOptions []core.Option // Engine 选项.
}

// Option 选项.
type Option func(*optionSet)

// WithLogger 日志工具选项.
func WithLogger(logger glog.Logger) Option {
	return func(opts *optionSet) {
		opts.logger = logger.Named("gticker")
		opts.engineOptions = append(opts.engineOptions, core.WithLogger(logger.Named("gticker")))
	}
}

// WithEngineOptions Engine 选项.
func WithEngineOptions(engineOptions ...core.Option) Option {
	return func(opts *optionSet) {
		opts.engineOptions = append(opts.engineOptions, engineOptions...)
	}
}
