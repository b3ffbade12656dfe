package core

import (
	"github.com/godyy/glog"
	"go.uber.org/zap"
)

// createStdLogger 创建标准输出的 logger.
func createStdLogger(level glog.Level) glog.Logger {
	return glog.NewLogger(&glog.Config{
		Level:        level,
		EnableCaller: true,
		CallerSkip:   0,
		Development:  true,
		Cores:        []glog.CoreConfig{glog.NewStdCoreConfig()},
	}).Named("core")
}

func lfdTickerId(id TickerId) zap.Field {
	return zap.Uint32("tickerId", id)
}

func lfdIntervalMs(interval uint32) zap.Field {
	return zap.Uint32("intervalMs", interval)
}

func lfdRandMaxMs(randMax uint32) zap.Field {
	return zap.Uint32("randMaxMs", randMax)
}

func lfdLoad(load uint32) zap.Field {
	return zap.Uint32("load", load)
}
