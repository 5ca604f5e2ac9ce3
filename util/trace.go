package util

import (
	"time"

	"go.uber.org/zap"

	"github.com/chaos-io/rembg/rembg"
)

// Trace 用法：defer util.Trace("remove background")()
func Trace(name string) func() {
	start := time.Now()
	Logger.Debug("enter", zap.String("name", name))
	return func() {
		Logger.Info("exit", zap.String("name", name), zap.Duration("cost", time.Since(start)))
	}
}

// StageLogger 把流水线各阶段耗时写进日志
func StageLogger(fields ...zap.Field) rembg.Observer {
	return func(stage rembg.Stage, elapsed time.Duration, err error) {
		fs := append([]zap.Field{
			zap.String("stage", string(stage)),
			zap.Duration("cost", elapsed),
		}, fields...)
		if err != nil {
			Logger.Warn("stage failed", append(fs, zap.Error(err))...)
			return
		}
		Logger.Debug("stage done", fs...)
	}
}
