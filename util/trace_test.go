package util

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chaos-io/rembg/rembg"
)

// 会替换全局 Logger，不能并行
func observeLogger(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	old := Logger
	Logger = zap.New(core)
	t.Cleanup(func() { Logger = old })
	return logs
}

func TestStageLogger(t *testing.T) {
	logs := observeLogger(t)

	observe := StageLogger(zap.String("command", "test"))
	observe(rembg.StageInference, 20*time.Millisecond, nil)
	observe(rembg.StageComposite, time.Millisecond, errors.New("boom"))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, string(rembg.StageInference), fields["stage"])
	assert.Equal(t, "test", fields["command"])
	assert.Equal(t, 20*time.Millisecond, fields["cost"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestTrace(t *testing.T) {
	logs := observeLogger(t)

	Trace("remove background")()

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "enter", entries[0].Message)
	assert.Equal(t, "exit", entries[1].Message)
	assert.Equal(t, "remove background", entries[1].ContextMap()["name"])
}

func TestInitLogger(t *testing.T) {
	old := Logger
	t.Cleanup(func() { Logger = old })

	require.NoError(t, InitLogger("release"))
	assert.NotNil(t, Logger)
	require.NoError(t, InitLogger("debug"))
	Sync()
}
