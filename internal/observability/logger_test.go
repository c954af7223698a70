// internal/observability/logger_test.go
package observability

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/navsync/internal/config"
)

// syncBuffer is an in-memory WriteSyncer capturing console output for assertions.
type syncBuffer struct {
	strings.Builder
}

func (b *syncBuffer) Sync() error { return nil }

func testLoggerConfig() config.LoggerConfig {
	return config.LoggerConfig{
		Level:       "debug",
		Format:      "json",
		ServiceName: "navsync-test",
	}
}

func TestInitialize(t *testing.T) {
	t.Run("WritesToConfiguredSink", func(t *testing.T) {
		ResetForTest()
		var buf syncBuffer
		Initialize(testLoggerConfig(), zapcore.AddSync(&buf))

		logger := GetLogger()
		logger.Info("hello from the engine")
		require.NoError(t, logger.Sync())

		out := buf.String()
		assert.Contains(t, out, "hello from the engine")
		assert.Contains(t, out, "navsync-test")
	})

	t.Run("LevelFiltersOutput", func(t *testing.T) {
		ResetForTest()
		var buf syncBuffer
		cfg := testLoggerConfig()
		cfg.Level = "warn"
		Initialize(cfg, zapcore.AddSync(&buf))

		logger := GetLogger()
		logger.Info("too quiet")
		logger.Warn("loud enough")
		require.NoError(t, logger.Sync())

		out := buf.String()
		assert.NotContains(t, out, "too quiet")
		assert.Contains(t, out, "loud enough")
	})

	t.Run("InvalidLevelFallsBackToInfo", func(t *testing.T) {
		ResetForTest()
		var buf syncBuffer
		cfg := testLoggerConfig()
		cfg.Level = "chatty"
		Initialize(cfg, zapcore.AddSync(&buf))

		logger := GetLogger()
		logger.Debug("filtered at info")
		logger.Info("kept at info")
		require.NoError(t, logger.Sync())

		out := buf.String()
		assert.NotContains(t, out, "filtered at info")
		assert.Contains(t, out, "kept at info")
	})

	t.Run("SecondInitializeIsANoop", func(t *testing.T) {
		ResetForTest()
		var first, second syncBuffer
		Initialize(testLoggerConfig(), zapcore.AddSync(&first))
		Initialize(testLoggerConfig(), zapcore.AddSync(&second))

		logger := GetLogger()
		logger.Info("routed once")
		require.NoError(t, logger.Sync())

		assert.Contains(t, first.String(), "routed once")
		assert.Empty(t, second.String())
	})
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	assert.NotNil(t, GetLogger(), "an uninitialized process still gets a usable logger")
}
