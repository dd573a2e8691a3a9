package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("info"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"), "unknown levels fall back to info")
}

func TestNewZapLoggerAcceptsAllLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		log := NewZapLogger(level)
		require.NotNil(t, log)
		log.Info("level accepted", Fields{"level": level})
	}
}
