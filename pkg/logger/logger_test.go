package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithAndNamed(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := &Logger{SugaredLogger: zap.New(core).Sugar()}

	log.Named("accrual").With("run", 7).Info("Run finished", "credited", 2)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "accrual", entries[0].LoggerName)
	assert.Equal(t, "Run finished", entries[0].Message)
	assert.Equal(t, map[string]interface{}{"run": int64(7), "credited": int64(2)}, entries[0].ContextMap())
}
