package logger

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestVerbosityToLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, VerbosityToLevel(0))
	assert.Equal(t, zapcore.InfoLevel, VerbosityToLevel(1))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(2))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(7))
	assert.Equal(t, "Info (-v)", LevelName(1))
}

func TestInitializeReplacesNopLogger(t *testing.T) {
	original := Logger
	t.Cleanup(func() { Logger = original })

	require.NoError(t, Initialize(true, VerbosityDebug))
	assert.True(t, JSONOutput)
	assert.True(t, Logger.Desugar().Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, Initialize(false, VerbosityUser))
	assert.False(t, JSONOutput)
	assert.False(t, Logger.Desugar().Core().Enabled(zapcore.InfoLevel))
}

func TestFromContextAttachesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core).Sugar()

	ctx := WithQueue(WithJobID(context.Background(), "job-1"), "emails")
	FromContext(ctx, base).Infow("resolved")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "job-1", fields[FieldJobID])
	assert.Equal(t, "emails", fields[FieldQueue])
}

func TestWithSymbol(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	WithSymbol(zap.New(core).Sugar(), "✓").Infow("Completed job")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "✓", logs.All()[0].ContextMap()[FieldSymbol])
}

func TestMinimalEncoderLine(t *testing.T) {
	enc := newMinimalEncoder()
	enc.AddString(FieldSymbol, "⇥")

	ent := zapcore.Entry{
		Level:      zapcore.WarnLevel,
		Time:       time.Date(2024, 1, 2, 13, 4, 35, 0, time.UTC),
		LoggerName: "boss.subscribe",
		Message:    "Poll failed",
	}
	buf, err := enc.EncodeEntry(ent, []zapcore.Field{
		zap.String(FieldQueue, "emails"),
		zap.Int(FieldCount, 3),
		zap.String(FieldError, "database is locked"),
	})
	require.NoError(t, err)

	line := buf.String()
	assert.True(t, strings.HasSuffix(line, "\n"))
	for _, want := range []string{"13:04:35", "WARN", "⇥", "b.subscribe", "Poll failed", "emails", "3", "database is locked"} {
		assert.Contains(t, line, want)
	}
	assert.Less(t, strings.Index(line, "emails"), strings.Index(line, "database is locked"))
}

func TestAbbreviateName(t *testing.T) {
	assert.Equal(t, "b.subscribe", abbreviateName("boss.subscribe"))
	assert.Equal(t, "db", abbreviateName("db"))
}
