package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedZap() (*ZapLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewZapLogger(zap.New(core)), logs
}

func TestZapLogger_LevelsAndFields(t *testing.T) {
	log, logs := newObservedZap()
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	entries := logs.All()
	require.Len(t, entries, 4)

	levels := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	msgs := []string{"dbg", "inf", "wrn", "err"}
	keys := []string{"a", "b", "c", "d"}
	for i, e := range entries {
		assert.Equal(t, levels[i], e.Level)
		assert.Equal(t, msgs[i], e.Message)
		assert.Contains(t, e.ContextMap(), keys[i])
	}
}

func TestZapLogger_With_AddsFields(t *testing.T) {
	log, logs := newObservedZap()

	log.With("module", "refresh").Info(context.Background(), "hello", "k", "v")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "refresh", fields["module"])
	assert.Equal(t, "v", fields["k"])
}

func TestNop_DoesNotPanic(t *testing.T) {
	l := Nop()
	ctx := context.TODO()
	l.Debug(ctx, "x")
	l.Info(ctx, "x")
	l.Warn(ctx, "x")
	l.Error(ctx, "x")
	l.With("k", "v").Info(ctx, "x")
}

func TestNew_SelectsImplementation(t *testing.T) {
	l, err := New(FormatSlog)
	require.NoError(t, err)
	assert.IsType(t, &SlogLogger{}, l)

	l, err = New(FormatZap)
	require.NoError(t, err)
	assert.IsType(t, &ZapLogger{}, l)

	_, err = New("logrus")
	assert.Error(t, err)
}
