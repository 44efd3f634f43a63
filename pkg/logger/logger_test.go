package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appctx "tillpoint/internal/core/context"
)

func observed() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{zap.New(core).Sugar()}, logs
}

func TestFromContext_AttachesRequestFields(t *testing.T) {
	l, logs := observed()

	ctx := appctx.WithTrace(context.Background(), &appctx.TraceContext{TraceID: "tr-1", RequestID: "rq-1"})
	ctx = appctx.WithScope(ctx, &appctx.Scope{TenantID: "t-1", TerminalID: "till-2"})
	ctx = WithLogger(ctx, l.WithComponent("sync"))

	Warn(ctx, "envelope left open", "envelope_id", "env-1")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "tr-1", fields["trace_id"])
	assert.Equal(t, "rq-1", fields["request_id"])
	assert.Equal(t, "t-1", fields["tenant_id"])
	assert.Equal(t, "till-2", fields["terminal_id"])
	assert.Equal(t, "sync", fields["component"])
	assert.Equal(t, "env-1", fields["envelope_id"])
}

func TestWithContext_EmptyContextKeepsLogger(t *testing.T) {
	l, _ := observed()
	assert.Same(t, l, l.WithContext(context.Background()))
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	l, logs := observed()
	SetDefault(l)
	Info(context.Background(), "hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "hello", logs.All()[0].Message)
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	l, err := New(Config{Level: "loud", Service: "tillpoint-test"})
	require.NoError(t, err)
	assert.False(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
}
