package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithCtxFallsBackToBase(t *testing.T) {
	assert.Same(t, L, WithCtx(context.Background()))
}

func TestInjectedLoggerIsReturned(t *testing.T) {
	var buf bytes.Buffer
	reqLog := slog.New(slog.NewTextHandler(&buf, nil)).With("request_id", "abc123")

	ctx := InjectLogger(context.Background(), reqLog)
	WithCtx(ctx).Info("order committed", "order_id", "o-1")

	assert.Contains(t, buf.String(), "request_id=abc123")
	assert.Contains(t, buf.String(), "order_id=o-1")
}

func TestMultiHandlerFansOutByLevel(t *testing.T) {
	var debugBuf, infoBuf bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)
	log := slog.New(h).With("component", "checkout")

	log.Debug("validator line")
	log.Info("order committed")

	assert.Contains(t, debugBuf.String(), "validator line")
	assert.Contains(t, debugBuf.String(), "order committed")
	assert.NotContains(t, infoBuf.String(), "validator line")
	assert.Contains(t, infoBuf.String(), "component=checkout")
}
