// Package logger provides a structured, levelled logger built on log/slog.
//
// WithCtx returns the per-request logger that middleware.Logger stores in the
// context, so every line written while handling a checkout carries the same
// request_id:
//
//	log := logger.WithCtx(r.Context())
//	log.Info("order committed", "order_id", order.ID)
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/shashiranjanraj/storefront/config"
)

var L *slog.Logger

func init() {
	L = slog.New(consoleHandler(os.Stdout))
	slog.SetDefault(L)
}

// consoleHandler is JSON in production and text everywhere else.
func consoleHandler(w io.Writer) slog.Handler {
	switch config.AppEnv() {
	case "production", "prod":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
}

// AttachMongo adds an asynchronous MongoDB sink next to the console handler
// when LOG_MONGO_URI is set. The returned func flushes and disconnects.
func AttachMongo() (func(), error) {
	uri := config.LogMongoURI()
	if uri == "" {
		return func() {}, nil
	}

	mh, err := NewMongoHandler(uri, config.LogMongoDB(), config.LogMongoCollection())
	if err != nil {
		return func() {}, err
	}

	L = slog.New(NewMultiHandler(consoleHandler(os.Stdout), mh))
	slog.SetDefault(L)
	return mh.Close, nil
}

// ─────────────────────────────────────────────
// Context-aware logger
// ─────────────────────────────────────────────

type ctxKey struct{}

// WithCtx returns the logger injected by the HTTP middleware, or L.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// InjectLogger stores a request-scoped *slog.Logger in ctx.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Info(msg string, args ...any)  { L.Info(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }
