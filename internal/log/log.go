package log

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/linthound/linthound/internal/model"
)

type slogKeyT struct{}

var slogKey slogKeyT

// ContextHandler adds attributes stored in a context to every record, so the
// scan pipeline can stamp path/session attrs once instead of on every call.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(handler slog.Handler) ContextHandler {
	return ContextHandler{
		Handler: handler,
	}
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if a, ok := ctx.Value(slogKey).([]slog.Attr); ok {
		r.AddAttrs(a...)
	}

	return h.Handler.Handle(ctx, r)
}

func ContextAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	a, ok := ctx.Value(slogKey).([]slog.Attr)
	if !ok || a == nil {
		a = make([]slog.Attr, 0, len(attrs))
	}
	a = append(a, attrs...)
	return context.WithValue(ctx, slogKey, a)
}

// New builds a JSON logger writing to the destination named by the service
// config: "stderr", "stdout", "discard" or a file path (appended, created
// when missing).
func New(svc model.Service) (*slog.Logger, io.Writer, error) {
	var w io.Writer
	switch svc.Log {
	case model.LogStderr, "":
		w = os.Stderr
	case model.LogStdout:
		w = os.Stdout
	case model.LogDiscard:
		w = io.Discard
	default:
		f, err := os.OpenFile(svc.Log, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		w = f
	}

	level := slog.LevelInfo
	if svc.Verbose {
		level = slog.LevelDebug
	}
	base := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: false,
		Level:     level,
	})
	return slog.New(NewContextHandler(base)), w, nil
}
