package log_test

import (
	"context"
	"testing"

	"github.com/jrife/murre/utils/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := log.WithFields(context.Background(), zap.String("map", "m"))
	ctx = log.WithFields(ctx, zap.Int("partition", 3))

	log.ForOperation(ctx, zap.New(core), "put").Info("hello")

	entries := logs.All()

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	fields := entries[0].ContextMap()

	if fields["map"] != "m" || fields["partition"] != int64(3) || fields["operation"] != "put" {
		t.Fatalf("unexpected fields %#v", fields)
	}
}

func TestLoggerFromContext(t *testing.T) {
	defaultLogger := zap.NewNop()
	logger, ctx := log.LoggerFromContext(context.Background(), defaultLogger)

	if logger != defaultLogger {
		t.Fatalf("expected the default logger")
	}

	if log.Logger(ctx) != defaultLogger {
		t.Fatalf("expected the default logger to be attached to the context")
	}

	other := zap.NewExample()
	logger, _ = log.LoggerFromContext(log.WithLogger(context.Background(), other), defaultLogger)

	if logger != other {
		t.Fatalf("expected the context logger")
	}
}
