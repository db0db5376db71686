package operation

import (
	"context"

	"github.com/jrife/murre/storage/recordstore"
	"github.com/jrife/murre/utils/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TracerName is the name of the tracer operation spans are recorded by
const TracerName = "murre/operation"

// Runner runs operations inside a span
type Runner struct {
	tracer trace.Tracer
	logger *zap.Logger
}

// NewRunner creates a runner. A nil provider uses the
// global tracer provider and a nil logger uses zap.L().
func NewRunner(provider trace.TracerProvider, logger *zap.Logger) *Runner {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	if logger == nil {
		logger = zap.L()
	}

	return &Runner{tracer: provider.Tracer(TracerName), logger: logger}
}

// Run runs op against store. It must be called from the
// goroutine owning the store's partition.
func (runner *Runner) Run(ctx context.Context, op Operation, store recordstore.RecordStore) error {
	ctx, span := runner.tracer.Start(ctx, op.Name(), trace.WithAttributes(
		attribute.String("map", op.MapName()),
		attribute.Int("partition", store.PartitionID()),
		attribute.Bool("read_only", op.ReadOnly()),
	))
	defer span.End()

	logger := log.ForOperation(ctx, runner.logger, op.Name())
	logger.Debug("start", zap.String("map", op.MapName()), zap.Int("partition", store.PartitionID()))

	err := op.Run(ctx, store)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	logger.Debug("return", zap.Error(err))

	return err
}
