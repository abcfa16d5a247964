package worker

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

func attrScheme(name string) attribute.KeyValue { return attribute.String("scheme", name) }
func attrOp(op string) attribute.KeyValue       { return attribute.String("op", op) }

var tracer = otel.Tracer("github.com/stelladb/stellator/worker")

// startOp opens a span named "worker.<op>" over scheme, records the
// operation counter, and returns a context carrying the span plus an end
// func the caller defers. Both the tracer and meter resolve to no-op
// implementations until a caller installs real SDK providers via
// otel.SetTracerProvider/otel.SetMeterProvider (cmd/stelladef wires this
// behind an --otel flag), matching beads' internal/debug env-toggle
// pattern for OTel.
func startOp(ctx context.Context, schemeName, op string) (context.Context, func()) {
	recordOp(ctx, schemeName, op)
	ctx, span := tracer.Start(ctx, "worker."+op, trace.WithAttributes(attrScheme(schemeName)))
	return ctx, func() { span.End() }
}

// opCounter is the worker-level operation counter of spec §9's ambient
// observability stack, grounded on beads' internal/debug OTel wiring: a
// no-op meter by default (otel.GetMeterProvider's default), becoming real
// once a caller installs an SDK MeterProvider via otel.SetMeterProvider,
// with no code here needing to change either way.
var (
	opCounterOnce sync.Once
	opCounter     metric.Int64Counter
	txDepthGauge  metric.Int64UpDownCounter
)

func initMetrics() {
	meter := otel.GetMeterProvider().Meter("github.com/stelladb/stellator/worker")
	opCounter, _ = meter.Int64Counter("stellator.worker.operations",
		metric.WithDescription("count of Worker CRUD operations by scheme and kind"))
	txDepthGauge, _ = meter.Int64UpDownCounter("stellator.worker.transaction_depth",
		metric.WithDescription("current nested transaction depth"))
}

func recordOp(ctx context.Context, schemeName, op string) {
	opCounterOnce.Do(initMetrics)
	if opCounter == nil {
		return
	}
	opCounter.Add(ctx, 1, metric.WithAttributes(
		attrScheme(schemeName), attrOp(op),
	))
}

// recordTxDepth adjusts the transaction-depth gauge by delta (+1 when the
// outermost Begin actually opens a backend transaction, -1 when the
// outermost Commit/Rollback actually closes one); nested frames never
// call this since they only adjust Transaction's own counter.
func recordTxDepth(ctx context.Context, delta int64) {
	opCounterOnce.Do(initMetrics)
	if txDepthGauge == nil {
		return
	}
	txDepthGauge.Add(ctx, delta)
}
