package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/oactree/jobmon/internal/dispatcher"
	"github.com/oactree/jobmon/internal/event"
	"github.com/oactree/jobmon/internal/model"
)

// NewDispatchMiddleware records one span per dispatched event, named
// "dispatch.<kind>". A nil tracer yields a pass-through middleware.
func NewDispatchMiddleware(tracer trace.Tracer) dispatcher.Middleware {
	if tracer == nil {
		return func(next dispatcher.Handler) dispatcher.Handler { return next }
	}
	return func(next dispatcher.Handler) dispatcher.Handler {
		return func(ctx context.Context, ev event.Event) {
			ctx, span := tracer.Start(ctx, SpanDispatch+ev.Kind().String(),
				trace.WithSpanKind(trace.SpanKindConsumer),
				trace.WithAttributes(eventAttributes(ev)...),
			)
			defer span.End()

			next(ctx, ev)

			if st, ok := ev.(event.JobStateChanged); ok && st.State == event.JobFailed {
				span.SetStatus(codes.Error, "job failed")
				return
			}
			span.SetStatus(codes.Ok, "")
		}
	}
}

// StartJobSpan starts the root span for a job run. Dispatch spans started
// from the returned context become its children.
func StartJobSpan(ctx context.Context, tracer trace.Tracer, job *model.JobItem) (context.Context, trace.Span) {
	return tracer.Start(ctx, SpanJobRun, trace.WithAttributes(
		attribute.String(AttrJobID, job.ID),
		attribute.String(AttrJobName, job.Name),
	))
}

// EndJobSpan records the final job status and ends span.
func EndJobSpan(span trace.Span, job *model.JobItem, err error) {
	span.SetAttributes(attribute.String(AttrJobState, job.Status()))
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case job.Status() == event.JobSucceeded.String():
		span.SetStatus(codes.Ok, "")
	default:
		span.SetStatus(codes.Error, "job ended "+job.Status())
	}
	span.End()
}

func eventAttributes(ev event.Event) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(AttrEventKind, ev.Kind().String())}
	switch e := ev.(type) {
	case event.InstructionStatusChanged:
		attrs = append(attrs,
			attribute.Int64(AttrInstruction, int64(e.Ref)),
			attribute.String(AttrStatus, e.Status.String()))
	case event.VariableUpdated:
		attrs = append(attrs,
			attribute.String(AttrVariable, e.Name),
			attribute.Bool(AttrConnected, e.Connected))
	case event.JobStateChanged:
		attrs = append(attrs, attribute.String(AttrJobState, e.State.String()))
	case event.LogEvent:
		attrs = append(attrs,
			attribute.String(AttrSeverity, e.Severity.String()),
			attribute.String(AttrLogSource, e.Source))
	case event.NextLeavesChanged:
		attrs = append(attrs, attribute.Int(AttrNextLeafCount, len(e.Refs)))
	case event.BreakpointHit:
		attrs = append(attrs, attribute.Int64(AttrInstruction, int64(e.Ref)))
	}
	return attrs
}
