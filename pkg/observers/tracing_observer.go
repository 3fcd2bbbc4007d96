package observers

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/anggasct/tickfsm"
)

const tracerName = "github.com/anggasct/tickfsm"

// TracingObserver records one OpenTelemetry span per transition attempt.
// Hook completions become span events; rejected attempts and activations
// produce short spans of their own.
type TracingObserver struct {
	tracer trace.Tracer

	mutex sync.Mutex
	spans map[string]trace.Span
}

// NewTracingObserver creates an observer using tracer, or the global tracer
// provider when tracer is nil
func NewTracingObserver(tracer trace.Tracer) *TracingObserver {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &TracingObserver{
		tracer: tracer,
		spans:  make(map[string]trace.Span),
	}
}

// Log implements tickfsm.Logger
func (o *TracingObserver) Log(event tickfsm.LifecycleEvent) {
	switch event.Kind {
	case tickfsm.EventTransitionStarted:
		//nolint:spancheck // ended by the matching transitioned or failed event
		_, span := o.tracer.Start(context.Background(), "tickfsm.transition",
			trace.WithTimestamp(event.Time),
			trace.WithAttributes(eventAttributes(event)...),
		)
		o.mutex.Lock()
		o.spans[event.TransitionID] = span
		o.mutex.Unlock()

	case tickfsm.EventStateExited, tickfsm.EventStateEntered:
		if span, ok := o.lookup(event.TransitionID, false); ok {
			span.AddEvent(event.Kind.String(),
				trace.WithTimestamp(event.Time),
				trace.WithAttributes(attribute.String("state", event.State)),
			)
		}

	case tickfsm.EventTransitioned:
		if span, ok := o.lookup(event.TransitionID, true); ok {
			span.SetStatus(codes.Ok, "")
			span.End(trace.WithTimestamp(event.Time))
		}

	case tickfsm.EventTransitionFailed:
		span, ok := o.lookup(event.TransitionID, true)
		if !ok {
			_, span = o.tracer.Start(context.Background(), "tickfsm.activate",
				trace.WithTimestamp(event.Time),
				trace.WithAttributes(eventAttributes(event)...),
			)
		}
		o.fail(span, event)

	case tickfsm.EventTransitionRejected:
		_, span := o.tracer.Start(context.Background(), "tickfsm.transition",
			trace.WithTimestamp(event.Time),
			trace.WithAttributes(eventAttributes(event)...),
		)
		o.fail(span, event)

	case tickfsm.EventActivated:
		_, span := o.tracer.Start(context.Background(), "tickfsm.activate",
			trace.WithTimestamp(event.Time),
			trace.WithAttributes(eventAttributes(event)...),
		)
		span.SetStatus(codes.Ok, "")
		span.End(trace.WithTimestamp(event.Time))
	}
}

// InFlight returns the number of transitions with an open span
func (o *TracingObserver) InFlight() int {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return len(o.spans)
}

func (o *TracingObserver) lookup(id string, remove bool) (trace.Span, bool) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	span, ok := o.spans[id]
	if ok && remove {
		delete(o.spans, id)
	}
	return span, ok
}

func (o *TracingObserver) fail(span trace.Span, event tickfsm.LifecycleEvent) {
	if event.Err != nil {
		span.RecordError(event.Err, trace.WithTimestamp(event.Time))
		span.SetAttributes(attribute.String("tickfsm.error_code", tickfsm.GetErrorCode(event.Err).String()))
		span.SetStatus(codes.Error, event.Err.Error())
	} else {
		span.SetStatus(codes.Error, event.Kind.String())
	}
	span.End(trace.WithTimestamp(event.Time))
}

func eventAttributes(event tickfsm.LifecycleEvent) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("tickfsm.machine", event.Machine),
		attribute.String("tickfsm.machine_id", event.MachineID),
		attribute.String("tickfsm.transition_id", event.TransitionID),
		attribute.String("tickfsm.to", event.To),
	}
	if event.From != "" {
		attrs = append(attrs, attribute.String("tickfsm.from", event.From))
	}
	if !event.Payload.IsEmpty() {
		attrs = append(attrs, attribute.String("tickfsm.payload_type", event.Payload.TypeName()))
	}
	return attrs
}
