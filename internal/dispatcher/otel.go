package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/vmap/mapviewer/internal/dispatcher"

// instruments are resolved from the global meter provider, which is a no-op
// until the process installs one.
type instruments struct {
	queueDepth metric.Int64ObservableGauge
	dispatched metric.Int64Counter
	processed  metric.Int64Counter
	dropped    metric.Int64Counter
	duration   metric.Float64Histogram
}

func newInstruments(depths func() map[string]int) (*instruments, error) {
	m := otel.Meter(instrumentationName)
	ins := &instruments{}

	var err error
	if ins.queueDepth, err = m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Events waiting in a buffered handler's queue")); err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	if _, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for typ, n := range depths() {
			o.ObserveInt64(ins.queueDepth, int64(n), eventAttr(typ))
		}
		return nil
	}, ins.queueDepth); err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&ins.dispatched, "dispatcher.events.dispatched", "Events routed to a handler"},
		{&ins.processed, "dispatcher.events.processed", "Buffered events taken off a queue and handled"},
		{&ins.dropped, "dispatcher.events.dropped", "Events dropped because a queue was full"},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
	}

	if ins.duration, err = m.Float64Histogram("dispatcher.handler.duration",
		metric.WithDescription("Handler run time"), metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return ins, nil
}

func eventAttr(typ string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("event", typ))
}

func (ins *instruments) observeRun(typ string, elapsed time.Duration) {
	ins.duration.Record(context.Background(), float64(elapsed)/float64(time.Millisecond), eventAttr(typ))
}
