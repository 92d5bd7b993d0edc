package queue

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bookwise/session-client/internal/core/domain"
	"github.com/bookwise/session-client/internal/core/ports"
	"github.com/bookwise/session-client/pkg/logger"
	"github.com/bookwise/session-client/pkg/metrics"
)

const channelBuffer = 256

// Dispatcher feeds session-change events to a single worker so they are
// applied strictly in arrival order and never interleave.
type Dispatcher struct {
	events chan domain.AuthEvent
	log    zerolog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stopped   chan struct{}
	finished  chan struct{}
}

var _ ports.EventQueue = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher. If buffer <= 0, channelBuffer is used.
func NewDispatcher(buffer int, log zerolog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = channelBuffer
	}
	return &Dispatcher{
		events:   make(chan domain.AuthEvent, buffer),
		log:      logger.Component(log, "events"),
		stopped:  make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Start launches the worker goroutine feeding handler. It stops when ctx is
// cancelled or Stop is called. Only the first call has any effect.
func (d *Dispatcher) Start(ctx context.Context, handler ports.EventHandler) {
	d.startOnce.Do(func() {
		go d.runWorker(ctx, handler)
	})
}

// Enqueue hands an event to the worker. It blocks once the buffer is full and
// drops the event if the dispatcher has been stopped.
func (d *Dispatcher) Enqueue(event domain.AuthEvent) bool {
	select {
	case <-d.stopped:
		return false
	default:
	}
	select {
	case d.events <- event:
		metrics.EventsQueueDepth.Set(float64(len(d.events)))
		return true
	case <-d.stopped:
		return false
	}
}

// Stop halts the worker and releases blocked producers. Pending events are
// discarded. Safe to call twice.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopped) })
}

// Done is closed once the worker has exited. A dispatcher that was never
// started reports done as soon as it is stopped.
func (d *Dispatcher) Done() <-chan struct{} {
	d.startOnce.Do(func() {
		go func() {
			<-d.stopped
			close(d.finished)
		}()
	})
	return d.finished
}

func (d *Dispatcher) runWorker(ctx context.Context, handler ports.EventHandler) {
	defer close(d.finished)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopped:
			return
		case event := <-d.events:
			metrics.EventsQueueDepth.Set(float64(len(d.events)))
			if err := handler.Apply(ctx, event); err != nil {
				d.log.Error().Err(err).
					Str("event_id", event.ID).
					Str("kind", string(event.Kind)).
					Msg("event processing failed")
			}
		}
	}
}
