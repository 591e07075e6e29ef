package telemetry

import (
	"context"
	"sync/atomic"

	"github.com/nerrad567/vhome-bridge/internal/bridge/coordinator"
	"github.com/nerrad567/vhome-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/vhome-bridge/internal/infrastructure/mqtt"
)

// mirrorQueue bounds the events waiting to be mirrored.
const mirrorQueue = 64

// Publisher is the part of the MQTT client the mirror publishes through.
// *mqtt.Client satisfies it.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// Mirror republishes coordinator events as JSON on
// vhome/bridge/event/<type> for other local consumers.
//
// Publish only queues, so the coordinator loop never waits on the broker;
// when the queue is full the event is dropped and counted.
type Mirror struct {
	pub     Publisher
	topics  mqtt.Topics
	queue   chan coordinator.Event
	logger  *logging.Logger
	dropped atomic.Int64
}

// NewMirror creates a mirror. Call Run to start publishing.
func NewMirror(pub Publisher, logger *logging.Logger) *Mirror {
	return &Mirror{
		pub:    pub,
		queue:  make(chan coordinator.Event, mirrorQueue),
		logger: logger,
	}
}

// Publish implements coordinator.EventSink.
func (m *Mirror) Publish(e coordinator.Event) {
	select {
	case m.queue <- e:
	default:
		m.dropped.Add(1)
	}
}

// Run publishes queued events until ctx is done.
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-m.queue:
			if err := m.pub.PublishJSON(m.topics.SystemEvent(e.Type()), e, false); err != nil {
				m.logger.Warn("mirroring event failed", "type", e.Type(), "error", err)
			}
		}
	}
}

// Dropped returns how many events were discarded on a full queue.
func (m *Mirror) Dropped() int64 {
	return m.dropped.Load()
}
