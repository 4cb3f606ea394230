package server

import (
	"context"
	"time"

	"github.com/wirechat/wirechat/observability"
)

// Observability event types emitted by the server.
const (
	EventConnOpen         observability.EventType = "conn.open"
	EventConnClose        observability.EventType = "conn.close"
	EventRequestStart     observability.EventType = "request.start"
	EventRequestComplete  observability.EventType = "request.complete"
	EventRequestCancelled observability.EventType = "request.cancelled"
	EventRequestFailed    observability.EventType = "request.failed"
	EventRequestRejected  observability.EventType = "request.rejected"
	EventMemoryWriteError observability.EventType = "memory.write_error"

	// EventSessionEvicted is emitted by the entrypoint's store eviction hook
	// rather than by a Conn.
	EventSessionEvicted observability.EventType = "session.evicted"
)

func (c *Conn) emit(ctx context.Context, eventType observability.EventType, level observability.Level, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["session_id"] = c.sessionID

	c.observer.OnEvent(ctx, observability.Event{
		Type:      eventType,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "server.Conn",
		Data:      data,
	})
}
