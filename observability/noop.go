package observability

import "context"

// NoOpObserver drops every event. It is the fallback when a connection or
// subsystem is constructed without an observer.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(context.Context, Event) {}
