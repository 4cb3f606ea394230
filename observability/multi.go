package observability

import "context"

// MultiObserver forwards each event to a fixed set of observers in
// registration order. Useful when the gateway should both log events and
// feed them to a capture sink.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver creates a MultiObserver from the given observers,
// dropping nil entries.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	kept := make([]Observer, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			kept = append(kept, obs)
		}
	}
	return &MultiObserver{observers: kept}
}

func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(ctx, event)
	}
}
