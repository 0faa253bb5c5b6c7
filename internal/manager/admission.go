package manager

import (
	"context"
	"time"
)

// beginInference reserves an in-flight slot, waiting at most maxWait.
// Returns a release func to be deferred.
func (m *Manager) beginInference(ctx context.Context, modelID string) (func(), error) {
	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	if m.slots == nil {
		m.inflight.Add(1)
		return func() { m.inflight.Add(-1) }, nil
	}
	select {
	case m.slots <- struct{}{}:
	default:
		timer := time.NewTimer(m.maxWait)
		defer timer.Stop()
		select {
		case m.slots <- struct{}{}:
		case <-ctx.Done():
			return func() {}, ctx.Err()
		case <-timer.C:
			return func() {}, tooBusyError{modelID: modelID}
		}
	}
	m.inflight.Add(1)
	return func() {
		m.inflight.Add(-1)
		<-m.slots
	}, nil
}
