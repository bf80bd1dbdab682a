package pryvlink

import (
	"time"

	"github.com/bft-labs/pryvlink/internal/domain"
)

// AuthStateChangeEvent is emitted when the authorization state changes.
type AuthStateChangeEvent struct {
	Previous AuthState
	Current  AuthState
	Reason   string
}

// SyncSuccessEvent is emitted after a follower pass completes.
type SyncSuccessEvent struct {
	Events    int
	Deletions int
	Duration  time.Duration
}

// SyncErrorEvent is emitted when a follower pass fails.
type SyncErrorEvent struct {
	Error error
}

// EventHandler receives connection notifications. Methods are called
// synchronously from the goroutine doing the work and should return quickly.
type EventHandler interface {
	OnAuthStateChange(event AuthStateChangeEvent)
	OnSyncSuccess(event SyncSuccessEvent)
	OnSyncError(event SyncErrorEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to
// override only the methods you need.
type BaseEventHandler struct{}

func (BaseEventHandler) OnAuthStateChange(AuthStateChangeEvent) {}
func (BaseEventHandler) OnSyncSuccess(SyncSuccessEvent)         {}
func (BaseEventHandler) OnSyncError(SyncErrorEvent)             {}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnAuthStateChange(previous, current domain.AuthState, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnAuthStateChange(AuthStateChangeEvent{
		Previous: previous,
		Current:  current,
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnSyncSuccess(events, deletions int, duration time.Duration) {
	if e.handler == nil {
		return
	}
	e.handler.OnSyncSuccess(SyncSuccessEvent{
		Events:    events,
		Deletions: deletions,
		Duration:  duration,
	})
}

func (e *eventEmitterWrapper) OnSyncError(err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnSyncError(SyncErrorEvent{Error: err})
}
