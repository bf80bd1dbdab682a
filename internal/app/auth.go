package app

import (
	"sync"

	"github.com/bft-labs/pryvlink/internal/domain"
	"github.com/bft-labs/pryvlink/internal/ports"
)

// AuthEmitter is called when the authorization state of a connection changes.
type AuthEmitter interface {
	OnAuthStateChange(previous, current domain.AuthState, reason string)
}

// allowedTransitions lists, per state, the states it may move to.
var allowedTransitions = map[domain.AuthState][]domain.AuthState{
	domain.AuthInitialized: {domain.AuthLoading, domain.AuthLogout},
	domain.AuthLoading:     {domain.AuthAuthorized, domain.AuthError, domain.AuthInitialized},
	domain.AuthAuthorized:  {domain.AuthLoading, domain.AuthError, domain.AuthLogout},
	domain.AuthError:       {domain.AuthLoading, domain.AuthLogout},
	domain.AuthLogout:      {domain.AuthInitialized, domain.AuthLoading},
}

// AuthTracker is the authorization state machine of a connection.
type AuthTracker struct {
	mu      sync.RWMutex
	state   domain.AuthState
	logger  ports.Logger
	emitter AuthEmitter
}

// NewAuthTracker creates a tracker in the initialized state. emitter may be nil.
func NewAuthTracker(logger ports.Logger, emitter AuthEmitter) *AuthTracker {
	return &AuthTracker{
		state:   domain.AuthInitialized,
		logger:  logger,
		emitter: emitter,
	}
}

// State returns the current state.
func (a *AuthTracker) State() domain.AuthState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// TransitionTo moves to newState if the transition is allowed.
// Moving to the current state is a no-op.
func (a *AuthTracker) TransitionTo(newState domain.AuthState, reason string) error {
	a.mu.Lock()
	oldState := a.state
	if oldState == newState {
		a.mu.Unlock()
		return nil
	}
	if !canTransition(oldState, newState) {
		a.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	a.state = newState
	a.mu.Unlock()

	// Emit event outside of lock
	if a.emitter != nil {
		a.emitter.OnAuthStateChange(oldState, newState, reason)
	}

	a.logger.Info("auth state transition",
		ports.String("from", oldState.String()),
		ports.String("to", newState.String()),
		ports.String("reason", reason),
	)
	return nil
}

func canTransition(from, to domain.AuthState) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
