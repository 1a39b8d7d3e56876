package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository provides read access to consultation sessions plus the
// single write this service performs: the payment sub-state projection.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ConsultationSession, error)

	// FindStaleNonTerminal returns sessions stuck in the given statuses
	// whose last status change is older than the cutoff.
	FindStaleNonTerminal(ctx context.Context, statuses []Status, cutoff time.Time) ([]ConsultationSession, error)

	// Save persists the session, including its payment sub-state.
	Save(ctx context.Context, s *ConsultationSession) error
}

// LivenessProbe confirms whether an externally-verified conference or
// connection is still bound to a session. Reconciliation must consult it
// before cancelling an apparently orphaned session.
type LivenessProbe interface {
	HasLiveConnection(ctx context.Context, sessionID uuid.UUID) (bool, error)
}
