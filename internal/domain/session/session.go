package session

import (
	"time"

	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Status represents the lifecycle status of a consultation session.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConnecting Status = "CONNECTING"
	StatusActive     Status = "ACTIVE"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

// IsValid checks if the status is a valid session status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConnecting, StatusActive,
		StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the session can no longer change status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsLive returns true while a conference may still be bound to the
// session. Live sessions are never touched by reconciliation sweeps.
func (s Status) IsLive() bool {
	return s == StatusConnecting || s == StatusActive
}

// IsFailureEquivalent returns true when the session outcome releases a
// duplicate-guard lock held on its behalf.
func (s Status) IsFailureEquivalent() bool {
	return s == StatusFailed || s == StatusCancelled
}

// PaymentStatePrefix namespaces every payment field projected onto the
// session record, keeping the projection separable from telephony state.
const PaymentStatePrefix = "payment."

// ConsultationSession is the consultation/call record whose lifecycle
// gates and triggers payment capture. It is owned by the call
// establishment system; this service only reads status/duration and
// writes the namespaced payment sub-state projection.
type ConsultationSession struct {
	shared.BaseEntity
	ClientRef       uuid.UUID
	PayeeRef        uuid.UUID
	Status          Status
	DurationSeconds int64
	PaymentState    map[string]string
	StatusChangedAt time.Time
}

// ApplyPaymentState merges the given payment fields into the session's
// namespaced payment sub-state.
func (s *ConsultationSession) ApplyPaymentState(fields map[string]string) {
	if s.PaymentState == nil {
		s.PaymentState = make(map[string]string, len(fields))
	}
	for k, v := range fields {
		s.PaymentState[PaymentStatePrefix+k] = v
	}
	s.Touch()
}
