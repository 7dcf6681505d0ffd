// internal/domain/policy/status.go
package policy

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a policy.
type Status string

const (
	StatusDraft          Status = "draft"
	StatusActive         Status = "active"
	StatusPendingRenewal Status = "pending_renewal"
	StatusRenewed        Status = "renewed"
	StatusExpired        Status = "expired"
	StatusCancelled      Status = "cancelled"
)

// ErrInvalidTransition is matched by every *InvalidTransitionError.
var ErrInvalidTransition = errors.New("invalid policy status transition")

// ErrUnknownStatus is returned by ParseStatus for values outside the known set.
var ErrUnknownStatus = errors.New("unknown policy status")

// transitions is the complete set of legal edges. Terminal states have no entry.
var transitions = map[Status][]Status{
	StatusDraft:          {StatusActive},
	StatusActive:         {StatusPendingRenewal, StatusCancelled, StatusExpired},
	StatusPendingRenewal: {StatusRenewed, StatusExpired, StatusCancelled},
	StatusRenewed:        {StatusActive},
}

// AllStatuses lists every status in declaration order.
func AllStatuses() []Status {
	return []Status{StatusDraft, StatusActive, StatusPendingRenewal, StatusRenewed, StatusExpired, StatusCancelled}
}

// ParseStatus converts user input into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusPendingRenewal, StatusRenewed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusExpired || s == StatusCancelled
}

// SuppressesRenewals reports whether a policy in s must carry no renewal reminders.
func (s Status) SuppressesRenewals() bool {
	return s == StatusExpired || s == StatusCancelled
}

// AllowedTransitions returns the statuses reachable from s in one step.
func AllowedTransitions(s Status) []Status {
	allowed := transitions[s]
	out := make([]Status, len(allowed))
	copy(out, allowed)
	return out
}

// CanTransition reports whether current -> requested is permitted.
func CanTransition(current, requested Status) bool {
	return Transition(current, requested) == nil
}

// Transition validates a status change. Requesting the current status is a no-op
// and always succeeds.
func Transition(current, requested Status) error {
	if current == requested {
		return nil
	}
	for _, to := range transitions[current] {
		if to == requested {
			return nil
		}
	}
	return &InvalidTransitionError{From: current, To: requested, Allowed: AllowedTransitions(current)}
}

// InvalidTransitionError carries the allowed set so callers can explain the refusal.
type InvalidTransitionError struct {
	From    Status
	To      Status
	Allowed []Status
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("cannot change policy status from %s to %s: %s is a final status", e.From, e.To, e.From)
	}
	names := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		names[i] = string(s)
	}
	return fmt.Sprintf("cannot change policy status from %s to %s (allowed: %s)", e.From, e.To, strings.Join(names, ", "))
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }
