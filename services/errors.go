package services

import (
	"errors"
	"fmt"
	"strings"

	"rewards-engine/models"
)

var (
	// ErrInsufficientPoints rejects a spend before any ledger write happens.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrConflict marks a commit-time re-check failure (stock exhausted or
	// balance drained by a concurrent request). Retryable, distinct from a
	// plain eligibility failure.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrChallengeNotOpen rejects joins outside the challenge window.
	ErrChallengeNotOpen = errors.New("challenge is not open for joining")

	// ErrChallengeFull rejects joins past max_participants.
	ErrChallengeFull = errors.New("challenge is at capacity")

	// ErrParticipationClosed rejects progress updates on terminal participations.
	ErrParticipationClosed = errors.New("participation is no longer active")

	// ErrReconciliationMismatch signals a ledger invariant violation. Never
	// silently corrected; logged for investigation.
	ErrReconciliationMismatch = errors.New("ledger reconciliation mismatch")
)

// EligibilityResult carries every failed redemption rule, not just the first,
// so the UI can show complete feedback.
type EligibilityResult struct {
	CanRedeem bool     `json:"can_redeem"`
	Errors    []string `json:"errors"`
}

// EligibilityError wraps a failed eligibility check as an error value.
type EligibilityError struct {
	Reasons []string
}

func (e *EligibilityError) Error() string {
	return "not eligible: " + strings.Join(e.Reasons, "; ")
}

// TransitionError names a disallowed redemption status change.
type TransitionError struct {
	From models.RedemptionStatus
	To   models.RedemptionStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid redemption transition %s -> %s", e.From, e.To)
}
