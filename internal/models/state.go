package models

// SubmissionState is the server-side lifecycle state of one submission
type SubmissionState string

const (
	StateReceived         SubmissionState = "received"
	StateRateLimited      SubmissionState = "rate_limited"
	StateBotRejected      SubmissionState = "bot_rejected"
	StateTimingRejected   SubmissionState = "timing_rejected"
	StateInvalid          SubmissionState = "invalid"
	StateMisconfigured    SubmissionState = "misconfigured"
	StateValidated        SubmissionState = "validated"
	StatePrimaryAttempted SubmissionState = "delivery_attempted_primary"
	StateBackupAttempted  SubmissionState = "delivery_attempted_backup"
	StateDelivered        SubmissionState = "delivered"
	StateFailed           SubmissionState = "failed"
)

// Terminal reports whether no further transition can follow.
func (s SubmissionState) Terminal() bool {
	switch s {
	case StateRateLimited, StateBotRejected, StateTimingRejected, StateInvalid,
		StateMisconfigured, StateDelivered, StateFailed:
		return true
	default:
		return false
	}
}
