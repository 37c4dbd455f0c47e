package domain

// Call-attempt statuses as persisted on the attempts table. An attempt is
// created as scheduled, becomes initiated once the voice provider accepts
// the call, then follows the webhook stream through in_progress and
// analyzing before settling as completed or failed.
const (
	AttemptScheduled  = "scheduled"
	AttemptInitiated  = "initiated"
	AttemptInProgress = "in_progress"
	AttemptAnalyzing  = "analyzing"
	AttemptCompleted  = "completed"
	AttemptFailed     = "failed"
)

// AttemptStatusForEvent maps a canonical call event to the attempt status
// recorded for it. Unknown events return "" and leave the attempt as is.
func AttemptStatusForEvent(event CanonicalEvent) string {
	switch event {
	case EventInitiation:
		return AttemptInitiated
	case EventInProgress:
		return AttemptInProgress
	case EventPostCall:
		return AttemptAnalyzing
	case EventCompleted:
		return AttemptCompleted
	case EventFailed:
		return AttemptFailed
	default:
		return ""
	}
}

// IsAttemptUnderway reports whether the attempt status indicates the call
// has been picked up by the provider and is still producing events.
func IsAttemptUnderway(status string) bool {
	switch status {
	case AttemptInProgress, AttemptAnalyzing, AttemptCompleted:
		return true
	}
	return false
}
