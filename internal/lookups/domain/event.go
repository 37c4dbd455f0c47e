package domain

import "strings"

// CanonicalEvent is the small classified set derived from vendor-specific
// event names and status strings.
type CanonicalEvent string

const (
	EventInitiation CanonicalEvent = "initiation"
	EventInProgress CanonicalEvent = "in_progress"
	EventPostCall   CanonicalEvent = "post_call"
	EventCompleted  CanonicalEvent = "completed"
	EventFailed     CanonicalEvent = "failed"
	EventUnknown    CanonicalEvent = "unknown"
)

// Keyword sets per canonical event. Matching is substring-based because
// vendors embed these tokens in compound strings ("call_ended_no_answer",
// "post_call_transcription"). Order matters: failure keywords are checked
// before completion so that "call_failed_after_success_signal" stays failed,
// and the data-availability override below restores completed when results
// are actually present.
var (
	initiationKeywords = []string{"initiat", "connecting", "ringing", "dialing", "dialling", "queued", "scheduled", "started"}
	inProgressKeywords = []string{"in_progress", "in-progress", "ongoing", "answered", "speaking", "active"}
	postCallKeywords   = []string{"post_call", "post-call", "analysis", "analyzing", "transcription", "transcribing", "processing"}
	completedKeywords  = []string{"success", "completed", "complete", "finished", "done", "ended"}
	failedKeywords     = []string{"error", "fail", "timeout", "timed_out", "cancel", "busy", "no_answer", "no-answer", "unanswered", "rejected", "declined", "voicemail"}
)

// Classify maps a vendor event name and status string to a canonical event.
// hasResultData signals that the payload carries a non-empty transcript or
// summary; its presence is definitive and overrides merely-suggestive status
// text, because vendors are observed to emit stale failure strings alongside
// fully-formed results.
func Classify(eventName, vendorStatus string, hasResultData bool) CanonicalEvent {
	event := strings.ToLower(strings.TrimSpace(eventName))
	status := strings.ToLower(strings.TrimSpace(vendorStatus))
	combined := event + " " + status

	switch {
	case containsAny(combined, postCallKeywords):
		if hasResultData {
			return EventCompleted
		}
		return EventPostCall
	case containsAny(combined, failedKeywords):
		if hasResultData {
			return EventCompleted
		}
		return EventFailed
	case containsAny(combined, completedKeywords):
		// Completed is terminal with or without results: a data-less
		// completion settles as not_found, and the status ranking still
		// lets a later delivery with results promote it to cached.
		return EventCompleted
	case containsAny(combined, initiationKeywords):
		return EventInitiation
	case containsAny(combined, inProgressKeywords):
		return EventInProgress
	default:
		if hasResultData {
			return EventCompleted
		}
		return EventUnknown
	}
}

// StatusForEvent maps a canonical event to the lookup status it proposes.
// The proposal is applied through NextStatus, so an out-of-order initiation
// event can never regress a lookup that already finished.
func StatusForEvent(event CanonicalEvent, hasResultData bool) string {
	switch event {
	case EventInitiation, EventInProgress, EventPostCall:
		return StatusCalling
	case EventCompleted:
		if hasResultData {
			return StatusCached
		}
		return StatusNotFound
	case EventFailed:
		return StatusFailed
	default:
		return ""
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
