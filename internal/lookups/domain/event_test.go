package domain

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name          string
		event         string
		status        string
		hasResultData bool
		want          CanonicalEvent
	}{
		{"initiation from status", "", "connecting", false, EventInitiation},
		{"initiation from event", "call_initiation", "", false, EventInitiation},
		{"ringing", "", "ringing", false, EventInitiation},
		{"in progress", "", "in_progress", false, EventInProgress},
		{"post call transcription", "post_call_transcription", "", false, EventPostCall},
		{"analysis status", "", "analysis", false, EventPostCall},
		{"completed", "", "success", true, EventCompleted},
		{"done without data", "", "done", false, EventCompleted},
		{"ended without data", "call_ended", "", false, EventCompleted},
		{"failed timeout", "", "timeout", false, EventFailed},
		{"failed no answer", "call_ended_no_answer", "", false, EventFailed},
		{"busy", "", "busy", false, EventFailed},
		{"unknown", "something_else", "odd", false, EventUnknown},
		{"unknown with data", "something_else", "odd", true, EventCompleted},

		// Data availability is definitive; status text is advisory.
		{"error with transcript", "", "error", true, EventCompleted},
		{"failure event with data", "call_failed", "error", true, EventCompleted},
		{"post call with data", "post_call_transcription", "error", true, EventCompleted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.event, tc.status, tc.hasResultData)
			if got != tc.want {
				t.Fatalf("Classify(%q, %q, %v) = %q, want %q", tc.event, tc.status, tc.hasResultData, got, tc.want)
			}
		})
	}
}

func TestNextStatusMonotonic(t *testing.T) {
	cases := []struct {
		current   string
		candidate string
		want      string
	}{
		{StatusPending, StatusCalling, StatusCalling},
		{StatusCalling, StatusPending, StatusCalling},
		{StatusCalling, StatusCached, StatusCached},
		{StatusCalling, StatusFailed, StatusFailed},
		{StatusCached, StatusCalling, StatusCached},
		{StatusCached, StatusFailed, StatusCached},
		{StatusNotFound, StatusCalling, StatusNotFound},
		{StatusFailed, StatusFailed, StatusFailed},
		{StatusCalling, "bogus", StatusCalling},

		// Late-arriving success data wins over an earlier failure signal.
		{StatusFailed, StatusCached, StatusCached},
	}

	for _, tc := range cases {
		if got := NextStatus(tc.current, tc.candidate); got != tc.want {
			t.Errorf("NextStatus(%q, %q) = %q, want %q", tc.current, tc.candidate, got, tc.want)
		}
	}
}

func TestNormalizeVendorToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Success", "success"},
		{"b'Success'", "success"},
		{`b"Success"`, "success"},
		{"B'DONE'", "done"},
		{"  b'Success'  ", "success"},
		{"b'b'", "b"},
		{"", ""},
		{"b", "b"},
		{"plain", "plain"},
	}

	for _, tc := range cases {
		if got := NormalizeVendorToken(tc.in); got != tc.want {
			t.Errorf("NormalizeVendorToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// A call that ends with no transcript or summary must still settle the
// lookup: classification proposes not_found, and the status machine
// accepts it from calling.
func TestDataLessCompletionTerminates(t *testing.T) {
	event := Classify("", "completed", false)
	if event != EventCompleted {
		t.Fatalf("Classify(completed, no data) = %q, want %q", event, EventCompleted)
	}

	proposed := StatusForEvent(event, false)
	next := NextStatus(StatusCalling, proposed)
	if !IsTerminalStatus(next) {
		t.Fatalf("lookup stuck at %q after data-less completion", next)
	}
	if next != StatusNotFound {
		t.Fatalf("data-less completion settled as %q, want %q", next, StatusNotFound)
	}

	// A later delivery that does carry results still upgrades the outcome.
	if got := NextStatus(next, StatusForEvent(EventCompleted, true)); got != StatusCached {
		t.Fatalf("late results after not_found = %q, want %q", got, StatusCached)
	}
}

func TestStatusForEvent(t *testing.T) {
	if got := StatusForEvent(EventCompleted, true); got != StatusCached {
		t.Fatalf("completed with data should propose cached, got %q", got)
	}
	if got := StatusForEvent(EventCompleted, false); got != StatusNotFound {
		t.Fatalf("completed without data should propose not_found, got %q", got)
	}
	if got := StatusForEvent(EventFailed, false); got != StatusFailed {
		t.Fatalf("failed should propose failed, got %q", got)
	}
	if got := StatusForEvent(EventInitiation, false); got != StatusCalling {
		t.Fatalf("initiation should propose calling, got %q", got)
	}
	if got := StatusForEvent(EventUnknown, false); got != "" {
		t.Fatalf("unknown should propose nothing, got %q", got)
	}
}
