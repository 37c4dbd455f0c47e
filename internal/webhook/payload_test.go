package webhook

import (
	"testing"

	"nummerwacht_backend/platform/apperr"
)

func TestParsePayloadRootShapes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantConv string
	}{
		{
			name:     "flat body",
			body:     `{"conversation_id":"conv_1","status":"done"}`,
			wantConv: "conv_1",
		},
		{
			name:     "nested under data",
			body:     `{"type":"post_call_transcription","data":{"conversation_id":"conv_2"}}`,
			wantConv: "conv_2",
		},
		{
			name:     "nested under conversation",
			body:     `{"conversation":{"conversation_id":"conv_3"}}`,
			wantConv: "conv_3",
		},
		{
			name:     "camelCase id",
			body:     `{"conversationId":"conv_4"}`,
			wantConv: "conv_4",
		},
		{
			name:     "id buried in metadata",
			body:     `{"metadata":{"conversation_id":"conv_5"}}`,
			wantConv: "conv_5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePayload([]byte(tt.body))
			if err != nil {
				t.Fatalf("ParsePayload() error = %v", err)
			}
			if p.ConversationID != tt.wantConv {
				t.Fatalf("ConversationID = %q, want %q", p.ConversationID, tt.wantConv)
			}
		})
	}
}

func TestParsePayloadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `status=done`},
		{"no conversation id anywhere", `{"status":"done","data":{"summary":"x"}}`},
		{"empty object", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePayload([]byte(tt.body))
			if err == nil {
				t.Fatal("ParsePayload() = nil error, want BadRequest")
			}
			if apperr.GetKind(err) != apperr.KindBadRequest {
				t.Fatalf("kind = %v, want KindBadRequest", apperr.GetKind(err))
			}
		})
	}
}

func TestParsePayloadFieldsAcrossRoots(t *testing.T) {
	// Conversation id lives under data, status at the top level, summary
	// in the analysis block. A hit in one root must not stop probing
	// other roots for other fields.
	body := `{
		"status": "b'Success'",
		"data": {
			"conversation_id": "conv_9",
			"analysis": {
				"transcript_summary": "Beller vroeg naar bezorging.",
				"call_successful": "success"
			},
			"metadata": {"phone_call": {"external_number": "+31612345678"}}
		}
	}`
	p, err := ParsePayload([]byte(body))
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	if p.ConversationID != "conv_9" {
		t.Fatalf("ConversationID = %q", p.ConversationID)
	}
	if p.VendorStatus != "Success" {
		t.Fatalf("VendorStatus = %q, want byte-quoting stripped", p.VendorStatus)
	}
	if p.Summary != "Beller vroeg naar bezorging." {
		t.Fatalf("Summary = %q", p.Summary)
	}
	if p.PhoneNumber != "+31612345678" {
		t.Fatalf("PhoneNumber = %q", p.PhoneNumber)
	}
	if !p.HasResultData() {
		t.Fatal("HasResultData() = false with summary present")
	}
}

func TestParsePayloadTranscriptShapes(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCount int
		wantFirst string
	}{
		{
			name:      "array of message objects",
			body:      `{"conversation_id":"c","transcript":[{"role":"agent","message":"Goedemiddag"},{"role":"user","message":"Hallo"}]}`,
			wantCount: 2,
			wantFirst: "Goedemiddag",
		},
		{
			name:      "text key instead of message",
			body:      `{"conversation_id":"c","transcript":[{"speaker":"user","text":"Hallo"}]}`,
			wantCount: 1,
			wantFirst: "Hallo",
		},
		{
			name:      "array of strings",
			body:      `{"conversation_id":"c","transcript":["eerste","tweede"]}`,
			wantCount: 2,
			wantFirst: "eerste",
		},
		{
			name:      "object wrapping messages",
			body:      `{"conversation_id":"c","transcript":{"messages":[{"role":"user","message":"Hallo"}]}}`,
			wantCount: 1,
			wantFirst: "Hallo",
		},
		{
			name:      "entries without text are dropped",
			body:      `{"conversation_id":"c","transcript":[{"role":"user"},{"role":"user","message":"Hallo"}]}`,
			wantCount: 1,
			wantFirst: "Hallo",
		},
		{
			name:      "absent transcript",
			body:      `{"conversation_id":"c"}`,
			wantCount: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePayload([]byte(tt.body))
			if err != nil {
				t.Fatalf("ParsePayload() error = %v", err)
			}
			if len(p.Transcript) != tt.wantCount {
				t.Fatalf("len(Transcript) = %d, want %d", len(p.Transcript), tt.wantCount)
			}
			if tt.wantCount > 0 && p.Transcript[0].Message != tt.wantFirst {
				t.Fatalf("Transcript[0].Message = %q, want %q", p.Transcript[0].Message, tt.wantFirst)
			}
		})
	}
}

func TestParsePayloadStructuredExtraction(t *testing.T) {
	body := `{
		"conversation_id": "conv_7",
		"analysis": {
			"data_collection_results": {
				"consent": {"value": "Ja"},
				"caller_name": {"value": "b'Jan de Vries'"},
				"is_organisation": {"value": false},
				"confidence": {"value": "0.87"}
			}
		}
	}`
	p, err := ParsePayload([]byte(body))
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	if p.Structured == nil {
		t.Fatal("Structured = nil")
	}
	if p.Structured.Consent == nil || !*p.Structured.Consent {
		t.Fatalf("Consent = %v, want true", p.Structured.Consent)
	}
	if p.Structured.CallerName != "Jan de Vries" {
		t.Fatalf("CallerName = %q, want byte-quoting stripped and case kept", p.Structured.CallerName)
	}
	if p.Structured.IsOrganisation == nil || *p.Structured.IsOrganisation {
		t.Fatalf("IsOrganisation = %v, want false", p.Structured.IsOrganisation)
	}
	if p.Confidence == nil || *p.Confidence != 0.87 {
		t.Fatalf("Confidence = %v, want 0.87", p.Confidence)
	}
}

func TestParsePayloadStructuredAbsent(t *testing.T) {
	p, err := ParsePayload([]byte(`{"conversation_id":"c","status":"initiated"}`))
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	if p.Structured != nil {
		t.Fatalf("Structured = %+v, want nil when nothing was collected", p.Structured)
	}
}

func TestParsePayloadEndedAt(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantUnix int64
	}{
		{"unix seconds", `{"conversation_id":"c","ended_at":1700000000}`, 1_700_000_000},
		{"rfc3339", `{"conversation_id":"c","end_time":"2023-11-14T22:13:20Z"}`, 1_700_000_000},
		{"numeric string", `{"conversation_id":"c","event_timestamp":"1700000000"}`, 1_700_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePayload([]byte(tt.body))
			if err != nil {
				t.Fatalf("ParsePayload() error = %v", err)
			}
			if p.EndedAt == nil {
				t.Fatal("EndedAt = nil")
			}
			if p.EndedAt.Unix() != tt.wantUnix {
				t.Fatalf("EndedAt = %v, want unix %d", p.EndedAt, tt.wantUnix)
			}
		})
	}
}

func TestParsePayloadDynamicVariables(t *testing.T) {
	body := `{
		"conversation_id": "conv_8",
		"conversation_initiation_client_data": {
			"dynamic_variables": {"lookup_id": "9b2e9d1a-7a52-4f7e-a6a0-1c2fef0bb001"}
		}
	}`
	p, err := ParsePayload([]byte(body))
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	if p.DynamicVariables["lookup_id"] != "9b2e9d1a-7a52-4f7e-a6a0-1c2fef0bb001" {
		t.Fatalf("DynamicVariables = %v", p.DynamicVariables)
	}
}
