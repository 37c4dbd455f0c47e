package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"nummerwacht_backend/platform/logger"

	"github.com/google/uuid"
)

type testProviderConfig struct {
	baseURL string
}

func (c testProviderConfig) GetProviderBaseURL() string       { return c.baseURL }
func (c testProviderConfig) GetProviderAPIKey() string        { return "test-key" }
func (c testProviderConfig) GetProviderAgentID() string       { return "agent_123" }
func (c testProviderConfig) GetProviderAgentNumberID() string { return "phnum_456" }

func TestStartCallSendsLookupIDAsDynamicVariable(t *testing.T) {
	lookupID := uuid.New()
	var got map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/convai/twilio/outbound-call" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":         true,
			"conversation_id": "conv_abc",
			"callSid":         "CA123",
		})
	}))
	defer srv.Close()

	client := NewClient(testProviderConfig{baseURL: srv.URL}, logger.New("test"))
	if client == nil {
		t.Fatal("NewClient returned nil for configured provider")
	}

	result, err := client.StartCall(context.Background(), CallRequest{LookupID: lookupID, PhoneNumber: "+31612345678"})
	if err != nil {
		t.Fatalf("StartCall() error = %v", err)
	}
	if result.ConversationID != "conv_abc" {
		t.Fatalf("ConversationID = %q", result.ConversationID)
	}

	if got["agent_id"] != "agent_123" || got["to_number"] != "+31612345678" {
		t.Fatalf("request body = %v", got)
	}
	init, _ := got["conversation_initiation_client_data"].(map[string]any)
	vars, _ := init["dynamic_variables"].(map[string]any)
	if vars["lookup_id"] != lookupID.String() {
		t.Fatalf("dynamic lookup_id = %v, want %s", vars["lookup_id"], lookupID)
	}
}

func TestStartCallErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "http error", status: http.StatusUnauthorized, body: `{"detail":"invalid key"}`},
		{name: "rejected", status: http.StatusOK, body: `{"success":false,"message":"agent busy"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(testProviderConfig{baseURL: srv.URL}, logger.New("test"))
			if _, err := client.StartCall(context.Background(), CallRequest{LookupID: uuid.New(), PhoneNumber: "+31612345678"}); err == nil {
				t.Fatal("StartCall() = nil error")
			}
		})
	}
}

func TestNewClientUnconfigured(t *testing.T) {
	if c := NewClient(testProviderConfig{baseURL: ""}, logger.New("test")); c != nil {
		t.Fatal("NewClient() != nil without base URL")
	}
	var nilClient *Client
	if _, err := nilClient.StartCall(context.Background(), CallRequest{}); err == nil {
		t.Fatal("nil client StartCall() = nil error")
	}
}
