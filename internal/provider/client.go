// Package provider talks to the hosted voice-AI platform that places the
// outbound calls. The platform drives the conversation with a configured
// agent and reports progress back over the webhook endpoint; this client
// only starts calls.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nummerwacht_backend/platform/config"
	"nummerwacht_backend/platform/logger"

	"github.com/google/uuid"
)

// CallRequest identifies the lookup an outbound call belongs to. The
// lookup id travels as a dynamic variable so webhook deliveries that
// arrive without a known conversation id can still be correlated.
type CallRequest struct {
	LookupID    uuid.UUID
	PhoneNumber string
}

// CallResult is the platform's acknowledgement of a started call.
type CallResult struct {
	ConversationID string
	CallSID        string
}

type Client struct {
	baseURL       string
	apiKey        string
	agentID       string
	agentNumberID string
	http          *http.Client
	log           *logger.Logger
}

type outboundCallRequest struct {
	AgentID            string      `json:"agent_id"`
	AgentPhoneNumberID string      `json:"agent_phone_number_id"`
	ToNumber           string      `json:"to_number"`
	InitiationData     *initiation `json:"conversation_initiation_client_data,omitempty"`
}

type initiation struct {
	DynamicVariables map[string]string `json:"dynamic_variables"`
}

type outboundCallResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	CallSID        string `json:"callSid"`
}

// NewClient returns nil when the platform is not configured; callers
// treat a nil client as "dispatch unavailable".
func NewClient(cfg config.ProviderConfig, log *logger.Logger) *Client {
	if cfg.GetProviderBaseURL() == "" || cfg.GetProviderAPIKey() == "" {
		return nil
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.GetProviderBaseURL(), "/"),
		apiKey:        cfg.GetProviderAPIKey(),
		agentID:       cfg.GetProviderAgentID(),
		agentNumberID: cfg.GetProviderAgentNumberID(),
		http:          &http.Client{Timeout: 30 * time.Second},
		log:           log,
	}
}

// StartCall asks the platform to dial the number with the configured agent.
func (c *Client) StartCall(ctx context.Context, req CallRequest) (CallResult, error) {
	if c == nil {
		return CallResult{}, fmt.Errorf("voice provider not configured")
	}

	payload := outboundCallRequest{
		AgentID:            c.agentID,
		AgentPhoneNumberID: c.agentNumberID,
		ToNumber:           req.PhoneNumber,
		InitiationData: &initiation{
			DynamicVariables: map[string]string{
				"lookup_id":    req.LookupID.String(),
				"phone_number": req.PhoneNumber,
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return CallResult{}, fmt.Errorf("marshal outbound call payload: %w", err)
	}

	url := fmt.Sprintf("%s/v1/convai/twilio/outbound-call", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return CallResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return CallResult{}, fmt.Errorf("voice provider request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return CallResult{}, fmt.Errorf("read voice provider response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return CallResult{}, fmt.Errorf("voice provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed outboundCallResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return CallResult{}, fmt.Errorf("decode voice provider response: %w", err)
	}
	if !parsed.Success && parsed.Message != "" {
		return CallResult{}, fmt.Errorf("voice provider rejected call: %s", parsed.Message)
	}

	c.log.Info("outbound call started",
		"lookup_id", req.LookupID.String(),
		"conversation_id", parsed.ConversationID,
	)

	return CallResult{ConversationID: parsed.ConversationID, CallSID: parsed.CallSID}, nil
}
