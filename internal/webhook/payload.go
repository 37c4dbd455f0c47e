package webhook

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"nummerwacht_backend/internal/callerid"
	"nummerwacht_backend/internal/lookups/domain"
	"nummerwacht_backend/platform/apperr"
)

// NormalizedPayload is the canonical record distilled from a webhook body
// of unknown shape. ConversationID is the only required field.
type NormalizedPayload struct {
	ConversationID   string
	Event            string
	VendorStatus     string
	PhoneNumber      string
	Transcript       []callerid.TranscriptMessage
	Summary          string
	Confidence       *float64
	EndedAt          *time.Time
	Metadata         map[string]any
	DynamicVariables map[string]any
	Structured       *callerid.StructuredOutput
	Raw              []byte
}

// HasResultData reports whether the call produced analyzable content.
// Presence of a transcript or summary outranks whatever the status
// string claims about the call.
func (p NormalizedPayload) HasResultData() bool {
	return len(p.Transcript) > 0 || strings.TrimSpace(p.Summary) != ""
}

// Field probe tables. Each logical field has its own prioritized list of
// paths, probed against every root candidate in order. A hit for one
// field never short-circuits probing other roots for other fields.
var (
	conversationIDPaths = [][]string{
		{"conversation_id"},
		{"conversationId"},
		{"call_id"},
		{"callId"},
		{"metadata", "conversation_id"},
	}
	eventPaths = [][]string{
		{"event"},
		{"event_type"},
		{"eventType"},
		{"type"},
	}
	statusPaths = [][]string{
		{"status"},
		{"call_status"},
		{"callStatus"},
		{"metadata", "call_status"},
		{"analysis", "call_successful"},
		{"call_successful"},
	}
	phonePaths = [][]string{
		{"phone_number"},
		{"phoneNumber"},
		{"caller_number"},
		{"callerNumber"},
		{"external_number"},
		{"to_number"},
		{"metadata", "phone_call", "external_number"},
		{"metadata", "phone_number"},
		{"metadata", "caller_id"},
	}
	summaryPaths = [][]string{
		{"analysis", "transcript_summary"},
		{"transcript_summary"},
		{"analysis", "summary"},
		{"call_summary"},
		{"summary"},
	}
	transcriptPaths = [][]string{
		{"transcript"},
		{"analysis", "transcript"},
		{"messages"},
		{"conversation_transcript"},
	}
	confidencePaths = [][]string{
		{"confidence"},
		{"analysis", "confidence"},
	}
	endedAtPaths = [][]string{
		{"ended_at"},
		{"endedAt"},
		{"end_time"},
		{"metadata", "end_time"},
		{"event_timestamp"},
	}
	metadataPaths = [][]string{
		{"metadata"},
	}
	dynamicVariablePaths = [][]string{
		{"conversation_initiation_client_data", "dynamic_variables"},
		{"dynamic_variables"},
		{"dynamicVariables"},
	}

	// Structured extraction fields live under data_collection_results,
	// keyed by the agent's collection field name with the value nested
	// one level down.
	collectionRootPaths = [][]string{
		{"analysis", "data_collection_results"},
		{"data_collection_results"},
		{"analysis", "data_collection"},
	}
	consentFieldNames      = []string{"consent", "consent_given", "toestemming", "mag_naam_gebruiken"}
	callerNameFieldNames   = []string{"caller_name", "callerName", "naam", "name"}
	organisationFieldNames = []string{"is_organisation", "is_organization", "is_business", "organisation", "bedrijf", "zakelijk"}
	collectionSummaryNames = []string{"summary", "samenvatting"}
	confidenceFieldNames   = []string{"confidence", "zekerheid"}
)

// ParsePayload turns a raw webhook body into a NormalizedPayload. The
// only hard failure is a body without any conversation id candidate:
// everything else degrades to absent fields.
func ParsePayload(body []byte) (NormalizedPayload, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return NormalizedPayload{}, apperr.BadRequest("invalid JSON body")
	}

	roots := rootCandidates(raw)

	p := NormalizedPayload{Raw: body}
	p.ConversationID = probeString(roots, conversationIDPaths)
	if p.ConversationID == "" {
		return NormalizedPayload{}, apperr.BadRequest("missing conversation id")
	}

	p.Event = probeString(roots, eventPaths)
	p.VendorStatus = probeString(roots, statusPaths)
	p.PhoneNumber = probeString(roots, phonePaths)
	p.Summary = probeString(roots, summaryPaths)
	p.Transcript = probeTranscript(roots)
	p.Confidence = probeFloat(roots, confidencePaths)
	p.EndedAt = probeTime(roots, endedAtPaths)
	p.Metadata = probeMap(roots, metadataPaths)
	p.DynamicVariables = probeMap(roots, dynamicVariablePaths)
	p.Structured = probeStructured(roots)

	// Structured extraction may carry summary and confidence the flat
	// probes missed.
	if p.Summary == "" {
		p.Summary = probeCollectionString(roots, collectionSummaryNames)
	}
	if p.Confidence == nil {
		if raw := probeCollectionValue(roots, confidenceFieldNames); raw != nil {
			p.Confidence = looseFloat(raw)
		}
	}
	return p, nil
}

// rootCandidates returns the ordered object roots to probe: a nested
// "conversation" object, a nested "data" object, a nested "payload"
// object, then the body itself.
func rootCandidates(raw map[string]any) []map[string]any {
	roots := make([]map[string]any, 0, 4)
	for _, key := range []string{"conversation", "data", "payload"} {
		if nested, ok := asMap(raw[key]); ok {
			roots = append(roots, nested)
		}
	}
	return append(roots, raw)
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// lookupPath walks nested objects along path. It fails soft on any
// non-object intermediate.
func lookupPath(root map[string]any, path []string) (any, bool) {
	current := any(root)
	for _, key := range path {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func probeString(roots []map[string]any, paths [][]string) string {
	for _, path := range paths {
		for _, root := range roots {
			if v, ok := lookupPath(root, path); ok {
				if s := looseString(v); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func probeFloat(roots []map[string]any, paths [][]string) *float64 {
	for _, path := range paths {
		for _, root := range roots {
			if v, ok := lookupPath(root, path); ok {
				if f := looseFloat(v); f != nil {
					return f
				}
			}
		}
	}
	return nil
}

func probeMap(roots []map[string]any, paths [][]string) map[string]any {
	for _, path := range paths {
		for _, root := range roots {
			if v, ok := lookupPath(root, path); ok {
				if m, ok := asMap(v); ok && len(m) > 0 {
					return m
				}
			}
		}
	}
	return nil
}

func probeTime(roots []map[string]any, paths [][]string) *time.Time {
	for _, path := range paths {
		for _, root := range roots {
			if v, ok := lookupPath(root, path); ok {
				if t := looseTime(v); t != nil {
					return t
				}
			}
		}
	}
	return nil
}

func probeTranscript(roots []map[string]any) []callerid.TranscriptMessage {
	for _, path := range transcriptPaths {
		for _, root := range roots {
			if v, ok := lookupPath(root, path); ok {
				if messages := parseTranscript(v); len(messages) > 0 {
					return messages
				}
			}
		}
	}
	return nil
}

// parseTranscript tolerates the shapes vendors actually send: an array
// of message objects, an array of bare strings, an object wrapping the
// array under "messages"/"turns", or a plain role-to-text object.
func parseTranscript(v any) []callerid.TranscriptMessage {
	switch value := v.(type) {
	case []any:
		messages := make([]callerid.TranscriptMessage, 0, len(value))
		for _, item := range value {
			switch entry := item.(type) {
			case map[string]any:
				msg := callerid.TranscriptMessage{
					Role:    looseString(firstOf(entry, "role", "speaker", "from")),
					Message: looseString(firstOf(entry, "message", "text", "content")),
				}
				if msg.Message != "" {
					messages = append(messages, msg)
				}
			case string:
				if entry != "" {
					messages = append(messages, callerid.TranscriptMessage{Message: entry})
				}
			}
		}
		return messages
	case map[string]any:
		for _, key := range []string{"messages", "turns", "items"} {
			if nested, ok := value[key]; ok {
				if messages := parseTranscript(nested); len(messages) > 0 {
					return messages
				}
			}
		}
		// Plain role-to-text object. Sort keys so the result is stable.
		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var messages []callerid.TranscriptMessage
		for _, key := range keys {
			if text := looseString(value[key]); text != "" {
				messages = append(messages, callerid.TranscriptMessage{Role: key, Message: text})
			}
		}
		return messages
	}
	return nil
}

func firstOf(m map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return nil
}

// probeStructured assembles the agent's structured extraction from the
// data collection results. Returns nil when no collection field is
// present at all, so the resolver can distinguish "agent collected
// nothing" from "agent collected empty values".
func probeStructured(roots []map[string]any) *callerid.StructuredOutput {
	consent := probeCollectionValue(roots, consentFieldNames)
	name := probeCollectionValue(roots, callerNameFieldNames)
	organisation := probeCollectionValue(roots, organisationFieldNames)
	if consent == nil && name == nil && organisation == nil {
		return nil
	}
	return &callerid.StructuredOutput{
		Consent:        looseBool(consent),
		CallerName:     looseString(name),
		IsOrganisation: looseBool(organisation),
	}
}

// probeCollectionValue looks up a structured extraction field by any of
// its known names. Vendors nest the value under a "value" key; a bare
// scalar is tolerated too.
func probeCollectionValue(roots []map[string]any, fieldNames []string) any {
	for _, rootPath := range collectionRootPaths {
		for _, root := range roots {
			collection, ok := lookupPath(root, rootPath)
			if !ok {
				continue
			}
			collectionMap, ok := asMap(collection)
			if !ok {
				continue
			}
			for _, field := range fieldNames {
				entry, ok := collectionMap[field]
				if !ok {
					continue
				}
				if entryMap, ok := asMap(entry); ok {
					if v, ok := entryMap["value"]; ok {
						return v
					}
					continue
				}
				return entry
			}
		}
	}
	return nil
}

func probeCollectionString(roots []map[string]any, fieldNames []string) string {
	return looseString(probeCollectionValue(roots, fieldNames))
}

// looseString converts scalars to a trimmed string, stripping vendor
// byte-string quoting. Objects and arrays yield "".
func looseString(v any) string {
	switch value := v.(type) {
	case string:
		return strings.TrimSpace(domain.StripByteQuoting(value))
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	}
	return ""
}

// looseBool interprets booleans and their common string spellings.
// Returns nil for anything unrecognized.
func looseBool(v any) *bool {
	switch value := v.(type) {
	case bool:
		return &value
	case string:
		switch domain.NormalizeVendorToken(value) {
		case "true", "yes", "ja", "1":
			t := true
			return &t
		case "false", "no", "nee", "0":
			f := false
			return &f
		}
	case float64:
		b := value != 0
		return &b
	}
	return nil
}

func looseFloat(v any) *float64 {
	switch value := v.(type) {
	case float64:
		return &value
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return &f
		}
	}
	return nil
}

// looseTime interprets unix seconds (with optional fraction) and the
// usual string timestamp layouts.
func looseTime(v any) *time.Time {
	switch value := v.(type) {
	case float64:
		if value <= 0 {
			return nil
		}
		seconds := int64(value)
		nanos := int64((value - float64(seconds)) * float64(time.Second))
		t := time.Unix(seconds, nanos).UTC()
		return &t
	case string:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return nil
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, trimmed); err == nil {
				t = t.UTC()
				return &t
			}
		}
		if unix, err := strconv.ParseFloat(trimmed, 64); err == nil && unix > 0 {
			t := time.Unix(int64(unix), 0).UTC()
			return &t
		}
	}
	return nil
}
