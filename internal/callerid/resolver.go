// Package callerid resolves the identity of a caller from whatever the
// voice agent managed to collect: structured agent output, transcript
// self-introductions, call metadata, the post-call summary and, as a
// last resort, a previously stored profile.
package callerid

import (
	"regexp"
	"strings"
)

// UnknownCaller is the display name stored when no identity could be
// resolved or when the caller explicitly declined to be identified.
const UnknownCaller = "Onbekende beller"

// Source identifies which tier of the cascade produced a value.
type Source string

const (
	SourceAgent      Source = "agent"
	SourceTranscript Source = "transcript"
	SourceMetadata   Source = "metadata"
	SourceSummary    Source = "summary"
	SourceProfile    Source = "profile"
	SourceNone       Source = "none"
)

// StructuredOutput carries the fields the voice agent extracted during
// the call. Consent is a tri-state: nil means the agent never asked.
type StructuredOutput struct {
	Consent        *bool
	CallerName     string
	IsOrganisation *bool
}

// TranscriptMessage is a single utterance with the speaker role as the
// vendor reported it.
type TranscriptMessage struct {
	Role    string
	Message string
}

// Input bundles every identity signal available for one call.
type Input struct {
	Structured  *StructuredOutput
	Transcript  []TranscriptMessage
	Metadata    map[string]any
	Summary     string
	PriorName   string
	PriorEntity string
}

// Resolution is the outcome of the cascade. CallerName is never empty:
// it falls back to UnknownCaller.
type Resolution struct {
	CallerName    string
	EntityTag     string
	NameSource    Source
	EntitySource  Source
	ConsentDenied bool
}

// NameFromAgent reports whether the resolved name came from structured
// agent output, which outranks heuristic extraction on later merges.
func (r Resolution) NameFromAgent() bool { return r.NameSource == SourceAgent }

// EntityFromAgent reports whether the entity tag came from structured
// agent output.
func (r Resolution) EntityFromAgent() bool { return r.EntitySource == SourceAgent }

// metadataNameKeys are probed in order against the call metadata map.
var metadataNameKeys = []string{
	"caller_name", "callerName",
	"contact_name", "contactName",
	"customer_name", "customerName",
	"full_name", "fullName",
	"name",
}

// callerRoles are the transcript roles that may contain a
// self-introduction. Agent utterances are never mined for names: the
// agent introducing itself is not the caller.
var callerRoles = map[string]struct{}{
	"user":     {},
	"caller":   {},
	"contact":  {},
	"customer": {},
	"client":   {},
	"human":    {},
}

// introPhrases locate a self-introduction; the name itself is captured
// by nameAfterIntro in a second, case-sensitive pass so that the
// case-insensitive phrase match cannot swallow lowercase words into the
// name.
var introPhrases = regexp.MustCompile(`(?i)\b(?:mijn naam is|je spreekt met|u spreekt met|ik ben|dit is|met|my name is|this is|i am|i'm|you're speaking with|speaking with)\s+`)

// nameAfterIntro captures a capitalized name of up to four words,
// allowing Dutch tussenvoegsels (de, van, der, ...) between them.
var nameAfterIntro = regexp.MustCompile(`^((?:[A-ZÀ-Þ][\p{L}'-]*)(?:\s+(?:de|het|van|der|den|ten|ter|te|'t|la|le|el|al|von|bin)){0,2}(?:\s+[A-ZÀ-Þ][\p{L}'-]*){0,3})`)

// summaryNamePhrases extract a third-person identification from the
// post-call summary.
var summaryNamePhrases = regexp.MustCompile(`(?i)\b(?:de beller heet|de beller is|beller genaamd|caller named|caller's name is|the caller is|the caller,|identified (?:himself|herself|themselves) as|genaamd|naam van de beller is)\s+`)

// summaryOrgPhrases extract an organisation the caller claimed to
// represent.
var summaryOrgPhrases = regexp.MustCompile(`(?i)\b(?:belt namens|namens|van het bedrijf|calling (?:from|on behalf of)|on behalf of|from the company|works at|werkt bij)\s+`)

// orgAfterPhrase is looser than a person name: organisation names may
// contain ampersands and digits ("P&O Ferries", "24/7 Incasso").
var orgAfterPhrase = regexp.MustCompile(`^((?:[A-ZÀ-Þ0-9][\p{L}\d'&.-]*)(?:\s+(?:[A-ZÀ-Þ0-9][\p{L}\d'&.-]*|en|de|van|der|the|of|&)){0,4})`)

// Resolve runs the identity cascade and always returns a usable
// Resolution. An explicit consent denial short-circuits everything:
// the caller asked not to be identified and no weaker signal may
// override that.
func Resolve(in Input) Resolution {
	res := Resolution{CallerName: UnknownCaller, NameSource: SourceNone, EntitySource: SourceNone}

	if in.Structured != nil && in.Structured.Consent != nil && !*in.Structured.Consent {
		res.ConsentDenied = true
		res.NameSource = SourceAgent
		res.EntityTag, res.EntitySource = resolveEntity(in, "", SourceNone)
		return res
	}

	name, source := resolveName(in)
	if name != "" {
		res.CallerName = name
		res.NameSource = source
	}
	res.EntityTag, res.EntitySource = resolveEntity(in, name, source)
	return res
}

func resolveName(in Input) (string, Source) {
	if in.Structured != nil {
		if name := usableName(in.Structured.CallerName); name != "" {
			return name, SourceAgent
		}
	}
	if name := nameFromTranscript(in.Transcript); name != "" {
		return name, SourceTranscript
	}
	if name := nameFromMetadata(in.Metadata); name != "" {
		return name, SourceMetadata
	}
	if name := firstPhraseMatch(in.Summary, summaryNamePhrases, nameAfterIntro); usableName(name) != "" {
		return strings.TrimSpace(name), SourceSummary
	}
	if name := usableName(in.PriorName); name != "" && name != UnknownCaller {
		return name, SourceProfile
	}
	return "", SourceNone
}

func nameFromTranscript(messages []TranscriptMessage) string {
	for _, msg := range messages {
		if _, ok := callerRoles[strings.ToLower(strings.TrimSpace(msg.Role))]; !ok {
			continue
		}
		if name := firstPhraseMatch(msg.Message, introPhrases, nameAfterIntro); usableName(name) != "" {
			return strings.TrimSpace(name)
		}
	}
	return ""
}

func nameFromMetadata(metadata map[string]any) string {
	for _, key := range metadataNameKeys {
		raw, ok := metadata[key]
		if !ok {
			continue
		}
		value, ok := raw.(string)
		if !ok {
			continue
		}
		if name := usableName(value); name != "" {
			return name
		}
	}
	return ""
}

// firstPhraseMatch finds every phrase occurrence case-insensitively and
// applies the case-sensitive capture regex to the text that follows,
// returning the first capture that yields anything.
func firstPhraseMatch(text string, phrase, capture *regexp.Regexp) string {
	for _, loc := range phrase.FindAllStringIndex(text, -1) {
		rest := text[loc[1]:]
		if m := capture.FindStringSubmatch(rest); m != nil {
			return trimNameTail(m[1])
		}
	}
	return ""
}

// trimNameTail drops trailing connector words a greedy capture may have
// picked up ("Jan de" from "Jan de ... en ik bel over").
func trimNameTail(name string) string {
	words := strings.Fields(name)
	for len(words) > 0 {
		switch strings.ToLower(words[len(words)-1]) {
		case "de", "het", "van", "der", "den", "ten", "ter", "te", "la", "le", "el", "al", "von", "bin", "en", "of", "the", "&":
			words = words[:len(words)-1]
		default:
			return strings.Join(words, " ")
		}
	}
	return ""
}
