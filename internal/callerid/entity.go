package callerid

import (
	"strings"
)

// Entity tags as they are stored and displayed.
const (
	TagPerson   = "Particulier"
	TagBusiness = "Zakelijk"
)

// metadataEntityKeys are probed in order against the call metadata map.
var metadataEntityKeys = []string{
	"entity_type", "entityType",
	"caller_type", "callerType",
	"contact_type", "contactType",
	"type",
}

var businessEntityValues = map[string]struct{}{
	"business":     {},
	"company":      {},
	"organisation": {},
	"organization": {},
	"organisatie":  {},
	"bedrijf":      {},
	"zakelijk":     {},
}

var personEntityValues = map[string]struct{}{
	"person":      {},
	"individual":  {},
	"consumer":    {},
	"private":     {},
	"particulier": {},
	"persoon":     {},
}

// businessLexicon marks a resolved name or summary as business-like when
// one of these appears as a standalone word. Legal-form suffixes plus the
// vocabulary of the usual commercial callers.
var businessLexicon = map[string]struct{}{
	"bv": {}, "nv": {}, "vof": {}, "cv": {}, "holding": {}, "beheer": {},
	"gmbh": {}, "ltd": {}, "llc": {}, "inc": {}, "sa": {}, "ag": {},
	"group": {}, "groep": {}, "agency": {}, "bureau": {}, "studio": {},
	"incasso": {}, "klantenservice": {}, "bank": {}, "verzekeringen": {},
	"verzekering": {}, "energie": {}, "telecom": {}, "bezorgdienst": {},
	"webshop": {}, "uitzendbureau": {}, "makelaardij": {}, "installatiebedrijf": {},
	"services": {}, "service": {}, "solutions": {}, "consultancy": {},
}

// resolveEntity runs the entity cascade: structured agent output, call
// metadata, business vocabulary in the resolved name or summary, and
// finally "a person name resolved, so tag a person". The prior profile
// tag is the backstop.
func resolveEntity(in Input, resolvedName string, nameSource Source) (string, Source) {
	if in.Structured != nil && in.Structured.IsOrganisation != nil {
		if *in.Structured.IsOrganisation {
			return TagBusiness, SourceAgent
		}
		return TagPerson, SourceAgent
	}

	if tag := entityFromMetadata(in.Metadata); tag != "" {
		return tag, SourceMetadata
	}

	if resolvedName != "" && containsBusinessWord(resolvedName) {
		return TagBusiness, nameSource
	}
	if org := firstPhraseMatch(in.Summary, summaryOrgPhrases, orgAfterPhrase); usableName(org) != "" {
		return TagBusiness, SourceSummary
	}

	if resolvedName != "" {
		return TagPerson, nameSource
	}
	if in.PriorEntity == TagPerson || in.PriorEntity == TagBusiness {
		return in.PriorEntity, SourceProfile
	}
	return "", SourceNone
}

func entityFromMetadata(metadata map[string]any) string {
	for _, key := range metadataEntityKeys {
		raw, ok := metadata[key]
		if !ok {
			continue
		}
		value, ok := raw.(string)
		if !ok {
			continue
		}
		normalized := normalizeLabel(value)
		if _, business := businessEntityValues[normalized]; business {
			return TagBusiness
		}
		if _, person := personEntityValues[normalized]; person {
			return TagPerson
		}
	}
	return ""
}

func containsBusinessWord(text string) bool {
	for _, word := range strings.Fields(normalizeLabel(text)) {
		if _, ok := businessLexicon[word]; ok {
			return true
		}
	}
	return false
}
