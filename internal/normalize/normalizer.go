package normalize

import (
	"fmt"
	"strings"
	"unicode"

	"protocol-engine/internal/domain"
)

const (
	// MaxQueryLength bounds raw input per the API contract.
	MaxQueryLength = 1000

	// complexTokenThreshold is the token count beyond which a query is
	// treated as complex regardless of its structure.
	complexTokenThreshold = 12
)

var conjunctions = []string{" and ", " with ", " plus ", " versus ", " vs "}

// Normalizer rewrites raw queries into canonical form. It is a pure
// function over the loaded terminology tables, which is what makes the
// normalized text a valid embedding-cache key.
type Normalizer struct {
	terms *Terminology
}

// NewNormalizer creates a Normalizer over loaded terminology tables.
func NewNormalizer(terms *Terminology) *Normalizer {
	return &Normalizer{terms: terms}
}

// Normalize canonicalizes raw input and classifies it. Empty or oversized
// input fails with domain.ErrInvalidQuery; an unmatched term passes through
// unchanged.
func (n *Normalizer) Normalize(raw string) (domain.NormalizedQuery, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return domain.NormalizedQuery{}, fmt.Errorf("%w: empty input", domain.ErrInvalidQuery)
	}
	if len(trimmed) > MaxQueryLength {
		return domain.NormalizedQuery{}, fmt.Errorf("%w: input exceeds %d characters", domain.ErrInvalidQuery, MaxQueryLength)
	}

	normalized := strings.ToLower(trimmed)
	for _, sub := range n.terms.substitutions {
		normalized = sub.re.ReplaceAllString(normalized, sub.canonical)
	}
	normalized = capitalizeSentences(normalized)

	// Classification runs over the case-folded canonical form so table
	// entries stay lowercase.
	folded := strings.ToLower(normalized)

	q := domain.NormalizedQuery{
		Original:    raw,
		Normalized:  normalized,
		Intent:      n.classifyIntent(folded),
		IsEmergent:  containsAny(folded, n.terms.emergent),
		Medications: n.extractMedications(folded),
	}
	q.IsComplex = n.isComplex(folded, q.Medications)

	return q, nil
}

// classifyIntent matches the fixed keyword sets in priority order:
// contraindication wording is more specific than dosing wording, and both
// beat a bare protocol lookup.
func (n *Normalizer) classifyIntent(folded string) domain.Intent {
	for _, intent := range []domain.Intent{
		domain.IntentContraindicationCheck,
		domain.IntentMedicationDosing,
		domain.IntentProtocolLookup,
	} {
		if containsAny(folded, n.terms.intents[intent]) {
			return intent
		}
	}
	return domain.IntentGeneral
}

func (n *Normalizer) extractMedications(folded string) []string {
	var meds []string
	for _, med := range n.terms.medications {
		if containsWord(folded, med) {
			meds = append(meds, med)
		}
	}
	return meds
}

// isComplex flags queries that exceed the token threshold or join multiple
// clinical concepts with a conjunction.
func (n *Normalizer) isComplex(folded string, meds []string) bool {
	if len(strings.Fields(folded)) > complexTokenThreshold {
		return true
	}
	hasConjunction := false
	for _, c := range conjunctions {
		if strings.Contains(folded, c) {
			hasConjunction = true
			break
		}
	}
	if !hasConjunction {
		return false
	}
	concepts := len(meds)
	for _, cond := range n.terms.conditions {
		if containsWord(folded, cond) {
			concepts++
		}
	}
	for _, cond := range n.terms.emergent {
		if containsWord(folded, cond) {
			concepts++
		}
	}
	return concepts >= 2
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if containsWord(s, k) {
			return true
		}
	}
	return false
}

// containsWord reports whether phrase occurs in s on word boundaries.
func containsWord(s, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordByte(s[start-1])
		afterOK := end >= len(s) || !isWordByte(s[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// capitalizeSentences upper-cases the first letter of each sentence for
// downstream readability.
func capitalizeSentences(s string) string {
	runes := []rune(s)
	atStart := true
	for i, r := range runes {
		if atStart && unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
			atStart = false
			continue
		}
		if r == '.' || r == '!' || r == '?' {
			atStart = true
		} else if atStart && !unicode.IsSpace(r) {
			atStart = false
		}
	}
	return string(runes)
}
