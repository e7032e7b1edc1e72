package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"protocol-engine/internal/domain"
)

func loadTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	terms, err := LoadTerminology(defaultTerminology)
	require.NoError(t, err)
	return NewNormalizer(terms)
}

func TestNormalize_DosingQuery(t *testing.T) {
	n := loadTestNormalizer(t)

	q, err := n.Normalize("whats the dose for epi in cardiac arrest")
	require.NoError(t, err)

	assert.Equal(t, "whats the dose for epi in cardiac arrest", q.Original)
	assert.Equal(t, "What's the dose for epinephrine in cardiac arrest", q.Normalized)
	assert.Equal(t, domain.IntentMedicationDosing, q.Intent)
	assert.True(t, q.IsEmergent)
	assert.False(t, q.IsComplex)
	assert.Equal(t, []string{"epinephrine"}, q.Medications)
}

func TestNormalize_IntentClassification(t *testing.T) {
	n := loadTestNormalizer(t)

	tests := []struct {
		name  string
		query string
		want  domain.Intent
	}{
		{"dosing", "how much amio do i give", domain.IntentMedicationDosing},
		{"contraindication", "is nitro contraindicated after sildenafil", domain.IntentContraindicationCheck},
		{"contraindication_beats_dosing", "can i give narcan with fentanyl on board", domain.IntentContraindicationCheck},
		{"protocol_lookup", "which protocol covers pediatric seizure", domain.IntentProtocolLookup},
		{"general", "signs of heat exhaustion", domain.IntentGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := n.Normalize(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Intent)
		})
	}
}

func TestNormalize_SubstitutionsRespectWordBoundaries(t *testing.T) {
	n := loadTestNormalizer(t)

	// "epidural" contains "epi" but must survive intact.
	q, err := n.Normalize("epidural hematoma management")
	require.NoError(t, err)
	assert.Contains(t, q.Normalized, "epidural")
	assert.NotContains(t, strings.ToLower(q.Normalized), "epinephrinedural")
	assert.Empty(t, q.Medications)
}

func TestNormalize_UnknownTermsPassThrough(t *testing.T) {
	n := loadTestNormalizer(t)

	q, err := n.Normalize("froopy glompus treatment")
	require.NoError(t, err)
	assert.Equal(t, "Froopy glompus treatment", q.Normalized)
	assert.Equal(t, domain.IntentGeneral, q.Intent)
	assert.False(t, q.IsEmergent)
}

func TestNormalize_ComplexQuery(t *testing.T) {
	n := loadTestNormalizer(t)

	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"conjunction_two_conditions", "chest pain and sob protocol", true},
		{"conjunction_med_plus_condition", "epi with asystole arrest", true},
		{"conjunction_single_concept", "airway and suction supplies", false},
		{"long_query", "what should i do for a patient who is awake but confused after a fall from standing height", true},
		{"simple", "seizure protocol", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := n.Normalize(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.IsComplex, "query %q", tt.query)
		})
	}
}

func TestNormalize_EmergentDetection(t *testing.T) {
	n := loadTestNormalizer(t)

	q, err := n.Normalize("anaphylaxis after bee sting")
	require.NoError(t, err)
	assert.True(t, q.IsEmergent)

	q, err = n.Normalize("ankle splinting technique")
	require.NoError(t, err)
	assert.False(t, q.IsEmergent)
}

func TestNormalize_MultipleMedications(t *testing.T) {
	n := loadTestNormalizer(t)

	q, err := n.Normalize("give epi then amio in vfib arrest")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"epinephrine", "amiodarone"}, q.Medications)
	assert.True(t, q.IsEmergent)
}

func TestNormalize_InvalidInput(t *testing.T) {
	n := loadTestNormalizer(t)

	_, err := n.Normalize("   ")
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)

	_, err = n.Normalize(strings.Repeat("q", MaxQueryLength+1))
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
}

func TestNormalize_Deterministic(t *testing.T) {
	n := loadTestNormalizer(t)

	first, err := n.Normalize("narcan dose for peds overdose")
	require.NoError(t, err)
	second, err := n.Normalize("narcan dose for peds overdose")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadTerminology_RejectsUnknownIntent(t *testing.T) {
	bad := []byte(`
version: 1
substitutions:
  - match: "epi"
    canonical: "epinephrine"
intents:
  weather_report:
    - sunny
`)
	_, err := LoadTerminology(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown intent category")
}

func TestLoadTerminologyFile_EmptyPathUsesEmbedded(t *testing.T) {
	terms, err := LoadTerminologyFile("")
	require.NoError(t, err)
	assert.Equal(t, 3, terms.Version())
}
