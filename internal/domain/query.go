package domain

// Intent is the classified purpose of a query.
type Intent string

const (
	IntentGeneral               Intent = "general"
	IntentMedicationDosing      Intent = "medication_dosing"
	IntentContraindicationCheck Intent = "contraindication_check"
	IntentProtocolLookup        Intent = "protocol_lookup"
)

// UserTier is the caller's subscription level. It gates retrieval effort
// and model quality, never safety-critical rerank accuracy.
type UserTier string

const (
	TierFree UserTier = "free"
	TierPaid UserTier = "paid"
)

// NormalizedQuery is the canonical form of a raw query. It is derived data:
// created per request, never persisted. Normalized is a pure function of
// Original plus the fixed terminology tables, which is what makes it a
// valid embedding-cache key.
type NormalizedQuery struct {
	Original   string
	Normalized string
	Intent     Intent
	IsComplex  bool
	IsEmergent bool
	// Medications holds canonical medication names detected in the query.
	Medications []string
}

// ModelClass is the downstream language-model tier hint.
type ModelClass string

const (
	ModelClassFast     ModelClass = "fast"
	ModelClassAccurate ModelClass = "accurate"
)

// Strategy is the retrieval-effort plan selected for one request.
type Strategy struct {
	UseMultiQueryFusion bool
	UseAdvancedRerank   bool
	ModelClass          ModelClass
}
