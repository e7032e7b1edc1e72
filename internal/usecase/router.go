package usecase

import (
	"protocol-engine/internal/domain"
)

// SelectStrategy decides how much retrieval effort and which model tier a
// request gets.
//
// The asymmetry is deliberate: free-tier callers get full safety-critical
// accuracy (advanced rerank, accurate model) on dangerous query classes,
// while throughput-costly multi-query fusion on routine queries is reserved
// for paid tiers.
func SelectStrategy(query domain.NormalizedQuery, tier domain.UserTier) domain.Strategy {
	safetyCritical := query.IsEmergent || query.Intent == domain.IntentMedicationDosing
	paid := tier == domain.TierPaid

	strategy := domain.Strategy{
		UseAdvancedRerank:   safetyCritical,
		UseMultiQueryFusion: paid || safetyCritical || query.IsComplex,
		ModelClass:          domain.ModelClassFast,
	}
	if paid || safetyCritical {
		strategy.ModelClass = domain.ModelClassAccurate
	}
	return strategy
}
