package domain

import (
	"regexp"
	"strings"
)

// Indicator patterns for content-type classification. Scoring is by match
// density over the chunk, so a long assessment section with one incidental
// drug mention does not classify as medication.
var contentIndicators = map[ContentType][]*regexp.Regexp{
	ContentTypeMedication: {
		regexp.MustCompile(`(?i)\b\d+(\.\d+)?\s*(mg/kg|mcg/kg|mg|mcg|gm|g|ml|meq|units?)\b`),
		regexp.MustCompile(`(?i)\b(dose|dosage|dosing|administer|administration|repeat)\b`),
		regexp.MustCompile(`(?i)\b(iv|io|im|sq|sl|in|po|neb)\b`),
		regexp.MustCompile(`(?i)\b(epinephrine|atropine|amiodarone|adenosine|albuterol|fentanyl|midazolam|naloxone|nitroglycerin|aspirin|dextrose|glucagon|ketamine|lidocaine|morphine|ondansetron|diphenhydramine)\b`),
		regexp.MustCompile(`(?i)\b(contraindicated|contraindication)\b`),
	},
	ContentTypeProcedure: {
		regexp.MustCompile(`(?i)\b(procedure|technique|insert|insertion|apply|perform|placement|intubation|cricothyrotomy|decompression|splint|tourniquet)\b`),
		regexp.MustCompile(`(?i)\b(step|steps)\b`),
		regexp.MustCompile(`(?i)\b(equipment|device|catheter|needle|airway adjunct)\b`),
	},
	ContentTypeAssessment: {
		regexp.MustCompile(`(?i)\b(assess|assessment|evaluate|evaluation|history|exam|examination)\b`),
		regexp.MustCompile(`(?i)\b(signs?|symptoms?|presentation|findings?)\b`),
		regexp.MustCompile(`(?i)\b(vital signs?|gcs|glasgow|blood pressure|pulse|respirations?|spo2)\b`),
		regexp.MustCompile(`(?i)\b(criteria|indications?)\b`),
	},
}

// ClassifyContent assigns a content type to a chunk by keyword density over
// the fixed indicator sets. Ties and weak signals fall back to general.
func ClassifyContent(content string) ContentType {
	words := len(strings.Fields(content))
	if words == 0 {
		return ContentTypeGeneral
	}

	best := ContentTypeGeneral
	bestDensity := 0.0
	// Deterministic evaluation order.
	for _, ct := range []ContentType{ContentTypeMedication, ContentTypeProcedure, ContentTypeAssessment} {
		hits := 0
		for _, re := range contentIndicators[ct] {
			hits += len(re.FindAllStringIndex(content, -1))
		}
		density := float64(hits) / float64(words)
		if density > bestDensity {
			best = ct
			bestDensity = density
		}
	}

	// Below this density the signal is noise.
	const minDensity = 0.02
	if bestDensity < minDensity {
		return ContentTypeGeneral
	}
	return best
}
