package medicine

import "strings"

const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// highRiskKeywords mark a category as controlled when no explicit risk
// level is supplied.
var highRiskKeywords = []string{"opioid", "narcotic", "schedule", "controlled", "psychotropic", "restricted"}

var guidance = map[string]string{
	RiskLow:    "Mix with coffee grounds or kitty litter, seal in plastic bag, and dispose in regular trash. Remove personal information from labels.",
	RiskMedium: "Return to pharmacy or request CHW pickup. Do not dispose in household trash or flush down toilet. This medicine requires proper disposal to prevent environmental contamination.",
	RiskHigh:   "MUST be returned to CHW or authorized collection site immediately. NEVER dispose in household trash. This is a controlled substance with high risk for misuse and environmental harm.",
}

var safetyNotes = map[string]string{
	RiskLow:    "Low environmental impact. Standard household disposal acceptable with precautions.",
	RiskMedium: "Moderate risk. Professional disposal recommended to prevent water contamination and antibiotic resistance.",
	RiskHigh:   "CRITICAL: High risk for misuse, overdose, and severe environmental damage. Mandatory professional disposal.",
}

// NormalizeRiskLevel maps any casing of low/medium/high to the stored
// value. ok is false for anything else.
func NormalizeRiskLevel(s string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case RiskLow:
		return RiskLow, true
	case RiskMedium:
		return RiskMedium, true
	case RiskHigh:
		return RiskHigh, true
	}
	return "", false
}

// explicitRisk reads a free-text risk column. It only answers when exactly
// one of HIGH, LOW or MED appears.
func explicitRisk(raw string) (string, bool) {
	up := strings.ToUpper(raw)
	hits := 0
	level := ""
	if strings.Contains(up, "HIGH") {
		hits++
		level = RiskHigh
	}
	if strings.Contains(up, "LOW") {
		hits++
		level = RiskLow
	}
	if strings.Contains(up, "MED") {
		hits++
		level = RiskMedium
	}
	return level, hits == 1
}

// InferRisk prefers an explicit value and falls back to scanning the
// category for controlled-substance keywords.
func InferRisk(explicit, category string) string {
	if level, ok := explicitRisk(explicit); ok {
		return level
	}
	cat := strings.ToLower(category)
	for _, kw := range highRiskKeywords {
		if strings.Contains(cat, kw) {
			return RiskHigh
		}
	}
	return RiskMedium
}

func GuidanceFor(level string) string {
	if g, ok := guidance[level]; ok {
		return g
	}
	return guidance[RiskMedium]
}

func SafetyNotesFor(level string) string {
	if n, ok := safetyNotes[level]; ok {
		return n
	}
	return safetyNotes[RiskMedium]
}
