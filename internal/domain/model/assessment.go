package model

// RiskLevel is the tier a score is classified into.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskAssessment is the scored answer for one point.
type RiskAssessment struct {
	RiskScore           int       `json:"risk_score"`
	RiskLevel           RiskLevel `json:"risk_level"`
	ContributingFactors []string  `json:"contributing_factors"`
}

// Classify maps a score to its tier. Thresholds are strict, so 40, 70 and 90
// stay in the lower tier.
func Classify(score int) RiskLevel {
	switch {
	case score > 90:
		return RiskCritical
	case score > 70:
		return RiskHigh
	case score > 40:
		return RiskMedium
	default:
		return RiskLow
	}
}

var (
	elevatedFactors = []string{
		"Historical crime density high",
		"Poor lighting reported",
		"Proximity to high-value target",
	}
	mediumFactors = []string{"Recent minor incidents"}
)

// ContributingFactors returns the fixed, level-keyed presentation list. It is
// not derived from the model and says nothing about feature importance.
func ContributingFactors(level RiskLevel) []string {
	var src []string
	switch level {
	case RiskHigh, RiskCritical:
		src = elevatedFactors
	case RiskMedium:
		src = mediumFactors
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// NewAssessment classifies a clamped score and attaches its factors.
func NewAssessment(score int) RiskAssessment {
	score = ClampScoreInt(score)
	level := Classify(score)
	return RiskAssessment{
		RiskScore:           score,
		RiskLevel:           level,
		ContributingFactors: ContributingFactors(level),
	}
}
