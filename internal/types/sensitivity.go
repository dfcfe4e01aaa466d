package types

// SensitivityLevel is the four-tier classification of how private a piece of
// content is. Levels are totally ordered: public < internal < confidential <
// highly-confidential.
type SensitivityLevel string

const (
	SensitivityPublic             SensitivityLevel = "public"
	SensitivityInternal           SensitivityLevel = "internal"
	SensitivityConfidential       SensitivityLevel = "confidential"
	SensitivityHighlyConfidential SensitivityLevel = "highly-confidential"
)

// AllSensitivityLevels lists the levels in ascending order.
var AllSensitivityLevels = []SensitivityLevel{
	SensitivityPublic,
	SensitivityInternal,
	SensitivityConfidential,
	SensitivityHighlyConfidential,
}

var sensitivityRank = map[SensitivityLevel]int{
	SensitivityPublic:             0,
	SensitivityInternal:           1,
	SensitivityConfidential:       2,
	SensitivityHighlyConfidential: 3,
}

var privacyRisk = map[SensitivityLevel]float64{
	SensitivityPublic:             0.0,
	SensitivityInternal:           0.25,
	SensitivityConfidential:       0.75,
	SensitivityHighlyConfidential: 1.0,
}

// PrivacyRisk returns the fixed numeric privacy risk for the level, in [0,1].
func (l SensitivityLevel) PrivacyRisk() float64 {
	return privacyRisk[l]
}

// AtLeast reports whether the level is at or above the given level.
func (l SensitivityLevel) AtLeast(other SensitivityLevel) bool {
	return sensitivityRank[l] >= sensitivityRank[other]
}

// SensitivityAssessment is the classifier's verdict for one request. It is
// produced fresh per request and never persisted.
type SensitivityAssessment struct {
	Level      SensitivityLevel `json:"level"`
	Confidence float64          `json:"confidence"`
	Reasons    []string         `json:"reasons"`
}
