package classify

import (
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/noteflux/ai-router/internal/types"
)

// piiDetector pairs a label (used in reasoning output) with a compiled
// pattern. Go's regexp engine is RE2, so matching stays linear in input
// length even on very large documents.
type piiDetector struct {
	label   string
	pattern *regexp.Regexp
}

var piiDetectors = []piiDetector{
	{"credit card number", regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)},
	{"email address", regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},
	{"national ID number", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"phone number", regexp.MustCompile(`\b\+?\d{1,3}[ ./-]?\(?\d{2,4}\)?[ ./-]?\d{3,4}[ ./-]?\d{3,5}\b`)},
	{"bank account (IBAN)", regexp.MustCompile(`\b[A-Z]{2}\d{2}[ ]?(?:[A-Z0-9]{4}[ ]?){2,7}[A-Z0-9]{1,4}\b`)},
}

// Keyword tiers, matched case-insensitively as substrings. The German
// literals cover content produced by German-language sources.
var (
	highTierKeywords = []string{"streng vertraulich", "strictly confidential", "top secret", "streng geheim"}
	midTierKeywords  = []string{"confidential", "vertraulich", "geheim"}
	lowTierKeywords  = []string{"internal use only", "internal", "intern", "nur für den internen gebrauch"}
)

// Thresholds for resolving a level from the PII density score.
const (
	highPIIThreshold = 0.8
	midPIIThreshold  = 0.5
	lowPIIThreshold  = 0.2
)

// Classifier scores text for PII density and sensitive-keyword context and
// produces a four-level sensitivity verdict. It is a pure function of its
// input plus the static pattern tables: no I/O, deterministic, safe for
// concurrent use.
type Classifier struct {
	logger *logrus.Logger
}

// NewClassifier creates a sensitivity classifier.
func NewClassifier(logger *logrus.Logger) *Classifier {
	return &Classifier{logger: logger}
}

// Assess classifies the given text. The returned reasons list is never empty.
func (c *Classifier) Assess(text string) (*types.SensitivityAssessment, error) {
	var reasons []string

	piiScore, piiReasons := scorePII(text)
	reasons = append(reasons, piiReasons...)

	lower := strings.ToLower(text)
	highHit := matchKeywords(lower, highTierKeywords, &reasons, "high-sensitivity keyword")
	midHit := matchKeywords(lower, midTierKeywords, &reasons, "sensitivity keyword")
	lowHit := matchKeywords(lower, lowTierKeywords, &reasons, "internal-context keyword")

	assessment := &types.SensitivityAssessment{}
	switch {
	case piiScore > highPIIThreshold || highHit:
		assessment.Level = types.SensitivityHighlyConfidential
		assessment.Confidence = 0.9
	case piiScore > midPIIThreshold || midHit:
		assessment.Level = types.SensitivityConfidential
		assessment.Confidence = 0.8
	case piiScore > lowPIIThreshold || lowHit:
		assessment.Level = types.SensitivityInternal
		assessment.Confidence = 0.7
	default:
		assessment.Level = types.SensitivityPublic
		assessment.Confidence = 0.9
	}

	if len(reasons) == 0 {
		reasons = []string{"no sensitivity indicators found"}
	}
	assessment.Reasons = reasons

	c.logger.WithFields(logrus.Fields{
		"level":      assessment.Level,
		"confidence": assessment.Confidence,
		"pii_score":  piiScore,
	}).Debug("Sensitivity assessed")

	return assessment, nil
}

// scorePII runs every PII detector and returns the matched fraction, capped
// at 1.0, plus one reason per matched detector.
func scorePII(text string) (float64, []string) {
	var reasons []string
	matched := 0
	for _, d := range piiDetectors {
		if d.pattern.MatchString(text) {
			matched++
			reasons = append(reasons, "detected "+d.label+" pattern")
		}
	}
	score := float64(matched) / float64(len(piiDetectors))
	if score > 1.0 {
		score = 1.0
	}
	return score, reasons
}

func matchKeywords(lowerText string, keywords []string, reasons *[]string, label string) bool {
	hit := false
	for _, kw := range keywords {
		if strings.Contains(lowerText, kw) {
			*reasons = append(*reasons, label+": \""+kw+"\"")
			hit = true
		}
	}
	return hit
}
