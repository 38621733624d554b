package classify

import (
	"context"
	"strings"

	"github.com/firewatch-ph/firewatch/internal/report"
)

// majorIndicators are phrases that mark an active or imminent fire emergency.
var majorIndicators = []string{
	"fire", "flames", "smoke", "explosion", "exploded", "burning",
	"gas leak", "lpg", "trapped", "spreading", "sparks flying",
	"electrical fire", "short circuit",
}

// minorIndicators are standing-hazard phrases that warrant barangay-level
// follow-up rather than an emergency dispatch.
var minorIndicators = []string{
	"exposed wiring", "frayed wire", "octopus connection", "overloaded outlet",
	"overloaded extension", "blocked fire exit", "blocked exit",
	"flammable material", "flammable storage", "unattended candle",
	"faulty appliance", "old wiring", "no fire extinguisher",
}

// RuleClassifier is the default Classifier: keyword matching over the report
// text. Deterministic for identical input, never unavailable.
type RuleClassifier struct {
	major []string
	minor []string
}

// NewRuleClassifier returns a RuleClassifier loaded with the default
// fire-hazard phrase lists.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{major: majorIndicators, minor: minorIndicators}
}

// Classify implements Classifier. Any major indicator outweighs all minor
// ones; confidence grows with the number of matching phrases. When nothing
// matches, the verdict is Minor at floor confidence — the contract requires a
// label, and an unmatched description gives no grounds for an emergency call.
func (c *RuleClassifier) Classify(_ context.Context, in Input) (Result, error) {
	text := strings.ToLower(in.Description + " " + in.LocationDesc)

	majorHits := countMatches(text, c.major)
	minorHits := countMatches(text, c.minor)

	switch {
	case majorHits > 0:
		return Result{Label: report.SeverityMajor, Confidence: confidenceFor(majorHits)}, nil
	case minorHits > 0:
		return Result{Label: report.SeverityMinor, Confidence: confidenceFor(minorHits)}, nil
	default:
		return Result{Label: report.SeverityMinor, Confidence: floorConfidence}, nil
	}
}

const (
	baseConfidence  = 0.55
	perHitBonus     = 0.15
	maxConfidence   = 0.95
	floorConfidence = 0.35
)

// confidenceFor maps a hit count to a confidence score in [baseConfidence, maxConfidence].
func confidenceFor(hits int) float64 {
	conf := baseConfidence + float64(hits-1)*perHitBonus
	if conf > maxConfidence {
		conf = maxConfidence
	}
	return conf
}

func countMatches(text string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if strings.Contains(text, p) {
			n++
		}
	}
	return n
}
