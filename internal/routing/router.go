// Package routing maps a severity verdict and report kind to a responder
// class. Recommendations are advisory: the lifecycle applies them as the
// default routedTo, and an operator may override the target at dispatch time,
// recording a reason code for the audit trail.
package routing

import "github.com/firewatch-ph/firewatch/internal/report"

// Recommendation is the router's advisory output.
type Recommendation struct {
	Target    report.Target `json:"target"`
	Rationale string        `json:"rationale"`
}

// Recommend applies the routing policy:
//
//   - urgent incidents always go to BFP, whatever the severity label says
//   - Major severity goes to BFP
//   - Minor severity goes to the barangay officials
//   - an unclassified hazard report stays unrouted until classified or
//     routed manually
func Recommend(kind report.Kind, severity report.Severity) Recommendation {
	if kind == report.KindUrgentIncident {
		return Recommendation{
			Target:    report.TargetBFP,
			Rationale: "urgent incident: dispatched to BFP regardless of severity",
		}
	}

	switch severity {
	case report.SeverityMajor:
		return Recommendation{
			Target:    report.TargetBFP,
			Rationale: "major severity hazard: BFP response required",
		}
	case report.SeverityMinor:
		return Recommendation{
			Target:    report.TargetBarangayOfficials,
			Rationale: "minor severity hazard: barangay officials can handle follow-up",
		}
	default:
		return Recommendation{
			Target:    report.TargetUnrouted,
			Rationale: "severity not yet classified",
		}
	}
}

// OverrideReason is the reason code recorded when an operator routes a report
// to a target other than the recommendation. Audit only — there is no
// retraining loop consuming these.
type OverrideReason string

const (
	ReasonLocalKnowledge    OverrideReason = "local_knowledge"
	ReasonMisclassification OverrideReason = "misclassification"
	ReasonResourceShortage  OverrideReason = "resource_shortage"
	ReasonOther             OverrideReason = "other"
)

// ValidReason reports whether r is a known override reason code.
func ValidReason(r OverrideReason) bool {
	switch r {
	case ReasonLocalKnowledge, ReasonMisclassification, ReasonResourceShortage, ReasonOther:
		return true
	}
	return false
}
