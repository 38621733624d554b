package lifecycle

import "github.com/firewatch-ph/firewatch/internal/report"

// legalNext is the state machine's transition table. A transition absent here
// is rejected with report.ErrInvalidTransition — never silently corrected.
// Resolved and Rejected are terminal.
var legalNext = map[report.Status][]report.Status{
	report.StatusPending:     {report.StatusPendingInfo, report.StatusDispatched, report.StatusRejected},
	report.StatusPendingInfo: {report.StatusPending, report.StatusRejected},
	report.StatusDispatched:  {report.StatusResolved, report.StatusRejected},
}

// canTransition reports whether from → to is a legal status transition.
func canTransition(from, to report.Status) bool {
	for _, s := range legalNext[from] {
		if s == to {
			return true
		}
	}
	return false
}
