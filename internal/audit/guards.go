package audit

import "wall_go/models"

// precondition: состояние заявки, в котором команда допустима.
type precondition int

const (
	// awaiting_audit или held
	preReviewable precondition = iota + 1
	// только awaiting_audit
	preAwaiting
	// любое нетерминальное
	preNonTerminal
	// заявка существует, статус не важен
	preExists
	// открыто окно агрегации с этим ID
	preOpenWindow
)

func (p precondition) allows(s models.SubmissionStatus) bool {
	switch p {
	case preReviewable:
		return s == models.StatusAwaitingAudit || s == models.StatusHeld
	case preAwaiting:
		return s == models.StatusAwaitingAudit
	case preNonTerminal:
		return !s.IsTerminal()
	case preExists:
		return true
	}
	return false
}

func (p precondition) String() string {
	switch p {
	case preReviewable:
		return "awaiting_audit or held"
	case preAwaiting:
		return "awaiting_audit"
	case preNonTerminal:
		return "a non-terminal state"
	case preExists:
		return "an existing submission"
	case preOpenWindow:
		return "an open aggregation window"
	}
	return "unknown"
}
