package models

// SubmissionStatus: состояние заявки в жизненном цикле модерации.
type SubmissionStatus string

const (
	StatusPending       SubmissionStatus = "pending"
	StatusAwaitingAudit SubmissionStatus = "awaiting_audit"
	StatusApproved      SubmissionStatus = "approved"
	StatusQueued        SubmissionStatus = "queued"
	StatusPublished     SubmissionStatus = "published"
	StatusRejected      SubmissionStatus = "rejected"
	StatusHeld          SubmissionStatus = "held"
	StatusDeleted       SubmissionStatus = "deleted"
	// StatusFailed выставляется, когда все включённые платформы завершились ошибкой.
	StatusFailed SubmissionStatus = "failed"
)

// IsTerminal сообщает, что из состояния больше нет переходов.
func (s SubmissionStatus) IsTerminal() bool {
	switch s {
	case StatusPublished, StatusRejected, StatusDeleted, StatusFailed:
		return true
	}
	return false
}

// RecordStatus: состояние доставки одной платформе.
type RecordStatus string

const (
	RecordPending   RecordStatus = "pending"
	RecordSucceeded RecordStatus = "succeeded"
	RecordFailed    RecordStatus = "failed"
)

// IsTerminal: успешная запись и запись с исчерпанными попытками больше не трогаются.
func (s RecordStatus) IsTerminal() bool {
	return s == RecordSucceeded || s == RecordFailed
}
