package models

import "time"

// Результат команды модератора в журнале.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// AuditLogEntry: неизменяемая запись о действии модератора или конвейера.
type AuditLogEntry struct {
	ID           int64     `json:"id"`
	SubmissionID int64     `json:"submission_id"`
	AccountGroup string    `json:"account_group"`
	Actor        string    `json:"actor"`
	Command      string    `json:"command"`
	Args         string    `json:"args"`
	Outcome      string    `json:"outcome"`
	Detail       string    `json:"detail"`
	CreatedAt    time.Time `json:"created_at"`
}
