package models

import "time"

// PublishRecord: итог доставки одного StoredPost на одну платформу.
type PublishRecord struct {
	ID           int64        `json:"id"`
	SubmissionID int64        `json:"submission_id"`
	Platform     string       `json:"platform"`
	Account      string       `json:"account"`
	ExternalID   string       `json:"external_id"`
	Attempts     int          `json:"attempts"`
	LastError    string       `json:"last_error"`
	Status       RecordStatus `json:"status"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
