package models

import "time"

// QuizAttempt is history only. Completion is always derived from
// CompletionRecord rows; counting passed attempts conflates "attempted"
// with "completed" across retakes and reordered steps.
type QuizAttempt struct {
	ID               string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID           string    `gorm:"index;not null" json:"user_id"`
	StepID           string    `gorm:"index;not null" json:"step_id"`
	Score            int       `gorm:"not null" json:"score"`
	Passed           bool      `gorm:"not null" json:"passed"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	AttemptNumber    int       `gorm:"default:1" json:"attempt_number"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}
