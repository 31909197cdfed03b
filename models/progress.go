package models

import "time"

// ProgressStatus values for a user's project progress row.
type ProgressStatus string

const (
	StatusNotStarted ProgressStatus = "not-started"
	StatusInProgress ProgressStatus = "in-progress"
	StatusCompleted  ProgressStatus = "completed"
)

// ProjectProgress is the per (user, project) rollup derived from completion
// records. Percentage and status are recomputed from the ledger on every
// completion; CertificateIssuedAt is set at most once and never cleared.
type ProjectProgress struct {
	ID                string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID            string `gorm:"not null;index;uniqueIndex:idx_user_project" json:"user_id"`
	ProjectTemplateID string `gorm:"not null;uniqueIndex:idx_user_project" json:"project_template_id"`

	CompletedSteps      int            `gorm:"default:0" json:"completed_steps"`
	Percentage          int            `gorm:"default:0" json:"percentage"` // 0-100
	Status              ProgressStatus `gorm:"type:varchar(16);default:'not-started'" json:"status"`
	CertificateEligible bool           `gorm:"default:false" json:"certificate_eligible"`
	CertificateIssuedAt *time.Time     `json:"certificate_issued_at,omitempty"`

	Timestamps
}

// CompletionRecord is the durable fact that a user finished a step. The
// unique (user, step) index makes recording idempotent: concurrent inserts
// race safely and exactly one caller observes a new row.
type CompletionRecord struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_user_step" json:"user_id"`
	StepID    string    `gorm:"not null;uniqueIndex:idx_user_step" json:"step_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// PointAward marks that step points were credited for a (user, step)
// completion. Created in the same transaction as the points increment so a
// retried pipeline never double-awards.
type PointAward struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_user_step_award" json:"user_id"`
	StepID    string    `gorm:"not null;uniqueIndex:idx_user_step_award" json:"step_id"`
	Points    int       `gorm:"not null" json:"points"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
