package models

// ProjectTemplate is an authored multi-step coding project. Templates are
// owned by the content service and mirrored here read-only by the content
// sync worker; the engine never mutates them.
type ProjectTemplate struct {
	ID          string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalID  string `gorm:"uniqueIndex;not null" json:"external_id"` // content service's ID
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	StepCount   int    `json:"step_count"`

	Steps []Step `gorm:"foreignKey:ProjectTemplateID" json:"steps,omitempty"`

	Timestamps
}

// Step is an ordered unit of work within a project template. Step IDs are
// stable across syncs; completion records reference them forever.
type Step struct {
	ID                string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalID        string `gorm:"uniqueIndex;not null" json:"external_id"`
	ProjectTemplateID string `gorm:"index;not null" json:"project_template_id"`
	Position          int    `gorm:"not null" json:"position"`
	Title             string `gorm:"not null" json:"title"`
	RequiresQuiz      bool   `gorm:"default:false" json:"requires_quiz"`
	VideoURL          string `gorm:"type:text" json:"video_url,omitempty"`

	Timestamps
}
