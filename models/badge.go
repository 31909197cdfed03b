package models

import "time"

// BadgeCriteriaType selects which user statistic a badge threshold applies to.
type BadgeCriteriaType string

const (
	CriteriaPoints   BadgeCriteriaType = "points"   // TotalPoints >= threshold
	CriteriaStreak   BadgeCriteriaType = "streak"   // CurrentStreak >= threshold
	CriteriaProjects BadgeCriteriaType = "projects" // projects at 100% >= threshold
)

// Badge is a static, externally authored award template.
type Badge struct {
	ID           string            `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name         string            `gorm:"uniqueIndex;not null" json:"name"`
	Description  string            `gorm:"type:text" json:"description"`
	Icon         string            `gorm:"size:10" json:"icon"`
	CriteriaType BadgeCriteriaType `gorm:"type:varchar(16);not null" json:"criteria_type"`
	Threshold    int               `gorm:"not null" json:"threshold"`
	Points       int               `json:"points"` // display value, not credited by the engine
	CreatedAt    time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// UserBadge is an awarded instance; unique per (user, badge), never deleted.
type UserBadge struct {
	ID         string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID     string    `gorm:"not null;uniqueIndex:idx_user_badge" json:"user_id"`
	BadgeID    string    `gorm:"not null;uniqueIndex:idx_user_badge" json:"badge_id"`
	UnlockedAt time.Time `gorm:"autoCreateTime" json:"unlocked_at"`
}

// DefaultBadges is the seed catalog, upserted at boot.
var DefaultBadges = []Badge{
	{
		Name:         "First Step",
		Description:  "Complete your first tutorial step",
		Icon:         "🎯",
		CriteriaType: CriteriaPoints,
		Threshold:    50,
		Points:       50,
	},
	{
		Name:         "Week Warrior",
		Description:  "Maintain a 7-day learning streak",
		Icon:         "🔥",
		CriteriaType: CriteriaStreak,
		Threshold:    7,
		Points:       200,
	},
	{
		Name:         "Project Master",
		Description:  "Complete 3 full projects",
		Icon:         "👨‍💻",
		CriteriaType: CriteriaProjects,
		Threshold:    3,
		Points:       1000,
	},
	{
		Name:         "Fast Learner",
		Description:  "Reach level 5",
		Icon:         "⚡",
		CriteriaType: CriteriaPoints,
		Threshold:    5000,
		Points:       500,
	},
	{
		Name:         "Consistency King",
		Description:  "Maintain a 30-day streak",
		Icon:         "👑",
		CriteriaType: CriteriaStreak,
		Threshold:    30,
		Points:       1000,
	},
}
