package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a local snapshot of learner identity plus the gamification state
// owned by this service. Identity columns are populated by the profile sync
// worker; points and streak columns are mutated only through the points
// ledger and streak engine.
type User struct {
	ID             string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string  `gorm:"uniqueIndex;not null" json:"external_user_id"` // the profile service's UUID
	Username       string  `gorm:"index;not null" json:"username"`
	Email          string  `json:"email,omitempty"`
	FirstName      *string `json:"first_name,omitempty"`
	LastName       *string `json:"last_name,omitempty"`

	// Gamification state
	TotalPoints   int        `gorm:"default:0" json:"total_points"`
	Level         int        `gorm:"default:1" json:"level"`
	CurrentStreak int        `gorm:"default:0" json:"current_streak"`
	LongestStreak int        `gorm:"default:0" json:"longest_streak"`
	LastActiveAt  *time.Time `json:"last_active_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// LevelSize is the point span of a single level.
const LevelSize = 1000

// LevelForPoints derives a user's level from their running point total.
func LevelForPoints(totalPoints int) int {
	if totalPoints < 0 {
		totalPoints = 0
	}
	return totalPoints/LevelSize + 1
}
