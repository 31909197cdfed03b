package storage

import (
	"context"
	"time"

	"tutorial-progress-system/models"
)

// Store is the persistence boundary of the progress engine. gormstore backs
// it with Postgres in production; memstore backs it in tests. Every method
// that mutates shared per-user state is atomic within a single call.
type Store interface {
	// Users. Identity rows are created by the profile sync worker; the
	// engine only ever mutates gamification columns through MutateUser.
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpsertUserIdentity(ctx context.Context, u *models.User) error
	// MutateUser loads the user's row under a per-user write lock, applies
	// fn and persists the result. Concurrent mutations never lose updates.
	MutateUser(ctx context.Context, userID string, fn func(u *models.User) error) (*models.User, error)
	ResetLapsedStreaks(ctx context.Context, activeSince time.Time) (int64, error)

	// Content catalog (read-only to the engine).
	GetStep(ctx context.Context, stepID string) (*models.Step, error)
	GetProjectTemplate(ctx context.Context, projectID string) (*models.ProjectTemplate, error)
	GetProjectTemplateBySlug(ctx context.Context, slug string) (*models.ProjectTemplate, error)
	GetProjectSteps(ctx context.Context, projectID string) ([]models.Step, error)
	UpsertProjectTemplate(ctx context.Context, tpl *models.ProjectTemplate, steps []models.Step) error

	// Completion ledger.
	// RecordCompletion inserts a (user, step) completion if absent and
	// reports whether this call created it. This is the idempotence
	// boundary every downstream effect is gated on.
	RecordCompletion(ctx context.Context, userID, stepID string) (isNew bool, err error)
	// CompletedStepIDs returns the user's completed steps restricted to the
	// given project's step list, so completions never leak across projects.
	CompletedStepIDs(ctx context.Context, userID, projectID string) ([]string, error)

	// Project progress.
	GetProgress(ctx context.Context, userID, projectID string) (*models.ProjectProgress, error)
	ListProgress(ctx context.Context, userID string) ([]models.ProjectProgress, error)
	// MutateProgress upserts the (user, project) row (status not-started on
	// first touch), applies fn under a write lock and persists the result.
	MutateProgress(ctx context.Context, userID, projectID string, fn func(p *models.ProjectProgress) error) (*models.ProjectProgress, error)
	CountCompletedProjects(ctx context.Context, userID string) (int64, error)

	// Points. AwardStepPoints credits amount exactly once per (user, step):
	// the award marker insert and the running-total update happen in one
	// transaction. awarded=false means the marker already existed.
	AwardStepPoints(ctx context.Context, userID, stepID string, amount int) (awarded bool, user *models.User, err error)

	// Badges.
	ListBadges(ctx context.Context) ([]models.Badge, error)
	SeedBadges(ctx context.Context, badges []models.Badge) error
	ListUserBadges(ctx context.Context, userID string) ([]models.UserBadge, error)
	UserBadgesSince(ctx context.Context, userID string, since time.Time) ([]models.UserBadge, error)
	AwardBadge(ctx context.Context, userID, badgeID string) (isNew bool, err error)

	// Quiz attempt history.
	CreateQuizAttempt(ctx context.Context, attempt *models.QuizAttempt) error
	CountQuizAttempts(ctx context.Context, userID, stepID string) (int64, error)
}
