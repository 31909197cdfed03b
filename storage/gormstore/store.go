// Package gormstore implements storage.Store on Postgres via GORM.
package gormstore

import (
	"context"
	"errors"
	"time"

	"tutorial-progress-system/models"
	"tutorial-progress-system/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

var _ storage.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates/updates the engine's tables, including the unique
// indexes that back the insert-if-absent idempotence guarantees.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.User{},
		&models.ProjectTemplate{},
		&models.Step{},
		&models.ProjectProgress{},
		&models.CompletionRecord{},
		&models.PointAward{},
		&models.Badge{},
		&models.UserBadge{},
		&models.QuizAttempt{},
	)
}

// --- Users ---

func (s *Store) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("external_user_id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &storage.NotFoundError{Kind: "user", ID: userID}
	}
	if err != nil {
		return nil, storage.WrapError("get user", err)
	}
	return &u, nil
}

func (s *Store) UpsertUserIdentity(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	// Identity columns only — gamification columns stay untouched on conflict
	// so a profile sync can never clobber points or streaks.
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username", "email", "first_name", "last_name", "updated_at",
		}),
	}).Create(u).Error
	return storage.WrapError("upsert user identity", err)
}

func (s *Store) MutateUser(ctx context.Context, userID string, fn func(u *models.User) error) (*models.User, error) {
	var out *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("external_user_id = ?", userID).First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &storage.NotFoundError{Kind: "user", ID: userID}
			}
			return err
		}
		if err := fn(&u); err != nil {
			return err
		}
		if err := tx.Save(&u).Error; err != nil {
			return err
		}
		out = &u
		return nil
	})
	if err != nil {
		var nf *storage.NotFoundError
		if errors.As(err, &nf) {
			return nil, nf
		}
		return nil, storage.WrapError("mutate user", err)
	}
	return out, nil
}

func (s *Store) ResetLapsedStreaks(ctx context.Context, activeSince time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("current_streak > 0 AND (last_active_at IS NULL OR last_active_at < ?)", activeSince).
		Update("current_streak", 0)
	if res.Error != nil {
		return 0, storage.WrapError("reset lapsed streaks", res.Error)
	}
	return res.RowsAffected, nil
}

// --- Content catalog ---

func (s *Store) GetStep(ctx context.Context, stepID string) (*models.Step, error) {
	var step models.Step
	err := s.db.WithContext(ctx).Where("id = ?", stepID).First(&step).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &storage.NotFoundError{Kind: "step", ID: stepID}
	}
	if err != nil {
		return nil, storage.WrapError("get step", err)
	}
	return &step, nil
}

func (s *Store) GetProjectTemplate(ctx context.Context, projectID string) (*models.ProjectTemplate, error) {
	var tpl models.ProjectTemplate
	err := s.db.WithContext(ctx).Where("id = ?", projectID).First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &storage.NotFoundError{Kind: "project", ID: projectID}
	}
	if err != nil {
		return nil, storage.WrapError("get project template", err)
	}
	return &tpl, nil
}

func (s *Store) GetProjectTemplateBySlug(ctx context.Context, slug string) (*models.ProjectTemplate, error) {
	var tpl models.ProjectTemplate
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &storage.NotFoundError{Kind: "project", ID: slug}
	}
	if err != nil {
		return nil, storage.WrapError("get project template by slug", err)
	}
	return &tpl, nil
}

func (s *Store) GetProjectSteps(ctx context.Context, projectID string) ([]models.Step, error) {
	var steps []models.Step
	err := s.db.WithContext(ctx).
		Where("project_template_id = ?", projectID).
		Order("position ASC").
		Find(&steps).Error
	if err != nil {
		return nil, storage.WrapError("get project steps", err)
	}
	return steps, nil
}

func (s *Store) UpsertProjectTemplate(ctx context.Context, tpl *models.ProjectTemplate, steps []models.Step) error {
	return storage.WrapError("upsert project template", s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tpl.ID == "" {
			tpl.ID = uuid.NewString()
		}
		tpl.StepCount = len(steps)
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"slug", "title", "description", "step_count", "updated_at",
			}),
		}).Create(tpl).Error; err != nil {
			return err
		}

		// Resolve the stable local ID in case the row pre-existed.
		var local models.ProjectTemplate
		if err := tx.Where("external_id = ?", tpl.ExternalID).First(&local).Error; err != nil {
			return err
		}

		for i := range steps {
			st := &steps[i]
			if st.ID == "" {
				st.ID = uuid.NewString()
			}
			st.ProjectTemplateID = local.ID
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "external_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"project_template_id", "position", "title", "requires_quiz", "video_url", "updated_at",
				}),
			}).Create(st).Error; err != nil {
				return err
			}
		}
		return nil
	}))
}

// --- Completion ledger ---

func (s *Store) RecordCompletion(ctx context.Context, userID, stepID string) (bool, error) {
	rec := models.CompletionRecord{
		ID:     uuid.NewString(),
		UserID: userID,
		StepID: stepID,
	}
	// Unique (user_id, step_id) index + DO NOTHING: under a concurrent
	// double-submit exactly one insert reports RowsAffected == 1.
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return false, storage.WrapError("record completion", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) CompletedStepIDs(ctx context.Context, userID, projectID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.CompletionRecord{}).
		Joins("JOIN steps ON steps.id = completion_records.step_id").
		Where("completion_records.user_id = ? AND steps.project_template_id = ?", userID, projectID).
		Pluck("completion_records.step_id", &ids).Error
	if err != nil {
		return nil, storage.WrapError("completed step ids", err)
	}
	return ids, nil
}

// --- Project progress ---

func (s *Store) GetProgress(ctx context.Context, userID, projectID string) (*models.ProjectProgress, error) {
	var p models.ProjectProgress
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND project_template_id = ?", userID, projectID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &storage.NotFoundError{Kind: "progress", ID: userID + "/" + projectID}
	}
	if err != nil {
		return nil, storage.WrapError("get progress", err)
	}
	return &p, nil
}

func (s *Store) ListProgress(ctx context.Context, userID string) ([]models.ProjectProgress, error) {
	var rows []models.ProjectProgress
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error
	if err != nil {
		return nil, storage.WrapError("list progress", err)
	}
	return rows, nil
}

func (s *Store) MutateProgress(ctx context.Context, userID, projectID string, fn func(p *models.ProjectProgress) error) (*models.ProjectProgress, error) {
	var out *models.ProjectProgress
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Make sure the row exists, then lock it for this transaction.
		seed := models.ProjectProgress{
			ID:                uuid.NewString(),
			UserID:            userID,
			ProjectTemplateID: projectID,
			Status:            models.StatusNotStarted,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}
		var p models.ProjectProgress
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND project_template_id = ?", userID, projectID).
			First(&p).Error; err != nil {
			return err
		}
		if err := fn(&p); err != nil {
			return err
		}
		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		out = &p
		return nil
	})
	if err != nil {
		return nil, storage.WrapError("mutate progress", err)
	}
	return out, nil
}

func (s *Store) CountCompletedProjects(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.ProjectProgress{}).
		Where("user_id = ? AND percentage = 100", userID).
		Count(&n).Error
	if err != nil {
		return 0, storage.WrapError("count completed projects", err)
	}
	return n, nil
}

// --- Points ---

func (s *Store) AwardStepPoints(ctx context.Context, userID, stepID string, amount int) (bool, *models.User, error) {
	var awarded bool
	var out *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		marker := models.PointAward{
			ID:     uuid.NewString(),
			UserID: userID,
			StepID: stepID,
			Points: amount,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&marker)
		if res.Error != nil {
			return res.Error
		}

		var u models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("external_user_id = ?", userID).First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &storage.NotFoundError{Kind: "user", ID: userID}
			}
			return err
		}

		if res.RowsAffected == 1 {
			awarded = true
			u.TotalPoints += amount
			u.Level = models.LevelForPoints(u.TotalPoints)
			if err := tx.Save(&u).Error; err != nil {
				return err
			}
		}
		out = &u
		return nil
	})
	if err != nil {
		var nf *storage.NotFoundError
		if errors.As(err, &nf) {
			return false, nil, nf
		}
		return false, nil, storage.WrapError("award step points", err)
	}
	return awarded, out, nil
}

// --- Badges ---

func (s *Store) ListBadges(ctx context.Context) ([]models.Badge, error) {
	var badges []models.Badge
	err := s.db.WithContext(ctx).Order("threshold ASC").Find(&badges).Error
	if err != nil {
		return nil, storage.WrapError("list badges", err)
	}
	return badges, nil
}

func (s *Store) SeedBadges(ctx context.Context, badges []models.Badge) error {
	for i := range badges {
		b := badges[i]
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		// Existing catalog entries win; seeding never rewrites thresholds
		// that an operator may have tuned.
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&b).Error; err != nil {
			return storage.WrapError("seed badges", err)
		}
	}
	return nil
}

func (s *Store) ListUserBadges(ctx context.Context, userID string) ([]models.UserBadge, error) {
	var rows []models.UserBadge
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("unlocked_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, storage.WrapError("list user badges", err)
	}
	return rows, nil
}

func (s *Store) UserBadgesSince(ctx context.Context, userID string, since time.Time) ([]models.UserBadge, error) {
	var rows []models.UserBadge
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND unlocked_at > ?", userID, since).
		Order("unlocked_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, storage.WrapError("user badges since", err)
	}
	return rows, nil
}

func (s *Store) AwardBadge(ctx context.Context, userID, badgeID string) (bool, error) {
	ub := models.UserBadge{
		ID:      uuid.NewString(),
		UserID:  userID,
		BadgeID: badgeID,
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&ub)
	if res.Error != nil {
		return false, storage.WrapError("award badge", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// --- Quiz attempts ---

func (s *Store) CreateQuizAttempt(ctx context.Context, attempt *models.QuizAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	return storage.WrapError("create quiz attempt", s.db.WithContext(ctx).Create(attempt).Error)
}

func (s *Store) CountQuizAttempts(ctx context.Context, userID, stepID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.QuizAttempt{}).
		Where("user_id = ? AND step_id = ?", userID, stepID).
		Count(&n).Error
	if err != nil {
		return 0, storage.WrapError("count quiz attempts", err)
	}
	return n, nil
}
