// Package memstore implements storage.Store in memory. It backs the engine
// tests and local development; a single mutex gives it the same atomicity
// guarantees the Postgres store gets from unique indexes and row locks.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"tutorial-progress-system/models"
	"tutorial-progress-system/storage"

	"github.com/google/uuid"
)

type Store struct {
	mu sync.Mutex

	users       map[string]*models.User            // external user ID → user
	projects    map[string]*models.ProjectTemplate // project ID → template
	steps       map[string]*models.Step            // step ID → step
	progress    map[string]*models.ProjectProgress // userID+"/"+projectID
	completions map[string]models.CompletionRecord // userID+"/"+stepID
	awards      map[string]models.PointAward       // userID+"/"+stepID
	badges      map[string]*models.Badge           // badge ID → badge
	userBadges  map[string]models.UserBadge        // userID+"/"+badgeID
	attempts    []models.QuizAttempt
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:       make(map[string]*models.User),
		projects:    make(map[string]*models.ProjectTemplate),
		steps:       make(map[string]*models.Step),
		progress:    make(map[string]*models.ProjectProgress),
		completions: make(map[string]models.CompletionRecord),
		awards:      make(map[string]models.PointAward),
		badges:      make(map[string]*models.Badge),
		userBadges:  make(map[string]models.UserBadge),
	}
}

func key(a, b string) string { return a + "/" + b }

// --- Users ---

func (s *Store) GetUser(_ context.Context, userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, &storage.NotFoundError{Kind: "user", ID: userID}
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UpsertUserIdentity(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[u.ExternalUserID]; ok {
		existing.Username = u.Username
		existing.Email = u.Email
		existing.FirstName = u.FirstName
		existing.LastName = u.LastName
		existing.UpdatedAt = time.Now()
		return nil
	}
	cp := *u
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.Level == 0 {
		cp.Level = 1
	}
	cp.CreatedAt = time.Now()
	s.users[cp.ExternalUserID] = &cp
	return nil
}

func (s *Store) MutateUser(_ context.Context, userID string, fn func(u *models.User) error) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, &storage.NotFoundError{Kind: "user", ID: userID}
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (s *Store) ResetLapsedStreaks(_ context.Context, activeSince time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, u := range s.users {
		if u.CurrentStreak > 0 && (u.LastActiveAt == nil || u.LastActiveAt.Before(activeSince)) {
			u.CurrentStreak = 0
			n++
		}
	}
	return n, nil
}

// --- Content catalog ---

func (s *Store) GetStep(_ context.Context, stepID string) (*models.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.steps[stepID]
	if !ok {
		return nil, &storage.NotFoundError{Kind: "step", ID: stepID}
	}
	cp := *st
	return &cp, nil
}

func (s *Store) GetProjectTemplate(_ context.Context, projectID string) (*models.ProjectTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tpl, ok := s.projects[projectID]
	if !ok {
		return nil, &storage.NotFoundError{Kind: "project", ID: projectID}
	}
	cp := *tpl
	return &cp, nil
}

func (s *Store) GetProjectTemplateBySlug(_ context.Context, slug string) (*models.ProjectTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tpl := range s.projects {
		if tpl.Slug == slug {
			cp := *tpl
			return &cp, nil
		}
	}
	return nil, &storage.NotFoundError{Kind: "project", ID: slug}
}

func (s *Store) GetProjectSteps(_ context.Context, projectID string) ([]models.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var steps []models.Step
	for _, st := range s.steps {
		if st.ProjectTemplateID == projectID {
			steps = append(steps, *st)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Position < steps[j].Position })
	return steps, nil
}

func (s *Store) UpsertProjectTemplate(_ context.Context, tpl *models.ProjectTemplate, steps []models.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tpl
	// Re-syncs match on the content service's ID so local IDs stay stable.
	if cp.ExternalID != "" {
		for _, have := range s.projects {
			if have.ExternalID == cp.ExternalID {
				cp.ID = have.ID
				break
			}
		}
	}
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.StepCount = len(steps)
	s.projects[cp.ID] = &cp
	for i := range steps {
		st := steps[i]
		if st.ExternalID != "" {
			for _, have := range s.steps {
				if have.ExternalID == st.ExternalID {
					st.ID = have.ID
					break
				}
			}
		}
		if st.ID == "" {
			st.ID = uuid.NewString()
		}
		st.ProjectTemplateID = cp.ID
		s.steps[st.ID] = &st
	}
	return nil
}

// --- Completion ledger ---

func (s *Store) RecordCompletion(_ context.Context, userID, stepID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(userID, stepID)
	if _, ok := s.completions[k]; ok {
		return false, nil
	}
	s.completions[k] = models.CompletionRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		StepID:    stepID,
		CreatedAt: time.Now(),
	}
	return true, nil
}

func (s *Store) CompletedStepIDs(_ context.Context, userID, projectID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, rec := range s.completions {
		if rec.UserID != userID {
			continue
		}
		if st, ok := s.steps[rec.StepID]; ok && st.ProjectTemplateID == projectID {
			ids = append(ids, rec.StepID)
		}
	}
	return ids, nil
}

// --- Project progress ---

func (s *Store) GetProgress(_ context.Context, userID, projectID string) (*models.ProjectProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[key(userID, projectID)]
	if !ok {
		return nil, &storage.NotFoundError{Kind: "progress", ID: key(userID, projectID)}
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListProgress(_ context.Context, userID string) ([]models.ProjectProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []models.ProjectProgress
	for _, p := range s.progress {
		if p.UserID == userID {
			rows = append(rows, *p)
		}
	}
	return rows, nil
}

func (s *Store) MutateProgress(_ context.Context, userID, projectID string, fn func(p *models.ProjectProgress) error) (*models.ProjectProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(userID, projectID)
	p, ok := s.progress[k]
	if !ok {
		p = &models.ProjectProgress{
			ID:                uuid.NewString(),
			UserID:            userID,
			ProjectTemplateID: projectID,
			Status:            models.StatusNotStarted,
		}
		p.CreatedAt = time.Now()
		s.progress[k] = p
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Now()
	cp := *p
	return &cp, nil
}

func (s *Store) CountCompletedProjects(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.progress {
		if p.UserID == userID && p.Percentage == 100 {
			n++
		}
	}
	return n, nil
}

// --- Points ---

func (s *Store) AwardStepPoints(_ context.Context, userID, stepID string, amount int) (bool, *models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return false, nil, &storage.NotFoundError{Kind: "user", ID: userID}
	}
	k := key(userID, stepID)
	if _, done := s.awards[k]; done {
		cp := *u
		return false, &cp, nil
	}
	s.awards[k] = models.PointAward{
		ID:        uuid.NewString(),
		UserID:    userID,
		StepID:    stepID,
		Points:    amount,
		CreatedAt: time.Now(),
	}
	u.TotalPoints += amount
	u.Level = models.LevelForPoints(u.TotalPoints)
	cp := *u
	return true, &cp, nil
}

// --- Badges ---

func (s *Store) ListBadges(_ context.Context) ([]models.Badge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var badges []models.Badge
	for _, b := range s.badges {
		badges = append(badges, *b)
	}
	sort.Slice(badges, func(i, j int) bool { return badges[i].Threshold < badges[j].Threshold })
	return badges, nil
}

func (s *Store) SeedBadges(_ context.Context, badges []models.Badge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range badges {
		b := badges[i]
		exists := false
		for _, have := range s.badges {
			if have.Name == b.Name {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		b.CreatedAt = time.Now()
		s.badges[b.ID] = &b
	}
	return nil
}

func (s *Store) ListUserBadges(_ context.Context, userID string) ([]models.UserBadge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userBadgesLocked(userID, time.Time{}), nil
}

func (s *Store) UserBadgesSince(_ context.Context, userID string, since time.Time) ([]models.UserBadge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userBadgesLocked(userID, since), nil
}

func (s *Store) userBadgesLocked(userID string, since time.Time) []models.UserBadge {
	var rows []models.UserBadge
	for _, ub := range s.userBadges {
		if ub.UserID == userID && ub.UnlockedAt.After(since) {
			rows = append(rows, ub)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UnlockedAt.Before(rows[j].UnlockedAt) })
	return rows
}

func (s *Store) AwardBadge(_ context.Context, userID, badgeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(userID, badgeID)
	if _, ok := s.userBadges[k]; ok {
		return false, nil
	}
	s.userBadges[k] = models.UserBadge{
		ID:         uuid.NewString(),
		UserID:     userID,
		BadgeID:    badgeID,
		UnlockedAt: time.Now(),
	}
	return true, nil
}

// --- Quiz attempts ---

func (s *Store) CreateQuizAttempt(_ context.Context, attempt *models.QuizAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	attempt.CreatedAt = time.Now()
	s.attempts = append(s.attempts, *attempt)
	return nil
}

func (s *Store) CountQuizAttempts(_ context.Context, userID, stepID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, a := range s.attempts {
		if a.UserID == userID && a.StepID == stepID {
			n++
		}
	}
	return n, nil
}
