package services

import (
	"context"
	"log"

	"tutorial-progress-system/models"
	"tutorial-progress-system/storage"
)

// BadgeEvaluator unlocks badges whose threshold criteria a user newly
// satisfies. Safe to call repeatedly: badges already held are skipped and
// the (user, badge) uniqueness makes concurrent unlocks race harmlessly.
type BadgeEvaluator struct {
	store storage.Store
}

func NewBadgeEvaluator(store storage.Store) *BadgeEvaluator {
	return &BadgeEvaluator{store: store}
}

// Evaluate returns the badges unlocked by this call, in catalog order.
func (e *BadgeEvaluator) Evaluate(ctx context.Context, userID string) ([]models.Badge, error) {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	badges, err := e.store.ListBadges(ctx)
	if err != nil {
		return nil, err
	}
	held, err := e.store.ListUserBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	heldIDs := make(map[string]bool, len(held))
	for _, ub := range held {
		heldIDs[ub.BadgeID] = true
	}

	// Only hit the progress table when a projects-type badge is pending.
	completedProjects := int64(-1)

	var unlocked []models.Badge
	for _, b := range badges {
		if heldIDs[b.ID] {
			continue
		}

		satisfied := false
		switch b.CriteriaType {
		case models.CriteriaPoints:
			satisfied = user.TotalPoints >= b.Threshold
		case models.CriteriaStreak:
			satisfied = user.CurrentStreak >= b.Threshold
		case models.CriteriaProjects:
			if completedProjects < 0 {
				completedProjects, err = e.store.CountCompletedProjects(ctx, userID)
				if err != nil {
					return nil, err
				}
			}
			satisfied = completedProjects >= int64(b.Threshold)
		default:
			log.Printf("[BADGES] ⚠️ unknown criteria type %q on badge %s, skipping", b.CriteriaType, b.Name)
			continue
		}
		if !satisfied {
			continue
		}

		isNew, err := e.store.AwardBadge(ctx, userID, b.ID)
		if err != nil {
			return nil, err
		}
		if isNew {
			log.Printf("🎖️ Badge unlocked: %s → user=%s", b.Name, userID)
			unlocked = append(unlocked, b)
		}
	}
	return unlocked, nil
}
