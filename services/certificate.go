package services

import (
	"context"
	"log"
	"time"

	"tutorial-progress-system/models"
	"tutorial-progress-system/storage"
)

// CertificatePublisher pushes an issuance record to wherever the external
// certificate renderer picks it up. Publishing is best-effort: the durable
// issuance fact is the CertificateIssuedAt column, not the artifact.
type CertificatePublisher interface {
	PublishIssuance(ctx context.Context, userID, projectID, projectSlug string, issuedAt time.Time) error
}

// CertificateGate decides certificate eligibility. Eligible iff the project
// sits at 100%; the issuance timestamp is written exactly once, on the
// not-eligible → eligible transition, and never overwritten afterwards.
type CertificateGate struct {
	store     storage.Store
	publisher CertificatePublisher // nil disables artifact publishing
}

func NewCertificateGate(store storage.Store, publisher CertificatePublisher) *CertificateGate {
	return &CertificateGate{store: store, publisher: publisher}
}

// Evaluate re-checks eligibility for the (user, project) progress row.
// Re-evaluating an already-issued project is a no-op: a certificate is never
// re-issued with a new date.
func (g *CertificateGate) Evaluate(ctx context.Context, userID, projectID string) (eligible, issuedNow bool, err error) {
	var issuedAt time.Time
	_, err = g.store.MutateProgress(ctx, userID, projectID, func(p *models.ProjectProgress) error {
		eligible = p.Percentage == 100
		if !eligible {
			return nil
		}
		p.CertificateEligible = true
		if p.CertificateIssuedAt == nil {
			now := time.Now()
			p.CertificateIssuedAt = &now
			issuedAt = now
			issuedNow = true
		}
		return nil
	})
	if err != nil {
		return false, false, err
	}

	if issuedNow && g.publisher != nil {
		tpl, tplErr := g.store.GetProjectTemplate(ctx, projectID)
		slug := projectID
		if tplErr == nil {
			slug = tpl.Slug
		}
		if pubErr := g.publisher.PublishIssuance(ctx, userID, projectID, slug, issuedAt); pubErr != nil {
			// The DB row is the source of truth; the renderer can re-fetch.
			log.Printf("[CERT] ⚠️ failed to publish issuance artifact for user=%s project=%s: %v",
				userID, projectID, pubErr)
		} else {
			log.Printf("[CERT] 📜 certificate issued: user=%s project=%s", userID, slug)
		}
	}
	return eligible, issuedNow, nil
}
