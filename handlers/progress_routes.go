// handlers/progress_routes.go
package handlers

import (
	"errors"
	"log"
	"strconv"
	"strings"

	"tutorial-progress-system/middleware"
	"tutorial-progress-system/models"
	"tutorial-progress-system/services"
	"tutorial-progress-system/storage"

	"github.com/gofiber/fiber/v2"
)

// SetupProgressRoutes wires every completion entry point onto the single
// engine pipeline. The gateway forwards /api/v1/progress/s/... as /s/...
func SetupProgressRoutes(app *fiber.App, engine *services.Engine, store storage.Store) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	// Step marked complete directly (steps without a quiz).
	secured.Post("/progress/complete", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			StepID string `json:"step_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		result, err := engine.HandleEvent(c.UserContext(), models.CompletionEvent{
			Kind:   models.EventStepMarkedComplete,
			UserID: userID,
			StepID: req.StepID,
		})
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(result)
	})

	// Quiz submission. Every attempt is recorded; only passing attempts
	// reach the completion pipeline.
	secured.Post("/quiz/submit", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			StepID           string `json:"step_id"`
			Score            int    `json:"score"`
			Passed           bool   `json:"passed"`
			TimeSpentSeconds int    `json:"time_spent_seconds"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.StepID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "step_id is required"})
		}

		if !req.Passed {
			if err := engine.RecordQuizAttempt(c.UserContext(), userID, req.StepID, req.Score, req.TimeSpentSeconds, false); err != nil {
				return errorResponse(c, err)
			}
			return c.JSON(fiber.Map{"passed": false})
		}

		result, err := engine.HandleEvent(c.UserContext(), models.CompletionEvent{
			Kind:             models.EventQuizPassed,
			UserID:           userID,
			StepID:           req.StepID,
			Score:            req.Score,
			TimeSpentSeconds: req.TimeSpentSeconds,
		})
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(result)
	})

	// Explicit "start project" — creates the progress row before any step
	// is completed so the UI can show in-progress immediately.
	secured.Post("/projects/:id/start", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		projectID := c.Params("id")

		prog, err := engine.Progress().Start(c.UserContext(), userID, projectID)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(prog)
	})

	secured.Get("/user/stats", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		ctx := c.UserContext()

		user, err := store.GetUser(ctx, userID)
		if err != nil {
			return errorResponse(c, err)
		}
		completedProjects, err := store.CountCompletedProjects(ctx, userID)
		if err != nil {
			return errorResponse(c, err)
		}
		held, err := store.ListUserBadges(ctx, userID)
		if err != nil {
			return errorResponse(c, err)
		}
		catalog, err := store.ListBadges(ctx)
		if err != nil {
			return errorResponse(c, err)
		}
		byID := make(map[string]models.Badge, len(catalog))
		for _, b := range catalog {
			byID[b.ID] = b
		}

		badges := make([]fiber.Map, 0, len(held))
		for _, ub := range held {
			b, ok := byID[ub.BadgeID]
			if !ok {
				continue
			}
			badges = append(badges, fiber.Map{
				"id":          b.ID,
				"name":        b.Name,
				"icon":        b.Icon,
				"unlocked_at": ub.UnlockedAt,
			})
		}

		return c.JSON(fiber.Map{
			"current_streak":     user.CurrentStreak,
			"longest_streak":     user.LongestStreak,
			"total_points":       user.TotalPoints,
			"level":              user.Level,
			"completed_projects": completedProjects,
			"badges":             badges,
		})
	})

	// Everything the user has touched, for the dashboard overview.
	secured.Get("/user/progress", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		rows, err := store.ListProgress(c.UserContext(), userID)
		if err != nil {
			return errorResponse(c, err)
		}
		if rows == nil {
			rows = []models.ProjectProgress{}
		}
		return c.JSON(rows)
	})

	secured.Get("/user/progress/:projectID", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		projectID := c.Params("projectID")

		prog, err := store.GetProgress(c.UserContext(), userID, projectID)
		if err != nil {
			if storage.IsNotFound(err) {
				// No row yet means the user simply never touched the project.
				if _, tplErr := store.GetProjectTemplate(c.UserContext(), projectID); tplErr != nil {
					return errorResponse(c, tplErr)
				}
				return c.JSON(models.ProjectProgress{
					UserID:            userID,
					ProjectTemplateID: projectID,
					Status:            models.StatusNotStarted,
				})
			}
			return errorResponse(c, err)
		}
		return c.JSON(prog)
	})

	// Certificate eligibility and issuance metadata by project slug.
	// Rendering is the certificate service's job; this route only answers
	// "is there a certificate, and when was it issued".
	secured.Get("/certificates/:slug", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		ctx := c.UserContext()

		tpl, err := store.GetProjectTemplateBySlug(ctx, c.Params("slug"))
		if err != nil {
			return errorResponse(c, err)
		}
		prog, err := store.GetProgress(ctx, userID, tpl.ID)
		if err != nil && !storage.IsNotFound(err) {
			return errorResponse(c, err)
		}
		if prog == nil || !prog.CertificateEligible || prog.CertificateIssuedAt == nil {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "certificate not available",
			})
		}

		return c.JSON(fiber.Map{
			"certificate_number": certificateNumber(prog),
			"project_slug":       tpl.Slug,
			"project_title":      tpl.Title,
			"issued_at":          prog.CertificateIssuedAt,
		})
	})
}

// certificateNumber derives a stable display number from the issuance
// moment, so re-fetching never changes it.
func certificateNumber(p *models.ProjectProgress) string {
	return "CT-" + strings.ToUpper(strconv.FormatInt(p.CertificateIssuedAt.UnixMilli(), 36))
}

// errorResponse maps engine error kinds onto HTTP statuses.
func errorResponse(c *fiber.Ctx, err error) error {
	if storage.IsNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	var inv *services.InvariantViolation
	if errors.As(err, &inv) {
		log.Printf("💥 [INVARIANT] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal inconsistency"})
	}
	var se *storage.StorageError
	if errors.As(err, &se) {
		log.Printf("❌ [STORAGE] %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "storage unavailable, retry"})
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}
