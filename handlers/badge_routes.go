// handlers/badge_routes.go
package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"tutorial-progress-system/middleware"
	"tutorial-progress-system/models"
	"tutorial-progress-system/services"
	"tutorial-progress-system/storage"

	"github.com/gofiber/fiber/v2"
)

// SetupBadgeRoutes exposes the badge catalog, a user's unlocked badges and
// a live SSE stream of new unlocks.
func SetupBadgeRoutes(app *fiber.App, store storage.Store, authClient *services.AuthServiceClient) {
	// Public catalog — no user context needed.
	app.Get("/badges", func(c *fiber.Ctx) error {
		badges, err := store.ListBadges(c.UserContext())
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(badges)
	})

	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/user/badges", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		ctx := c.UserContext()

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

		out := make([]fiber.Map, 0, len(held))
		for _, ub := range held {
			b, ok := byID[ub.BadgeID]
			if !ok {
				continue
			}
			out = append(out, fiber.Map{
				"id":          b.ID,
				"name":        b.Name,
				"description": b.Description,
				"icon":        b.Icon,
				"unlocked_at": ub.UnlockedAt,
			})
		}
		return c.JSON(out)
	})

	// SSE stream of newly unlocked badges. Token rides in the query string
	// because EventSource cannot set headers.
	app.Get("/user/badges/stream", middleware.SSEAuthMiddleware(authClient), func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no") // nginx

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			ticker := time.NewTicker(2 * time.Second)
			defer ticker.Stop()

			cursor := time.Now()

			// Initial keepalive (comment event)
			w.WriteString(":\n\n")
			if err := w.Flush(); err != nil {
				return
			}

			for {
				select {
				case <-ticker.C:
					unlocked, err := store.UserBadgesSince(c.Context(), userID, cursor)
					if err != nil {
						log.Printf("SSE badge query error for user %s: %v", userID, err)
						continue
					}
					if len(unlocked) == 0 {
						continue
					}
					cursor = unlocked[len(unlocked)-1].UnlockedAt

					for _, ub := range unlocked {
						payload, _ := json.Marshal(ub)
						fmt.Fprintf(w, "event: badge\ndata: %s\n\n", payload)
					}
					if err := w.Flush(); err != nil {
						// Client disconnected
						return
					}

				case <-c.Context().Done():
					return
				}
			}
		})

		return nil
	})
}
