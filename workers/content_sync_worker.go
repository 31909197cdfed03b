// workers/content_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"tutorial-progress-system/models"
	"tutorial-progress-system/storage"

	"github.com/gosimple/slug"
)

// ContentProject matches the project payload the content service publishes.
type ContentProject struct {
	ID          string        `json:"id"`
	Slug        string        `json:"slug,omitempty"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Steps       []ContentStep `json:"steps"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type ContentStep struct {
	ID           string `json:"id"`
	Position     int    `json:"position"`
	Title        string `json:"title"`
	RequiresQuiz bool   `json:"requires_quiz"`
	VideoURL     string `json:"video_url,omitempty"`
}

type contentChangesResponse struct {
	Projects []ContentProject `json:"projects"`
}

// ContentSyncWorker mirrors project templates and their steps from the
// content authoring service. The catalog is read-only to the engine; step
// IDs are stable so completion records survive re-syncs.
type ContentSyncWorker struct {
	store        storage.Store
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client

	lastSync time.Time
}

func NewContentSyncWorker(store storage.Store, baseURL, endpointPath, serviceToken string) *ContentSyncWorker {
	return &ContentSyncWorker{
		store:        store,
		interval:     5 * time.Minute,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *ContentSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Content Sync Worker (content service → project catalog)…")
	go w.run(ctx)
}

func (w *ContentSyncWorker) run(ctx context.Context) {
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial content sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.lastSync); err != nil {
				log.Printf("❌ Content sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Content Sync Worker stopped")
			return
		}
	}
}

func (w *ContentSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid content service URL %q: %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpointURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", endpointURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create content sync request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("content sync request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("content service non-200 response: %d — %s", resp.StatusCode, string(body))
	}

	var response contentChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode content sync response: %w", err)
	}
	if len(response.Projects) == 0 {
		return nil
	}

	var upsertCount, errorCount int
	latest := since
	for _, remote := range response.Projects {
		tpl := models.ProjectTemplate{
			ExternalID:  remote.ID,
			Slug:        remote.Slug,
			Title:       remote.Title,
			Description: remote.Description,
		}
		if tpl.Slug == "" {
			tpl.Slug = slug.Make(remote.Title)
		}

		steps := make([]models.Step, 0, len(remote.Steps))
		for _, rs := range remote.Steps {
			steps = append(steps, models.Step{
				ExternalID:   rs.ID,
				Position:     rs.Position,
				Title:        rs.Title,
				RequiresQuiz: rs.RequiresQuiz,
				VideoURL:     rs.VideoURL,
			})
		}

		if err := w.store.UpsertProjectTemplate(ctx, &tpl, steps); err != nil {
			errorCount++
			log.Printf("[SYNC] ⚠️ Failed to upsert project %q (%d steps): %v",
				remote.Title, len(remote.Steps), err)
			continue
		}
		upsertCount++
		if remote.UpdatedAt.After(latest) {
			latest = remote.UpdatedAt
		}
	}
	w.lastSync = latest

	log.Printf("[SYNC] ✅ Synced %d project(s) (%d upserted, %d errors)",
		len(response.Projects), upsertCount, errorCount)
	return nil
}
