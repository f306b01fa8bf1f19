// workers/identity_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"meetup-engagement-system/models"
	"meetup-engagement-system/utils"
)

// RemoteProfile matches one entry of the identity gateway's profile feed.
type RemoteProfile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	PhotoURL    *string   `json:"photo_url,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileChangesResponse is the top-level structure of the feed response.
type ProfileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// IdentitySyncWorker mirrors identity-gateway accounts into the Profile Store so members can
// be found before their first login. Existing profiles only get their email refreshed; the
// rest of the profile belongs to the member.
type IdentitySyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g., "http://identity:8500"
	endpointPath string // e.g., "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client
	log          *zap.Logger

	mu     sync.Mutex
	cursor time.Time
}

func NewIdentitySyncWorker(db *gorm.DB, baseURL, endpointPath, serviceToken string, interval time.Duration, log *zap.Logger) *IdentitySyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &IdentitySyncWorker{
		db:           db,
		interval:     interval,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
		log:          log.Named("identity_sync"),
	}
}

func (w *IdentitySyncWorker) Start(ctx context.Context) {
	w.log.Info("🔁 starting identity sync worker", zap.String("base_url", w.baseURL), zap.Duration("interval", w.interval))
	go w.run(ctx)
}

func (w *IdentitySyncWorker) run(ctx context.Context) {
	// Initial sync backfills everything.
	if _, err := w.SyncOnce(ctx); err != nil {
		w.log.Warn("⚠️ initial sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				w.log.Error("❌ sync batch failed", zap.Error(err))
			}
		case <-ctx.Done():
			w.log.Info("⏹️ identity sync worker stopped")
			return
		}
	}
}

// Cursor is the newest remote updated_at applied so far.
func (w *IdentitySyncWorker) Cursor() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cursor
}

// SyncOnce pulls changes newer than the cursor and applies them. Returns how many rows were
// written.
func (w *IdentitySyncWorker) SyncOnce(ctx context.Context) (int, error) {
	since := w.Cursor()
	users, err := w.fetch(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(users) == 0 {
		w.log.Debug("no profile changes", zap.Time("since", since))
		return 0, nil
	}

	var applied, failed int
	latest := since
	for _, ru := range users {
		if strings.TrimSpace(ru.ID) == "" {
			failed++
			continue
		}
		if err := w.apply(ctx, ru); err != nil {
			failed++
			w.log.Warn("⚠️ profile upsert failed", zap.String("user_id", ru.ID), zap.Error(err))
			continue
		}
		applied++
		if ru.UpdatedAt.After(latest) {
			latest = ru.UpdatedAt
		}
	}

	// Failed rows keep the cursor where it was so they are fetched again next round.
	if failed == 0 {
		w.mu.Lock()
		w.cursor = latest
		w.mu.Unlock()
	}
	w.log.Info("✅ profiles synced",
		zap.Int("received", len(users)), zap.Int("applied", applied), zap.Int("failed", failed),
		zap.Time("cursor", w.Cursor()))
	return applied, nil
}

func (w *IdentitySyncWorker) fetch(ctx context.Context, since time.Time) ([]RemoteProfile, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid identity sync URL %q: %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity sync request failed: %w", err)
	}
	defer func() {
		// Always drain & close to prevent connection leaks
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("identity sync returned %d: %s", resp.StatusCode, string(body))
	}

	var out ProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode identity sync response: %w", err)
	}
	return out.Users, nil
}

func (w *IdentitySyncWorker) apply(ctx context.Context, ru RemoteProfile) error {
	name := strings.TrimSpace(ru.DisplayName)
	if name == "" {
		name = "Member"
		if local, _, ok := strings.Cut(ru.Email, "@"); ok && local != "" {
			name = local
		}
	}
	name = utils.TruncateRunes(utils.CleanDisplayName(name), 80)
	prof := models.UserProfile{
		ID:           ru.ID,
		Email:        ru.Email,
		DisplayName:  name,
		SearchName:   utils.SearchKey(name),
		PhotoURL:     ru.PhotoURL,
		FitnessLevel: models.FitnessBeginner,
		Visibility:   models.VisibilityMembersOnly,
	}
	return w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email"}),
	}).Create(&prof).Error
}
