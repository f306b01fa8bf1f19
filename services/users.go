// services/users.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"meetup-engagement-system/models"
	"meetup-engagement-system/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SearchPageSize     = 20
	maxDisplayNameLen  = 80
	maxBioLen          = 500
	defaultDisplayName = "Member"
)

type ProfileService struct {
	Store *Store
	Log   *zap.Logger
}

func NewProfileService(store *Store) *ProfileService {
	return &ProfileService{Store: store, Log: store.Log.Named("profiles")}
}

// EnsureProfile creates the profile row on a user's first authenticated request (idempotent).
func (s *ProfileService) EnsureProfile(ctx context.Context, userID, email string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	name := defaultDisplayName
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		name = local
	}
	prof := models.UserProfile{
		ID:           userID,
		Email:        email,
		DisplayName:  utils.CleanDisplayName(name),
		SearchName:   utils.SearchKey(name),
		FitnessLevel: models.FitnessBeginner,
		Visibility:   models.VisibilityMembersOnly,
	}
	return s.Store.Read(ctx, "ensure_profile", func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&prof).Error
	})
}

// GetProfile returns targetID's profile as seen by viewerID. Private profiles are only
// visible to their owner and friends; everyone else gets ErrNotFound.
func (s *ProfileService) GetProfile(ctx context.Context, viewerID, targetID string) (*models.UserProfile, error) {
	var prof models.UserProfile
	var friends bool
	err := s.Store.Read(ctx, "get_profile", func(db *gorm.DB) error {
		if err := db.Where("id = ?", targetID).First(&prof).Error; err != nil {
			return err
		}
		if prof.Visibility != models.VisibilityPrivate || viewerID == targetID {
			return nil
		}
		var err error
		friends, err = areFriends(db, viewerID, targetID)
		return err
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, targetID)
	}
	if err != nil {
		return nil, err
	}
	if prof.Visibility == models.VisibilityPrivate && viewerID != targetID && !friends {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, targetID)
	}
	if viewerID != targetID {
		prof.Email = ""
	}
	return &prof, nil
}

// ProfileUpdate carries the user-editable fields; nil means unchanged.
type ProfileUpdate struct {
	DisplayName  *string              `json:"display_name"`
	Bio          *string              `json:"bio"`
	FitnessLevel *models.FitnessLevel `json:"fitness_level"`
	Visibility   *models.Visibility   `json:"visibility"`
	PhotoURL     *string              `json:"photo_url"`
}

func (u ProfileUpdate) columns() (map[string]any, error) {
	updates := map[string]any{}
	if u.DisplayName != nil {
		name := utils.CleanDisplayName(*u.DisplayName)
		if n := utf8.RuneCountInString(name); n == 0 || n > maxDisplayNameLen {
			return nil, fmt.Errorf("%w: display_name must be 1-%d characters", ErrInvalidInput, maxDisplayNameLen)
		}
		updates["display_name"] = name
		updates["search_name"] = utils.SearchKey(name)
	}
	if u.Bio != nil {
		bio := strings.TrimSpace(*u.Bio)
		if utf8.RuneCountInString(bio) > maxBioLen {
			return nil, fmt.Errorf("%w: bio exceeds %d characters", ErrInvalidInput, maxBioLen)
		}
		updates["bio"] = bio
	}
	if u.FitnessLevel != nil {
		if !u.FitnessLevel.Valid() {
			return nil, fmt.Errorf("%w: unknown fitness_level %q", ErrInvalidInput, *u.FitnessLevel)
		}
		updates["fitness_level"] = *u.FitnessLevel
	}
	if u.Visibility != nil {
		if !u.Visibility.Valid() {
			return nil, fmt.Errorf("%w: unknown visibility %q", ErrInvalidInput, *u.Visibility)
		}
		updates["visibility"] = *u.Visibility
	}
	if u.PhotoURL != nil {
		ref := strings.TrimSpace(*u.PhotoURL)
		if ref == "" {
			updates["photo_url"] = nil
		} else {
			updates["photo_url"] = ref
		}
	}
	return updates, nil
}

// UpdateProfile applies the user's own edits. Counters are never touched here.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*models.UserProfile, error) {
	updates, err := upd.columns()
	if err != nil {
		return nil, err
	}

	var prof models.UserProfile
	err = s.Store.Tx(ctx, "update_profile", func(tx *gorm.DB) error {
		if len(updates) > 0 {
			res := tx.Model(&models.UserProfile{}).Where("id = ?", userID).Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return tx.Where("id = ?", userID).First(&prof).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	s.Log.Info("profile updated", zap.String("user_id", userID), zap.Int("fields", len(updates)))
	return &prof, nil
}

// SearchUsers matches query against display names, ignoring case and accents.
// The caller is excluded and the result is capped at SearchPageSize.
func (s *ProfileService) SearchUsers(ctx context.Context, query, excludingUserID string) ([]models.ProfileSummary, error) {
	key := utils.SearchKey(query)
	if key == "" {
		return []models.ProfileSummary{}, nil
	}
	pattern := "%" + utils.EscapeLike(key) + "%"

	var users []models.UserProfile
	err := s.Store.Read(ctx, "search_users", func(db *gorm.DB) error {
		return db.
			Where(`search_name LIKE ? ESCAPE '\'`, pattern).
			Where("id <> ?", excludingUserID).
			Order("search_name ASC").Order("id ASC").
			Limit(SearchPageSize).
			Find(&users).Error
	})
	if err != nil {
		return nil, err
	}

	res := make([]models.ProfileSummary, len(users))
	for i, u := range users {
		res[i] = u.Summary()
	}
	return res, nil
}

func loadSummaries(db *gorm.DB, ids []string) (map[string]models.ProfileSummary, error) {
	out := make(map[string]models.ProfileSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var profiles []models.UserProfile
	if err := db.Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.ID] = p.Summary()
	}
	return out, nil
}
