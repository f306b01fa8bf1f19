package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"meetup-engagement-system/models"
)

type LeaderboardScope string

const (
	ScopeAllTime LeaderboardScope = "all_time"
	ScopeMonth   LeaderboardScope = "month"
)

const LeaderboardSize = 20

type LeaderboardEntry struct {
	Rank          int     `json:"rank"`
	UserID        string  `json:"user_id"`
	DisplayName   string  `json:"display_name"`
	PhotoURL      *string `json:"photo_url,omitempty"`
	Attended      int64   `json:"attended"`
	CurrentStreak int64   `json:"current_streak"`
}

type LeaderboardService struct {
	Store    *Store
	Location *time.Location
	Log      *zap.Logger
}

func NewLeaderboardService(store *Store, loc *time.Location) *LeaderboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &LeaderboardService{Store: store, Location: loc, Log: store.Log.Named("leaderboard")}
}

// ParseScope accepts the wire names; blank means all_time.
func ParseScope(raw string) (LeaderboardScope, error) {
	switch LeaderboardScope(raw) {
	case "", ScopeAllTime:
		return ScopeAllTime, nil
	case ScopeMonth:
		return ScopeMonth, nil
	}
	return "", fmt.Errorf("%w: unknown leaderboard scope %q", ErrInvalidInput, raw)
}

// Rank returns the top of the board for scope. Ties on attendance break on current streak,
// then on user id so the order is stable between calls.
func (s *LeaderboardService) Rank(ctx context.Context, scope LeaderboardScope, now time.Time) ([]LeaderboardEntry, error) {
	var rows []LeaderboardEntry
	var err error
	switch scope {
	case ScopeAllTime:
		err = s.Store.Read(ctx, "rank_all_time", func(db *gorm.DB) error {
			return db.Model(&models.UserProfile{}).
				Select("id AS user_id, display_name, photo_url, total_events_attended AS attended, current_streak").
				Order("total_events_attended DESC").
				Order("current_streak DESC").
				Order("id ASC").
				Limit(LeaderboardSize).
				Scan(&rows).Error
		})
	case ScopeMonth:
		today := models.CivilDate(now, s.Location)
		monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		err = s.Store.Read(ctx, "rank_month", func(db *gorm.DB) error {
			return db.Table("registrations").
				Select("user_profiles.id AS user_id, user_profiles.display_name, user_profiles.photo_url, "+
					"COUNT(registrations.id) AS attended, user_profiles.current_streak").
				Joins("JOIN events ON events.id = registrations.event_id").
				Joins("JOIN user_profiles ON user_profiles.id = registrations.user_id").
				Where("registrations.status = ?", models.RegistrationConfirmed).
				Where("events.date >= ? AND events.date <= ?", monthStart, today).
				Group("user_profiles.id, user_profiles.display_name, user_profiles.photo_url, user_profiles.current_streak").
				Order("attended DESC").
				Order("user_profiles.current_streak DESC").
				Order("user_profiles.id ASC").
				Limit(LeaderboardSize).
				Scan(&rows).Error
		})
	default:
		return nil, fmt.Errorf("%w: unknown leaderboard scope %q", ErrInvalidInput, scope)
	}
	if err != nil {
		return nil, err
	}

	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}
