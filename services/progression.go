package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meetup-engagement-system/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultCadenceDays is the weekly rhythm of the community: attending again within this many
// days of the previous attended event keeps the streak alive.
const DefaultCadenceDays = 7

// errAlreadyCredited short-circuits a transaction whose attendance was counted before.
var errAlreadyCredited = errors.New("attendance already credited")

type GamificationService struct {
	Store       *Store
	Badges      *BadgeService
	CadenceDays int
	Log         *zap.Logger
}

func NewGamificationService(store *Store, badges *BadgeService, cadenceDays int) *GamificationService {
	if cadenceDays <= 0 {
		cadenceDays = DefaultCadenceDays
	}
	return &GamificationService{Store: store, Badges: badges, CadenceDays: cadenceDays, Log: store.Log.Named("gamification")}
}

// nextStreak applies the cadence rule. prior is the most recent previously credited attendance.
func nextStreak(current int64, prior *time.Time, eventDate time.Time, cadenceDays int) int64 {
	if prior == nil {
		return 1
	}
	gap := eventDate.Sub(*prior)
	switch {
	case gap < 0:
		// Late credit of an older event: history changes, the current run does not.
		return max(current, 1)
	case gap <= time.Duration(cadenceDays)*24*time.Hour:
		return current + 1
	default:
		return 1
	}
}

// OnAttendanceConfirmed counts one attendance of userID at eventID. Counters are written with
// a version check; a lost race retries the whole transaction with fresh reads. Badges are
// evaluated afterwards against the committed stats, and their failures are only logged.
// Crediting the same registration twice is a no-op that returns the current stats.
func (s *GamificationService) OnAttendanceConfirmed(ctx context.Context, userID, eventID string, eventDate time.Time) (*models.AttendanceStats, error) {
	var stats models.AttendanceStats
	var credited bool

	err := s.Store.Tx(ctx, "credit_attendance", func(tx *gorm.DB) error {
		credited = false

		var reg models.Registration
		if err := tx.Where("user_id = ? AND event_id = ?", userID, eventID).First(&reg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: registration of %s for %s", ErrNotFound, userID, eventID)
			}
			return err
		}
		if reg.Status != models.RegistrationConfirmed {
			return fmt.Errorf("%w: registration is %s", ErrInvalidState, reg.Status)
		}

		var prof models.UserProfile
		if err := tx.Where("id = ?", userID).First(&prof).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %s", ErrNotFound, userID)
			}
			return err
		}
		stats = prof.AttendanceStats

		now := time.Now().UTC()
		res := tx.Model(&models.Registration{}).
			Where("id = ? AND credited_at IS NULL", reg.ID).
			Update("credited_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errAlreadyCredited
		}

		var prior struct {
			Date time.Time
		}
		var prev *time.Time
		q := tx.Table("registrations").
			Select("events.date AS date").
			Joins("JOIN events ON events.id = registrations.event_id").
			Where("registrations.user_id = ? AND registrations.id <> ?", userID, reg.ID).
			Where("registrations.credited_at IS NOT NULL AND registrations.status = ?", models.RegistrationConfirmed).
			Order("events.date DESC").
			Limit(1).
			Scan(&prior)
		if q.Error != nil {
			return q.Error
		}
		if q.RowsAffected > 0 {
			prev = &prior.Date
		}

		stats.TotalEventsAttended++
		stats.CurrentStreak = nextStreak(prof.CurrentStreak, prev, eventDate, s.CadenceDays)
		stats.LongestStreak = max(stats.LongestStreak, stats.CurrentStreak)

		res = tx.Model(&models.UserProfile{}).
			Where("id = ? AND version = ?", prof.ID, prof.Version).
			Updates(map[string]any{
				"total_events_attended": stats.TotalEventsAttended,
				"current_streak":        stats.CurrentStreak,
				"longest_streak":        stats.LongestStreak,
				"version":               prof.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errVersionConflict
		}
		credited = true
		return nil
	})
	if errors.Is(err, errAlreadyCredited) {
		return &stats, nil
	}
	if err != nil {
		return nil, err
	}

	if credited {
		s.Log.Info("attendance credited",
			zap.String("user_id", userID), zap.String("event_id", eventID),
			zap.Int64("total", stats.TotalEventsAttended), zap.Int64("streak", stats.CurrentStreak))
	}

	if s.Badges != nil {
		if _, err := s.Badges.EvaluateBadges(ctx, userID, stats); err != nil {
			s.Log.Error("badge evaluation failed; will converge on next evaluation",
				zap.String("user_id", userID), zap.Error(err))
		}
	}
	return &stats, nil
}

// CreditDueAttendance credits every confirmed, uncredited registration whose event day has
// arrived, oldest event first so streaks build in order. Returns how many were credited.
func (s *GamificationService) CreditDueAttendance(ctx context.Context, today time.Time) (int, error) {
	type due struct {
		UserID  string
		EventID string
		Date    time.Time
	}
	var rows []due
	err := s.Store.Read(ctx, "list_due_attendance", func(db *gorm.DB) error {
		return db.Table("registrations").
			Select("registrations.user_id AS user_id, registrations.event_id AS event_id, events.date AS date").
			Joins("JOIN events ON events.id = registrations.event_id").
			Where("registrations.status = ? AND registrations.credited_at IS NULL", models.RegistrationConfirmed).
			Where("events.date <= ?", today).
			Order("events.date ASC").Order("registrations.created_at ASC").
			Scan(&rows).Error
	})
	if err != nil {
		return 0, err
	}

	credited := 0
	for _, r := range rows {
		if ctx.Err() != nil {
			return credited, ctx.Err()
		}
		if _, err := s.OnAttendanceConfirmed(ctx, r.UserID, r.EventID, r.Date); err != nil {
			s.Log.Warn("credit attendance failed",
				zap.String("user_id", r.UserID), zap.String("event_id", r.EventID), zap.Error(err))
			continue
		}
		credited++
	}
	return credited, nil
}

// GetStats returns the committed counters of userID.
func (s *GamificationService) GetStats(ctx context.Context, userID string) (*models.AttendanceStats, error) {
	var prof models.UserProfile
	err := s.Store.Read(ctx, "get_stats", func(db *gorm.DB) error {
		return db.Select("id", "total_events_attended", "current_streak", "longest_streak").
			Where("id = ?", userID).First(&prof).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	return &prof.AttendanceStats, nil
}
