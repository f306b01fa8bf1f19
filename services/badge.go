package services

import (
	"context"
	"time"

	"meetup-engagement-system/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeService struct {
	Store    *Store
	Notifier Broker
	Log      *zap.Logger
}

func NewBadgeService(store *Store, notifier Broker) *BadgeService {
	return &BadgeService{Store: store, Notifier: notifier, Log: store.Log.Named("badges")}
}

// SeedBadges inserts the default catalogue; existing codes are left untouched.
func (s *BadgeService) SeedBadges(ctx context.Context) error {
	return s.Store.Tx(ctx, "seed_badges", func(tx *gorm.DB) error {
		for _, b := range models.DefaultBadges {
			b.ID = uuid.NewString()
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "code"}},
				DoNothing: true,
			}).Create(&b).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// EvaluateBadges awards every badge whose rule holds for stats and that userID does not
// hold yet, then notifies the earner. Re-running with unchanged stats awards nothing.
func (s *BadgeService) EvaluateBadges(ctx context.Context, userID string, stats models.AttendanceStats) ([]models.Badge, error) {
	var awarded []models.Badge
	err := s.Store.Tx(ctx, "evaluate_badges", func(tx *gorm.DB) error {
		awarded = awarded[:0]

		var catalogue []models.Badge
		if err := tx.Order("code ASC").Find(&catalogue).Error; err != nil {
			return err
		}
		var held []string
		if err := tx.Model(&models.UserBadge{}).Where("user_id = ?", userID).Pluck("badge_id", &held).Error; err != nil {
			return err
		}
		owned := make(map[string]struct{}, len(held))
		for _, id := range held {
			owned[id] = struct{}{}
		}

		now := time.Now().UTC()
		for _, b := range catalogue {
			if _, ok := owned[b.ID]; ok || !b.Satisfied(stats) {
				continue
			}
			ub := models.UserBadge{
				ID:       uuid.NewString(),
				UserID:   userID,
				BadgeID:  b.ID,
				EarnedAt: now,
			}
			// A concurrent evaluation may have inserted it first; only our insert notifies.
			res := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "badge_id"}},
				DoNothing: true,
			}).Create(&ub)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				awarded = append(awarded, b)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range awarded {
		b := awarded[i]
		s.Log.Info("🎖️ badge awarded", zap.String("user_id", userID), zap.String("badge", b.Code))
		s.Notifier.Publish(ctx, userID, models.NotificationEvent{
			Type:      models.NotificationBadgeEarned,
			Badge:     &b,
			CreatedAt: time.Now().UTC(),
		})
	}
	return awarded, nil
}

// ReconcileBadges re-evaluates every profile so awards that failed earlier converge.
// Returns the number of badges awarded.
func (s *BadgeService) ReconcileBadges(ctx context.Context) (int, error) {
	var profiles []models.UserProfile
	err := s.Store.Read(ctx, "list_profile_stats", func(db *gorm.DB) error {
		return db.Select("id", "total_events_attended", "current_streak", "longest_streak").
			Where("total_events_attended > 0").
			Order("id ASC").
			Find(&profiles).Error
	})
	if err != nil {
		return 0, err
	}

	total := 0
	for _, p := range profiles {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		awarded, err := s.EvaluateBadges(ctx, p.ID, p.AttendanceStats)
		if err != nil {
			s.Log.Warn("badge reconcile failed", zap.String("user_id", p.ID), zap.Error(err))
			continue
		}
		total += len(awarded)
	}
	return total, nil
}

// ListBadges returns the whole catalogue, marking what userID has earned.
func (s *BadgeService) ListBadges(ctx context.Context, userID string) ([]models.BadgeStatus, error) {
	var catalogue []models.Badge
	var earned []models.UserBadge
	err := s.Store.Read(ctx, "list_badges", func(db *gorm.DB) error {
		if err := db.Order("code ASC").Find(&catalogue).Error; err != nil {
			return err
		}
		return db.Where("user_id = ?", userID).Find(&earned).Error
	})
	if err != nil {
		return nil, err
	}

	earnedAt := make(map[string]time.Time, len(earned))
	for _, ub := range earned {
		earnedAt[ub.BadgeID] = ub.EarnedAt
	}
	out := make([]models.BadgeStatus, len(catalogue))
	for i, b := range catalogue {
		out[i] = models.BadgeStatus{Badge: b}
		if at, ok := earnedAt[b.ID]; ok {
			at := at
			out[i].Earned = true
			out[i].EarnedAt = &at
		}
	}
	return out, nil
}
