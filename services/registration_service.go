package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meetup-engagement-system/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RegistrationService struct {
	Store           *Store
	Gamification    *GamificationService
	DefaultCapacity int
	Location        *time.Location
	Now             func() time.Time
	Log             *zap.Logger
}

func NewRegistrationService(store *Store, gamification *GamificationService, defaultCapacity int, loc *time.Location) *RegistrationService {
	if defaultCapacity <= 0 {
		defaultCapacity = 20
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RegistrationService{
		Store:           store,
		Gamification:    gamification,
		DefaultCapacity: defaultCapacity,
		Location:        loc,
		Now:             time.Now,
		Log:             store.Log.Named("registrations"),
	}
}

func (s *RegistrationService) capacityOf(e models.Event) int {
	if e.Capacity > 0 {
		return e.Capacity
	}
	return s.DefaultCapacity
}

// Register signs userID up for eventID. The event row is locked for the capacity check and
// insert, and the unique (user_id, event_id) index settles concurrent duplicates.
// Attendance for a past or same-day event is credited immediately; future events are
// credited by the scheduler once the day arrives.
func (s *RegistrationService) Register(ctx context.Context, userID, eventID string, lunchOption bool) (*models.Registration, error) {
	var reg models.Registration
	var event models.Event

	err := s.Store.Tx(ctx, "register", func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", eventID).
			First(&event).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: event %s", ErrNotFound, eventID)
			}
			return err
		}

		var existing models.Registration
		found := true
		if err := tx.Where("user_id = ? AND event_id = ?", userID, eventID).First(&existing).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			found = false
		}
		if found && existing.Status == models.RegistrationConfirmed {
			return ErrDuplicateRegistration
		}

		var confirmed int64
		if err := tx.Model(&models.Registration{}).
			Where("event_id = ? AND status = ?", eventID, models.RegistrationConfirmed).
			Count(&confirmed).Error; err != nil {
			return err
		}
		if confirmed >= int64(s.capacityOf(event)) {
			return ErrCapacityExceeded
		}

		if found {
			// Re-confirm the cancelled row in place; the unique pair stays intact.
			res := tx.Model(&models.Registration{}).
				Where("id = ? AND status = ?", existing.ID, models.RegistrationCancelled).
				Updates(map[string]any{
					"status":       models.RegistrationConfirmed,
					"lunch_option": lunchOption,
					"cancelled_at": nil,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrDuplicateRegistration
			}
			return tx.Where("id = ?", existing.ID).First(&reg).Error
		}

		reg = models.Registration{
			ID:          uuid.NewString(),
			UserID:      userID,
			EventID:     eventID,
			LunchOption: lunchOption,
			Status:      models.RegistrationConfirmed,
		}
		if err := tx.Omit(clause.Associations).Create(&reg).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateRegistration
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("registration confirmed",
		zap.String("registration_id", reg.ID), zap.String("user_id", userID), zap.String("event_id", eventID))

	today := models.CivilDate(s.Now(), s.Location)
	if s.Gamification != nil && !event.Date.After(today) {
		if _, err := s.Gamification.OnAttendanceConfirmed(ctx, userID, eventID, event.Date); err != nil {
			// Left uncredited; the attendance credit job picks it up.
			s.Log.Error("attendance credit failed",
				zap.String("registration_id", reg.ID), zap.Error(err))
		}
	}
	reg.Event = &event
	return &reg, nil
}

// Cancel marks the registration cancelled. Stats and badges already credited stay in place.
func (s *RegistrationService) Cancel(ctx context.Context, registrationID, actingUserID string) (*models.Registration, error) {
	var reg models.Registration
	err := s.Store.Tx(ctx, "cancel_registration", func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", registrationID).
			First(&reg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: registration %s", ErrNotFound, registrationID)
			}
			return err
		}
		if reg.UserID != actingUserID {
			return fmt.Errorf("%w: registration belongs to another user", ErrAuthorization)
		}
		if reg.Status != models.RegistrationConfirmed {
			return fmt.Errorf("%w: registration is %s", ErrInvalidState, reg.Status)
		}
		now := time.Now().UTC()
		if err := tx.Model(&models.Registration{}).
			Where("id = ?", reg.ID).
			Updates(map[string]any{"status": models.RegistrationCancelled, "cancelled_at": now}).Error; err != nil {
			return err
		}
		reg.Status = models.RegistrationCancelled
		reg.CancelledAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("registration cancelled", zap.String("registration_id", reg.ID), zap.String("user_id", actingUserID))
	return &reg, nil
}

// ListAttendees returns confirmed attendees annotated for viewingUserID. Private profiles
// are only listed for themselves and their friends.
func (s *RegistrationService) ListAttendees(ctx context.Context, eventID, viewingUserID string) ([]models.Attendee, error) {
	var out []models.Attendee
	err := s.Store.Read(ctx, "list_attendees", func(db *gorm.DB) error {
		var count int64
		if err := db.Model(&models.Event{}).Where("id = ?", eventID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: event %s", ErrNotFound, eventID)
		}

		var regs []models.Registration
		if err := db.Where("event_id = ? AND status = ?", eventID, models.RegistrationConfirmed).
			Order("created_at ASC").Order("id ASC").
			Find(&regs).Error; err != nil {
			return err
		}
		userIDs := make([]string, len(regs))
		for i, r := range regs {
			userIDs[i] = r.UserID
		}

		var profiles []models.UserProfile
		if len(userIDs) > 0 {
			if err := db.Where("id IN ?", userIDs).Find(&profiles).Error; err != nil {
				return err
			}
		}
		byID := make(map[string]models.UserProfile, len(profiles))
		for _, p := range profiles {
			byID[p.ID] = p
		}

		friendSet, err := friendIDs(db, viewingUserID, userIDs)
		if err != nil {
			return err
		}

		out = make([]models.Attendee, 0, len(regs))
		for _, r := range regs {
			p, ok := byID[r.UserID]
			if !ok {
				continue
			}
			self := r.UserID == viewingUserID
			_, friend := friendSet[r.UserID]
			if p.Visibility == models.VisibilityPrivate && !self && !friend {
				continue
			}
			out = append(out, models.Attendee{
				ProfileSummary: p.Summary(),
				LunchOption:    r.LunchOption,
				IsFriend:       friend,
				IsSelf:         self,
			})
		}
		return nil
	})
	return out, err
}

// ListUserRegistrations returns the member's registrations with their events, newest first.
func (s *RegistrationService) ListUserRegistrations(ctx context.Context, userID string) ([]models.Registration, error) {
	var regs []models.Registration
	err := s.Store.Read(ctx, "list_user_registrations", func(db *gorm.DB) error {
		return db.Preload("Event").
			Where("user_id = ?", userID).
			Order("created_at DESC").Order("id ASC").
			Find(&regs).Error
	})
	return regs, err
}

// friendIDs returns the subset of candidates that are accepted friends of userID.
func friendIDs(db *gorm.DB, userID string, candidates []string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	if userID == "" || len(candidates) == 0 {
		return set, nil
	}
	var rows []models.Friendship
	if err := db.Where("(requester_id = ? OR recipient_id = ?) AND status = ?", userID, userID, models.FriendshipAccepted).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		wanted[c] = struct{}{}
	}
	for _, f := range rows {
		other := f.Other(userID)
		if _, ok := wanted[other]; ok {
			set[other] = struct{}{}
		}
	}
	return set, nil
}
