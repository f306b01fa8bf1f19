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

type FriendshipService struct {
	Store    *Store
	Notifier Broker
	Log      *zap.Logger
}

func NewFriendshipService(store *Store, notifier Broker) *FriendshipService {
	return &FriendshipService{Store: store, Notifier: notifier, Log: store.Log.Named("friendships")}
}

// SendRequest creates a pending friendship from requester to recipient and notifies the recipient.
func (s *FriendshipService) SendRequest(ctx context.Context, requesterID, recipientID string) (string, error) {
	if requesterID == recipientID {
		return "", ErrSelfReference
	}

	var requester models.UserProfile
	low, high := models.OrderedPair(requesterID, recipientID)
	f := models.Friendship{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		RecipientID: recipientID,
		UserLow:     low,
		UserHigh:    high,
		Status:      models.FriendshipPending,
	}

	err := s.Store.Tx(ctx, "send_friend_request", func(tx *gorm.DB) error {
		var recipientCount int64
		if err := tx.Model(&models.UserProfile{}).Where("id = ?", recipientID).Count(&recipientCount).Error; err != nil {
			return err
		}
		if recipientCount == 0 {
			return fmt.Errorf("%w: user %s", ErrNotFound, recipientID)
		}
		if err := tx.Where("id = ?", requesterID).First(&requester).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %s", ErrNotFound, requesterID)
			}
			return err
		}

		var existing int64
		if err := tx.Model(&models.Friendship{}).Where("user_low = ? AND user_high = ?", low, high).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicateRelationship
		}
		// The unique (user_low, user_high) index settles concurrent senders that both passed the check.
		if err := tx.Create(&f).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateRelationship
			}
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.Log.Info("friend request sent",
		zap.String("friendship_id", f.ID), zap.String("from", requesterID), zap.String("to", recipientID))

	from := requester.Summary()
	s.Notifier.Publish(ctx, recipientID, models.NotificationEvent{
		Type:         models.NotificationFriendRequestReceived,
		From:         &from,
		FriendshipID: f.ID,
		CreatedAt:    time.Now().UTC(),
	})
	return f.ID, nil
}

// AcceptRequest moves a pending request to accepted. Only the recipient may accept,
// and accepting twice is an ErrInvalidState.
func (s *FriendshipService) AcceptRequest(ctx context.Context, friendshipID, actingUserID string) (*models.Friendship, error) {
	var f models.Friendship
	err := s.Store.Tx(ctx, "accept_friend_request", func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", friendshipID).
			First(&f).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: friendship %s", ErrNotFound, friendshipID)
			}
			return err
		}
		if f.RecipientID != actingUserID {
			return fmt.Errorf("%w: only the recipient can accept a friend request", ErrAuthorization)
		}
		if f.Status != models.FriendshipPending {
			return fmt.Errorf("%w: friendship is %s", ErrInvalidState, f.Status)
		}

		now := time.Now().UTC()
		res := tx.Model(&models.Friendship{}).
			Where("id = ? AND status = ?", f.ID, models.FriendshipPending).
			Updates(map[string]any{"status": models.FriendshipAccepted, "accepted_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: friendship is no longer pending", ErrInvalidState)
		}
		f.Status = models.FriendshipAccepted
		f.AcceptedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("friend request accepted", zap.String("friendship_id", f.ID))
	return &f, nil
}

// RemoveFriendship deletes the row whatever its status: declining or cancelling a pending
// request, or unfriending. Either party may do it.
func (s *FriendshipService) RemoveFriendship(ctx context.Context, friendshipID, actingUserID string) error {
	err := s.Store.Tx(ctx, "remove_friendship", func(tx *gorm.DB) error {
		var f models.Friendship
		if err := tx.Where("id = ?", friendshipID).First(&f).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: friendship %s", ErrNotFound, friendshipID)
			}
			return err
		}
		if actingUserID != f.RequesterID && actingUserID != f.RecipientID {
			return fmt.Errorf("%w: not a party to this friendship", ErrAuthorization)
		}
		return tx.Delete(&models.Friendship{}, "id = ?", f.ID).Error
	})
	if err != nil {
		return err
	}
	s.Log.Info("friendship removed", zap.String("friendship_id", friendshipID), zap.String("by", actingUserID))
	return nil
}

// ListFriends returns the accepted friends of userID ordered by display name.
func (s *FriendshipService) ListFriends(ctx context.Context, userID string) ([]models.ProfileSummary, error) {
	var friends []models.ProfileSummary
	err := s.Store.Read(ctx, "list_friends", func(db *gorm.DB) error {
		var rows []models.Friendship
		if err := db.Where("(requester_id = ? OR recipient_id = ?) AND status = ?", userID, userID, models.FriendshipAccepted).
			Find(&rows).Error; err != nil {
			return err
		}
		ids := make([]string, len(rows))
		for i, f := range rows {
			ids[i] = f.Other(userID)
		}
		var profiles []models.UserProfile
		if len(ids) > 0 {
			if err := db.Where("id IN ?", ids).Order("search_name ASC").Order("id ASC").Find(&profiles).Error; err != nil {
				return err
			}
		}
		friends = make([]models.ProfileSummary, len(profiles))
		for i, p := range profiles {
			friends[i] = p.Summary()
		}
		return nil
	})
	return friends, err
}

// ListIncomingRequests returns pending requests addressed to userID, newest first.
func (s *FriendshipService) ListIncomingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	return s.listPending(ctx, "recipient_id", userID)
}

// ListOutgoingRequests returns pending requests sent by userID, newest first.
func (s *FriendshipService) ListOutgoingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	return s.listPending(ctx, "requester_id", userID)
}

func (s *FriendshipService) listPending(ctx context.Context, column, userID string) ([]models.FriendRequest, error) {
	var out []models.FriendRequest
	err := s.Store.Read(ctx, "list_pending_requests", func(db *gorm.DB) error {
		var rows []models.Friendship
		if err := db.Where(column+" = ? AND status = ?", userID, models.FriendshipPending).
			Order("created_at DESC").Order("id ASC").
			Find(&rows).Error; err != nil {
			return err
		}
		ids := make([]string, len(rows))
		for i, f := range rows {
			ids[i] = f.Other(userID)
		}
		summaries, err := loadSummaries(db, ids)
		if err != nil {
			return err
		}
		out = make([]models.FriendRequest, 0, len(rows))
		for _, f := range rows {
			out = append(out, models.FriendRequest{
				ID:        f.ID,
				CreatedAt: f.CreatedAt,
				User:      summaries[f.Other(userID)],
			})
		}
		return nil
	})
	return out, err
}

// AreFriends reports whether a and b have an accepted friendship.
func (s *FriendshipService) AreFriends(ctx context.Context, a, b string) (bool, error) {
	var ok bool
	err := s.Store.Read(ctx, "are_friends", func(db *gorm.DB) error {
		var err error
		ok, err = areFriends(db, a, b)
		return err
	})
	return ok, err
}

func areFriends(db *gorm.DB, a, b string) (bool, error) {
	if a == "" || b == "" || a == b {
		return false, nil
	}
	low, high := models.OrderedPair(a, b)
	var count int64
	err := db.Model(&models.Friendship{}).
		Where("user_low = ? AND user_high = ? AND status = ?", low, high, models.FriendshipAccepted).
		Count(&count).Error
	return count > 0, err
}
