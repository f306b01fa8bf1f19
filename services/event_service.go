package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"meetup-engagement-system/models"
	"meetup-engagement-system/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxEventList = 50

type EventService struct {
	Store           *Store
	DefaultCapacity int
	Log             *zap.Logger
}

func NewEventService(store *Store, defaultCapacity int) *EventService {
	if defaultCapacity <= 0 {
		defaultCapacity = 20
	}
	return &EventService{Store: store, DefaultCapacity: defaultCapacity, Log: store.Log.Named("events")}
}

// EventInput is the administrative payload for a new event.
type EventInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        string   `json:"date"` // YYYY-MM-DD
	Time        string   `json:"time"` // HH:MM
	Location    string   `json:"location"`
	Price       float64  `json:"price"`
	Capacity    int      `json:"capacity"`
	CoverImage  string   `json:"cover_image"`
	Images      []string `json:"images"`
}

// CreateEvent stores a new event. Events are otherwise managed outside the core.
func (s *EventService) CreateEvent(ctx context.Context, in EventInput) (*models.Event, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	date, err := time.Parse("2006-01-02", in.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	if in.Time != "" {
		if _, err := time.Parse("15:04", in.Time); err != nil {
			return nil, fmt.Errorf("%w: time must be HH:MM", ErrInvalidInput)
		}
	}
	if in.Capacity < 0 || in.Price < 0 {
		return nil, fmt.Errorf("%w: capacity and price cannot be negative", ErrInvalidInput)
	}
	capacity := in.Capacity
	if capacity == 0 {
		capacity = s.DefaultCapacity
	}

	e := models.Event{
		ID:          uuid.NewString(),
		Slug:        utils.EventSlug(title, date),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Date:        date.UTC(),
		Time:        in.Time,
		Location:    strings.TrimSpace(in.Location),
		Price:       in.Price,
		Capacity:    capacity,
		CoverImage:  in.CoverImage,
		Images:      in.Images,
	}
	if e.Images == nil {
		e.Images = []string{}
	}

	err = s.Store.Read(ctx, "create_event", func(db *gorm.DB) error {
		return db.Create(&e).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: an event with slug %q already exists", ErrInvalidInput, e.Slug)
		}
		return nil, err
	}
	e.AvailableSlots = int64(e.Capacity)
	s.Log.Info("event created", zap.String("event_id", e.ID), zap.String("slug", e.Slug))
	return &e, nil
}

// GetEvent looks an event up by id or slug and fills in its live confirmed count.
func (s *EventService) GetEvent(ctx context.Context, idOrSlug string) (*models.Event, error) {
	var e models.Event
	err := s.Store.Read(ctx, "get_event", func(db *gorm.DB) error {
		if err := db.Where("id = ? OR slug = ?", idOrSlug, idOrSlug).First(&e).Error; err != nil {
			return err
		}
		return db.Model(&models.Registration{}).
			Where("event_id = ? AND status = ?", e.ID, models.RegistrationConfirmed).
			Count(&e.ConfirmedCount).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, idOrSlug)
	}
	if err != nil {
		return nil, err
	}
	e.AvailableSlots = max(int64(e.Capacity)-e.ConfirmedCount, 0)
	return &e, nil
}

// ListUpcoming returns events on or after from, soonest first.
func (s *EventService) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]models.Event, error) {
	if limit <= 0 || limit > maxEventList {
		limit = maxEventList
	}
	var events []models.Event
	err := s.Store.Read(ctx, "list_events", func(db *gorm.DB) error {
		if err := db.Where("date >= ?", from).
			Order("date ASC").Order("time ASC").
			Limit(limit).
			Find(&events).Error; err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		ids := make([]string, len(events))
		for i, e := range events {
			ids[i] = e.ID
		}
		type countRow struct {
			EventID string
			N       int64
		}
		var counts []countRow
		if err := db.Model(&models.Registration{}).
			Select("event_id, COUNT(*) AS n").
			Where("event_id IN ? AND status = ?", ids, models.RegistrationConfirmed).
			Group("event_id").
			Scan(&counts).Error; err != nil {
			return err
		}
		byEvent := make(map[string]int64, len(counts))
		for _, c := range counts {
			byEvent[c.EventID] = c.N
		}
		for i := range events {
			events[i].ConfirmedCount = byEvent[events[i].ID]
			events[i].AvailableSlots = max(int64(events[i].Capacity)-events[i].ConfirmedCount, 0)
		}
		return nil
	})
	return events, err
}
