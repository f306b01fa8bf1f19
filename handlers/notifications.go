package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"meetup-engagement-system/middleware"
	"meetup-engagement-system/models"
)

// StreamNotifications streams the caller's live notifications as server-sent events until the
// client goes away. Nothing is replayed: events published while disconnected are lost.
func StreamNotifications(d Deps) fiber.Handler {
	keepalive := d.SSEKeepalive
	if keepalive <= 0 {
		keepalive = 25 * time.Second
	}
	return func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)

		// Subscribe before answering so nothing published after the 200 is missed.
		sub, err := d.Notifier.Subscribe(c.UserContext(), userID)
		if err != nil {
			d.Log.Warn("notification subscribe failed", zap.String("user_id", userID), zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "notifications unavailable",
			})
		}

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no") // nginx

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer sub.Close()
			ticker := time.NewTicker(keepalive)
			defer ticker.Stop()

			w.WriteString(":\n\n")
			if err := w.Flush(); err != nil {
				return
			}
			d.Log.Debug("📡 notification stream opened", zap.String("user_id", userID))

			for {
				select {
				case evt := <-sub.Events():
					if err := writeEvent(w, evt); err != nil {
						d.Log.Debug("notification stream closed", zap.String("user_id", userID), zap.Error(err))
						return
					}
				case <-ticker.C:
					w.WriteString(": keepalive\n\n")
					// A failed flush is how a dropped client shows up.
					if err := w.Flush(); err != nil {
						d.Log.Debug("notification stream closed", zap.String("user_id", userID))
						return
					}
				case <-sub.Done():
					return
				}
			}
		})
		return nil
	}
}

func writeEvent(w *bufio.Writer, evt models.NotificationEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload); err != nil {
		return err
	}
	return w.Flush()
}
