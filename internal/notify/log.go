package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/campus-booking/internal/application"
)

// LogNotifier records each notification as a structured log entry.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier writing to logger, or slog.Default when nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements application.Notifier.
func (n *LogNotifier) Notify(ctx context.Context, notification application.Notification) error {
	b := notification.Booking
	n.logger.InfoContext(ctx, "booking notification",
		"notifier", "log",
		"event", string(notification.Kind),
		"booking_id", b.ID,
		"room_id", b.RoomID,
		"room_name", notification.Room.Name,
		"recipient_id", notification.Recipient.UserID,
		"recipient_email", notification.Recipient.Email,
		"start", b.Start.UTC().Format(time.RFC3339),
		"end", b.End.UTC().Format(time.RFC3339),
		"status", string(b.Status),
		"auto_rejected", notification.AutoRejected,
	)
	return nil
}
