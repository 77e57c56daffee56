package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/campus-booking/internal/application"
)

// DefaultExchange is the topic exchange booking events are published to.
const DefaultExchange = "campus.bookings"

// Event is the JSON body published for each notification.
type Event struct {
	Event          string    `json:"event"`
	BookingID      string    `json:"bookingId"`
	RoomID         string    `json:"roomId"`
	RoomName       string    `json:"roomName,omitempty"`
	RoomLocation   string    `json:"roomLocation,omitempty"`
	RequesterID    string    `json:"requesterId"`
	RequesterName  string    `json:"requesterName,omitempty"`
	RequesterEmail string    `json:"requesterEmail,omitempty"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Reason         string    `json:"reason"`
	Status         string    `json:"status"`
	AutoRejected   bool      `json:"autoRejected"`
	OccurredAt     time.Time `json:"occurredAt"`
	// Calendar carries an iCalendar document for approved bookings.
	Calendar string `json:"calendar,omitempty"`
}

// NewEvent builds the published body for a notification.
func NewEvent(notification application.Notification) Event {
	b := notification.Booking
	event := Event{
		Event:          string(notification.Kind),
		BookingID:      b.ID,
		RoomID:         b.RoomID,
		RoomName:       notification.Room.Name,
		RoomLocation:   notification.Room.Location,
		RequesterID:    notification.Recipient.UserID,
		RequesterName:  notification.Recipient.Name,
		RequesterEmail: notification.Recipient.Email,
		Start:          b.Start.UTC(),
		End:            b.End.UTC(),
		Reason:         b.Reason,
		Status:         string(b.Status),
		AutoRejected:   notification.AutoRejected,
		OccurredAt:     notification.OccurredAt.UTC(),
	}
	if notification.Kind == application.NotificationApproved {
		event.Calendar = ICS(b, notification.Room, notification.OccurredAt)
	}
	return event
}

// RoutingKey returns the topic routing key for a notification kind.
func RoutingKey(kind application.NotificationKind) string {
	return "booking." + string(kind)
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes booking events to a RabbitMQ topic exchange.
// Downstream consumers turn them into email and calendar entries.
type AMQPNotifier struct {
	conn     *amqp.Connection
	channel  publisher
	exchange string
	logger   *slog.Logger
}

// DialAMQP connects to url, declares a durable topic exchange and returns a
// notifier publishing to it.
func DialAMQP(url, exchange string, logger *slog.Logger) (*AMQPNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("notify: dial amqp: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("notify: open amqp channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("notify: declare exchange %q: %w", exchange, err)
	}

	logger.Info("amqp notifier connected", "exchange", exchange)
	return &AMQPNotifier{conn: conn, channel: channel, exchange: exchange, logger: logger}, nil
}

// Notify implements application.Notifier.
func (n *AMQPNotifier) Notify(ctx context.Context, notification application.Notification) error {
	if n == nil || n.channel == nil {
		return errors.New("notify: amqp notifier is not connected")
	}

	body, err := json.Marshal(NewEvent(notification))
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}

	key := RoutingKey(notification.Kind)
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    notification.OccurredAt.UTC(),
		Type:         key,
		Body:         body,
	}
	if err := n.channel.PublishWithContext(ctx, n.exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("notify: publish %s: %w", key, err)
	}

	n.logger.DebugContext(ctx, "booking event published",
		"exchange", n.exchange,
		"routing_key", key,
		"booking_id", notification.Booking.ID,
	)
	return nil
}

// Close shuts down the channel and connection.
func (n *AMQPNotifier) Close() error {
	if n == nil {
		return nil
	}
	var errs []error
	if ch, ok := n.channel.(*amqp.Channel); ok && ch != nil {
		if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if n.conn != nil {
		if err := n.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
