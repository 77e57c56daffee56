package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/campus-booking/internal/application"
	"github.com/example/campus-booking/internal/scheduler"
)

func sampleNotification(kind application.NotificationKind) application.Notification {
	start := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	booking := application.Booking{
		ID:             "bk-1",
		RoomID:         "lt1",
		RequesterID:    "alice",
		RequesterName:  "Alice Example",
		RequesterEmail: "alice@example.edu",
		Start:          start,
		End:            start.Add(time.Hour),
		Reason:         "Revision, week 3; bring notes",
		Status:         scheduler.StatusApproved,
	}
	return application.Notification{
		Kind:       kind,
		Booking:    booking,
		Room:       application.Room{ID: "lt1", Name: "Lecture Theatre 1", Location: "Main Building"},
		Recipient:  application.Recipient{UserID: "alice", Name: "Alice Example", Email: "alice@example.edu"},
		OccurredAt: start.Add(-time.Hour),
	}
}

type recordingNotifier struct {
	calls int
	err   error
}

func (r *recordingNotifier) Notify(ctx context.Context, notification application.Notification) error {
	r.calls++
	return r.err
}

func TestMultiAttemptsEveryNotifier(t *testing.T) {
	t.Parallel()

	failing := &recordingNotifier{err: errors.New("broker down")}
	healthy := &recordingNotifier{}
	err := Multi{failing, nil, healthy}.Notify(context.Background(), sampleNotification(application.NotificationRequested))

	if err == nil || !strings.Contains(err.Error(), "broker down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if failing.calls != 1 || healthy.calls != 1 {
		t.Fatalf("expected both notifiers called, got %d and %d", failing.calls, healthy.calls)
	}
}

func TestLogNotifier(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	notifier := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))
	if err := notifier.Notify(context.Background(), sampleNotification(application.NotificationApproved)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected JSON log record: %v", err)
	}
	if record["event"] != "approved" || record["booking_id"] != "bk-1" || record["recipient_email"] != "alice@example.edu" {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestICS(t *testing.T) {
	t.Parallel()

	n := sampleNotification(application.NotificationApproved)
	doc := ICS(n.Booking, n.Room, n.OccurredAt)

	for _, want := range []string{
		"BEGIN:VCALENDAR\r\n",
		"UID:bk-1@campus-booking\r\n",
		"DTSTART:20240314T090000Z\r\n",
		"DTEND:20240314T100000Z\r\n",
		"DTSTAMP:20240314T080000Z\r\n",
		"SUMMARY:Room booking: Lecture Theatre 1\r\n",
		"LOCATION:Main Building\r\n",
		`DESCRIPTION:Revision\, week 3\; bring notes` + "\r\n",
		"ATTENDEE;CN=Alice Example:mailto:alice@example.edu\r\n",
		"END:VCALENDAR\r\n",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("expected ICS to contain %q\n%s", want, doc)
		}
	}
}

func TestICSFoldsLongLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		reason string
	}{
		{name: "ascii", reason: strings.Repeat("x", 300)},
		{name: "multibyte", reason: strings.Repeat("会", 200)},
		{name: "mixed", reason: strings.Repeat("ab会議", 60)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n := sampleNotification(application.NotificationApproved)
			n.Booking.Reason = tt.reason
			doc := ICS(n.Booking, n.Room, n.OccurredAt)

			if !strings.HasSuffix(doc, "\r\n") {
				t.Fatalf("expected document to end with CRLF")
			}
			lines := strings.Split(strings.TrimSuffix(doc, "\r\n"), "\r\n")
			continuations := 0
			for _, l := range lines {
				if len(l) > 75 {
					t.Errorf("line of %d octets exceeds limit: %q", len(l), l)
				}
				if !utf8.ValidString(l) {
					t.Errorf("line splits a multi-byte character: %q", l)
				}
				if strings.HasPrefix(l, " ") {
					continuations++
				}
			}
			if continuations == 0 {
				t.Fatalf("expected folded continuation lines\n%s", doc)
			}

			unfolded := strings.ReplaceAll(doc, "\r\n ", "")
			if !strings.Contains(unfolded, "DESCRIPTION:"+tt.reason+"\r\n") {
				t.Errorf("expected unfolded description to round trip\n%s", unfolded)
			}
		})
	}
}

func TestICSSanitizesAttendeeAddress(t *testing.T) {
	t.Parallel()

	n := sampleNotification(application.NotificationApproved)
	n.Booking.RequesterEmail = "alice@example.edu\r\nATTENDEE:mailto:mallory@example.com"
	n.Booking.Reason = "line one\rline two"
	doc := ICS(n.Booking, n.Room, n.OccurredAt)
	unfolded := strings.ReplaceAll(doc, "\r\n ", "")

	attendees := 0
	for _, l := range strings.Split(unfolded, "\r\n") {
		if strings.HasPrefix(l, "ATTENDEE") {
			attendees++
		}
		if strings.ContainsAny(l, "\r\n") {
			t.Errorf("line carries a raw line break: %q", l)
		}
	}
	if attendees != 1 {
		t.Fatalf("expected exactly one ATTENDEE line, got %d\n%s", attendees, unfolded)
	}
	if !strings.Contains(unfolded, "mailto:alice@example.eduATTENDEE:mailto:mallory@example.com\r\n") {
		t.Errorf("expected control characters stripped from address\n%s", unfolded)
	}
	if !strings.Contains(unfolded, "DESCRIPTION:line oneline two\r\n") {
		t.Errorf("expected bare carriage return dropped from description\n%s", unfolded)
	}
}

type publishedMessage struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakePublisher struct {
	published []publishedMessage
	err       error
}

func (f *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishedMessage{exchange: exchange, key: key, msg: msg})
	return nil
}

func TestAMQPNotifierPublishesEvent(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	notifier := &AMQPNotifier{channel: pub, exchange: "test.bookings", logger: slog.Default()}

	n := sampleNotification(application.NotificationRejected)
	n.AutoRejected = true
	if err := notifier.Notify(context.Background(), n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.published))
	}

	got := pub.published[0]
	if got.exchange != "test.bookings" || got.key != "booking.rejected" {
		t.Fatalf("unexpected exchange/key %s %s", got.exchange, got.key)
	}
	if got.msg.ContentType != "application/json" || got.msg.DeliveryMode != amqp.Persistent || got.msg.MessageId == "" {
		t.Fatalf("unexpected publishing headers %+v", got.msg)
	}

	var event Event
	if err := json.Unmarshal(got.msg.Body, &event); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if event.Event != "rejected" || !event.AutoRejected || event.BookingID != "bk-1" || event.RoomName != "Lecture Theatre 1" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Calendar != "" {
		t.Fatal("rejections must not carry a calendar entry")
	}
}

func TestAMQPNotifierApprovedCarriesCalendar(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	notifier := &AMQPNotifier{channel: pub, exchange: DefaultExchange, logger: slog.Default()}
	if err := notifier.Notify(context.Background(), sampleNotification(application.NotificationApproved)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var event Event
	if err := json.Unmarshal(pub.published[0].msg.Body, &event); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if !strings.Contains(event.Calendar, "BEGIN:VEVENT") {
		t.Fatalf("expected calendar entry, got %q", event.Calendar)
	}
}

func TestAMQPNotifierPublishFailure(t *testing.T) {
	t.Parallel()

	cause := errors.New("channel closed")
	notifier := &AMQPNotifier{channel: &fakePublisher{err: cause}, exchange: DefaultExchange, logger: slog.Default()}
	if err := notifier.Notify(context.Background(), sampleNotification(application.NotificationRequested)); !errors.Is(err, cause) {
		t.Fatalf("expected publish error, got %v", err)
	}

	var disconnected *AMQPNotifier
	if err := disconnected.Notify(context.Background(), sampleNotification(application.NotificationRequested)); err == nil {
		t.Fatal("expected error from nil notifier")
	}
}
