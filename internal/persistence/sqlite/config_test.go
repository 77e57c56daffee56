package sqlite

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/campus-booking/internal/persistence"
)

func ptrTime(t time.Time) *time.Time {
	return &t
}

func TestConfigDataSourceName(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig("/var/lib/booking/booking.db")
	dsn := cfg.DataSourceName()

	for _, want := range []string{
		"file:/var/lib/booking/booking.db?",
		"_txlock=immediate",
		"_pragma=busy_timeout(5000)",
		"_pragma=foreign_keys(1)",
		"_pragma=journal_mode(WAL)",
	} {
		if !strings.Contains(dsn, want) {
			t.Errorf("expected %q in %q", want, dsn)
		}
	}

	withQuery := Config{Path: "file:test.db?cache=shared"}.DataSourceName()
	if !strings.HasPrefix(withQuery, "file:test.db?cache=shared&_txlock=immediate") {
		t.Fatalf("expected parameters appended to existing query, got %q", withQuery)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: DefaultConfig("booking.db")},
		{name: "empty path", cfg: Config{}, wantErr: true},
		{name: "bad journal mode", cfg: Config{Path: "x.db", JournalMode: "FAST"}, wantErr: true},
		{name: "negative timeout", cfg: Config{Path: "x.db", BusyTimeout: -time.Second}, wantErr: true},
	}
	for _, tc := range tests {
		if err := tc.cfg.Validate(); (err != nil) != tc.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestErrorMapperPassesThroughKnownErrors(t *testing.T) {
	t.Parallel()

	mapper := NewErrorMapper()
	if err := mapper.MapError(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	wrapped := errors.Join(errors.New("context"), persistence.ErrStaleWrite)
	if got := mapper.MapError(wrapped); got != wrapped {
		t.Fatalf("expected persistence error to pass through unchanged, got %v", got)
	}

	locked := errors.New("database is locked (5) (SQLITE_BUSY)")
	if got := mapper.MapError(locked); !errors.Is(got, persistence.ErrSerialization) {
		t.Fatalf("expected ErrSerialization, got %v", got)
	}

	other := errors.New("boom")
	if got := mapper.MapError(other); got != other {
		t.Fatalf("expected unrelated error unchanged, got %v", got)
	}
}
