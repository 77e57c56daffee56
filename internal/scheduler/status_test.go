package scheduler

import "testing"

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusPending, false},
		{StatusApproved, StatusRejected, false},
		{StatusApproved, StatusPending, false},
		{StatusRejected, StatusApproved, false},
		{StatusRejected, StatusPending, false},
		{Status("CONFIRMED"), StatusApproved, false},
	}

	for _, tc := range tests {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	t.Parallel()

	if StatusPending.IsTerminal() {
		t.Fatal("pending must not be terminal")
	}
	if !StatusApproved.IsTerminal() || !StatusRejected.IsTerminal() {
		t.Fatal("approved and rejected must be terminal")
	}
	if Status("bogus").IsTerminal() {
		t.Fatal("unknown status must not be reported terminal")
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	if s, err := ParseStatus("APPROVED"); err != nil || s != StatusApproved {
		t.Fatalf("ParseStatus(APPROVED) = %v, %v", s, err)
	}
	if _, err := ParseStatus("approved"); err == nil {
		t.Fatal("expected lowercase status to be rejected")
	}
}
