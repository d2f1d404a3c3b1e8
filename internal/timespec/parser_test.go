package timespec

import (
	"testing"
	"time"
)

func TestParse_Duration(t *testing.T) {
	ms, err := Parse("1h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantAround := time.Now().Add(-time.Hour).UnixMilli()
	if diff := ms - wantAround; diff < -1000 || diff > 1000 {
		t.Errorf("expected ~%d, got %d", wantAround, ms)
	}
}

func TestParse_RFC3339(t *testing.T) {
	ms, err := Parse("2025-10-29T13:00:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, _ := time.Parse(time.RFC3339, "2025-10-29T13:00:00Z")
	if ms != want.UnixMilli() {
		t.Errorf("expected %d, got %d", want.UnixMilli(), ms)
	}
}

func TestParse_RejectsInvalid(t *testing.T) {
	if _, err := Parse("not-a-time"); err == nil {
		t.Fatal("expected error for invalid spec")
	}
}

func TestParseRange_RejectsSinceAfterUntil(t *testing.T) {
	_, _, err := ParseRange("2025-10-29T13:00:00Z", "2025-10-29T12:00:00Z")
	if err == nil {
		t.Fatal("expected error when since is after until")
	}
}

func TestParseRange_AllowsEmptyBounds(t *testing.T) {
	since, until, err := ParseRange("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if since != 0 || until != 0 {
		t.Errorf("expected zero bounds, got since=%d until=%d", since, until)
	}
}
