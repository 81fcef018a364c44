package availability

import (
	"testing"
	"time"

	"barberbook/internal/model"
)

func TestSlotStartsFullDay(t *testing.T) {
	// 09:00 to 17:00 with 30-minute bookings: last start is 16:30.
	starts := SlotStarts(9*60, 17*60, 30)
	if len(starts) != 16 {
		t.Fatalf("expected 16 starts, got %d", len(starts))
	}
	if starts[0] != 9*60 {
		t.Fatalf("first start = %d, want %d", starts[0], 9*60)
	}
	if starts[len(starts)-1] != 16*60+30 {
		t.Fatalf("last start = %d, want %d", starts[len(starts)-1], 16*60+30)
	}
}

func TestSlotStartsLongDuration(t *testing.T) {
	// A 90-minute booking cannot start later than 15:30.
	starts := SlotStarts(9*60, 17*60, 90)
	last := starts[len(starts)-1]
	if last != 15*60+30 {
		t.Fatalf("last start = %d, want %d", last, 15*60+30)
	}
}

func TestSlotStartsNoRoom(t *testing.T) {
	if starts := SlotStarts(9*60, 9*60+20, 30); len(starts) != 0 {
		t.Fatalf("expected no starts, got %v", starts)
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h*60+m) * time.Minute) }

	busy := []model.Interval{
		{AppointmentID: "a1", Start: at(10, 0), End: at(10, 45)},
	}

	cases := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"inside", at(10, 0), at(10, 30), true},
		{"straddles start", at(9, 30), at(10, 15), true},
		{"straddles end", at(10, 30), at(11, 0), true},
		{"back to back after", at(10, 45), at(11, 15), false},
		{"back to back before", at(9, 30), at(10, 0), false},
		{"disjoint", at(12, 0), at(12, 30), false},
	}
	for _, tc := range cases {
		if got := Overlaps(tc.start, tc.end, busy, ""); got != tc.want {
			t.Fatalf("%s: Overlaps = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestOverlapsExcludesSelf(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	busy := []model.Interval{
		{AppointmentID: "a1", Start: day.Add(10 * time.Hour), End: day.Add(10*time.Hour + 45*time.Minute)},
	}
	start := day.Add(10 * time.Hour)
	end := start.Add(30 * time.Minute)

	if !Overlaps(start, end, busy, "") {
		t.Fatal("expected overlap without exclusion")
	}
	if Overlaps(start, end, busy, "a1") {
		t.Fatal("expected no overlap when excluding the appointment itself")
	}
}
