package calendar

import (
	"testing"
	"time"
)

// at builds a UTC instant whose business-local (UTC-6) clock time is the
// given hour and minute on the given weekday.
func at(weekday time.Weekday, hour, minute int) time.Time {
	// 2024-01-01 is a Monday.
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("business", -6*3600))
	day := base.AddDate(0, 0, int(weekday-time.Monday+7)%7)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location()).UTC()
}

func TestWithinBusinessWindowBoundaries(t *testing.T) {
	cal := New(DefaultUTCOffsetMinutes)

	cases := []struct {
		hour, minute int
		want         bool
	}{
		{8, 29, false},
		{8, 30, true},
		{14, 0, true},
		{20, 30, true},
		{20, 31, false},
		{7, 0, false},
	}

	for _, weekday := range []time.Weekday{time.Monday, time.Saturday, time.Sunday} {
		for _, tc := range cases {
			got := cal.WithinBusinessWindow(at(weekday, tc.hour, tc.minute))
			if got != tc.want {
				t.Fatalf("WithinBusinessWindow(%s %02d:%02d) = %t, want %t",
					weekday, tc.hour, tc.minute, got, tc.want)
			}
		}
	}
}

func TestOutsideBusinessHoursExcludesWeekends(t *testing.T) {
	cal := New(DefaultUTCOffsetMinutes)

	// Weekends are outside regardless of clock time.
	if !cal.OutsideBusinessHours(at(time.Saturday, 12, 0)) {
		t.Fatal("saturday noon must be outside business hours")
	}
	if !cal.OutsideBusinessHours(at(time.Sunday, 9, 0)) {
		t.Fatal("sunday morning must be outside business hours")
	}

	// The weekday window opens at 08:00, not 08:30.
	if cal.OutsideBusinessHours(at(time.Tuesday, 8, 0)) {
		t.Fatal("tuesday 08:00 must be inside attended hours")
	}
	if !cal.OutsideBusinessHours(at(time.Tuesday, 7, 59)) {
		t.Fatal("tuesday 07:59 must be outside attended hours")
	}
	if !cal.OutsideBusinessHours(at(time.Tuesday, 20, 31)) {
		t.Fatal("tuesday 20:31 must be outside attended hours")
	}
}

func TestDateKey(t *testing.T) {
	cal := New(DefaultUTCOffsetMinutes)

	// 2024-01-16 01:30 UTC is still 2024-01-15 business-local.
	instant := time.Date(2024, 1, 16, 1, 30, 0, 0, time.UTC)
	if got := cal.DateKey(instant); got != "2024-01-15" {
		t.Fatalf("DateKey(time) = %q, want 2024-01-15", got)
	}

	if got := cal.DateKey("2024-01-16T01:30:00Z"); got != "2024-01-15" {
		t.Fatalf("DateKey(timestamp string) = %q, want 2024-01-15", got)
	}
	if got := cal.DateKey("2024-01-15"); got != "2024-01-15" {
		t.Fatalf("DateKey(date string) = %q, want passthrough", got)
	}
	if got := cal.DateKey(nil); got != "" {
		t.Fatalf("DateKey(nil) = %q, want empty", got)
	}
	if got := cal.DateKey("garbage"); got != "" {
		t.Fatalf("DateKey(garbage) = %q, want empty", got)
	}
}

func TestKeyInRange(t *testing.T) {
	cases := []struct {
		key, start, end string
		want            bool
	}{
		{"2024-01-15", "2024-01-01", "2024-01-31", true},
		{"2024-01-01", "2024-01-01", "2024-01-31", true},
		{"2024-01-31", "2024-01-01", "2024-01-31", true},
		{"2023-12-31", "2024-01-01", "2024-01-31", false},
		{"2024-02-01", "2024-01-01", "2024-01-31", false},
		{"2024-02-01", "2024-01-01", "", true},
		{"2023-02-01", "", "2024-01-31", true},
		{"", "2024-01-01", "2024-01-31", false},
		{"", "", "", true},
	}

	for _, tc := range cases {
		if got := KeyInRange(tc.key, tc.start, tc.end); got != tc.want {
			t.Fatalf("KeyInRange(%q, %q, %q) = %t, want %t", tc.key, tc.start, tc.end, got, tc.want)
		}
	}
}
