// Package calendar provides the business calendar model: fixed-offset
// timezone conversion, business-window membership tests and calendar-day
// keys used for close-date range matching.
package calendar

import (
	"time"

	"leadstats_backend/internal/crm"
)

// DefaultUTCOffsetMinutes is the fixed business timezone offset (UTC-6,
// standard time year round). A fixed offset is used instead of the runtime's
// local zone so results are deterministic regardless of where the process
// runs.
const DefaultUTCOffsetMinutes = -360

// Calendar converts instants into the fixed business-local timezone.
type Calendar struct {
	loc *time.Location
}

// New creates a calendar with the given UTC offset in minutes.
func New(offsetMinutes int) Calendar {
	return Calendar{loc: time.FixedZone("business", offsetMinutes*60)}
}

// Location returns the fixed business-local zone.
func (c Calendar) Location() *time.Location {
	return c.loc
}

// BusinessLocal returns the business-local clock time and weekday of t.
func (c Calendar) BusinessLocal(t time.Time) (hour, minute int, weekday time.Weekday) {
	local := t.In(c.loc)
	return local.Hour(), local.Minute(), local.Weekday()
}

// WithinBusinessWindow reports whether t falls inside the 08:30-20:30
// business-local window, inclusive on both ends, on any day of the week.
// This predicate gates which leads enter the first-contact timing metrics.
func (c Calendar) WithinBusinessWindow(t time.Time) bool {
	hour, minute, _ := c.BusinessLocal(t)
	mins := hour*60 + minute
	return mins >= 8*60+30 && mins <= 20*60+30
}

// OutsideBusinessHours reports whether t falls outside attended hours:
// weekends count as outside, and the weekday window is 08:00-20:30.
// The boundaries differ from WithinBusinessWindow; the two predicates feed
// different metrics and must not be unified.
func (c Calendar) OutsideBusinessHours(t time.Time) bool {
	hour, minute, weekday := c.BusinessLocal(t)
	if weekday == time.Saturday || weekday == time.Sunday {
		return true
	}
	mins := hour*60 + minute
	return mins < 8*60 || mins > 20*60+30
}

// DateKey extracts a business-local YYYY-MM-DD key from a timestamp string,
// a time.Time, or an absent value. Returns "" when no key can be derived.
func (c Calendar) DateKey(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case time.Time:
		if typed.IsZero() {
			return ""
		}
		return typed.In(c.loc).Format("2006-01-02")
	case *time.Time:
		if typed == nil || typed.IsZero() {
			return ""
		}
		return typed.In(c.loc).Format("2006-01-02")
	case string:
		if typed == "" {
			return ""
		}
		// A bare date string is already a day key; anything with a time
		// component is converted through the business zone.
		if len(typed) == len("2006-01-02") {
			if _, err := time.Parse("2006-01-02", typed); err == nil {
				return typed
			}
		}
		if t, ok := crm.ParseTime(typed); ok {
			return t.In(c.loc).Format("2006-01-02")
		}
		return ""
	default:
		return ""
	}
}

// KeyInRange reports whether key falls within [startKey, endKey]. Empty
// bounds are open; an empty key never matches a bounded range.
func KeyInRange(key, startKey, endKey string) bool {
	if key == "" {
		return startKey == "" && endKey == ""
	}
	if startKey != "" && key < startKey {
		return false
	}
	if endKey != "" && key > endKey {
		return false
	}
	return true
}
