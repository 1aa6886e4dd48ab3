package service

import (
	"sort"
	"strings"
	"time"

	"leadstats_backend/internal/stats/transport"
)

// Filter is the immutable input to a single aggregation run.
type Filter struct {
	Developments []string
	StartDate    time.Time
	EndDate      time.Time
	Source       string
	Owner        string
	Status       string
}

// FilterFromRequest parses the transport request into a Filter. Dates are
// validated upstream by the DTO tags; unparseable values degrade to zero.
func FilterFromRequest(req transport.StatsRequest) Filter {
	f := Filter{
		Source: strings.TrimSpace(req.Source),
		Owner:  strings.TrimSpace(req.Owner),
		Status: strings.TrimSpace(req.Status),
	}

	if dev := strings.TrimSpace(req.Development); dev != "" {
		f.Developments = append(f.Developments, dev)
	}
	for _, dev := range strings.Split(req.Developments, ",") {
		if trimmed := strings.TrimSpace(dev); trimmed != "" {
			f.Developments = append(f.Developments, trimmed)
		}
	}

	if req.StartDate != "" {
		if t, err := time.Parse("2006-01-02", req.StartDate); err == nil {
			f.StartDate = t
		}
	}
	if req.EndDate != "" {
		if t, err := time.Parse("2006-01-02", req.EndDate); err == nil {
			f.EndDate = t
		}
	}

	return f
}

// StartKey returns the inclusive start of the requested range as a day key.
func (f Filter) StartKey() string {
	if f.StartDate.IsZero() {
		return ""
	}
	return f.StartDate.Format("2006-01-02")
}

// EndKey returns the inclusive end of the requested range as a day key.
func (f Filter) EndKey() string {
	if f.EndDate.IsZero() {
		return ""
	}
	return f.EndDate.Format("2006-01-02")
}

// matchesDevelopment reports whether the value belongs to the filter's
// development set, case-insensitively. An empty set matches everything.
func (f Filter) matchesDevelopment(value string) bool {
	if len(f.Developments) == 0 {
		return true
	}
	for _, dev := range f.Developments {
		if strings.EqualFold(strings.TrimSpace(value), dev) {
			return true
		}
	}
	return false
}

// CacheKey canonicalizes the filter into a stable cache key segment:
// developments are sorted and lowercased so equivalent filters collide.
func (f Filter) CacheKey() string {
	devs := make([]string, len(f.Developments))
	for i, dev := range f.Developments {
		devs[i] = strings.ToLower(strings.TrimSpace(dev))
	}
	sort.Strings(devs)

	parts := []string{
		strings.Join(devs, "|"),
		f.StartKey(),
		f.EndKey(),
		strings.ToLower(f.Source),
		strings.ToLower(f.Owner),
		strings.ToLower(f.Status),
	}
	return strings.Join(parts, ";")
}
