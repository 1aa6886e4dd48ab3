package service

import (
	"testing"
	"time"

	"leadstats_backend/internal/stats/transport"
)

func TestFilterFromRequestMergesDevelopments(t *testing.T) {
	f := FilterFromRequest(transport.StatsRequest{
		Development:  " Riviera ",
		Developments: "Bosques, , Altaria",
		StartDate:    "2024-01-01",
		EndDate:      "2024-01-31",
		Source:       " Facebook ",
	})

	want := []string{"Riviera", "Bosques", "Altaria"}
	if len(f.Developments) != len(want) {
		t.Fatalf("developments = %v, want %v", f.Developments, want)
	}
	for i, dev := range want {
		if f.Developments[i] != dev {
			t.Errorf("developments[%d] = %q, want %q", i, f.Developments[i], dev)
		}
	}

	if f.StartKey() != "2024-01-01" || f.EndKey() != "2024-01-31" {
		t.Errorf("range keys = %q..%q", f.StartKey(), f.EndKey())
	}
	if f.Source != "Facebook" {
		t.Errorf("source = %q, want Facebook", f.Source)
	}
}

func TestFilterFromRequestIgnoresUnparseableDates(t *testing.T) {
	f := FilterFromRequest(transport.StatsRequest{StartDate: "not-a-date"})
	if !f.StartDate.IsZero() {
		t.Fatalf("StartDate = %v, want zero", f.StartDate)
	}
	if f.StartKey() != "" {
		t.Fatalf("StartKey = %q, want empty", f.StartKey())
	}
}

func TestFilterMatchesDevelopment(t *testing.T) {
	f := Filter{Developments: []string{"Riviera", "Bosques"}}

	if !f.matchesDevelopment("riviera") {
		t.Error("case-insensitive match failed")
	}
	if !f.matchesDevelopment(" Bosques ") {
		t.Error("whitespace-tolerant match failed")
	}
	if f.matchesDevelopment("Altaria") {
		t.Error("non-member matched")
	}

	empty := Filter{}
	if !empty.matchesDevelopment("anything") {
		t.Error("empty set must match everything")
	}
}

func TestCacheKeyCanonicalizesEquivalentFilters(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	a := Filter{Developments: []string{"Riviera", "bosques"}, StartDate: start, EndDate: end, Source: "Facebook"}
	b := Filter{Developments: []string{"Bosques", "RIVIERA"}, StartDate: start, EndDate: end, Source: "facebook"}

	if a.CacheKey() != b.CacheKey() {
		t.Fatalf("equivalent filters produced different keys:\n%q\n%q", a.CacheKey(), b.CacheKey())
	}

	c := Filter{Developments: []string{"Riviera"}, StartDate: start, EndDate: end}
	if a.CacheKey() == c.CacheKey() {
		t.Fatal("different filters produced the same key")
	}
}
