package crm

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"leadstats_backend/platform/logger"

	"golang.org/x/time/rate"
)

func TestFetchAllStopsWhenNoMoreRecords(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		more := page < 3
		fmt.Fprintf(w, `{"data":[{"id":"p%d"}],"info":{"more_records":%t}}`, page, more)
	})
	client.limiter = rate.NewLimiter(rate.Inf, 0)

	records, err := client.FetchAll(context.Background(), ModuleLeads)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records across 3 pages, got %d", len(records))
	}
	if records[2].ID() != "p3" {
		t.Fatalf("unexpected last record: %+v", records[2])
	}
}

func TestFetchAllTerminatesAtPageCap(t *testing.T) {
	pages := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		pages++
		// The remote never reports more_records=false.
		w.Write([]byte(`{"data":[{"id":"x"}],"info":{"more_records":true}}`))
	})
	client.limiter = rate.NewLimiter(rate.Inf, 0)

	var logs bytes.Buffer
	client.log = &logger.Logger{Logger: slog.New(slog.NewTextHandler(&logs, nil))}

	records, err := client.FetchAll(context.Background(), ModuleDeals)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if pages != maxPages {
		t.Fatalf("expected exactly %d pages fetched, got %d", maxPages, pages)
	}
	if len(records) != maxPages {
		t.Fatalf("expected %d records, got %d", maxPages, len(records))
	}
	// Pages here hold a single record each, so the cap is hit long before
	// maxPages*pageSize records accumulate; the warning must fire anyway.
	if !strings.Contains(logs.String(), "truncated at page cap") {
		t.Fatal("expected a truncation warning when the page cap is hit with records remaining")
	}
}

func TestFetchAllDoesNotWarnOnCleanTermination(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"x"}],"info":{"more_records":false}}`))
	})
	client.limiter = rate.NewLimiter(rate.Inf, 0)

	var logs bytes.Buffer
	client.log = &logger.Logger{Logger: slog.New(slog.NewTextHandler(&logs, nil))}

	if _, err := client.FetchAll(context.Background(), ModuleLeads); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if strings.Contains(logs.String(), "truncated") {
		t.Fatal("unexpected truncation warning on clean termination")
	}
}

func TestFetchAllActivitiesTagsAndDegrades(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/"+ModuleCalls) {
			w.Write([]byte(`{"data":[{"id":"c1"},{"id":"c2"}],"info":{"more_records":false}}`))
			return
		}
		// Tasks sub-resource is down; must degrade to empty, not abort.
		w.WriteHeader(http.StatusInternalServerError)
	})
	client.limiter = rate.NewLimiter(rate.Inf, 0)

	activities := client.FetchAllActivities(context.Background())
	if len(activities) != 2 {
		t.Fatalf("expected 2 call activities, got %d", len(activities))
	}
	for _, a := range activities {
		if a.Type != ModuleCalls {
			t.Fatalf("expected activity tagged %s, got %s", ModuleCalls, a.Type)
		}
	}
}

func TestFetchNotesSilentlyEmpty(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	client.limiter = rate.NewLimiter(rate.Inf, 0)

	if notes := client.FetchNotes(context.Background(), ModuleDeals, "42"); len(notes) != 0 {
		t.Fatalf("expected no notes, got %d", len(notes))
	}
}
