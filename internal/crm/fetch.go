package crm

import (
	"context"
	"net/url"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	pageSize = 200

	// maxPages bounds worst-case latency and memory for runaway datasets
	// (~10,000 records per resource). Hitting the cap is a soft truncation,
	// not an error.
	maxPages = 50
)

// Resource module names on the CRM API.
const (
	ModuleLeads = "Leads"
	ModuleDeals = "Deals"
	ModuleCalls = "Calls"
	ModuleTasks = "Tasks"
)

// FetchAll exhaustively pages through the given resource module.
func (c *Client) FetchAll(ctx context.Context, module string) ([]Record, error) {
	var records []Record
	truncated := false

	for page := 1; page <= maxPages; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(pageSize))

		var resp ListResponse
		if err := c.Get(ctx, module, query, &resp); err != nil {
			return nil, err
		}

		records = append(records, resp.Data...)

		if !resp.Info.MoreRecords || len(resp.Data) == 0 {
			break
		}
		if page == maxPages {
			truncated = true
		}
	}

	if truncated {
		c.log.Warn("crm fetch truncated at page cap", "module", module, "records", len(records))
	}

	return records, nil
}

// FetchAllActivities fetches the union of Calls and Tasks, each independently
// paginated and tagged with its originating type. The two sub-resources are
// fetched concurrently; a failure on one degrades to an empty set for that
// type instead of aborting the whole fetch.
func (c *Client) FetchAllActivities(ctx context.Context) []Activity {
	var (
		mu         sync.Mutex
		activities []Activity
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, module := range []string{ModuleCalls, ModuleTasks} {
		g.Go(func() error {
			records, err := c.FetchAll(gctx, module)
			if err != nil {
				c.log.Warn("activity sub-fetch degraded to empty", "module", module, "error", err.Error())
				return nil
			}

			mu.Lock()
			for _, record := range records {
				activities = append(activities, Activity{Record: record, Type: module})
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return activities
}

// FetchByID fetches a single record from a module, e.g. /Products/{id}.
// The envelope for single-record lookups is the same data array.
func (c *Client) FetchByID(ctx context.Context, module, id string) (Record, error) {
	var resp ListResponse
	if err := c.Get(ctx, module+"/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	return resp.Data[0], nil
}

// FetchNotes probes the notes relation of a record. Most records have no
// notes, so errors and empty bodies are expected and never logged.
func (c *Client) FetchNotes(ctx context.Context, module, id string) []Record {
	var resp ListResponse
	if err := c.GetSilent(ctx, module+"/"+url.PathEscape(id)+"/Notes", nil, &resp); err != nil {
		return nil
	}
	return resp.Data
}

// FetchFields fetches the field metadata for a module from /settings/fields.
func (c *Client) FetchFields(ctx context.Context, module string) ([]Record, error) {
	query := url.Values{}
	query.Set("module", module)

	var resp struct {
		Fields []Record `json:"fields"`
	}
	if err := c.Get(ctx, "settings/fields", query, &resp); err != nil {
		return nil, err
	}
	return resp.Fields, nil
}
