package service

import (
	"context"
	"time"

	"leadstats_backend/internal/crm"
	"leadstats_backend/internal/mirror"
)

// MirrorReader is the slice of the mirror repository the resolver needs.
type MirrorReader interface {
	ReadLeadsPage(ctx context.Context, page, pageSize int, f mirror.Filter) ([]crm.Record, error)
	ReadDealsPage(ctx context.Context, page, pageSize int, f mirror.Filter) ([]crm.Record, error)
	CountClosedWonDeals(ctx context.Context, f mirror.ClosedWonFilter) (int, error)
}

// RemoteClient is the slice of the CRM client the stats engine needs.
type RemoteClient interface {
	FetchAll(ctx context.Context, module string) ([]crm.Record, error)
	FetchAllActivities(ctx context.Context) []crm.Activity
	FetchByID(ctx context.Context, module, id string) (crm.Record, error)
	FetchNotes(ctx context.Context, module, id string) []crm.Record
	FetchFields(ctx context.Context, module string) ([]crm.Record, error)
}

// recordSet is the reconciled result of one resolution. When sourced from
// the mirror the development/date filters were already pushed down; when
// sourced remotely they still have to be applied in memory.
type recordSet struct {
	leads           []crm.Record
	deals           []crm.Record
	fromLocalMirror bool
}

// resolve chooses between the local mirror (preferred) and the remote
// fetchers. A mirror failure downgrades silently to the remote path; a
// remote failure after an empty mirror propagates.
func (s *Service) resolve(ctx context.Context, f Filter, preferLocal bool) (recordSet, error) {
	if preferLocal && s.mirror != nil {
		set, err := s.readMirror(ctx, f)
		if err != nil {
			s.log.Warn("mirror read failed, falling back to remote", "error", err.Error())
		} else if len(set.leads) > 0 || len(set.deals) > 0 {
			// Note: no remote sync is triggered on this path; analytics
			// reads must not generate background sync traffic.
			return set, nil
		}
	}

	leads, err := s.remote.FetchAll(ctx, crm.ModuleLeads)
	if err != nil {
		return recordSet{}, err
	}
	deals, err := s.remote.FetchAll(ctx, crm.ModuleDeals)
	if err != nil {
		return recordSet{}, err
	}

	// Mirror write-back is deliberately absent here: remote-sourced results
	// are compute-only, persistence belongs to the sync worker.
	return recordSet{leads: leads, deals: deals}, nil
}

func (s *Service) readMirror(ctx context.Context, f Filter) (recordSet, error) {
	mf := mirror.Filter{
		Developments: f.Developments,
		StartDate:    s.businessDayStart(f.StartDate),
		EndDate:      s.businessDayEnd(f.EndDate),
		Source:       f.Source,
		Owner:        f.Owner,
		Status:       f.Status,
	}

	leads, err := s.readAllPages(ctx, s.mirror.ReadLeadsPage, mf)
	if err != nil {
		return recordSet{}, err
	}
	deals, err := s.readAllPages(ctx, s.mirror.ReadDealsPage, mf)
	if err != nil {
		return recordSet{}, err
	}

	return recordSet{leads: leads, deals: deals, fromLocalMirror: true}, nil
}

// businessDayStart rebuilds a parsed calendar date as midnight in the
// business-local zone, so the mirror's created_at comparisons use the same
// day semantics as the remote path's date keys.
func (s *Service) businessDayStart(d time.Time) time.Time {
	if d.IsZero() {
		return d
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.cal.Location())
}

// businessDayEnd extends an end date to cover its whole business-local day.
func (s *Service) businessDayEnd(d time.Time) time.Time {
	if d.IsZero() {
		return d
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, s.cal.Location())
}

type pageReader func(ctx context.Context, page, pageSize int, f mirror.Filter) ([]crm.Record, error)

func (s *Service) readAllPages(ctx context.Context, read pageReader, f mirror.Filter) ([]crm.Record, error) {
	var records []crm.Record
	for page := 1; page <= mirror.MaxReadPages; page++ {
		batch, err := read(ctx, page, mirror.ReadPageSize, f)
		if err != nil {
			return nil, err
		}
		records = append(records, batch...)
		if len(batch) < mirror.ReadPageSize {
			break
		}
	}
	return records, nil
}
