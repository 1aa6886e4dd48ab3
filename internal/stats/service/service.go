// Package service implements the analytics aggregation engine: data source
// resolution, in-memory filtering and the statistics pipeline.
package service

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"leadstats_backend/internal/calendar"
	"leadstats_backend/internal/crm"
	"leadstats_backend/internal/mirror"
	"leadstats_backend/internal/stats/transport"
	"leadstats_backend/platform/cache"
	"leadstats_backend/platform/logger"
)

// CacheKeyPrefix namespaces stats entries in redis; the sync worker
// invalidates this prefix after every mirror refresh.
const CacheKeyPrefix = "stats:"

// Service computes lead/deal statistics against the mirror or the remote CRM.
type Service struct {
	mirror MirrorReader
	remote RemoteClient
	cal    calendar.Calendar
	cache  *cache.Cache
	log    *logger.Logger
}

// New creates the stats service. cache may be nil (caching disabled).
func New(mirrorRepo MirrorReader, remote RemoteClient, cal calendar.Calendar, statsCache *cache.Cache, log *logger.Logger) *Service {
	return &Service{
		mirror: mirrorRepo,
		remote: remote,
		cal:    cal,
		cache:  statsCache,
		log:    log,
	}
}

// GetStats resolves the record set for the filter and computes the full
// statistics object. With debug set, the cache is bypassed both ways.
func (s *Service) GetStats(ctx context.Context, f Filter, preferLocal, debug bool) (transport.StatsResult, error) {
	key := CacheKeyPrefix + f.CacheKey() + ";local=" + strconv.FormatBool(preferLocal)
	if !debug {
		if data, ok := s.cache.Get(ctx, key); ok {
			var cached transport.StatsResult
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	set, err := s.resolve(ctx, f, preferLocal)
	if err != nil {
		return transport.NewStatsResult(), err
	}

	var leads, deals []crm.Record
	closedWon := 0

	if set.fromLocalMirror {
		// Mirror queries already pushed the development/date filters down.
		leads, deals = set.leads, set.deals
		closedWon, err = s.mirror.CountClosedWonDeals(ctx, mirror.ClosedWonFilter{
			Developments: f.Developments,
			StartKey:     f.StartKey(),
			EndKey:       f.EndKey(),
		})
		if err != nil {
			s.log.DatabaseError("count closed won", err)
			closedWon = 0
		}
	} else {
		// Closed-won is counted over the development-filtered set only, so
		// both provenances answer the same question: the mirror pushdown
		// applies no source/owner/status filters either.
		var devDeals []crm.Record
		leads, deals, devDeals = s.filterRemoteSet(set, f)
		closedWon = s.closedWonFromRecords(devDeals, f)
	}

	leads = applyUniformFilters(leads, f, crm.FieldsLeadStatus)
	deals = applyUniformFilters(deals, f, crm.FieldsStage)

	result := s.aggregate(ctx, aggregateInput{
		leads:     leads,
		deals:     deals,
		closedWon: closedWon,
		activities: &activityLoader{fetch: func(ctx context.Context) []crm.Activity {
			return s.remote.FetchAllActivities(ctx)
		}},
		fromMirror: set.fromLocalMirror,
		filter:     f,
	})

	if !debug {
		if data, err := json.Marshal(result); err == nil {
			s.cache.Set(ctx, key, data)
		}
	}

	return result, nil
}

// GetStatsForPreviousMonth overrides the filter's date range with the
// previous business-local calendar month and delegates to GetStats.
func (s *Service) GetStatsForPreviousMonth(ctx context.Context, f Filter, preferLocal, debug bool) (transport.StatsResult, error) {
	now := time.Now().In(s.cal.Location())
	firstOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.cal.Location())

	f.StartDate = firstOfThisMonth.AddDate(0, -1, 0)
	f.EndDate = firstOfThisMonth.AddDate(0, 0, -1)

	return s.GetStats(ctx, f, preferLocal, debug)
}

// partnerShareLine matches "Name - 50" / "Name: 50%" note lines describing
// commercial partner shares on a product.
var partnerShareLine = regexp.MustCompile(`^\s*(.+?)\s*[-:]\s*(\d+(?:\.\d+)?)\s*%?\s*$`)

// GetProductPartners returns the commercial partners and their share
// percentages for the product attached to a deal. Partner information lives
// on the product record, with note lines as a fallback. All lookups degrade
// to an empty result: partner data is optional analytics garnish.
func (s *Service) GetProductPartners(ctx context.Context, dealID string) ([]transport.ProductPartner, error) {
	deal, err := s.remote.FetchByID(ctx, crm.ModuleDeals, dealID)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return []transport.ProductPartner{}, nil
	}

	productID := deal.RefID("Producto", "Product", "Product_Name")
	if productID == "" {
		return []transport.ProductPartner{}, nil
	}

	product, err := s.remote.FetchByID(ctx, "Products", productID)
	if err != nil || product == nil {
		return []transport.ProductPartner{}, nil
	}

	partners := []transport.ProductPartner{}
	for _, pair := range [][2][]string{
		{{"Socio_comercial", "Partner_Name"}, {"Porcentaje_socio", "Partner_Share"}},
		{{"Socio_comercial_2", "Partner_Name_2"}, {"Porcentaje_socio_2", "Partner_Share_2"}},
	} {
		name := product.Str(pair[0]...)
		share, ok := product.Float(pair[1]...)
		if name != "" && ok {
			partners = append(partners, transport.ProductPartner{PartnerName: name, SharePercent: share})
		}
	}
	if len(partners) > 0 {
		return partners, nil
	}

	// Older products keep their partner splits in free-form notes. Most
	// products have none, so the probe is silent.
	for _, note := range s.remote.FetchNotes(ctx, "Products", productID) {
		for _, line := range strings.Split(note.Str("Note_Content", "Note_Title"), "\n") {
			if m := partnerShareLine.FindStringSubmatch(line); m != nil {
				share, err := strconv.ParseFloat(m[2], 64)
				if err != nil {
					continue
				}
				partners = append(partners, transport.ProductPartner{PartnerName: strings.TrimSpace(m[1]), SharePercent: share})
			}
		}
	}

	return partners, nil
}

// TestConnection verifies credentials and API reachability with a cheap
// field-metadata call.
func (s *Service) TestConnection(ctx context.Context) transport.ConnectionStatus {
	if _, err := s.remote.FetchFields(ctx, crm.ModuleLeads); err != nil {
		return transport.ConnectionStatus{Connected: false, Detail: err.Error()}
	}
	return transport.ConnectionStatus{Connected: true}
}
