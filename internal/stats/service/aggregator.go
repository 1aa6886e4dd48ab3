package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"leadstats_backend/internal/calendar"
	"leadstats_backend/internal/crm"
	"leadstats_backend/internal/mirror"
	"leadstats_backend/internal/stats/transport"
)

const (
	unknownCategory = "unknown"

	// maxContactMinutes discards implausible first-contact deltas (about
	// 70 days) that stem from backfilled or corrected CRM timestamps.
	maxContactMinutes = 100000
)

// advancedStages are the pipeline stages treated as "past first interest"
// for the heuristic lead-to-deal match.
var advancedStages = append([]string{
	"Negotiation", "Proposal", "Contrato", "Apartado", "Negociación",
}, mirror.WonStages...)

// interestKeywords mark a lead status as interest-indicating.
var interestKeywords = []string{
	"interesado", "interested", "cita", "appointment", "visita", "visit",
	"calificado", "qualified",
}

// discardKeywords mark a lead status as discarded.
var discardKeywords = []string{"descartado", "discarded", "perdido", "lost", "no calificado"}

// activityLoader lazily fetches and memoizes the full activity set for one
// aggregation call. Every metric that needs activity correlation shares the
// same fetch; concurrent aggregation calls never share a loader.
type activityLoader struct {
	fetch  func(ctx context.Context) []crm.Activity
	loaded bool
	cached []crm.Activity
}

func (l *activityLoader) get(ctx context.Context) []crm.Activity {
	if !l.loaded {
		l.cached = l.fetch(ctx)
		l.loaded = true
	}
	return l.cached
}

// aggregateInput is the reconciled, filtered material one aggregation runs on.
type aggregateInput struct {
	leads      []crm.Record
	deals      []crm.Record
	closedWon  int
	activities *activityLoader
	fromMirror bool
	filter     Filter
}

// filterRemoteSet applies the development-set and date-range filters that
// mirror queries push down but remote fetches cannot. Returns the filtered
// set plus the development-filtered-but-NOT-date-filtered deals needed for
// close-date semantics.
func (s *Service) filterRemoteSet(set recordSet, f Filter) (leads, deals, devDeals []crm.Record) {
	for _, lead := range set.leads {
		if !f.matchesDevelopment(lead.Str(crm.FieldsDevelopment...)) {
			continue
		}
		if !s.createdInRange(lead, f) {
			continue
		}
		leads = append(leads, lead)
	}

	for _, deal := range set.deals {
		if !f.matchesDevelopment(deal.Str(crm.FieldsDevelopment...)) {
			continue
		}
		devDeals = append(devDeals, deal)

		// A deal belongs to the period if it was created in it, or, for
		// won-stage deals, if it closed in it: a deal created one period
		// and won in another must be representable in both.
		if s.createdInRange(deal, f) || (isWonStage(deal.Str(crm.FieldsStage...)) && s.closedInRange(deal, f)) {
			deals = append(deals, deal)
		}
	}
	return leads, deals, devDeals
}

func (s *Service) createdInRange(record crm.Record, f Filter) bool {
	if f.StartKey() == "" && f.EndKey() == "" {
		return true
	}
	created, ok := record.Time(crm.FieldsCreatedTime...)
	if !ok {
		return false
	}
	return calendar.KeyInRange(s.cal.DateKey(created), f.StartKey(), f.EndKey())
}

func (s *Service) closedInRange(deal crm.Record, f Filter) bool {
	key := s.closeDateKey(deal)
	if key == "" {
		return false
	}
	return calendar.KeyInRange(key, f.StartKey(), f.EndKey())
}

func (s *Service) closeDateKey(deal crm.Record) string {
	for _, name := range crm.FieldsClosingDate {
		if value, ok := deal[name]; ok {
			if key := s.cal.DateKey(value); key != "" {
				return key
			}
		}
	}
	return ""
}

// applyUniformFilters applies source/owner/status regardless of provenance.
func applyUniformFilters(records []crm.Record, f Filter, statusFields []string) []crm.Record {
	if f.Source == "" && f.Owner == "" && f.Status == "" {
		return records
	}

	var out []crm.Record
	for _, record := range records {
		if f.Source != "" && !strings.EqualFold(record.Str(crm.FieldsSource...), f.Source) {
			continue
		}
		if f.Owner != "" && !strings.EqualFold(record.Str(crm.FieldsOwner...), f.Owner) {
			continue
		}
		if f.Status != "" && !strings.EqualFold(record.Str(statusFields...), f.Status) {
			continue
		}
		out = append(out, record)
	}
	return out
}

// closedWonFromRecords counts won-stage deals whose business-local close
// date falls inside the requested range. Computed over the development-
// filtered-but-NOT-date-filtered set so a deal created last period but
// closed this period still counts this period.
func (s *Service) closedWonFromRecords(devDeals []crm.Record, f Filter) int {
	count := 0
	for _, deal := range devDeals {
		if !isWonStage(deal.Str(crm.FieldsStage...)) {
			continue
		}
		if calendar.KeyInRange(s.closeDateKey(deal), f.StartKey(), f.EndKey()) {
			count++
		}
	}
	return count
}

func isWonStage(stage string) bool {
	for _, won := range mirror.WonStages {
		if strings.EqualFold(stage, won) {
			return true
		}
	}
	return false
}

func isAdvancedStage(stage string) bool {
	for _, advanced := range advancedStages {
		if strings.EqualFold(stage, advanced) {
			return true
		}
	}
	return false
}

// aggregate computes the full statistics object. No step mutates shared
// state beyond the per-call activity loader.
func (s *Service) aggregate(ctx context.Context, in aggregateInput) transport.StatsResult {
	result := transport.NewStatsResult()
	result.FromLocalMirror = in.fromMirror

	result.TotalLeads = len(in.leads)
	result.TotalDeals = len(in.deals)
	result.ClosedWonCount = in.closedWon
	result.ConversionRate = percentage(len(in.deals), len(in.leads))
	result.Funnel = transport.FunnelStats{
		Leads:     len(in.leads),
		Deals:     len(in.deals),
		ClosedWon: in.closedWon,
	}

	s.aggregateBreakdowns(in, &result)
	s.aggregateDiscards(in, &result)
	s.aggregateFirstContact(ctx, in, &result)
	s.aggregateQuality(ctx, in, &result)
	s.aggregateTemporal(in, &result)
	s.aggregateActivities(ctx, in, &result)

	return result
}

func (s *Service) aggregateBreakdowns(in aggregateInput, result *transport.StatsResult) {
	for _, lead := range in.leads {
		result.LeadsByStatus[categoryOf(lead, crm.FieldsLeadStatus)]++
		result.LeadsByDevelopment[categoryOf(lead, crm.FieldsDevelopment)]++
		result.LeadsBySource[categoryOf(lead, crm.FieldsSource)]++
		result.LeadsByOwner[categoryOf(lead, crm.FieldsOwner)]++

		if created, ok := lead.Time(crm.FieldsCreatedTime...); ok && s.cal.OutsideBusinessHours(created) {
			result.LeadsOutsideBusinessHours++
		}
	}
	for _, deal := range in.deals {
		result.DealsByStage[categoryOf(deal, crm.FieldsStage)]++
	}
}

func (s *Service) aggregateDiscards(in aggregateInput, result *transport.StatsResult) {
	for _, lead := range in.leads {
		reason := lead.Str(crm.FieldsDiscardReason...)
		status := strings.ToLower(lead.Str(crm.FieldsLeadStatus...))

		discarded := reason != ""
		for _, keyword := range discardKeywords {
			if strings.Contains(status, keyword) {
				discarded = true
				break
			}
		}
		if !discarded {
			continue
		}

		result.DiscardedLeads++
		if reason == "" {
			reason = unknownCategory
		}
		result.DiscardReasons[reason]++
	}
	result.DiscardRate = percentage(result.DiscardedLeads, len(in.leads))
}

// aggregateFirstContact computes time-to-first-contact for leads created
// within the business window, preferring an explicit elapsed-minutes field,
// then the earliest correlated activity, then an explicit first-contact
// timestamp. Negative and implausibly large deltas are discarded as outliers.
func (s *Service) aggregateFirstContact(ctx context.Context, in aggregateInput, result *transport.StatsResult) {
	var totalMinutes float64
	ownerTotals := map[string]float64{}
	ownerCounts := map[string]int{}

	for _, lead := range in.leads {
		created, ok := lead.Time(crm.FieldsCreatedTime...)
		if !ok || !s.cal.WithinBusinessWindow(created) {
			continue
		}

		minutes, ok := s.firstContactMinutes(ctx, lead, created, in.activities)
		if !ok || minutes < 0 || minutes > maxContactMinutes {
			continue
		}

		totalMinutes += minutes
		result.FirstContactSampleSize++

		owner := categoryOf(lead, crm.FieldsOwner)
		ownerTotals[owner] += minutes
		ownerCounts[owner]++
	}

	if result.FirstContactSampleSize > 0 {
		result.AvgFirstContactMinutes = round2(totalMinutes / float64(result.FirstContactSampleSize))
	}
	for owner, total := range ownerTotals {
		result.FirstContactByOwner[owner] = round2(total / float64(ownerCounts[owner]))
	}
}

func (s *Service) firstContactMinutes(ctx context.Context, lead crm.Record, created time.Time, activities *activityLoader) (float64, bool) {
	if minutes, ok := lead.Float(crm.FieldsContactDelta...); ok {
		return minutes, true
	}

	if earliest, ok := earliestActivityTime(activities.get(ctx), lead.ID()); ok {
		return earliest.Sub(created).Minutes(), true
	}

	if contact, ok := lead.Time(crm.FieldsFirstContact...); ok {
		return contact.Sub(created).Minutes(), true
	}

	return 0, false
}

func earliestActivityTime(activities []crm.Activity, leadID string) (time.Time, bool) {
	if leadID == "" {
		return time.Time{}, false
	}

	var earliest time.Time
	found := false
	for _, activity := range activities {
		if activity.RefID(crm.FieldsRelatedTo...) != leadID {
			continue
		}
		at, ok := activity.Time("Call_Start_Time", "Created_Time", "Due_Date")
		if !ok {
			continue
		}
		if !found || at.Before(earliest) {
			earliest = at
			found = true
		}
	}
	return earliest, found
}

// aggregateQuality classifies a lead as "quality" iff it shows evidence of
// contact AND evidence of interest (explicit visit flag, interest keyword in
// status, or a heuristically matched deal).
func (s *Service) aggregateQuality(ctx context.Context, in aggregateInput, result *transport.StatsResult) {
	for _, lead := range in.leads {
		if !s.hasContactEvidence(ctx, lead, in.activities) {
			continue
		}
		if !s.hasInterestEvidence(lead, in.deals) {
			continue
		}
		result.QualityLeads++
	}
	result.QualityRate = percentage(result.QualityLeads, len(in.leads))
}

func (s *Service) hasContactEvidence(ctx context.Context, lead crm.Record, activities *activityLoader) bool {
	if _, ok := lead.Time(crm.FieldsFirstContact...); ok {
		return true
	}
	if _, ok := lead.Float(crm.FieldsContactDelta...); ok {
		return true
	}
	_, ok := earliestActivityTime(activities.get(ctx), lead.ID())
	return ok
}

func (s *Service) hasInterestEvidence(lead crm.Record, deals []crm.Record) bool {
	if lead.Bool(crm.FieldsVisitFlag...) {
		return true
	}

	status := strings.ToLower(lead.Str(crm.FieldsLeadStatus...))
	for _, keyword := range interestKeywords {
		if strings.Contains(status, keyword) {
			return true
		}
	}

	return matchLeadToDeal(lead, deals)
}

// matchLeadToDeal is the acknowledged-approximate heuristic join: email
// substring, then name substring, then same-source-plus-advanced-stage as
// a last resort. Kept exactly as the dashboards expect it.
func matchLeadToDeal(lead crm.Record, deals []crm.Record) bool {
	leadEmail := strings.ToLower(strings.TrimSpace(lead.Str(crm.FieldsEmail...)))
	leadName := strings.ToLower(strings.TrimSpace(lead.Str(crm.FieldsFullName...)))
	leadSource := lead.Str(crm.FieldsSource...)

	for _, deal := range deals {
		dealEmail := strings.ToLower(strings.TrimSpace(deal.Str(crm.FieldsEmail...)))
		if leadEmail != "" && dealEmail != "" &&
			(strings.Contains(dealEmail, leadEmail) || strings.Contains(leadEmail, dealEmail)) {
			return true
		}

		dealName := strings.ToLower(strings.TrimSpace(deal.Str("Deal_Name", "Contact_Name", "Nombre")))
		if leadName != "" && dealName != "" &&
			(strings.Contains(dealName, leadName) || strings.Contains(leadName, dealName)) {
			return true
		}

		if leadSource != "" && strings.EqualFold(deal.Str(crm.FieldsSource...), leadSource) &&
			isAdvancedStage(deal.Str(crm.FieldsStage...)) {
			return true
		}
	}
	return false
}

// aggregateTemporal buckets leads by ISO week and year-month in business-
// local time, and builds the per-date conversion series.
func (s *Service) aggregateTemporal(in aggregateInput, result *transport.StatsResult) {
	dealsByDate := map[string]int{}
	for _, deal := range in.deals {
		if key := s.createdKey(deal); key != "" {
			dealsByDate[key]++
		}
	}

	leadsByDate := map[string]int{}
	for _, lead := range in.leads {
		created, ok := lead.Time(crm.FieldsCreatedTime...)
		if !ok {
			continue
		}

		local := created.In(s.cal.Location())
		year, week := local.ISOWeek()
		result.LeadsByWeek[fmt.Sprintf("%d-W%02d", year, week)]++
		result.LeadsByMonth[local.Format("2006-01")]++
		leadsByDate[local.Format("2006-01-02")]++
	}

	for date, leadCount := range leadsByDate {
		result.ConversionByDate[date] = transport.DateConversion{
			Leads: leadCount,
			Deals: dealsByDate[date],
			Rate:  percentage(dealsByDate[date], leadCount),
		}
	}
}

func (s *Service) aggregateActivities(ctx context.Context, in aggregateInput, result *transport.StatsResult) {
	for _, activity := range in.activities.get(ctx) {
		result.ActivitiesByType[activity.Type]++
		result.ActivitiesByOwner[categoryOf(activity.Record, crm.FieldsOwner)]++
	}
}

func (s *Service) createdKey(record crm.Record) string {
	created, ok := record.Time(crm.FieldsCreatedTime...)
	if !ok {
		return ""
	}
	return s.cal.DateKey(created)
}

func categoryOf(record crm.Record, fields []string) string {
	if value := record.Str(fields...); value != "" {
		return value
	}
	return unknownCategory
}

func percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
