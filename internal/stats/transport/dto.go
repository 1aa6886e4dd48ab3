package transport

// StatsRequest is the query surface of the stats endpoints. Dates are
// business-local calendar days.
type StatsRequest struct {
	Development  string `form:"development" validate:"omitempty,max=100"`
	Developments string `form:"developments" validate:"omitempty,max=1000"` // comma separated
	StartDate    string `form:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate      string `form:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Source       string `form:"source" validate:"omitempty,max=100"`
	Owner        string `form:"owner" validate:"omitempty,max=100"`
	Status       string `form:"status" validate:"omitempty,max=100"`
	PreferLocal  *bool  `form:"preferLocal"`
	Debug        bool   `form:"debug"`
}

// FunnelStats is the three-stage lifecycle funnel.
type FunnelStats struct {
	Leads     int `json:"leads"`
	Deals     int `json:"deals"`
	ClosedWon int `json:"closedWon"`
}

// DateConversion is one point of the per-date conversion series.
type DateConversion struct {
	Leads int     `json:"leads"`
	Deals int     `json:"deals"`
	Rate  float64 `json:"rate"`
}

// StatsResult is the full aggregated statistics object. Every run produces
// the complete shape; metrics that could not be computed are zeroed rather
// than omitted.
type StatsResult struct {
	TotalLeads     int     `json:"totalLeads"`
	TotalDeals     int     `json:"totalDeals"`
	ConversionRate float64 `json:"conversionRate"`
	ClosedWonCount int     `json:"closedWonCount"`

	Funnel FunnelStats `json:"funnel"`

	LeadsByStatus      map[string]int `json:"leadsByStatus"`
	DealsByStage       map[string]int `json:"dealsByStage"`
	LeadsByDevelopment map[string]int `json:"leadsByDevelopment"`
	LeadsBySource      map[string]int `json:"leadsBySource"`
	LeadsByOwner       map[string]int `json:"leadsByOwner"`

	DiscardedLeads int            `json:"discardedLeads"`
	DiscardRate    float64        `json:"discardRate"`
	DiscardReasons map[string]int `json:"discardReasons"`

	AvgFirstContactMinutes float64            `json:"avgFirstContactMinutes"`
	FirstContactSampleSize int                `json:"firstContactSampleSize"`
	FirstContactByOwner    map[string]float64 `json:"firstContactByOwner"`

	QualityLeads int     `json:"qualityLeads"`
	QualityRate  float64 `json:"qualityRate"`

	LeadsOutsideBusinessHours int `json:"leadsOutsideBusinessHours"`

	LeadsByWeek      map[string]int            `json:"leadsByWeek"`
	LeadsByMonth     map[string]int            `json:"leadsByMonth"`
	ConversionByDate map[string]DateConversion `json:"conversionByDate"`

	ActivitiesByType  map[string]int `json:"activitiesByType"`
	ActivitiesByOwner map[string]int `json:"activitiesByOwner"`

	FromLocalMirror bool `json:"fromLocalMirror"`
}

// NewStatsResult returns a zero-valued result with every map initialized,
// so partial failures still serialize to the complete shape.
func NewStatsResult() StatsResult {
	return StatsResult{
		LeadsByStatus:       map[string]int{},
		DealsByStage:        map[string]int{},
		LeadsByDevelopment:  map[string]int{},
		LeadsBySource:       map[string]int{},
		LeadsByOwner:        map[string]int{},
		DiscardReasons:      map[string]int{},
		FirstContactByOwner: map[string]float64{},
		LeadsByWeek:         map[string]int{},
		LeadsByMonth:        map[string]int{},
		ConversionByDate:    map[string]DateConversion{},
		ActivitiesByType:    map[string]int{},
		ActivitiesByOwner:   map[string]int{},
	}
}

// ProductPartner is one commercial partner share attached to a deal's product.
type ProductPartner struct {
	PartnerName  string  `json:"partnerName"`
	SharePercent float64 `json:"sharePercent"`
}

// ConnectionStatus is the response of the connection test endpoint.
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Detail    string `json:"detail,omitempty"`
}
