// Package metrics derives dashboard and digest figures from lead and
// notification records. It is strictly read-side: nothing here writes
// lead state or participates in turn processing.
package metrics

import (
	"math"
	"time"
)

// Rough per-call cost estimates in dollars. Classification runs on the
// fast tier, quoting on the capable tier; roughly one in five leads
// also gets a fast-tier nudge.
const (
	classificationCostPerMessage = 0.001
	quoteCostPerQuote            = 0.002
	nudgeCostPerMessage          = 0.0005
	nudgeShare                   = 0.2
)

// messagesPerHourSaved converts handled messages into saved contractor
// time: fifteen messages per hour of avoided back-and-forth.
const messagesPerHourSaved = 15

// Snapshot is the raw windowed aggregate read from the lead store.
type Snapshot struct {
	TotalLeads       int     `json:"total_leads"`
	QualifiedLeads   int     `json:"qualified_leads"`
	QuotedLeads      int     `json:"quoted_leads"`
	RecoveredLeads   int     `json:"recovered_leads"`
	RevenuePipeline  float64 `json:"estimated_revenue_pipe"`
	RecoveredRevenue float64 `json:"recovered_revenue"`
	TopService       *string `json:"top_service"`
	OutOfAreaCount   int     `json:"out_of_area_count"`
	EmergencyCount   int     `json:"emergency_count"`
	JunkCount        int     `json:"junk_count"`
	PendingHotLeads  int     `json:"pending_hot_leads"`
	TotalMessages    int     `json:"total_messages"`
}

// Report is a Snapshot plus the derived value figures shown on the
// dashboard and in the weekly digest.
type Report struct {
	Snapshot
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	HoursSaved  int       `json:"hours_saved"`
	AICost      float64   `json:"ai_cost"`
	ROI         int       `json:"roi"`
}

// EstimateAICost approximates model spend for a window from message and
// quote counts, rounded to cents.
func EstimateAICost(messageCount, quoteCount int) float64 {
	cost := float64(messageCount)*classificationCostPerMessage +
		float64(quoteCount)*quoteCostPerQuote +
		float64(messageCount)*nudgeShare*nudgeCostPerMessage
	return math.Round(cost*100) / 100
}

// ROI is the percentage return of recovered revenue against model
// spend. Zero when nothing was recovered or the spend is zero.
func ROI(recoveredRevenue, aiCost float64) int {
	if recoveredRevenue <= 0 || aiCost <= 0 {
		return 0
	}
	return int(math.Round((recoveredRevenue - aiCost) / aiCost * 100))
}

// HoursSaved converts handled message volume into avoided work hours.
func HoursSaved(messageCount int) int {
	return int(math.Round(float64(messageCount) / messagesPerHourSaved))
}

// BuildReport derives the full report from a snapshot.
func BuildReport(s Snapshot, start, end time.Time) Report {
	cost := EstimateAICost(s.TotalMessages, s.QuotedLeads)
	return Report{
		Snapshot:    s,
		WindowStart: start,
		WindowEnd:   end,
		HoursSaved:  HoursSaved(s.TotalMessages),
		AICost:      cost,
		ROI:         ROI(s.RecoveredRevenue, cost),
	}
}
