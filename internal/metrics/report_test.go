package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestEstimateAICost(t *testing.T) {
	tests := []struct {
		messages int
		quotes   int
		want     float64
	}{
		{0, 0, 0},
		{100, 0, 0.11},
		{100, 10, 0.13},
		{1000, 50, 1.2},
	}
	for _, tt := range tests {
		if got := EstimateAICost(tt.messages, tt.quotes); got != tt.want {
			t.Errorf("EstimateAICost(%d, %d) = %v, want %v", tt.messages, tt.quotes, got, tt.want)
		}
	}
}

func TestROI(t *testing.T) {
	tests := []struct {
		revenue float64
		cost    float64
		want    int
	}{
		{3200, 5, 63900},
		{0, 5, 0},
		{3200, 0, 0},
		{10, 10, 0},
		{30, 10, 200},
	}
	for _, tt := range tests {
		if got := ROI(tt.revenue, tt.cost); got != tt.want {
			t.Errorf("ROI(%v, %v) = %d, want %d", tt.revenue, tt.cost, got, tt.want)
		}
	}
}

func TestHoursSaved(t *testing.T) {
	if got := HoursSaved(180); got != 12 {
		t.Errorf("HoursSaved(180) = %d", got)
	}
	if got := HoursSaved(0); got != 0 {
		t.Errorf("HoursSaved(0) = %d", got)
	}
}

func TestBuildReportDerivesFigures(t *testing.T) {
	end := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	start := end.Add(-7 * 24 * time.Hour)
	report := BuildReport(Snapshot{
		TotalLeads:       45,
		QuotedLeads:      10,
		RecoveredLeads:   12,
		RecoveredRevenue: 3200,
		TotalMessages:    180,
	}, start, end)

	if report.HoursSaved != 12 {
		t.Errorf("hours saved = %d", report.HoursSaved)
	}
	wantCost := EstimateAICost(180, 10)
	if report.AICost != wantCost {
		t.Errorf("ai cost = %v, want %v", report.AICost, wantCost)
	}
	if report.ROI != ROI(3200, wantCost) {
		t.Errorf("roi = %d", report.ROI)
	}
	if !report.WindowStart.Equal(start) || !report.WindowEnd.Equal(end) {
		t.Error("window bounds not carried")
	}
}

type fixedStore struct {
	snapshot Snapshot
	since    time.Time
}

func (f *fixedStore) Window(_ context.Context, _ uuid.UUID, since time.Time) (Snapshot, error) {
	f.since = since
	return f.snapshot, nil
}

func TestServiceReportWindowBounds(t *testing.T) {
	store := &fixedStore{snapshot: Snapshot{TotalLeads: 3}}
	svc := NewService(store)
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	svc.SetNow(func() time.Time { return now })

	report, err := svc.Report(context.Background(), uuid.New(), 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if !store.since.Equal(now.Add(-24 * time.Hour)) {
		t.Errorf("since = %v", store.since)
	}
	if report.TotalLeads != 3 {
		t.Errorf("total = %d", report.TotalLeads)
	}
}
