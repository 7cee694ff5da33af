package store

import (
	"context"

	"github.com/i474232898/wildfire-risk-assessment/internal/assessment"
)

// StaticTrend serves a fixed weekly risk series until a time-series feed
// replaces it.
type StaticTrend struct {
	points []assessment.HistoricalDataPoint
}

// NewStaticTrend returns the default Mon..Sun series.
func NewStaticTrend() *StaticTrend {
	return &StaticTrend{points: []assessment.HistoricalDataPoint{
		{Label: "Mon", RiskValue: 45},
		{Label: "Tue", RiskValue: 52},
		{Label: "Wed", RiskValue: 48},
		{Label: "Thu", RiskValue: 65},
		{Label: "Fri", RiskValue: 70},
		{Label: "Sat", RiskValue: 82},
		{Label: "Sun", RiskValue: 88},
	}}
}

func (s *StaticTrend) Trend(context.Context) ([]assessment.HistoricalDataPoint, error) {
	out := make([]assessment.HistoricalDataPoint, len(s.points))
	copy(out, s.points)
	return out, nil
}
