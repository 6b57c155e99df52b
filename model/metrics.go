package model

import "time"

type Period string

const PERIOD_DAILY Period = "daily"
const PERIOD_WEEKLY Period = "weekly"
const PERIOD_MONTHLY Period = "monthly"

func ValidPeriod(p string) bool {
	switch Period(p) {
	case PERIOD_DAILY, PERIOD_WEEKLY, PERIOD_MONTHLY:
		return true
	}
	return false
}

// UsageMetric accumulates request/token counters for one tenant, period and
// date bucket. Records are created lazily and mutated by additive merge only.
type UsageMetric struct {
	TenantId        string           `json:"tenantId"`
	Period          Period           `json:"period"`
	Date            string           `json:"date"`
	TotalRequests   int64            `json:"totalRequests"`
	TotalTokens     int64            `json:"totalTokens"`
	RequestsByModel map[string]int64 `json:"requestsByModel"`
	TokensByModel   map[string]int64 `json:"tokensByModel"`
}

// CostMetric is the cost-side counterpart of UsageMetric.
type CostMetric struct {
	TenantId        string             `json:"tenantId"`
	Period          Period             `json:"period"`
	Date            string             `json:"date"`
	TotalCost       float64            `json:"totalCost"`
	CostByModel     map[string]float64 `json:"costByModel"`
	CostByWorkspace map[string]float64 `json:"costByWorkspace"`
}

// BucketDate renders the canonical date key of a period bucket: the UTC day
// for daily, the ISO week's Monday for weekly, the first of month for monthly.
func BucketDate(t time.Time, p Period) string {
	t = t.UTC()
	switch p {
	case PERIOD_WEEKLY:
		offset := (int(t.Weekday()) + 6) % 7
		t = t.AddDate(0, 0, -offset)
	case PERIOD_MONTHLY:
		t = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return t.Format("2006-01-02")
}
