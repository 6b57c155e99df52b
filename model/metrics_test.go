package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidPeriod(t *testing.T) {
	assert.True(t, ValidPeriod("daily"))
	assert.True(t, ValidPeriod("weekly"))
	assert.True(t, ValidPeriod("monthly"))
	assert.False(t, ValidPeriod("yearly"))
	assert.False(t, ValidPeriod(""))
	assert.False(t, ValidPeriod("Daily"))
}

func TestBucketDateDaily(t *testing.T) {
	ts := time.Date(2024, 3, 14, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-14", BucketDate(ts, PERIOD_DAILY))
}

func TestBucketDateWeeklySnapsToMonday(t *testing.T) {
	// 2024-03-14 is a Thursday; its ISO week starts Monday 2024-03-11
	thursday := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-11", BucketDate(thursday, PERIOD_WEEKLY))

	monday := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-11", BucketDate(monday, PERIOD_WEEKLY))

	sunday := time.Date(2024, 3, 17, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-11", BucketDate(sunday, PERIOD_WEEKLY))
}

func TestBucketDateMonthly(t *testing.T) {
	ts := time.Date(2024, 3, 31, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-01", BucketDate(ts, PERIOD_MONTHLY))
}

func TestBucketDateUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	// local 2024-03-15 08:00 is still 2024-03-14 in UTC
	ts := time.Date(2024, 3, 15, 8, 0, 0, 0, loc)
	assert.Equal(t, "2024-03-14", BucketDate(ts, PERIOD_DAILY))
}
