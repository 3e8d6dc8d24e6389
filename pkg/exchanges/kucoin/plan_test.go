package kucoin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veiloq/kucoin-connector/pkg/exchanges/interfaces"
)

func TestIntervalDuration(t *testing.T) {
	tests := []struct {
		interval string
		want     time.Duration
	}{
		{"1min", time.Minute},
		{"30min", 30 * time.Minute},
		{"1hour", time.Hour},
		{"12hour", 12 * time.Hour},
		{"1day", 24 * time.Hour},
		{"1week", 7 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.interval, func(t *testing.T) {
			got, err := intervalDuration(tt.interval)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntervalDuration_Invalid(t *testing.T) {
	for _, interval := range []string{"", "1m", "2min", "1month", "1MIN"} {
		t.Run(interval, func(t *testing.T) {
			_, err := intervalDuration(interval)
			assert.ErrorIs(t, err, interfaces.ErrInvalidInterval)
		})
	}
}

func TestPlanRanges_SingleCall(t *testing.T) {
	start := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(1000 * time.Minute)

	ranges, err := planRanges(start, end, "1min", 1500)
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.Equal(t, start, ranges[0].start)
	assert.Equal(t, end, ranges[0].end)
}

func TestPlanRanges_ExactWindow(t *testing.T) {
	start := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(1500 * time.Minute)

	ranges, err := planRanges(start, end, "1min", 1500)
	require.NoError(t, err)
	require.Len(t, ranges, 1)
}

func TestPlanRanges_SplitsNewestFirst(t *testing.T) {
	start := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(4000 * time.Minute) // 1500 + 1500 + 1000

	ranges, err := planRanges(start, end, "1min", 1500)
	require.NoError(t, err)
	require.Len(t, ranges, 3)

	// fetch order is newest first
	assert.Equal(t, end, ranges[0].end)
	assert.Equal(t, end.Add(-1500*time.Minute), ranges[0].start)
	assert.Equal(t, ranges[0].start, ranges[1].end)
	assert.Equal(t, end.Add(-3000*time.Minute), ranges[1].start)

	// the chronologically earliest range absorbs the remainder
	assert.Equal(t, ranges[1].start, ranges[2].end)
	assert.Equal(t, start, ranges[2].start)
	assert.Equal(t, 1000*time.Minute, ranges[2].end.Sub(ranges[2].start))
}

// The union of planned ranges must cover the requested span exactly, with no
// gap and no overlap between adjacent ranges.
func TestPlanRanges_ExactCoverage(t *testing.T) {
	tests := []struct {
		name     string
		interval string
		span     time.Duration
		maxBars  int
	}{
		{"two hourly windows", "1hour", 2500 * time.Hour, 1500},
		{"many daily windows", "1day", 400 * 24 * time.Hour, 90},
		{"weekly", "1week", 300 * 7 * 24 * time.Hour, 100},
		{"uneven remainder", "5min", 7777 * 5 * time.Minute, 1500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
			end := start.Add(tt.span)

			ranges, err := planRanges(start, end, tt.interval, tt.maxBars)
			require.NoError(t, err)
			require.NotEmpty(t, ranges)

			assert.Equal(t, end, ranges[0].end)
			assert.Equal(t, start, ranges[len(ranges)-1].start)
			for i := 1; i < len(ranges); i++ {
				assert.Equal(t, ranges[i].end, ranges[i-1].start,
					"range %d must abut range %d", i, i-1)
			}

			barDur, err := intervalDuration(tt.interval)
			require.NoError(t, err)
			window := time.Duration(tt.maxBars) * barDur
			for i, r := range ranges {
				assert.True(t, r.end.After(r.start), "range %d must be non-empty", i)
				assert.LessOrEqual(t, r.end.Sub(r.start), window,
					"range %d must not exceed the per-call window", i)
			}
		})
	}
}

func TestPlanRanges_InvalidTimeRange(t *testing.T) {
	now := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)

	_, err := planRanges(now, now, "1min", 1500)
	assert.ErrorIs(t, err, interfaces.ErrInvalidTimeRange)

	_, err = planRanges(now, now.Add(-time.Hour), "1min", 1500)
	assert.ErrorIs(t, err, interfaces.ErrInvalidTimeRange)
}

func TestPlanRanges_InvalidInterval(t *testing.T) {
	start := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := planRanges(start, start.Add(time.Hour), "2min", 1500)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInterval)
}
