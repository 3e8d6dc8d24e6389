package kucoin

import (
	"fmt"
	"time"

	"github.com/veiloq/kucoin-connector/pkg/exchanges/interfaces"
)

// timeRange is one half-open [start, end) slice of the requested span,
// covered by a single API call.
type timeRange struct {
	start time.Time
	end   time.Time
}

// planRanges partitions [start, end) into sub-ranges whose implied bar count
// never exceeds maxBars for the given interval.
//
// Ranges are returned in fetch order, newest first. The exchange reports
// "no more history" as a success response with an empty data array, which is
// only meaningful when walking backward in time: once a window comes back
// empty, every earlier window is empty too and the walk stops. The
// chronologically earliest range absorbs the remainder, so the union of all
// ranges covers [start, end) exactly, with no gap and no overlap.
func planRanges(start, end time.Time, interval string, maxBars int) ([]timeRange, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: start %s is not before end %s",
			interfaces.ErrInvalidTimeRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	barDur, err := intervalDuration(interval)
	if err != nil {
		return nil, err
	}

	window := time.Duration(maxBars) * barDur
	if end.Sub(start) <= window {
		return []timeRange{{start: start, end: end}}, nil
	}

	var ranges []timeRange
	cur := end
	for cur.Sub(start) > window {
		ranges = append(ranges, timeRange{start: cur.Add(-window), end: cur})
		cur = cur.Add(-window)
	}
	if cur.After(start) {
		ranges = append(ranges, timeRange{start: start, end: cur})
	}
	return ranges, nil
}
