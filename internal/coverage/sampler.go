package coverage

import (
	"time"

	"github.com/halverson/satcom-planner/internal/route"
)

// SampleRouteCoverage walks a sample sequence and emits an entry event for
// every satellite that starts covering the aircraft and an exit event for
// every satellite that stops, in sample order.
func SampleRouteCoverage(samples []route.Sample) []Event {
	var events []Event
	prev := map[string]bool{}

	for _, s := range samples {
		curr := make(map[string]bool, len(s.Covering))
		for _, id := range s.Covering {
			curr[id] = true
			if !prev[id] {
				events = append(events, Event{
					Time:        s.Time,
					Type:        EventEntry,
					SatelliteID: id,
					Lat:         s.Lat,
					Lon:         s.Lon,
				})
			}
		}
		for id := range prev {
			if !curr[id] {
				events = append(events, Event{
					Time:        s.Time,
					Type:        EventExit,
					SatelliteID: id,
					Lat:         s.Lat,
					Lon:         s.Lon,
				})
			}
		}
		prev = curr
	}

	return events
}

// AnalyzeKaCoverage classifies constellation coverage over the sample
// sequence. Maximal runs of samples with no covering satellite become gaps;
// a direct change from one satellite to another with no empty interval
// between becomes a swap, with the transition midpoint recorded so handoff
// buffers can be centered on it.
func AnalyzeKaCoverage(samples []route.Sample) Analysis {
	var analysis Analysis

	var gapStart *time.Time
	var lastCovered string
	var lastCoveredTime time.Time

	for _, s := range samples {
		if len(s.Covering) == 0 {
			if gapStart == nil {
				t := s.Time
				gapStart = &t
			}
			continue
		}

		// Covered sample. Close any open gap first.
		if gapStart != nil {
			analysis.Gaps = append(analysis.Gaps, Gap{Start: *gapStart, End: s.Time})
			gapStart = nil
			lastCovered = "" // gap breaks swap continuity
		}

		// Pick the primary covering satellite for swap detection. Samples
		// inside an overlap region keep the previous primary so a handoff is
		// only declared once coverage actually changes hands.
		primary := s.Covering[0]
		if lastCovered != "" {
			for _, id := range s.Covering {
				if id == lastCovered {
					primary = id
					break
				}
			}
		}

		if lastCovered != "" && primary != lastCovered {
			mid := lastCoveredTime.Add(s.Time.Sub(lastCoveredTime) / 2)
			analysis.Swaps = append(analysis.Swaps, Swap{
				Midpoint: mid,
				FromSat:  lastCovered,
				ToSat:    primary,
			})
		}
		lastCovered = primary
		lastCoveredTime = s.Time
	}

	// A gap still open at the end of the mission closes at the last sample.
	if gapStart != nil && len(samples) > 0 {
		analysis.Gaps = append(analysis.Gaps, Gap{
			Start: *gapStart,
			End:   samples[len(samples)-1].Time,
		})
	}

	return analysis
}
