package aggregator

import "github.com/vats98754/aus-job-fetcher/internal/models"

// ComputeStats fills the record-set counters of stats from records.
func ComputeStats(records []models.CanonicalRecord, stats models.Stats) models.Stats {
	stats.Total = len(records)
	stats.WithPostedAt = 0
	stats.WithinHour = 0
	stats.WithinDay = 0
	for _, r := range records {
		if r.PostedAt == nil {
			continue
		}
		stats.WithPostedAt++
		if r.HoursSincePosted == nil {
			continue
		}
		if *r.HoursSincePosted <= 1 {
			stats.WithinHour++
		}
		if *r.HoursSincePosted <= 24 {
			stats.WithinDay++
		}
	}
	return stats
}
