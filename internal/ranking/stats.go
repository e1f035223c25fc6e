package ranking

import "github.com/verte-zerg/livetiming/internal/model"

// ComputeStats counts participants by status over a ranked result set.
func ComputeStats(results []model.RankedResult) model.Stats {
	stats := model.Stats{TotalEngaged: len(results)}
	for _, r := range results {
		switch r.Status {
		case model.StatusFinished:
			stats.FinishedCount++
		case model.StatusAbandoned:
			stats.DNFCount++
		case model.StatusStarted:
			stats.OnTrackCount++
		}
	}
	return stats
}
