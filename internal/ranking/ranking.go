package ranking

import (
	"sort"

	"github.com/verte-zerg/livetiming/internal/course"
	"github.com/verte-zerg/livetiming/internal/model"
)

// Compute ranks every participant of raceID. An unknown race yields an empty,
// non-nil slice. The snapshot is not modified.
func Compute(snap model.Snapshot, raceID string) []model.RankedResult {
	race, ok := snap.FindRace(raceID)
	if !ok {
		return []model.RankedResult{}
	}
	cm := course.Resolve(race)

	byParticipant := map[string][]model.Passage{}
	for _, ps := range snap.Passages {
		byParticipant[ps.ParticipantID] = append(byParticipant[ps.ParticipantID], ps)
	}

	results := []model.RankedResult{}
	for _, p := range snap.Participants {
		if p.RaceID != raceID {
			continue
		}
		results = append(results, Extract(p, race, cm, byParticipant[p.ID]))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return ahead(results[i], results[j])
	})
	assignRanks(results)
	assignSegmentRanks(results, len(cm.SegmentNames))
	return results
}

// ahead orders by mandatory points passed, then net time when both are
// known, else by the most recent signal.
func ahead(a, b model.RankedResult) bool {
	if a.PassedCount != b.PassedCount {
		return a.PassedCount > b.PassedCount
	}
	if a.NetTimeMs > 0 && b.NetTimeMs > 0 {
		return a.NetTimeMs < b.NetTimeMs
	}
	return a.LastTimestamp < b.LastTimestamp
}

func assignRanks(results []model.RankedResult) {
	genders := map[string]int{}
	categories := map[string]int{}
	for i := range results {
		results[i].Rank = i + 1
		genders[results[i].Gender]++
		results[i].GenderRank = genders[results[i].Gender]
		categories[results[i].Category]++
		results[i].CategoryRank = categories[results[i].Category]
	}
}

func assignSegmentRanks(results []model.RankedResult, segments int) {
	for seg := 0; seg < segments; seg++ {
		idx := make([]int, 0, len(results))
		for i := range results {
			if seg < len(results[i].Splits) && results[i].Splits[seg].Known {
				idx = append(idx, i)
			}
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return results[idx[a]].Splits[seg].DurationMs < results[idx[b]].Splits[seg].DurationMs
		})
		for rank, i := range idx {
			results[i].Splits[seg].Rank = rank + 1
		}
	}
}
