package ranking

import (
	"math"
	"sort"

	"github.com/verte-zerg/livetiming/internal/course"
	"github.com/verte-zerg/livetiming/internal/model"
)

// Extract reduces one participant's passages into a result row. Rank fields
// are left zero; Compute fills them.
func Extract(p model.Participant, race model.Race, cm course.Model, passages []model.Passage) model.RankedResult {
	sorted := make([]model.Passage, len(passages))
	copy(sorted, passages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	// Later passages at the same point overwrite earlier ones.
	atPoint := make(map[string]model.Passage, len(sorted))
	for _, ps := range sorted {
		atPoint[ps.CheckpointID] = ps
	}

	res := model.RankedResult{
		ParticipantID: p.ID,
		Bib:           p.Bib,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		Gender:        p.Gender,
		Category:      p.Category,
		Club:          p.Club,
		Status:        p.Status,
		Segments:      make(map[string]string, len(cm.SegmentNames)),
		Splits:        make([]model.SegmentSplit, 0, len(cm.SegmentNames)),
	}

	_, res.Finished = atPoint[model.FinishID]
	for id := range atPoint {
		if cm.IsMandatory(id) {
			res.PassedCount++
		}
	}
	switch {
	case res.Finished:
		res.Progress = 100
	case cm.TotalMandatory > 0:
		res.Progress = int(math.Round(float64(res.PassedCount) / float64(cm.TotalMandatory) * 100))
	}

	lastDistance := 0.0
	if len(sorted) > 0 {
		last := sorted[len(sorted)-1]
		res.NetTimeMs = last.NetTime
		res.LastTimestamp = last.Timestamp
		res.LastCheckpoint = last.CheckpointName
		for _, pt := range cm.Points {
			if pt.ID == last.CheckpointID {
				lastDistance = pt.Distance
				break
			}
		}
	}
	res.DisplayTime = FormatDuration(res.NetTimeMs)
	res.DisplaySpeed = FormatSpeed(lastDistance, res.NetTimeMs)

	lastPointTime := model.EffectiveStart(p, race)
	lastPointDistance := 0.0
	for i := 1; i < len(cm.Points); i++ {
		pt := cm.Points[i]
		label := cm.SegmentNames[i-1]
		ps, ok := atPoint[pt.ID]
		if !ok {
			res.Splits = append(res.Splits, unknownSplit(label))
			res.Segments[label] = model.UnknownDuration
			continue
		}
		duration := ps.Timestamp - lastPointTime
		distance := pt.Distance - lastPointDistance
		split := model.SegmentSplit{
			Label:      label,
			DurationMs: duration,
			Known:      true,
			Duration:   FormatDuration(duration),
			Speed:      FormatSpeed(distance, duration),
			SpeedKmh:   Speed(distance, duration),
		}
		res.Splits = append(res.Splits, split)
		res.Segments[label] = split.Duration
		lastPointTime = ps.Timestamp
		lastPointDistance = pt.Distance
	}
	return res
}
