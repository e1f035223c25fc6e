// Package correction rebuilds a participant's crossing history from another
// participant of the same race.
package correction

import (
	"fmt"
	"sort"

	"github.com/verte-zerg/livetiming/internal/model"
)

// FinishOffsetMs keeps the corrected runner strictly behind the reference.
const FinishOffsetMs = 100

// Correct replaces every passage of target with a copy of the passages of the
// participant wearing referenceBib. The finish passage is shifted by
// FinishOffsetMs and net times are recomputed from target's own start. The
// returned batch must be applied atomically.
func Correct(target model.Participant, referenceBib string, snap model.Snapshot, newID func() string) (model.Batch, error) {
	race, ok := snap.FindRace(target.RaceID)
	if !ok {
		return model.Batch{}, fmt.Errorf("race %q: %w", target.RaceID, model.ErrNotFound)
	}
	reference, ok := snap.FindByBib(target.RaceID, referenceBib)
	if !ok {
		return model.Batch{}, fmt.Errorf("reference bib %q: %w", referenceBib, model.ErrNotFound)
	}
	refPassages := snap.PassagesFor(reference.ID)
	if len(refPassages) == 0 {
		return model.Batch{}, fmt.Errorf("reference bib %q has no passages: %w", referenceBib, model.ErrNoData)
	}
	sort.SliceStable(refPassages, func(i, j int) bool {
		return refPassages[i].Timestamp < refPassages[j].Timestamp
	})

	var batch model.Batch
	for _, ps := range snap.PassagesFor(target.ID) {
		batch.DeletePassages = append(batch.DeletePassages, ps.ID)
	}

	start := model.EffectiveStart(target, race)
	for _, ps := range refPassages {
		ts := ps.Timestamp
		if ps.CheckpointID == model.FinishID {
			ts += FinishOffsetMs
		}
		batch.InsertPassages = append(batch.InsertPassages, model.Passage{
			ID:             newID(),
			ParticipantID:  target.ID,
			Bib:            target.Bib,
			CheckpointID:   ps.CheckpointID,
			CheckpointName: ps.CheckpointName,
			Timestamp:      ts,
			NetTime:        ts - start,
		})
	}
	batch.StatusUpdates = []model.StatusUpdate{{
		ParticipantID: target.ID,
		Status:        reference.Status,
	}}
	return batch, nil
}

// Apply returns snap with batch applied, the way an atomic store write would
// leave it.
func Apply(snap model.Snapshot, batch model.Batch) model.Snapshot {
	deleted := make(map[string]struct{}, len(batch.DeletePassages))
	for _, id := range batch.DeletePassages {
		deleted[id] = struct{}{}
	}
	passages := make([]model.Passage, 0, len(snap.Passages)+len(batch.InsertPassages))
	for _, ps := range snap.Passages {
		if _, ok := deleted[ps.ID]; ok {
			continue
		}
		passages = append(passages, ps)
	}
	passages = append(passages, batch.InsertPassages...)

	statuses := make(map[string]model.ParticipantStatus, len(batch.StatusUpdates))
	for _, u := range batch.StatusUpdates {
		statuses[u.ParticipantID] = u.Status
	}
	participants := make([]model.Participant, len(snap.Participants))
	for i, p := range snap.Participants {
		if status, ok := statuses[p.ID]; ok {
			p.Status = status
		}
		participants[i] = p
	}

	return model.Snapshot{
		Races:        snap.Races,
		Participants: participants,
		Passages:     passages,
	}
}
