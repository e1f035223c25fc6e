package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/verte-zerg/livetiming/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "livetiming.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestSnapshotRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	start := int64(1000)
	race := model.Race{
		ID:        "r1",
		Name:      "Trail 20",
		Distance:  20,
		Type:      model.RaceMassStart,
		Status:    model.RaceRunning,
		StartTime: &start,
		Checkpoints: []model.Checkpoint{
			{ID: "cp2", Name: "Col", Distance: 15, Mandatory: false},
			{ID: "cp1", Name: "Lac", Distance: 8, Mandatory: true},
		},
		SegmentNames: []string{"Montée", "Crête", "Descente"},
	}
	if err := st.SaveRace(ctx, race); err != nil {
		t.Fatalf("save race: %v", err)
	}
	if err := st.SaveParticipant(ctx, model.Participant{
		ID: "p1", RaceID: "r1", Bib: "42", FirstName: "Ana", LastName: "Roux",
		Gender: "F", Category: "SE", Status: model.StatusStarted,
	}); err != nil {
		t.Fatalf("save participant: %v", err)
	}

	snap, err := st.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Races) != 1 || len(snap.Participants) != 1 || len(snap.Passages) != 0 {
		t.Fatalf("unexpected snapshot sizes: %+v", snap)
	}
	got := snap.Races[0]
	if got.StartTime == nil || *got.StartTime != 1000 {
		t.Fatalf("expected start time 1000, got %v", got.StartTime)
	}
	if len(got.Checkpoints) != 2 || got.Checkpoints[0].ID != "cp2" || !got.Checkpoints[1].Mandatory {
		t.Fatalf("expected checkpoints in stored order, got %+v", got.Checkpoints)
	}
	if len(got.SegmentNames) != 3 || got.SegmentNames[1] != "Crête" {
		t.Fatalf("unexpected segment names: %q", got.SegmentNames)
	}
	if snap.Participants[0].StartTime != nil {
		t.Fatalf("expected no individual start, got %v", *snap.Participants[0].StartTime)
	}
}

func TestApplyBatchIsAtomic(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.SaveRace(ctx, model.Race{ID: "r", Name: "R", Distance: 10}); err != nil {
		t.Fatalf("save race: %v", err)
	}
	if err := st.SaveParticipant(ctx, model.Participant{ID: "p", RaceID: "r", Bib: "1", Status: model.StatusStarted}); err != nil {
		t.Fatalf("save participant: %v", err)
	}
	first := model.Batch{
		InsertPassages: []model.Passage{{ID: "e1", ParticipantID: "p", Bib: "1", CheckpointID: model.FinishID, CheckpointName: model.FinishName, Timestamp: 10, NetTime: 10}},
		StatusUpdates:  []model.StatusUpdate{{ParticipantID: "p", Status: model.StatusFinished}},
	}
	if err := st.ApplyBatch(ctx, first); err != nil {
		t.Fatalf("apply batch: %v", err)
	}

	failing := model.Batch{
		DeletePassages: []string{"e1"},
		InsertPassages: []model.Passage{{ID: "e2", ParticipantID: "p", CheckpointID: model.FinishID, Timestamp: 20, NetTime: 20}},
		StatusUpdates:  []model.StatusUpdate{{ParticipantID: "missing", Status: model.StatusFinished}},
	}
	if err := st.ApplyBatch(ctx, failing); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	snap, err := st.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Passages) != 1 || snap.Passages[0].ID != "e1" {
		t.Fatalf("expected rollback to keep e1 only, got %+v", snap.Passages)
	}
	if snap.Participants[0].Status != model.StatusFinished {
		t.Fatalf("expected finished status, got %s", snap.Participants[0].Status)
	}
}

func TestSaveParticipantRejectsDuplicateBib(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.SaveParticipant(ctx, model.Participant{ID: "a", RaceID: "r", Bib: "7"}); err != nil {
		t.Fatalf("save participant: %v", err)
	}
	if err := st.SaveParticipant(ctx, model.Participant{ID: "b", RaceID: "r", Bib: "7"}); err == nil {
		t.Fatalf("expected duplicate bib within a race to fail")
	}
	if err := st.SaveParticipant(ctx, model.Participant{ID: "c", RaceID: "other", Bib: "7"}); err != nil {
		t.Fatalf("expected same bib in another race to succeed: %v", err)
	}
}

func TestSaveRosterRollsBackOnFailure(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	races := []model.Race{{ID: "r", Name: "R", Distance: 10}}
	participants := []model.Participant{
		{ID: "a", RaceID: "r", Bib: "7", Status: model.StatusRegistered},
		{ID: "b", RaceID: "r", Bib: "7", Status: model.StatusRegistered},
	}
	if err := st.SaveRoster(ctx, races, participants); err == nil {
		t.Fatalf("expected duplicate bib to fail the roster")
	}
	snap, err := st.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Races) != 0 || len(snap.Participants) != 0 {
		t.Fatalf("expected nothing written, got %d races and %d participants", len(snap.Races), len(snap.Participants))
	}
}

func TestSaveRosterTwiceKeepsTimingStatus(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	races := []model.Race{{ID: "r", Name: "R", Distance: 10}}
	participants := []model.Participant{{ID: "a", RaceID: "r", Bib: "7", LastName: "Roux", Status: model.StatusRegistered}}
	if err := st.SaveRoster(ctx, races, participants); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := st.ApplyBatch(ctx, model.Batch{
		StatusUpdates: []model.StatusUpdate{{ParticipantID: "a", Status: model.StatusFinished}},
	}); err != nil {
		t.Fatalf("apply batch: %v", err)
	}

	participants[0].LastName = "Roux-Marin"
	if err := st.SaveRoster(ctx, races, participants); err != nil {
		t.Fatalf("second save: %v", err)
	}
	snap, err := st.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Participants) != 1 {
		t.Fatalf("expected 1 participant, got %d", len(snap.Participants))
	}
	got := snap.Participants[0]
	if got.LastName != "Roux-Marin" || got.Status != model.StatusFinished {
		t.Fatalf("expected updated name and kept status, got %+v", got)
	}
}
