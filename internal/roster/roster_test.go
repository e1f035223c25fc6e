package roster

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/verte-zerg/livetiming/internal/model"
)

const sample = `
[[race]]
id = "10k"
name = "10 km"
distance = 10.0
status = "running"
start = 2026-10-19T09:00:00Z

  [[race.checkpoint]]
  id = "cp1"
  name = "Mi-course"
  distance = 5.0
  mandatory = true

[[participant]]
id = "p1"
race = "10k"
bib = "1"
first-name = "Léa"
last-name = "Martin"
gender = "f"
category = "SE"

[[participant]]
race = "10k"
bib = "2"
gender = "M"
start = 2026-10-19T09:01:00Z
`

func writeRoster(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	return path
}

func TestLoadRoster(t *testing.T) {
	r, err := Load(writeRoster(t, sample))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(r.Races) != 1 || len(r.Participants) != 2 {
		t.Fatalf("unexpected roster sizes: %d races, %d participants", len(r.Races), len(r.Participants))
	}
	race := r.Races[0]
	if race.Type != model.RaceMassStart || race.Status != model.RaceRunning {
		t.Fatalf("unexpected race defaults: %+v", race)
	}
	if race.StartTime == nil || *race.StartTime != 1792400400000 {
		t.Fatalf("unexpected race start: %v", race.StartTime)
	}
	if len(race.Checkpoints) != 1 || !race.Checkpoints[0].Mandatory {
		t.Fatalf("unexpected checkpoints: %+v", race.Checkpoints)
	}
	first := r.Participants[0]
	if first.Gender != "F" || first.Status != model.StatusRegistered {
		t.Fatalf("unexpected participant normalization: %+v", first)
	}
	second := r.Participants[1]
	if second.ID == "" {
		t.Fatalf("expected generated id")
	}
	again, err := Load(writeRoster(t, sample))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Participants[1].ID != second.ID {
		t.Fatalf("expected stable id across loads, got %q and %q", second.ID, again.Participants[1].ID)
	}
	if first.ID == second.ID {
		t.Fatalf("expected distinct ids per bib")
	}
	if second.StartTime == nil || *second.StartTime-*race.StartTime != 60000 {
		t.Fatalf("unexpected individual start: %v", second.StartTime)
	}
}

func TestLoadRosterRejectsDuplicateBib(t *testing.T) {
	body := sample + `
[[participant]]
race = "10k"
bib = "1"
gender = "M"
`
	if _, err := Load(writeRoster(t, body)); err == nil || !strings.Contains(err.Error(), "duplicate bib") {
		t.Fatalf("expected duplicate bib error, got %v", err)
	}
}

func TestLoadRosterRejectsUnknownRace(t *testing.T) {
	body := sample + `
[[participant]]
race = "marathon"
bib = "9"
gender = "M"
`
	if _, err := Load(writeRoster(t, body)); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBuildRejectsSentinelCheckpointID(t *testing.T) {
	f := File{Races: []RaceEntry{{
		ID:          "r",
		Distance:    5,
		Checkpoints: []CheckpointEntry{{ID: model.FinishID, Distance: 5}},
	}}}
	if _, err := f.Build(); err == nil {
		t.Fatalf("expected reserved checkpoint id to be rejected")
	}
}
