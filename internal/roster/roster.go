// Package roster loads race and participant definitions from TOML files.
package roster

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/verte-zerg/livetiming/internal/model"
)

// File is the on-disk layout of a roster.
type File struct {
	Races        []RaceEntry        `toml:"race"`
	Participants []ParticipantEntry `toml:"participant"`
}

// RaceEntry maps one [[race]] table.
type RaceEntry struct {
	ID          string            `toml:"id"`
	Name        string            `toml:"name"`
	Distance    float64           `toml:"distance"`
	Type        string            `toml:"type"`
	Status      string            `toml:"status"`
	Start       *time.Time        `toml:"start"`
	Segments    []string          `toml:"segments"`
	Checkpoints []CheckpointEntry `toml:"checkpoint"`
}

// CheckpointEntry maps one [[race.checkpoint]] table.
type CheckpointEntry struct {
	ID        string  `toml:"id"`
	Name      string  `toml:"name"`
	Distance  float64 `toml:"distance"`
	Mandatory bool    `toml:"mandatory"`
}

// ParticipantEntry maps one [[participant]] table.
type ParticipantEntry struct {
	ID        string     `toml:"id"`
	Race      string     `toml:"race"`
	Bib       string     `toml:"bib"`
	FirstName string     `toml:"first-name"`
	LastName  string     `toml:"last-name"`
	Gender    string     `toml:"gender"`
	Category  string     `toml:"category"`
	Club      string     `toml:"club"`
	Status    string     `toml:"status"`
	Start     *time.Time `toml:"start"`
}

// Roster is a validated set of races and participants.
type Roster struct {
	Races        []model.Race
	Participants []model.Participant
}

// Load decodes and validates a roster file.
func Load(path string) (Roster, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return Roster{}, fmt.Errorf("failed to decode roster: %w", err)
	}
	return f.Build()
}

// Build validates the decoded file and converts it to model types.
// Participants without an id get one derived from their race and bib, so
// loading the same roster again updates the same rows.
func (f File) Build() (Roster, error) {
	var out Roster
	races := map[string]struct{}{}
	for _, entry := range f.Races {
		race, err := entry.build()
		if err != nil {
			return Roster{}, err
		}
		if _, dup := races[race.ID]; dup {
			return Roster{}, fmt.Errorf("duplicate race id %q", race.ID)
		}
		races[race.ID] = struct{}{}
		out.Races = append(out.Races, race)
	}

	bibs := map[string]struct{}{}
	for _, entry := range f.Participants {
		p, err := entry.build()
		if err != nil {
			return Roster{}, err
		}
		if _, ok := races[p.RaceID]; !ok && len(races) > 0 {
			return Roster{}, fmt.Errorf("participant %q: race %q: %w", p.Bib, p.RaceID, model.ErrNotFound)
		}
		key := p.RaceID + "\x00" + p.Bib
		if _, dup := bibs[key]; dup {
			return Roster{}, fmt.Errorf("duplicate bib %q in race %q", p.Bib, p.RaceID)
		}
		bibs[key] = struct{}{}
		out.Participants = append(out.Participants, p)
	}
	return out, nil
}

func (e RaceEntry) build() (model.Race, error) {
	if strings.TrimSpace(e.ID) == "" {
		return model.Race{}, fmt.Errorf("race id must not be empty")
	}
	if e.Distance <= 0 {
		return model.Race{}, fmt.Errorf("race %q: distance must be > 0", e.ID)
	}
	raceType := model.RaceType(e.Type)
	switch raceType {
	case "":
		raceType = model.RaceMassStart
	case model.RaceMassStart, model.RaceIndividual:
	default:
		return model.Race{}, fmt.Errorf("race %q: unknown type %q", e.ID, e.Type)
	}
	status := model.RaceStatus(e.Status)
	switch status {
	case "":
		status = model.RaceNotStarted
	case model.RaceNotStarted, model.RaceRunning, model.RaceFinished:
	default:
		return model.Race{}, fmt.Errorf("race %q: unknown status %q", e.ID, e.Status)
	}

	race := model.Race{
		ID:           e.ID,
		Name:         e.Name,
		Distance:     e.Distance,
		Type:         raceType,
		Status:       status,
		StartTime:    millis(e.Start),
		SegmentNames: e.Segments,
	}
	if race.Name == "" {
		race.Name = race.ID
	}
	seen := map[string]struct{}{model.StartID: {}, model.FinishID: {}}
	for _, cp := range e.Checkpoints {
		if _, dup := seen[cp.ID]; dup || cp.ID == "" {
			return model.Race{}, fmt.Errorf("race %q: invalid or duplicate checkpoint id %q", e.ID, cp.ID)
		}
		seen[cp.ID] = struct{}{}
		race.Checkpoints = append(race.Checkpoints, model.Checkpoint{
			ID:        cp.ID,
			Name:      cp.Name,
			Distance:  cp.Distance,
			Mandatory: cp.Mandatory,
		})
	}
	return race, nil
}

func (e ParticipantEntry) build() (model.Participant, error) {
	if strings.TrimSpace(e.Bib) == "" {
		return model.Participant{}, fmt.Errorf("participant bib must not be empty")
	}
	gender := strings.ToUpper(strings.TrimSpace(e.Gender))
	if gender != "M" && gender != "F" {
		return model.Participant{}, fmt.Errorf("participant %q: gender must be M or F", e.Bib)
	}
	status := model.ParticipantStatus(e.Status)
	switch status {
	case "":
		status = model.StatusRegistered
	case model.StatusRegistered, model.StatusStarted, model.StatusFinished, model.StatusAbandoned:
	default:
		return model.Participant{}, fmt.Errorf("participant %q: unknown status %q", e.Bib, e.Status)
	}
	id := e.ID
	if id == "" {
		id = participantID(e.Race, e.Bib)
	}
	return model.Participant{
		ID:        id,
		Bib:       e.Bib,
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Gender:    gender,
		Category:  e.Category,
		Club:      e.Club,
		RaceID:    e.Race,
		Status:    status,
		StartTime: millis(e.Start),
	}, nil
}

func participantID(raceID, bib string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(raceID+"\x00"+bib)).String()
}

func millis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
