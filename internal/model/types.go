// Package model defines shared data structures.
package model

import "errors"

// Sentinel point identifiers for the implicit start and finish of every race.
const (
	StartID    = "start"
	FinishID   = "finish"
	StartName  = "Départ"
	FinishName = "Arrivée"
)

// UnknownDuration marks a segment the participant has no crossing for.
const UnknownDuration = "--:--:--"

var (
	// ErrNotFound reports an unknown race, participant or bib.
	ErrNotFound = errors.New("not found")
	// ErrNoData reports a participant without crossing events.
	ErrNoData = errors.New("no data")
)

// RaceType distinguishes mass starts from individually timed starts.
type RaceType string

const (
	RaceMassStart  RaceType = "mass"
	RaceIndividual RaceType = "individual"
)

// RaceStatus is the lifecycle state of a race.
type RaceStatus string

const (
	RaceNotStarted RaceStatus = "not-started"
	RaceRunning    RaceStatus = "running"
	RaceFinished   RaceStatus = "finished"
)

// ParticipantStatus is the lifecycle state of a participant.
type ParticipantStatus string

const (
	StatusRegistered ParticipantStatus = "registered"
	StatusStarted    ParticipantStatus = "started"
	StatusFinished   ParticipantStatus = "finished"
	StatusAbandoned  ParticipantStatus = "abandoned"
)

// Checkpoint is a distance-indexed measurement point between start and finish.
type Checkpoint struct {
	ID        string
	Name      string
	Distance  float64
	Mandatory bool
}

// Race describes a course and its timing setup.
type Race struct {
	ID           string
	Name         string
	Distance     float64
	Type         RaceType
	Status       RaceStatus
	StartTime    *int64
	Checkpoints  []Checkpoint
	SegmentNames []string
}

// Participant is a bib-numbered runner registered in one race.
type Participant struct {
	ID        string
	Bib       string
	FirstName string
	LastName  string
	Gender    string
	Category  string
	Club      string
	RaceID    string
	Status    ParticipantStatus
	StartTime *int64
}

// Passage is a timestamped crossing of one measurement point.
type Passage struct {
	ID             string
	ParticipantID  string
	Bib            string
	CheckpointID   string
	CheckpointName string
	Timestamp      int64
	NetTime        int64
}

// SegmentSplit is one course interval as measured for one participant.
type SegmentSplit struct {
	Label      string
	DurationMs int64
	Known      bool
	Duration   string
	Speed      string
	SpeedKmh   float64
	Rank       int
}

// RankedResult is a derived leaderboard row. It is never persisted.
type RankedResult struct {
	ParticipantID  string
	Bib            string
	FirstName      string
	LastName       string
	Gender         string
	Category       string
	Club           string
	Status         ParticipantStatus
	Progress       int
	Rank           int
	GenderRank     int
	CategoryRank   int
	NetTimeMs      int64
	DisplayTime    string
	DisplaySpeed   string
	LastCheckpoint string
	PassedCount    int
	LastTimestamp  int64
	Finished       bool
	Segments       map[string]string
	Splits         []SegmentSplit
}

// Stats summarizes a ranked result set.
type Stats struct {
	TotalEngaged  int
	FinishedCount int
	DNFCount      int
	OnTrackCount  int
}

// Snapshot is an immutable read of the external store.
type Snapshot struct {
	Races        []Race
	Participants []Participant
	Passages     []Passage
}

// StatusUpdate changes one participant's lifecycle status.
type StatusUpdate struct {
	ParticipantID string
	Status        ParticipantStatus
}

// Batch is a write that must be applied all-or-nothing.
type Batch struct {
	DeletePassages []string
	InsertPassages []Passage
	StatusUpdates  []StatusUpdate
}

// Empty reports whether the batch carries no writes.
func (b Batch) Empty() bool {
	return len(b.DeletePassages) == 0 && len(b.InsertPassages) == 0 && len(b.StatusUpdates) == 0
}

// FindRace returns the race with the given id.
func (s Snapshot) FindRace(id string) (Race, bool) {
	for _, r := range s.Races {
		if r.ID == id {
			return r, true
		}
	}
	return Race{}, false
}

// FindByBib returns the participant of a race wearing bib.
func (s Snapshot) FindByBib(raceID, bib string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.RaceID == raceID && p.Bib == bib {
			return p, true
		}
	}
	return Participant{}, false
}

// PassagesFor returns the passages of one participant in input order.
func (s Snapshot) PassagesFor(participantID string) []Passage {
	var out []Passage
	for _, p := range s.Passages {
		if p.ParticipantID == participantID {
			out = append(out, p)
		}
	}
	return out
}

// EffectiveStart returns the participant's start instant, falling back to the
// race start and then to zero.
func EffectiveStart(p Participant, r Race) int64 {
	if p.StartTime != nil {
		return *p.StartTime
	}
	if r.StartTime != nil {
		return *r.StartTime
	}
	return 0
}
