// Package capture implements the hybrid capture queue of a timing station:
// arrival instants are frozen first and matched with bibs later, oldest first.
package capture

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/livetiming/internal/model"
)

// Ghost is an arrival instant not yet attributed to a bib.
type Ghost struct {
	ID        string
	Timestamp int64
}

// Queue is a FIFO of ghost timestamps owned by one station. Methods return a
// new Queue and never modify the receiver.
type Queue struct {
	ghosts []Ghost
}

// ResolveFunc maps a bib to its participant and race.
type ResolveFunc func(bib string) (model.Participant, model.Race, error)

// Confirmation is the outcome of matching a bib at the finish.
type Confirmation struct {
	Passage model.Passage
	Ghost   *Ghost
	Batch   model.Batch
}

// NewQueue returns a queue holding ghosts in the given order.
func NewQueue(ghosts ...Ghost) Queue {
	return Queue{ghosts: append([]Ghost(nil), ghosts...)}
}

// Len returns the number of pending ghosts.
func (q Queue) Len() int {
	return len(q.ghosts)
}

// Ghosts returns a copy of the pending ghosts, oldest first.
func (q Queue) Ghosts() []Ghost {
	return append([]Ghost(nil), q.ghosts...)
}

// Enqueue freezes now as a pending arrival.
func (q Queue) Enqueue(now time.Time) Queue {
	ghosts := make([]Ghost, len(q.ghosts), len(q.ghosts)+1)
	copy(ghosts, q.ghosts)
	ghosts = append(ghosts, Ghost{ID: uuid.NewString(), Timestamp: now.UnixMilli()})
	return Queue{ghosts: ghosts}
}

// Remove cancels one ghost by id, keeping the order of the others. Unknown ids
// leave the queue unchanged.
func (q Queue) Remove(id string) Queue {
	ghosts := make([]Ghost, 0, len(q.ghosts))
	for _, g := range q.ghosts {
		if g.ID == id {
			continue
		}
		ghosts = append(ghosts, g)
	}
	return Queue{ghosts: ghosts}
}

// Confirm attributes the oldest ghost, or now when the queue is empty, to
// bib as a finish passage and marks the participant finished. When the bib
// cannot be resolved the queue is returned unchanged.
func (q Queue) Confirm(bib string, resolve ResolveFunc, now time.Time) (Confirmation, Queue, error) {
	participant, race, err := resolve(bib)
	if err != nil {
		return Confirmation{}, q, fmt.Errorf("failed to resolve bib %q: %w", bib, err)
	}

	next := q
	ts := now.UnixMilli()
	var used *Ghost
	if len(q.ghosts) > 0 {
		oldest := q.ghosts[0]
		used = &oldest
		ts = oldest.Timestamp
		next = Queue{ghosts: append([]Ghost(nil), q.ghosts[1:]...)}
	}

	ps := model.Passage{
		ID:             uuid.NewString(),
		ParticipantID:  participant.ID,
		Bib:            participant.Bib,
		CheckpointID:   model.FinishID,
		CheckpointName: model.FinishName,
		Timestamp:      ts,
		NetTime:        ts - model.EffectiveStart(participant, race),
	}
	return Confirmation{
		Passage: ps,
		Ghost:   used,
		Batch: model.Batch{
			InsertPassages: []model.Passage{ps},
			StatusUpdates: []model.StatusUpdate{{
				ParticipantID: participant.ID,
				Status:        model.StatusFinished,
			}},
		},
	}, next, nil
}
