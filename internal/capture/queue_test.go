package capture

import (
	"errors"
	"testing"
	"time"

	"github.com/verte-zerg/livetiming/internal/model"
)

func resolverFor(participants ...model.Participant) ResolveFunc {
	start := int64(1000)
	race := model.Race{ID: "r", Distance: 10, StartTime: &start}
	return func(bib string) (model.Participant, model.Race, error) {
		for _, p := range participants {
			if p.Bib == bib {
				return p, race, nil
			}
		}
		return model.Participant{}, model.Race{}, model.ErrNotFound
	}
}

func TestConfirmUsesEnqueuedTimestamp(t *testing.T) {
	resolve := resolverFor(model.Participant{ID: "p1", Bib: "12", RaceID: "r"})
	arrived := time.UnixMilli(5000)
	q := Queue{}.Enqueue(arrived)

	conf, next, err := q.Confirm("12", resolve, time.UnixMilli(9000))
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if conf.Passage.Timestamp != 5000 {
		t.Fatalf("expected ghost timestamp 5000, got %d", conf.Passage.Timestamp)
	}
	if conf.Passage.NetTime != 4000 {
		t.Fatalf("expected net time from race start, got %d", conf.Passage.NetTime)
	}
	if conf.Passage.CheckpointID != model.FinishID || conf.Passage.Bib != "12" {
		t.Fatalf("unexpected passage: %+v", conf.Passage)
	}
	if next.Len() != 0 || q.Len() != 1 {
		t.Fatalf("expected consumed copy and untouched original, got %d/%d", next.Len(), q.Len())
	}
	if len(conf.Batch.StatusUpdates) != 1 || conf.Batch.StatusUpdates[0].Status != model.StatusFinished {
		t.Fatalf("expected finished status update, got %+v", conf.Batch.StatusUpdates)
	}
}

func TestConfirmEmptyQueueUsesNow(t *testing.T) {
	resolve := resolverFor(model.Participant{ID: "p1", Bib: "12"})
	conf, _, err := Queue{}.Confirm("12", resolve, time.UnixMilli(7000))
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if conf.Passage.Timestamp != 7000 || conf.Ghost != nil {
		t.Fatalf("expected now timestamp without ghost, got %+v", conf)
	}
}

func TestConfirmConsumesFIFO(t *testing.T) {
	resolve := resolverFor(
		model.Participant{ID: "a", Bib: "1"},
		model.Participant{ID: "b", Bib: "2"},
		model.Participant{ID: "c", Bib: "3"},
	)
	q := Queue{}
	for _, ms := range []int64{100, 200, 300} {
		q = q.Enqueue(time.UnixMilli(ms))
	}
	var got []int64
	for _, bib := range []string{"1", "2", "3"} {
		conf, next, err := q.Confirm(bib, resolve, time.UnixMilli(999))
		if err != nil {
			t.Fatalf("confirm %s: %v", bib, err)
		}
		got = append(got, conf.Passage.Timestamp)
		q = next
	}
	if got[0] != 100 || got[1] != 200 || got[2] != 300 {
		t.Fatalf("expected FIFO order, got %v", got)
	}
}

func TestConfirmUnknownBibKeepsQueue(t *testing.T) {
	q := Queue{}.Enqueue(time.UnixMilli(100))
	_, next, err := q.Confirm("404", resolverFor(), time.UnixMilli(200))
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if next.Len() != 1 {
		t.Fatalf("expected ghost to stay queued, got %d", next.Len())
	}
}

func TestRemoveKeepsOrder(t *testing.T) {
	q := Queue{}
	for _, ms := range []int64{1, 2, 3} {
		q = q.Enqueue(time.UnixMilli(ms))
	}
	middle := q.Ghosts()[1].ID
	q = q.Remove(middle)
	ghosts := q.Ghosts()
	if len(ghosts) != 2 || ghosts[0].Timestamp != 1 || ghosts[1].Timestamp != 3 {
		t.Fatalf("unexpected queue after remove: %+v", ghosts)
	}
	if q.Remove("unknown").Len() != 2 {
		t.Fatalf("expected unknown id to be ignored")
	}
}

func TestQueuesAreIndependent(t *testing.T) {
	a := Queue{}.Enqueue(time.UnixMilli(1))
	b := Queue{}
	if a.Len() != 1 || b.Len() != 0 {
		t.Fatalf("expected independent queues, got %d/%d", a.Len(), b.Len())
	}
}
