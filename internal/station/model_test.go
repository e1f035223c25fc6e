package station

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/livetiming/internal/correction"
	"github.com/verte-zerg/livetiming/internal/model"
)

type memStore struct {
	snap    model.Snapshot
	failErr error
}

func (s *memStore) Snapshot(context.Context) (model.Snapshot, error) {
	return s.snap, nil
}

func (s *memStore) ApplyBatch(_ context.Context, batch model.Batch) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.snap = correction.Apply(s.snap, batch)
	return nil
}

func int64Ptr(v int64) *int64 { return &v }

func newStation(t *testing.T) (*Model, *memStore) {
	t.Helper()
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	st := &memStore{snap: model.Snapshot{
		Races: []model.Race{{ID: "r10", Name: "10K", Distance: 10, StartTime: int64Ptr(start.UnixMilli())}},
		Participants: []model.Participant{
			{ID: "p1", Bib: "12", FirstName: "Ana", LastName: "Roux", RaceID: "r10", Status: model.StatusStarted},
		},
	}}
	m := NewModel(st, "r10", "")
	clock := start.Add(40 * time.Minute)
	m.now = func() time.Time { return clock }
	return m, st
}

func typeBib(m *Model, bib string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(bib)})
}

func TestConfirmUsesOldestGhost(t *testing.T) {
	m, st := newStation(t)
	m.Update(tea.KeyMsg{Type: tea.KeySpace})
	ghost := m.queue.Ghosts()[0]
	m.now = func() time.Time { return time.UnixMilli(ghost.Timestamp).Add(time.Minute) }

	typeBib(m, "12")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if m.errMsg != "" {
		t.Fatalf("unexpected error: %s", m.errMsg)
	}
	if m.queue.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", m.queue.Len())
	}
	if len(st.snap.Passages) != 1 {
		t.Fatalf("expected 1 passage, got %d", len(st.snap.Passages))
	}
	ps := st.snap.Passages[0]
	if ps.Timestamp != ghost.Timestamp || ps.NetTime != 40*60*1000 {
		t.Fatalf("unexpected passage %+v", ps)
	}
	if st.snap.Participants[0].Status != model.StatusFinished {
		t.Fatalf("expected finished status, got %s", st.snap.Participants[0].Status)
	}
	if m.input.Value() != "" {
		t.Fatalf("expected input cleared, got %q", m.input.Value())
	}
	if !strings.Contains(m.renderRecent(), "00:40:00") {
		t.Fatalf("expected net time in recent list: %s", m.renderRecent())
	}
}

func TestConfirmWithoutGhostUsesNow(t *testing.T) {
	m, st := newStation(t)
	typeBib(m, "12")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if len(st.snap.Passages) != 1 || st.snap.Passages[0].Timestamp != m.now().UnixMilli() {
		t.Fatalf("unexpected passages %+v", st.snap.Passages)
	}
}

func TestUnknownBibKeepsQueue(t *testing.T) {
	m, st := newStation(t)
	m.Update(tea.KeyMsg{Type: tea.KeySpace})
	typeBib(m, "99")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.errMsg == "" || !strings.Contains(m.errMsg, "99") {
		t.Fatalf("expected unknown bib error, got %q", m.errMsg)
	}
	if m.queue.Len() != 1 || len(st.snap.Passages) != 0 {
		t.Fatalf("expected queue kept and no writes")
	}
	if m.input.Value() != "99" {
		t.Fatalf("expected input kept, got %q", m.input.Value())
	}
}

func TestFailedWriteKeepsQueue(t *testing.T) {
	m, st := newStation(t)
	st.failErr = errors.New("disk full")
	m.Update(tea.KeyMsg{Type: tea.KeySpace})
	typeBib(m, "12")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(m.errMsg, "disk full") {
		t.Fatalf("expected write error, got %q", m.errMsg)
	}
	if m.queue.Len() != 1 {
		t.Fatalf("expected ghost kept, got %d", m.queue.Len())
	}
}

func TestCancelSelectedGhost(t *testing.T) {
	m, _ := newStation(t)
	m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m.now = func() time.Time { return time.Date(2026, 10, 19, 9, 41, 0, 0, time.UTC) }
	m.Update(tea.KeyMsg{Type: tea.KeySpace})
	first := m.queue.Ghosts()[0]

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlX})

	ghosts := m.queue.Ghosts()
	if len(ghosts) != 1 || ghosts[0].ID != first.ID {
		t.Fatalf("expected only the first ghost to remain, got %+v", ghosts)
	}
	if m.selected != 0 {
		t.Fatalf("expected selection clamped, got %d", m.selected)
	}
}

func TestRenderFooterShowsError(t *testing.T) {
	m, _ := newStation(t)
	m.errMsg = "bib 7 is not registered in r10"
	out := m.renderFooter()
	if !strings.Contains(out, "bib 7") || !strings.Contains(out, "Arrival: space") {
		t.Fatalf("unexpected footer: %s", out)
	}
}
