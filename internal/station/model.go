// Package station provides the Bubble Tea finish-line capture interface.
package station

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/livetiming/internal/capture"
	"github.com/verte-zerg/livetiming/internal/model"
	"github.com/verte-zerg/livetiming/internal/ranking"
)

const maxRecent = 8

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	ghostStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#B0B0B0"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Background(lipgloss.Color("#3A3222")).Bold(true)
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FBF7F"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// Store is the persistence used by a capture station.
type Store interface {
	Snapshot(ctx context.Context) (model.Snapshot, error)
	ApplyBatch(ctx context.Context, batch model.Batch) error
}

type clockMsg time.Time

type recent struct {
	bib    string
	name   string
	net    int64
	ghost  bool
	remark string
}

// Model implements the Bubble Tea capture station.
type Model struct {
	store   Store
	raceID  string
	station string
	now     func() time.Time

	queue    capture.Queue
	input    textinput.Model
	selected int
	recent   []recent
	errMsg   string
	clock    time.Time

	width  int
	height int
}

// NewModel constructs a capture station for raceID.
func NewModel(store Store, raceID, station string) *Model {
	input := textinput.New()
	input.Placeholder = "bib"
	input.Prompt = "Bib > "
	input.CharLimit = 8
	input.Focus()
	if station == "" {
		station = "finish"
	}
	return &Model{
		store:   store,
		raceID:  raceID,
		station: station,
		now:     time.Now,
		queue:   capture.NewQueue(),
		input:   input,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, clockTick())
}

func clockTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case clockMsg:
		m.clock = time.Time(msg)
		return m, clockTick()
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeySpace:
			m.queue = m.queue.Enqueue(m.now())
			m.errMsg = ""
			return m, nil
		case tea.KeyEnter:
			m.confirm()
			return m, nil
		case tea.KeyUp:
			m.moveSelection(-1)
			return m, nil
		case tea.KeyDown:
			m.moveSelection(1)
			return m, nil
		case tea.KeyCtrlX:
			m.cancelSelected()
			return m, nil
		case tea.KeyEsc:
			m.input.SetValue("")
			m.errMsg = ""
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// confirm matches the typed bib with the oldest ghost and persists the
// passage. The queue only advances once the write succeeded.
func (m *Model) confirm() {
	bib := strings.TrimSpace(m.input.Value())
	if bib == "" {
		return
	}
	ctx := context.Background()
	snap, err := m.store.Snapshot(ctx)
	if err != nil {
		m.errMsg = fmt.Sprintf("failed to read store: %v", err)
		return
	}
	conf, next, err := m.queue.Confirm(bib, resolver(snap, m.raceID), m.now())
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			m.errMsg = fmt.Sprintf("bib %s is not registered in %s", bib, m.raceID)
		} else {
			m.errMsg = err.Error()
		}
		return
	}
	if err := m.store.ApplyBatch(ctx, conf.Batch); err != nil {
		m.errMsg = fmt.Sprintf("failed to save passage: %v", err)
		return
	}
	m.queue = next
	m.clampSelection()
	m.input.SetValue("")
	m.errMsg = ""

	p, _ := snap.FindByBib(m.raceID, bib)
	entry := recent{
		bib:   bib,
		name:  strings.TrimSpace(p.FirstName + " " + p.LastName),
		net:   conf.Passage.NetTime,
		ghost: conf.Ghost != nil,
	}
	if p.Status == model.StatusFinished {
		entry.remark = "again"
	}
	m.recent = append([]recent{entry}, m.recent...)
	if len(m.recent) > maxRecent {
		m.recent = m.recent[:maxRecent]
	}
}

// Pending returns the number of arrivals still waiting for a bib.
func (m *Model) Pending() int {
	return m.queue.Len()
}

func resolver(snap model.Snapshot, raceID string) capture.ResolveFunc {
	return func(bib string) (model.Participant, model.Race, error) {
		race, ok := snap.FindRace(raceID)
		if !ok {
			return model.Participant{}, model.Race{}, fmt.Errorf("race %q: %w", raceID, model.ErrNotFound)
		}
		p, ok := snap.FindByBib(raceID, bib)
		if !ok {
			return model.Participant{}, model.Race{}, fmt.Errorf("bib %q: %w", bib, model.ErrNotFound)
		}
		return p, race, nil
	}
}

func (m *Model) moveSelection(delta int) {
	n := m.queue.Len()
	if n == 0 {
		m.selected = 0
		return
	}
	m.selected = (m.selected + delta + n) % n
}

func (m *Model) cancelSelected() {
	ghosts := m.queue.Ghosts()
	if m.selected < 0 || m.selected >= len(ghosts) {
		return
	}
	m.queue = m.queue.Remove(ghosts[m.selected].ID)
	m.clampSelection()
}

func (m *Model) clampSelection() {
	if n := m.queue.Len(); m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	sections := []string{
		m.renderHeader(),
		m.input.View(),
		m.renderGhosts(),
		m.renderRecent(),
		m.renderFooter(),
	}
	out := strings.Join(sections, "\n\n")
	if m.width > 0 {
		out = lipgloss.NewStyle().MaxWidth(m.width).Render(out)
	}
	return out
}

func (m *Model) renderHeader() string {
	clock := m.clock
	if clock.IsZero() {
		clock = m.now()
	}
	return titleStyle.Render(fmt.Sprintf("%s · %s · %s", m.raceID, m.station, clock.Format("15:04:05")))
}

func (m *Model) renderGhosts() string {
	ghosts := m.queue.Ghosts()
	if len(ghosts) == 0 {
		return ghostStyle.Render("No pending arrivals.")
	}
	lines := []string{ghostStyle.Render(fmt.Sprintf("Pending arrivals (%d)", len(ghosts)))}
	for i, g := range ghosts {
		line := fmt.Sprintf("%2d  %s", i+1, time.UnixMilli(g.Timestamp).Format("15:04:05.000"))
		if i == m.selected {
			lines = append(lines, selectedStyle.Render(line))
		} else {
			lines = append(lines, ghostStyle.Render(line))
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderRecent() string {
	if len(m.recent) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.recent))
	for _, r := range m.recent {
		source := "now"
		if r.ghost {
			source = "queued"
		}
		line := fmt.Sprintf("#%s %s  %s  (%s)", r.bib, r.name, ranking.FormatDuration(r.net), source)
		if r.remark != "" {
			line += " " + r.remark
		}
		lines = append(lines, okStyle.Render(line))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter() string {
	out := footerStyle.Render("Arrival: space  Confirm: enter  Select: up/down  Cancel: ctrl+x  Clear: esc  Quit: ctrl+c")
	if m.errMsg != "" {
		out = errorStyle.Render(m.errMsg) + "\n" + out
	}
	return out
}
