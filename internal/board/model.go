// Package board provides the Bubble Tea live leaderboard used on operator and
// speaker screens.
package board

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/livetiming/internal/model"
	"github.com/verte-zerg/livetiming/internal/ranking"
	"github.com/verte-zerg/livetiming/internal/report"
)

const (
	tabOverall = iota
	tabGender
	tabCategory
	tabSegments
	tabStats
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
)

// Source provides store snapshots.
type Source interface {
	Snapshot(ctx context.Context) (model.Snapshot, error)
}

type snapshotMsg struct {
	snap model.Snapshot
	err  error
}

type tickMsg time.Time

// Model implements the Bubble Tea leaderboard.
type Model struct {
	source  Source
	cache   *ranking.Cache
	raceID  string
	refresh time.Duration

	race      model.Race
	results   []model.RankedResult
	stats     model.Stats
	errMsg    string
	updatedAt time.Time

	tabs      []string
	activeTab int
	table     table.Model
	detail    viewport.Model
	detailOn  bool

	gender   string
	category string
	segment  int

	width  int
	height int
}

// NewModel constructs a leaderboard for raceID refreshed every refresh.
func NewModel(source Source, cache *ranking.Cache, raceID string, refresh time.Duration) *Model {
	if refresh <= 0 {
		refresh = time.Second
	}
	m := &Model{
		source:  source,
		cache:   cache,
		raceID:  raceID,
		refresh: refresh,
		tabs:    []string{"Overall", "Gender", "Category", "Segments", "Stats"},
		detail:  viewport.New(0, 0),
	}
	m.table = table.New(table.WithFocused(true), table.WithHeight(10))
	m.table.SetStyles(tableStyles())
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.tick())
}

func (m *Model) load() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.source.Snapshot(context.Background())
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case tickMsg:
		return m, tea.Batch(m.load(), m.tick())
	case snapshotMsg:
		m.applySnapshot(msg.snap, msg.err)
		return m, nil
	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m *Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
		return m, tea.Quit
	}
	if m.detailOn {
		if msg.Type == tea.KeyEsc || msg.Type == tea.KeyEnter {
			m.detailOn = false
			return m, nil
		}
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}
	switch msg.String() {
	case "left", "h":
		m.moveTab(-1)
		return m, tea.ClearScreen
	case "right", "l":
		m.moveTab(1)
		return m, tea.ClearScreen
	case "g":
		m.gender = cycle(m.distinct(func(r model.RankedResult) string { return r.Gender }), m.gender)
		m.rebuildRows()
		return m, nil
	case "c":
		m.category = cycle(m.distinct(func(r model.RankedResult) string { return r.Category }), m.category)
		m.rebuildRows()
		return m, nil
	case "[":
		m.moveSegment(-1)
		return m, nil
	case "]":
		m.moveSegment(1)
		return m, nil
	case "r":
		return m, m.load()
	case "enter":
		m.openDetail()
		return m, nil
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) applySnapshot(snap model.Snapshot, err error) {
	if err != nil {
		m.errMsg = err.Error()
		return
	}
	m.errMsg = ""
	race, ok := snap.FindRace(m.raceID)
	if !ok {
		m.errMsg = fmt.Sprintf("race %q not found", m.raceID)
	}
	m.race = race
	m.results = m.cache.Compute(snap, m.raceID)
	m.stats = ranking.ComputeStats(m.results)
	m.updatedAt = time.Now()
	if labels := report.SegmentLabels(m.results); m.segment >= len(labels) {
		m.segment = 0
	}
	m.rebuildRows()
}

// visible returns the rows shown by the active tab in display order.
func (m *Model) visible() []model.RankedResult {
	switch m.activeTab {
	case tabGender:
		return report.Filter{Gender: m.gender}.Apply(m.results)
	case tabCategory:
		return report.Filter{Category: m.category}.Apply(m.results)
	case tabSegments:
		return report.SegmentRanking(m.results, m.segment)
	}
	return m.results
}

func (m *Model) rebuildRows() {
	rows := m.visible()
	var cols []table.Column
	var cells [][]string
	if m.activeTab == tabSegments {
		cols = columns([]string{"Rk", "Bib", "Name", "Time", "km/h"}, m.width)
		for _, r := range rows {
			s := r.Splits[m.segment]
			cells = append(cells, []string{fmt.Sprintf("%d", s.Rank), r.Bib, report.FullName(r), s.Duration, s.Speed})
		}
	} else {
		view := report.ViewOverall
		switch m.activeTab {
		case tabGender:
			view = report.ViewGender
		case tabCategory:
			view = report.ViewCategory
		}
		cols = columns(report.LeaderboardHeaders(), m.width)
		cells = report.LeaderboardRows(rows, view)
	}
	tableRows := make([]table.Row, len(cells))
	for i, c := range cells {
		tableRows[i] = table.Row(c)
	}
	m.table.SetRows(nil)
	m.table.SetColumns(cols)
	m.table.SetRows(tableRows)
	if m.table.Cursor() >= len(tableRows) {
		m.table.SetCursor(maxInt(0, len(tableRows)-1))
	}
}

func (m *Model) openDetail() {
	if m.activeTab == tabStats {
		return
	}
	rows := m.visible()
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(rows) {
		return
	}
	var buf bytes.Buffer
	if err := report.RenderSplits(&buf, rows[idx], m.width); err != nil {
		m.errMsg = err.Error()
		return
	}
	m.detail.SetContent(strings.TrimRight(buf.String(), "\n"))
	m.detail.GotoTop()
	m.detailOn = true
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	m.table.SetCursor(0)
	m.rebuildRows()
}

func (m *Model) moveSegment(delta int) {
	labels := report.SegmentLabels(m.results)
	if len(labels) == 0 {
		return
	}
	m.segment = (m.segment + delta + len(labels)) % len(labels)
	m.table.SetCursor(0)
	m.rebuildRows()
}

func (m *Model) distinct(key func(model.RankedResult) string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range m.results {
		k := key(r)
		if _, ok := seen[k]; ok || k == "" {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// cycle returns the value after current in values, wrapping to "" (all).
func cycle(values []string, current string) string {
	if current == "" {
		if len(values) == 0 {
			return ""
		}
		return values[0]
	}
	for i, v := range values {
		if v == current {
			if i+1 < len(values) {
				return values[i+1]
			}
			return ""
		}
	}
	return ""
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.table.SetWidth(m.width)
	m.table.SetHeight(maxInt(1, bodyHeight-1))
	m.detail.Width = m.width
	m.detail.Height = bodyHeight
	m.rebuildRows()
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderTabs()+"\n"+m.renderSummary(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderSummary() string {
	name := m.race.Name
	if name == "" {
		name = m.raceID
	}
	parts := []string{fmt.Sprintf("%s  %.1f km", name, m.race.Distance)}
	switch m.activeTab {
	case tabGender:
		parts = append(parts, "sex="+orAll(m.gender))
	case tabCategory:
		parts = append(parts, "cat="+orAll(m.category))
	case tabSegments:
		if labels := report.SegmentLabels(m.results); len(labels) > 0 {
			parts = append(parts, fmt.Sprintf("segment %d/%d: %s", m.segment+1, len(labels), labels[m.segment]))
		}
	}
	if !m.updatedAt.IsZero() {
		parts = append(parts, "updated "+m.updatedAt.Format("15:04:05"))
	}
	return headerStyle.Render(strings.Join(parts, "  ·  "))
}

func (m *Model) renderBody() string {
	if m.detailOn {
		return m.detail.View()
	}
	if m.activeTab == tabStats {
		return renderStatsCards(m.stats, m.width)
	}
	if len(m.table.Rows()) == 0 {
		return "No participants yet."
	}
	return m.table.View()
}

func (m *Model) renderFooter() string {
	help := "Nav: left/right  Scroll: up/down  Splits: enter  Refresh: r  Quit: q"
	switch m.activeTab {
	case tabGender:
		help = "Nav: left/right  Sex: g  Splits: enter  Quit: q"
	case tabCategory:
		help = "Nav: left/right  Category: c  Splits: enter  Quit: q"
	case tabSegments:
		help = "Nav: left/right  Segment: [ ]  Splits: enter  Quit: q"
	}
	if m.detailOn {
		help = "Back: esc  Scroll: up/down  Quit: q"
	}
	out := headerStyle.Render(help)
	if m.errMsg != "" {
		out += "\n" + errorStyle.Render(m.errMsg)
	}
	return out
}

func renderStatsCards(stats model.Stats, width int) string {
	cards := []string{
		metricCard("Engaged", fmt.Sprintf("%d", stats.TotalEngaged)),
		metricCard("Finished", fmt.Sprintf("%d", stats.FinishedCount)),
		metricCard("On course", fmt.Sprintf("%d", stats.OnTrackCount)),
		metricCard("DNF", fmt.Sprintf("%d", stats.DNFCount)),
	}
	if width < 60 {
		return strings.Join(cards, "\n")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func columns(titles []string, width int) []table.Column {
	cols := make([]table.Column, len(titles))
	fixed := 0
	nameIdx := -1
	for i, title := range titles {
		w := maxInt(lipgloss.Width(title), 5)
		switch title {
		case "Name":
			nameIdx = i
			w = 24
		case "Last point":
			w = 14
		case "Time":
			w = 9
		case "Status":
			w = 10
		}
		cols[i] = table.Column{Title: title, Width: w}
		fixed += w + 2
	}
	if nameIdx >= 0 && width > fixed {
		cols[nameIdx].Width += width - fixed
	}
	return cols
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#F0F0F0")).
		Background(lipgloss.Color("#3A3222")).
		Bold(true)
	return styles
}

func orAll(v string) string {
	if v == "" {
		return "all"
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}
