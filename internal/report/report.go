package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/verte-zerg/livetiming/internal/model"
)

// View selects which rank column a leaderboard shows.
type View int

const (
	ViewOverall View = iota
	ViewGender
	ViewCategory
)

// Filter restricts leaderboard rows. Ranks are never recomputed by a filter.
type Filter struct {
	View     View
	Gender   string
	Category string
}

// Apply keeps the rows matching f, preserving overall order.
func (f Filter) Apply(results []model.RankedResult) []model.RankedResult {
	out := make([]model.RankedResult, 0, len(results))
	for _, r := range results {
		if f.Gender != "" && !strings.EqualFold(r.Gender, f.Gender) {
			continue
		}
		if f.Category != "" && !strings.EqualFold(r.Category, f.Category) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// LeaderboardHeaders returns the column titles used by LeaderboardRows.
func LeaderboardHeaders() []string {
	return []string{"Rk", "Bib", "Name", "Sex", "Cat", "Last point", "Prog", "Time", "km/h", "Status"}
}

// LeaderboardRows formats results as table cells.
func LeaderboardRows(results []model.RankedResult, view View) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rank := r.Rank
		switch view {
		case ViewGender:
			rank = r.GenderRank
		case ViewCategory:
			rank = r.CategoryRank
		}
		last := r.LastCheckpoint
		if last == "" {
			last = "-"
		}
		rows = append(rows, []string{
			strconv.Itoa(rank),
			r.Bib,
			FullName(r),
			r.Gender,
			r.Category,
			last,
			fmt.Sprintf("%d%%", r.Progress),
			r.DisplayTime,
			r.DisplaySpeed,
			string(r.Status),
		})
	}
	return rows
}

// FullName joins first and last name, last name upper-cased.
func FullName(r model.RankedResult) string {
	name := strings.TrimSpace(r.FirstName + " " + strings.ToUpper(r.LastName))
	if name == "" {
		return "#" + r.Bib
	}
	return name
}

// RenderLeaderboard prints the filtered leaderboard, truncated to width when
// width is positive.
func RenderLeaderboard(w io.Writer, results []model.RankedResult, f Filter, width int) error {
	rows := f.Apply(results)
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No participants found.")
		return err
	}
	rightAlign := map[int]bool{0: true, 6: true, 8: true}
	return writeLines(w, formatTable(LeaderboardHeaders(), LeaderboardRows(rows, f.View), rightAlign), width)
}

// RenderStats prints the aggregate counters.
func RenderStats(w io.Writer, stats model.Stats) error {
	lines := []string{
		fmt.Sprintf("Engaged: %d", stats.TotalEngaged),
		fmt.Sprintf("Finished: %d", stats.FinishedCount),
		fmt.Sprintf("On course: %d", stats.OnTrackCount),
		fmt.Sprintf("DNF: %d", stats.DNFCount),
	}
	return writeLines(w, lines, 0)
}

// RenderSplits prints one participant's segments with a pace profile.
func RenderSplits(w io.Writer, r model.RankedResult, width int) error {
	header := fmt.Sprintf("#%s %s  rank %d  %s  %d%%", r.Bib, FullName(r), r.Rank, r.DisplayTime, r.Progress)
	if _, err := fmt.Fprintln(w, truncateLine(header, width)); err != nil {
		return err
	}
	rows := make([][]string, 0, len(r.Splits))
	for _, s := range r.Splits {
		rank := "-"
		if s.Rank > 0 {
			rank = strconv.Itoa(s.Rank)
		}
		rows = append(rows, []string{s.Label, s.Duration, s.Speed, rank})
	}
	rightAlign := map[int]bool{2: true, 3: true}
	if err := writeLines(w, formatTable([]string{"Segment", "Time", "km/h", "Rk"}, rows, rightAlign), width); err != nil {
		return err
	}
	if profile := PaceProfile(r.Splits); profile != "" {
		if _, err := fmt.Fprintf(w, "Pace [%s]\n", profile); err != nil {
			return err
		}
	}
	return nil
}

// RenderSegment prints the ranking of one segment.
func RenderSegment(w io.Writer, results []model.RankedResult, segment, width int) error {
	ranked := SegmentRanking(results, segment)
	if len(ranked) == 0 {
		_, err := fmt.Fprintln(w, "No times on this segment yet.")
		return err
	}
	if _, err := fmt.Fprintln(w, ranked[0].Splits[segment].Label); err != nil {
		return err
	}
	rows := make([][]string, 0, len(ranked))
	for _, r := range ranked {
		s := r.Splits[segment]
		rows = append(rows, []string{strconv.Itoa(s.Rank), r.Bib, FullName(r), s.Duration, s.Speed})
	}
	rightAlign := map[int]bool{0: true, 4: true}
	return writeLines(w, formatTable([]string{"Rk", "Bib", "Name", "Time", "km/h"}, rows, rightAlign), width)
}

// SegmentRanking returns the participants with a known time on segment,
// ordered by their segment rank.
func SegmentRanking(results []model.RankedResult, segment int) []model.RankedResult {
	var out []model.RankedResult
	for _, r := range results {
		if segment < 0 || segment >= len(r.Splits) || !r.Splits[segment].Known {
			continue
		}
		out = append(out, r)
	}
	ordered := make([]model.RankedResult, len(out))
	for _, r := range out {
		rank := r.Splits[segment].Rank
		if rank >= 1 && rank <= len(ordered) {
			ordered[rank-1] = r
		}
	}
	return ordered
}

// SegmentLabels returns the segment labels of a result set.
func SegmentLabels(results []model.RankedResult) []string {
	if len(results) == 0 {
		return nil
	}
	labels := make([]string, len(results[0].Splits))
	for i, s := range results[0].Splits {
		labels[i] = s.Label
	}
	return labels
}

func writeLines(w io.Writer, lines []string, width int) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, truncateLine(line, width)); err != nil {
			return err
		}
	}
	return nil
}
