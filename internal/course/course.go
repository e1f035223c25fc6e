// Package course resolves a race definition into its ordered measurement
// points and the named segments between them.
package course

import (
	"sort"
	"strconv"

	"github.com/verte-zerg/livetiming/internal/model"
)

// Point is one measurement point of a course, start and finish included.
type Point struct {
	ID        string
	Name      string
	Distance  float64
	Mandatory bool
}

// Model is the resolved course of one race.
type Model struct {
	Points         []Point
	SegmentNames   []string
	MandatoryIDs   map[string]struct{}
	TotalMandatory int
}

// Resolve builds start, checkpoints by ascending distance, then finish.
// Explicit segment names are used verbatim; missing trailing names are
// synthesized as "A → B".
func Resolve(race model.Race) Model {
	checkpoints := make([]model.Checkpoint, len(race.Checkpoints))
	copy(checkpoints, race.Checkpoints)
	sort.SliceStable(checkpoints, func(i, j int) bool {
		return checkpoints[i].Distance < checkpoints[j].Distance
	})

	points := make([]Point, 0, len(checkpoints)+2)
	points = append(points, Point{ID: model.StartID, Name: model.StartName})
	for _, cp := range checkpoints {
		name := cp.Name
		if name == "" {
			name = cp.ID
		}
		points = append(points, Point{
			ID:        cp.ID,
			Name:      name,
			Distance:  cp.Distance,
			Mandatory: cp.Mandatory,
		})
	}
	points = append(points, Point{
		ID:        model.FinishID,
		Name:      model.FinishName,
		Distance:  race.Distance,
		Mandatory: true,
	})

	names := make([]string, len(points)-1)
	for i := range names {
		if i < len(race.SegmentNames) && race.SegmentNames[i] != "" {
			names[i] = race.SegmentNames[i]
			continue
		}
		names[i] = SegmentLabel(points[i], points[i+1])
	}
	uniqueLabels(names)

	mandatory := map[string]struct{}{}
	for _, p := range points {
		if p.Mandatory {
			mandatory[p.ID] = struct{}{}
		}
	}

	return Model{
		Points:         points,
		SegmentNames:   names,
		MandatoryIDs:   mandatory,
		TotalMandatory: len(mandatory),
	}
}

// SegmentLabel synthesizes the label of the gap between two points.
func SegmentLabel(from, to Point) string {
	return from.Name + " → " + to.Name
}

// uniqueLabels suffixes repeated labels with " (2)", " (3)" and so on, so
// that per-segment lookups by label never merge two segments.
func uniqueLabels(names []string) {
	used := make(map[string]struct{}, len(names))
	for _, n := range names {
		used[n] = struct{}{}
	}
	seen := make(map[string]int, len(names))
	for i, n := range names {
		seen[n]++
		if seen[n] == 1 {
			continue
		}
		for k := seen[n]; ; k++ {
			candidate := n + " (" + strconv.Itoa(k) + ")"
			if _, taken := used[candidate]; !taken {
				names[i] = candidate
				used[candidate] = struct{}{}
				break
			}
		}
	}
}

// IsMandatory reports whether a point id counts toward completion.
func (m Model) IsMandatory(id string) bool {
	_, ok := m.MandatoryIDs[id]
	return ok
}
