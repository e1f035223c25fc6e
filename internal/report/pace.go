package report

import (
	"strings"

	"github.com/verte-zerg/livetiming/internal/model"
)

// paceGlyphs runs from the slowest to the fastest segment of a runner.
const paceGlyphs = "_.-=+*#"

const (
	unknownPace = '?'
	evenPace    = '='
)

// PaceProfile draws one glyph per segment, scaled between the runner's own
// slowest and fastest known segments. Segments without a time show '?'.
// It returns "" when fewer than two segments are known.
func PaceProfile(splits []model.SegmentSplit) string {
	known := 0
	slowest, fastest := 0.0, 0.0
	for _, s := range splits {
		if !s.Known {
			continue
		}
		if known == 0 || s.SpeedKmh < slowest {
			slowest = s.SpeedKmh
		}
		if known == 0 || s.SpeedKmh > fastest {
			fastest = s.SpeedKmh
		}
		known++
	}
	if known < 2 {
		return ""
	}
	spread := fastest - slowest
	var b strings.Builder
	for _, s := range splits {
		switch {
		case !s.Known:
			b.WriteByte(unknownPace)
		case spread < 0.01:
			b.WriteByte(evenPace)
		default:
			step := int((s.SpeedKmh-slowest)/spread*float64(len(paceGlyphs)-1) + 0.5)
			b.WriteByte(paceGlyphs[step])
		}
	}
	return b.String()
}
