// Package ranking derives leaderboards, splits and counters from a snapshot
// of races, participants and passages.
package ranking

import (
	"fmt"

	"github.com/verte-zerg/livetiming/internal/model"
)

const msPerHour = 3600000.0

// FormatDuration renders milliseconds as HH:MM:SS. Hours are not capped.
// Negative values render as zero.
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	totalSec := ms / 1000
	sec := totalSec % 60
	min := (totalSec / 60) % 60
	hr := totalSec / 3600
	return fmt.Sprintf("%02d:%02d:%02d", hr, min, sec)
}

// FormatSpeed renders km/h with two decimals, "0.00" when either input is
// not positive.
func FormatSpeed(distanceKm float64, durationMs int64) string {
	return fmt.Sprintf("%.2f", Speed(distanceKm, durationMs))
}

// Speed returns km/h, or zero when either input is not positive.
func Speed(distanceKm float64, durationMs int64) float64 {
	if durationMs <= 0 || distanceKm <= 0 {
		return 0
	}
	return distanceKm / (float64(durationMs) / msPerHour)
}

func unknownSplit(label string) model.SegmentSplit {
	return model.SegmentSplit{
		Label:    label,
		Duration: model.UnknownDuration,
		Speed:    "0.00",
	}
}
