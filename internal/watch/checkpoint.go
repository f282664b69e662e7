package watch

import (
	"time"

	"github.com/zulandar/warwatch/internal/models"
)

// Checkpoint lists, in seconds of round time remaining, descending. The
// final negative entry lets the last poll land just after the round ends.
var (
	fullCheckpoints = []int{
		6000, 5400, 4800, 4200, 3600, 3000, 2400, 1800, 1500, 1200,
		900, 720, 600, 540, 480, 420, 360, 300, 240, 180,
		150, 120, 90, 60, 45, 30, 20, 10, 5, -12,
	}
	lightCheckpoints = []int{600, 300, 120, -12}
)

// Checkpoints returns the threshold list for a watch mode.
func Checkpoints(mode string) []int {
	if mode == models.ModeLight {
		return lightCheckpoints
	}
	return fullCheckpoints
}

// NextCheckpoint picks the greatest threshold strictly below remaining and
// the delay until the round clock reaches it. ok is false when remaining
// is already at or below the last threshold.
func NextCheckpoint(mode string, remaining int) (threshold int, delay time.Duration, ok bool) {
	for _, t := range Checkpoints(mode) {
		if t < remaining {
			return t, time.Duration(remaining-t) * time.Second, true
		}
	}
	return 0, 0, false
}
