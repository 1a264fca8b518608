// SPDX-License-Identifier: AGPL-3.0-only
package debugview

import (
	"fmt"
	"strings"
	"time"

	"github.com/netwebdave/autodavesave/internal/model"
)

// Render builds the telemetry text for snap at now.
// It has no side effects: equal inputs give equal text.
func Render(snap model.Snapshot, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Enabled: %s\n", yesNo(snap.Enabled))
	fmt.Fprintf(&b, "Interval: %d minute(s)\n", snap.IntervalMinutes)

	if !snap.Enabled {
		b.WriteString("Next autosave: paused\n")
	} else {
		fmt.Fprintf(&b, "Next autosave in: %s\n", FormatRemaining(Remaining(snap.NextDeadline, now)))
	}

	fmt.Fprintf(&b, "Last autosave: %s\n", FormatLastFire(snap.LastFire))
	b.WriteString("\n")
	b.WriteString("Notes:\n")
	b.WriteString("- Untitled tabs can trigger Save As dialogs.\n")
	fmt.Fprintf(&b, "- Debug refresh interval: %s.\n", refreshLabel)

	return b.String()
}

// Remaining returns deadline - now, floored at zero
func Remaining(deadline, now time.Time) time.Duration {
	d := deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// FormatRemaining renders d in whole seconds as "Xm Ys"
func FormatRemaining(d time.Duration) string {
	secs := int64(d / time.Second)
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}

// FormatLastFire renders the last dispatch outcome
func FormatLastFire(r model.FireResult) string {
	switch r.Status {
	case model.FireSucceeded:
		return r.At.Format("15:04:05")
	case model.FireFailed:
		return fmt.Sprintf("failed (error %d)", r.Code)
	default:
		return "none"
	}
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
