// Package schedule holds the pure temporal logic: how far away an event is,
// which calendar day it falls on, and which notification (if any) is due on
// a given tick. Everything here is deterministic given a clock value so it
// can be tested without a Discord connection or real time.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/nicolethornton330-maker/ChronoBot/internal/store"
)

// Default announcement and retention windows after an event starts.
// KeepWindow must be at least GraceWindow; Clamp enforces that.
const (
	DefaultGraceWindow = time.Hour
	DefaultKeepWindow  = time.Hour
)

// Kind is the notification category an event resolves to on one tick.
type Kind int

const (
	None Kind = iota
	Start
	Milestone
	Repeat
	Expired
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case Milestone:
		return "milestone"
	case Repeat:
		return "repeat"
	case Expired:
		return "expired"
	default:
		return "none"
	}
}

// Outcome is the result of classifying one event at one instant. Days is
// the calendar-day distance for Milestone and Repeat outcomes.
type Outcome struct {
	Kind Kind
	Days int
}

// StartedDescription is the remaining-time text once an event has begun.
const StartedDescription = "The event is happening now or has already started!"

// TimeRemaining decomposes the delta until the event into a human
// description plus the truncated whole-day count. Truncating, not rounding:
// 47h59m is "1 day • 23 hours • 59 minutes" with daysFloor 1.
func TimeRemaining(now, at time.Time) (description string, daysFloor int, passed bool) {
	total := int64(at.Sub(now) / time.Second)
	if total <= 0 {
		return StartedDescription, 0, true
	}

	days := total / 86400
	rem := total % 86400
	hours := rem / 3600
	rem %= 3600
	minutes := rem / 60
	seconds := rem % 60

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	return strings.Join(parts, " • "), int(days), false
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// CalendarDaysLeft is the date-only difference between now and the event in
// loc. Distinct from the truncated delta in TimeRemaining: an event at
// 00:01 tomorrow is one calendar day away even if only minutes remain.
// Milestone matching uses this value.
func CalendarDaysLeft(now, at time.Time, loc *time.Location) int {
	return daysBetween(dateOnly(now, loc), dateOnly(at, loc))
}

// dateOnly projects an instant onto its calendar date in loc, anchored at
// UTC midnight so day arithmetic is immune to DST offsets.
func dateOnly(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}

// Clamp returns announcement/retention windows with the invariant
// keep >= grace enforced.
func Clamp(grace, keep time.Duration) (time.Duration, time.Duration) {
	if grace <= 0 {
		grace = DefaultGraceWindow
	}
	if keep < grace {
		keep = grace
	}
	return grace, keep
}

// Classify decides which notification, if any, the event is due for at now.
// At most one category fires per event per tick: a start blast suppresses
// milestone and repeat evaluation, and a milestone suppresses the repeat
// check. Silenced events never notify, but pruning is evaluated separately
// by ShouldPrune.
func Classify(now time.Time, ev *store.EventRecord, loc *time.Location, grace, keep time.Duration) Outcome {
	grace, keep = Clamp(grace, keep)

	if ev.Silenced {
		return Outcome{Kind: None}
	}

	at := ev.When()
	if !at.After(now) {
		since := now.Sub(at)
		if !ev.StartAnnounced && since <= grace {
			return Outcome{Kind: Start}
		}
		if since > keep {
			return Outcome{Kind: Expired}
		}
		return Outcome{Kind: None}
	}

	daysLeft := CalendarDaysLeft(now, at, loc)
	if daysLeft < 0 {
		// Timezone/DST edge; the add path only accepts future instants.
		return Outcome{Kind: None}
	}

	if ev.HasMilestone(daysLeft) && !ev.HasAnnouncedMilestone(daysLeft) {
		return Outcome{Kind: Milestone, Days: daysLeft}
	}

	if repeatDue(now, ev, loc) {
		return Outcome{Kind: Repeat, Days: daysLeft}
	}

	return Outcome{Kind: None}
}

// repeatDue reports whether the recurring reminder fires today: the anchor
// has passed, today lands on a multiple of the interval, and today's date
// key has not fired yet.
func repeatDue(now time.Time, ev *store.EventRecord, loc *time.Location) bool {
	if ev.RepeatEveryDays <= 0 || ev.RepeatAnchorDate == "" {
		return false
	}
	anchor, err := time.ParseInLocation(store.DateLayout, ev.RepeatAnchorDate, loc)
	if err != nil {
		return false
	}
	today := dateOnly(now, loc)
	elapsed := daysBetween(dateOnly(anchor, loc), today)
	if elapsed <= 0 || elapsed%ev.RepeatEveryDays != 0 {
		return false
	}
	return !ev.HasAnnouncedRepeat(now.In(loc).Format(store.DateLayout))
}

// ShouldPrune reports whether an expired event may be deleted. The keep
// window must have elapsed, and either the start blast already fired or the
// grace window itself has fully passed, so a just-started event survives
// long enough for a late start blast even if the process was offline at
// start.
func ShouldPrune(now time.Time, ev *store.EventRecord, grace, keep time.Duration) bool {
	grace, keep = Clamp(grace, keep)
	since := now.Sub(ev.When())
	if since <= keep {
		return false
	}
	return ev.StartAnnounced || since > grace
}
