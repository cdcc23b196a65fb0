package schedule

import (
	"testing"
	"time"

	"github.com/nicolethornton330-maker/ChronoBot/internal/store"
)

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("LoadLocation(%s): %v", name, err)
	}
	return loc
}

func TestTimeRemaining(t *testing.T) {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		at       time.Time
		wantDesc string
		wantDays int
		passed   bool
	}{
		{
			name:     "days hours minutes",
			at:       now.Add(49*time.Hour + 30*time.Minute),
			wantDesc: "2 days • 1 hour • 30 minutes",
			wantDays: 2,
		},
		{
			name:     "single units unpluralized",
			at:       now.Add(25*time.Hour + 1*time.Minute),
			wantDesc: "1 day • 1 hour • 1 minute",
			wantDays: 1,
		},
		{
			name:     "seconds fallback",
			at:       now.Add(42 * time.Second),
			wantDesc: "42 seconds",
			wantDays: 0,
		},
		{
			name:     "truncates not rounds",
			at:       now.Add(47*time.Hour + 59*time.Minute),
			wantDesc: "1 day • 23 hours • 59 minutes",
			wantDays: 1,
		},
		{
			name:     "already started",
			at:       now.Add(-time.Second),
			wantDesc: StartedDescription,
			wantDays: 0,
			passed:   true,
		},
		{
			name:     "exactly now counts as started",
			at:       now,
			wantDesc: StartedDescription,
			wantDays: 0,
			passed:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, days, passed := TimeRemaining(now, tt.at)
			if desc != tt.wantDesc {
				t.Errorf("description = %q, want %q", desc, tt.wantDesc)
			}
			if days != tt.wantDays {
				t.Errorf("daysFloor = %d, want %d", days, tt.wantDays)
			}
			if passed != tt.passed {
				t.Errorf("passed = %v, want %v", passed, tt.passed)
			}
		})
	}
}

func TestCalendarDaysLeftCrossesMidnight(t *testing.T) {
	loc := mustLocation(t, "America/Chicago")

	// 11:59pm today vs 9:00am tomorrow: under 24 real hours, but one
	// calendar day apart. Milestone matching depends on this.
	now := time.Date(2026, 4, 11, 23, 59, 0, 0, loc)
	at := time.Date(2026, 4, 12, 9, 0, 0, 0, loc)

	if got := CalendarDaysLeft(now, at, loc); got != 1 {
		t.Fatalf("CalendarDaysLeft = %d, want 1", got)
	}

	// Same instant viewed hours earlier is still one day out.
	now = time.Date(2026, 4, 11, 0, 1, 0, 0, loc)
	if got := CalendarDaysLeft(now, at, loc); got != 1 {
		t.Fatalf("CalendarDaysLeft = %d, want 1", got)
	}
}

func TestCalendarDaysLeftAcrossDSTTransition(t *testing.T) {
	loc := mustLocation(t, "America/Chicago")

	// US DST starts 2026-03-08; the day is 23 real hours long but must
	// still count as exactly one calendar day.
	now := time.Date(2026, 3, 7, 12, 0, 0, 0, loc)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)

	if got := CalendarDaysLeft(now, at, loc); got != 3 {
		t.Fatalf("CalendarDaysLeft across DST = %d, want 3", got)
	}
}

func TestClassifyMilestone(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, loc)
	ev := &store.EventRecord{
		Name:       "Launch",
		Timestamp:  time.Date(2026, 4, 12, 9, 0, 0, 0, loc).Unix(),
		Milestones: []int{7, 2, 1, 0},
	}

	out := Classify(now, ev, loc, DefaultGraceWindow, DefaultKeepWindow)
	if out.Kind != Milestone || out.Days != 2 {
		t.Fatalf("Classify = %+v, want Milestone(2)", out)
	}

	// Pure: same inputs, same answer.
	again := Classify(now, ev, loc, DefaultGraceWindow, DefaultKeepWindow)
	if again != out {
		t.Fatalf("Classify not deterministic: %+v vs %+v", again, out)
	}

	// After recording the firing the same tick yields nothing.
	if !ev.MarkMilestone(2) {
		t.Fatal("MarkMilestone(2) = false, want true")
	}
	if out := Classify(now, ev, loc, DefaultGraceWindow, DefaultKeepWindow); out.Kind != None {
		t.Fatalf("Classify after mark = %+v, want None", out)
	}
}

func TestClassifyStartBlast(t *testing.T) {
	loc := time.UTC
	start := time.Date(2026, 4, 12, 9, 0, 0, 0, loc)
	ev := &store.EventRecord{
		Name:       "Launch",
		Timestamp:  start.Unix(),
		Milestones: []int{2, 1, 0},
	}

	// 30 seconds in, within grace: start blast, and never a milestone at
	// the same tick even though offset 0 is configured.
	now := start.Add(30 * time.Second)
	if out := Classify(now, ev, loc, DefaultGraceWindow, DefaultKeepWindow); out.Kind != Start {
		t.Fatalf("Classify = %+v, want Start", out)
	}

	ev.StartAnnounced = true
	if out := Classify(now, ev, loc, DefaultGraceWindow, DefaultKeepWindow); out.Kind != None {
		t.Fatalf("Classify after start announced = %+v, want None", out)
	}

	// Past the grace window the blast is stale; nothing fires, and once
	// the keep window elapses the event reads as expired.
	late := &store.EventRecord{Name: "Late", Timestamp: start.Unix()}
	now = start.Add(DefaultGraceWindow + time.Minute)
	if out := Classify(now, late, loc, DefaultGraceWindow, DefaultKeepWindow); out.Kind != Expired {
		t.Fatalf("Classify past keep window = %+v, want Expired", out)
	}
}

func TestClassifySilenced(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, loc)
	ev := &store.EventRecord{
		Name:       "Quiet",
		Timestamp:  time.Date(2026, 4, 12, 9, 0, 0, 0, loc).Unix(),
		Milestones: []int{2},
		Silenced:   true,
	}

	if out := Classify(now, ev, loc, DefaultGraceWindow, DefaultKeepWindow); out.Kind != None {
		t.Fatalf("Classify silenced = %+v, want None", out)
	}

	// Silencing never blocks cleanup.
	expired := &store.EventRecord{
		Name:           "Old",
		Timestamp:      now.Add(-2 * time.Hour).Unix(),
		Silenced:       true,
		StartAnnounced: true,
	}
	if !ShouldPrune(now, expired, DefaultGraceWindow, DefaultKeepWindow) {
		t.Fatal("ShouldPrune silenced expired event = false, want true")
	}
}

func TestClassifyMilestoneSuppressesRepeat(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, loc)
	ev := &store.EventRecord{
		Name:             "Retreat",
		Timestamp:        time.Date(2026, 4, 12, 9, 0, 0, 0, loc).Unix(),
		Milestones:       []int{2},
		RepeatEveryDays:  1,
		RepeatAnchorDate: "2026-04-01",
	}

	// Both a milestone and a repeat are due today; only the milestone fires.
	out := Classify(now, ev, loc, DefaultGraceWindow, DefaultKeepWindow)
	if out.Kind != Milestone {
		t.Fatalf("Classify = %+v, want Milestone", out)
	}

	// With the milestone consumed, the repeat gets its turn.
	ev.MarkMilestone(2)
	out = Classify(now, ev, loc, DefaultGraceWindow, DefaultKeepWindow)
	if out.Kind != Repeat {
		t.Fatalf("Classify after milestone = %+v, want Repeat", out)
	}

	// And once the repeat is recorded for today, nothing more fires.
	ev.MarkRepeat(now.In(loc).Format(store.DateLayout))
	out = Classify(now, ev, loc, DefaultGraceWindow, DefaultKeepWindow)
	if out.Kind != None {
		t.Fatalf("Classify after repeat = %+v, want None", out)
	}
}

func TestRepeatSchedule(t *testing.T) {
	loc := time.UTC
	at := time.Date(2026, 8, 1, 18, 0, 0, 0, loc)
	ev := &store.EventRecord{
		Name:             "Raid night",
		Timestamp:        at.Unix(),
		RepeatEveryDays:  7,
		RepeatAnchorDate: "2026-04-03",
	}

	tests := []struct {
		name string
		now  time.Time
		want Kind
	}{
		{"on the anchor day itself", time.Date(2026, 4, 3, 10, 0, 0, 0, loc), None},
		{"one week after anchor", time.Date(2026, 4, 10, 10, 0, 0, 0, loc), Repeat},
		{"mid cycle", time.Date(2026, 4, 13, 10, 0, 0, 0, loc), None},
		{"two weeks after anchor", time.Date(2026, 4, 17, 10, 0, 0, 0, loc), Repeat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Classify(tt.now, ev, loc, DefaultGraceWindow, DefaultKeepWindow)
			if out.Kind != tt.want {
				t.Errorf("Classify = %+v, want kind %v", out, tt.want)
			}
		})
	}
}

func TestShouldPrune(t *testing.T) {
	now := time.Date(2026, 4, 12, 12, 0, 0, 0, time.UTC)
	grace := time.Hour
	keep := time.Hour

	tests := []struct {
		name           string
		age            time.Duration
		startAnnounced bool
		want           bool
	}{
		{"future event", -time.Hour, false, false},
		{"thirty minutes in", 30 * time.Minute, true, false},
		{"ninety minutes in announced", 90 * time.Minute, true, true},
		{"ninety minutes in never announced", 90 * time.Minute, false, true},
		{"exactly at keep boundary", time.Hour, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &store.EventRecord{
				Name:           "X",
				Timestamp:      now.Add(-tt.age).Unix(),
				StartAnnounced: tt.startAnnounced,
			}
			if got := ShouldPrune(now, ev, grace, keep); got != tt.want {
				t.Errorf("ShouldPrune = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClampEnforcesKeepAtLeastGrace(t *testing.T) {
	grace, keep := Clamp(2*time.Hour, time.Hour)
	if keep < grace {
		t.Fatalf("Clamp returned keep %v < grace %v", keep, grace)
	}
	grace, keep = Clamp(0, 0)
	if grace != DefaultGraceWindow || keep != DefaultKeepWindow {
		t.Fatalf("Clamp zero values = (%v, %v), want defaults", grace, keep)
	}
}

// The full lifecycle from the add through the start blast.
func TestLaunchScenario(t *testing.T) {
	loc := time.UTC
	added := time.Date(2026, 4, 7, 15, 30, 0, 0, loc)
	start := time.Date(2026, 4, 12, 0, 0, 0, 0, loc) // added + 5 days, midnight
	ev := &store.EventRecord{
		Name:       "Launch",
		Timestamp:  start.Unix(),
		Milestones: []int{7, 2, 1, 0},
	}

	// Three days after the add there are 2 calendar days left.
	now := added.Add(72 * time.Hour)
	out := Classify(now, ev, loc, DefaultGraceWindow, DefaultKeepWindow)
	if out.Kind != Milestone || out.Days != 2 {
		t.Fatalf("Classify at +3d = %+v, want Milestone(2)", out)
	}
	ev.MarkMilestone(2)

	if out := Classify(now, ev, loc, DefaultGraceWindow, DefaultKeepWindow); out.Kind != None {
		t.Fatalf("Classify immediately after apply = %+v, want None", out)
	}

	// Thirty seconds past the start, still inside the grace window.
	now = start.Add(30 * time.Second)
	if out := Classify(now, ev, loc, DefaultGraceWindow, DefaultKeepWindow); out.Kind != Start {
		t.Fatalf("Classify at start+30s = %+v, want Start", out)
	}
}
