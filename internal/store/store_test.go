package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	s := openTemp(t)

	s.View(func(st *State) {
		if len(st.Guilds) != 0 || len(st.UserLinks) != 0 {
			t.Errorf("expected empty state, got %d guilds / %d links", len(st.Guilds), len(st.UserLinks))
		}
	})

	// Nothing was persisted yet.
	if _, err := os.Stat(s.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("state file exists before first write: %v", err)
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "state.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Update(func(st *State) error {
		st.Guild("g1")
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("state file not written: %v", err)
	}
}

func TestUpdatePersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	err = s.Update(func(st *State) error {
		g := st.Guild("guild-1")
		g.EventChannelID = "chan-1"
		g.Events = append(g.Events, &EventRecord{Name: "Launch", Timestamp: 1800000000})
		st.UserLinks["user-1"] = "guild-1"
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	reopened.View(func(st *State) {
		g, ok := st.Guilds["guild-1"]
		if !ok {
			t.Fatal("guild-1 missing after reload")
		}
		if g.EventChannelID != "chan-1" {
			t.Errorf("EventChannelID = %q, want chan-1", g.EventChannelID)
		}
		if len(g.Events) != 1 || g.Events[0].Name != "Launch" {
			t.Errorf("events = %+v, want one Launch", g.Events)
		}
		if st.UserLinks["user-1"] != "guild-1" {
			t.Errorf("user link = %q, want guild-1", st.UserLinks["user-1"])
		}
	})
}

func TestUpdateErrorAborts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Update(func(st *State) error {
		st.Guild("g1")
		return nil
	}); err != nil {
		t.Fatalf("seed Update: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	boom := errors.New("boom")
	if err := s.Update(func(st *State) error {
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("Update error = %v, want boom", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(before) != string(after) {
		t.Error("file changed even though the callback failed")
	}
}

func TestUpdateNoChangeSkipsWrite(t *testing.T) {
	s := openTemp(t)

	if err := s.Update(func(st *State) error {
		return ErrNoChange
	}); err != nil {
		t.Fatalf("Update with ErrNoChange = %v, want nil", err)
	}
	if _, err := os.Stat(s.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ErrNoChange still wrote the file: %v", err)
	}
}

func TestOpenQuarantinesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := os.WriteFile(path, []byte("{definitely not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.View(func(st *State) {
		if len(st.Guilds) != 0 {
			t.Errorf("expected empty state after quarantine, got %d guilds", len(st.Guilds))
		}
	})

	// The broken file was moved aside, not deleted.
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("corrupt file still at original path: %v", err)
	}
	matches, err := filepath.Glob(path + ".corrupt-*")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("quarantine files = %v, want exactly one", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("ReadFile quarantine: %v", err)
	}
	if string(data) != "{definitely not json" {
		t.Errorf("quarantined contents = %q", data)
	}
}

func TestOpenIgnoresStrayTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	good, err := json.Marshal(&State{
		Guilds:    map[string]*GuildConfig{"g1": {}},
		UserLinks: map[string]string{},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := os.WriteFile(path, good, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// A crash between the temp write and the rename leaves this behind.
	if err := os.WriteFile(path+".tmp", []byte("partial garbage"), 0o644); err != nil {
		t.Fatalf("WriteFile tmp: %v", err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.View(func(st *State) {
		if _, ok := st.Guilds["g1"]; !ok {
			t.Error("g1 missing, stray temp file corrupted the load")
		}
	})
}

func TestSequentialUpdatesAccumulate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for _, id := range []string{"g1", "g2", "g3"} {
		id := id
		if err := s.Update(func(st *State) error {
			st.Guild(id).EventChannelID = "chan-" + id
			return nil
		}); err != nil {
			t.Fatalf("Update %s: %v", id, err)
		}
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	reopened.View(func(st *State) {
		for _, id := range []string{"g1", "g2", "g3"} {
			g, ok := st.Guilds[id]
			if !ok {
				t.Errorf("guild %s lost", id)
				continue
			}
			if g.EventChannelID != "chan-"+id {
				t.Errorf("guild %s channel = %q", id, g.EventChannelID)
			}
		}
	})
}

func TestNormalizeSortsEventsAndFillsDefaults(t *testing.T) {
	g := &GuildConfig{
		Events: []*EventRecord{
			{Name: "Later", Timestamp: 300},
			{Name: "Sooner", Timestamp: 100},
			{Name: "Middle", Timestamp: 200},
		},
	}
	g.Normalize()

	want := []string{"Sooner", "Middle", "Later"}
	for i, name := range want {
		if g.Events[i].Name != name {
			t.Errorf("Events[%d] = %s, want %s", i, g.Events[i].Name, name)
		}
	}
	if len(g.DefaultMilestones) != len(DefaultMilestones) {
		t.Errorf("DefaultMilestones = %v, want %v", g.DefaultMilestones, DefaultMilestones)
	}
}

func TestRescheduleResetsHistory(t *testing.T) {
	ev := &EventRecord{
		Name:                 "Launch",
		Timestamp:            1000,
		Milestones:           []int{7, 2, 1, 0},
		AnnouncedMilestones:  []int{7, 2},
		AnnouncedRepeatDates: []string{"2026-04-01"},
		StartAnnounced:       true,
	}
	ev.Reschedule(2000)

	if ev.Timestamp != 2000 {
		t.Errorf("Timestamp = %d, want 2000", ev.Timestamp)
	}
	if len(ev.AnnouncedMilestones) != 0 {
		t.Errorf("AnnouncedMilestones = %v, want empty", ev.AnnouncedMilestones)
	}
	if len(ev.AnnouncedRepeatDates) != 0 {
		t.Errorf("AnnouncedRepeatDates = %v, want empty", ev.AnnouncedRepeatDates)
	}
	if ev.StartAnnounced {
		t.Error("StartAnnounced still true after reschedule")
	}
	if len(ev.Milestones) != 4 {
		t.Errorf("Milestones = %v, configuration must survive a reschedule", ev.Milestones)
	}
}

func TestSetMilestonesIntersectsAnnounced(t *testing.T) {
	ev := &EventRecord{
		Milestones:          []int{100, 60, 30, 14},
		AnnouncedMilestones: []int{100, 30},
	}
	ev.SetMilestones([]int{30, 14, 7, 7, 0})

	wantList := []int{0, 7, 14, 30}
	if len(ev.Milestones) != len(wantList) {
		t.Fatalf("Milestones = %v, want %v", ev.Milestones, wantList)
	}
	for i, n := range wantList {
		if ev.Milestones[i] != n {
			t.Fatalf("Milestones = %v, want %v", ev.Milestones, wantList)
		}
	}
	// 100 is gone from the config so its announced mark goes with it; 30
	// survives so the new config cannot re-fire it.
	if len(ev.AnnouncedMilestones) != 1 || ev.AnnouncedMilestones[0] != 30 {
		t.Errorf("AnnouncedMilestones = %v, want [30]", ev.AnnouncedMilestones)
	}
}

func TestMarkMilestoneGuards(t *testing.T) {
	ev := &EventRecord{Milestones: []int{7, 2}}

	if !ev.MarkMilestone(7) {
		t.Error("first MarkMilestone(7) = false")
	}
	if ev.MarkMilestone(7) {
		t.Error("second MarkMilestone(7) = true, want false")
	}
	if ev.MarkMilestone(3) {
		t.Error("MarkMilestone for unconfigured offset = true, want false")
	}
}

func TestMarkRepeatCapsHistory(t *testing.T) {
	dateKey := func(i int) string {
		return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i).Format(DateLayout)
	}

	ev := &EventRecord{}
	for i := 0; i < MaxRepeatHistory+25; i++ {
		if !ev.MarkRepeat(dateKey(i)) {
			t.Fatalf("MarkRepeat(%s) = false", dateKey(i))
		}
	}
	if len(ev.AnnouncedRepeatDates) != MaxRepeatHistory {
		t.Fatalf("history length = %d, want %d", len(ev.AnnouncedRepeatDates), MaxRepeatHistory)
	}
	// Oldest entries dropped, newest kept.
	if ev.HasAnnouncedRepeat(dateKey(0)) {
		t.Error("oldest entry survived the cap")
	}
	if !ev.HasAnnouncedRepeat(dateKey(MaxRepeatHistory + 24)) {
		t.Error("newest entry missing")
	}
	if ev.MarkRepeat(dateKey(MaxRepeatHistory + 24)) {
		t.Error("duplicate MarkRepeat = true, want false")
	}
}

func TestEventAdminRoles(t *testing.T) {
	g := &GuildConfig{}

	if !g.AddEventAdminRole("role-b") {
		t.Fatal("first AddEventAdminRole(role-b) = false")
	}
	if !g.AddEventAdminRole("role-a") {
		t.Fatal("AddEventAdminRole(role-a) = false")
	}
	if g.AddEventAdminRole("role-a") {
		t.Error("duplicate AddEventAdminRole = true, want false")
	}

	// Kept sorted for stable persistence.
	if len(g.EventAdminRoleIDs) != 2 || g.EventAdminRoleIDs[0] != "role-a" || g.EventAdminRoleIDs[1] != "role-b" {
		t.Fatalf("EventAdminRoleIDs = %v, want [role-a role-b]", g.EventAdminRoleIDs)
	}

	if !g.RemoveEventAdminRole("role-b") {
		t.Fatal("RemoveEventAdminRole(role-b) = false")
	}
	if g.RemoveEventAdminRole("role-b") {
		t.Error("second RemoveEventAdminRole = true, want false")
	}
	if len(g.EventAdminRoleIDs) != 1 || g.EventAdminRoleIDs[0] != "role-a" {
		t.Fatalf("EventAdminRoleIDs = %v, want [role-a]", g.EventAdminRoleIDs)
	}
}

func TestFindEventMatchesIdentityPair(t *testing.T) {
	g := &GuildConfig{
		Events: []*EventRecord{
			{Name: "Launch", Timestamp: 100},
			{Name: "Launch", Timestamp: 200},
			{Name: "Party", Timestamp: 100},
		},
	}

	if ev := g.FindEvent("Launch", 200); ev == nil || ev.Timestamp != 200 {
		t.Errorf("FindEvent(Launch, 200) = %+v", ev)
	}
	if ev := g.FindEvent("Launch", 999); ev != nil {
		t.Errorf("FindEvent with wrong timestamp = %+v, want nil", ev)
	}
	if ev := g.FindEvent("Nothing", 100); ev != nil {
		t.Errorf("FindEvent with wrong name = %+v, want nil", ev)
	}
}
