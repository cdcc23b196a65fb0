package reconcile_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nicolethornton330-maker/ChronoBot/internal/platform"
	"github.com/nicolethornton330-maker/ChronoBot/internal/store"
)

func newPinnedRig(t *testing.T) *rig {
	t.Helper()
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	r := newRig(t, now)
	r.addGuild(t, "g1", "c1", &store.EventRecord{
		Name:      "Launch",
		Timestamp: time.Date(2026, 4, 12, 9, 0, 0, 0, time.UTC).Unix(),
	})
	return r
}

func TestRefreshCreatesAndPinsStatusMessage(t *testing.T) {
	r := newPinnedRig(t)

	if err := r.rec.Pinned().Refresh("g1"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	pins := r.m.PinnedIDs("c1")
	if len(pins) != 1 {
		t.Fatalf("pinned messages = %v, want exactly one", pins)
	}
	if got := r.guild(t, "g1").PinnedMessageID; got != pins[0] {
		t.Errorf("stored PinnedMessageID = %q, want %q", got, pins[0])
	}
	embed := r.m.EmbedFor("c1", pins[0])
	if embed == nil {
		t.Fatal("status message has no embed")
	}
	if embed.Title != "Upcoming Event Countdowns" {
		t.Errorf("embed title = %q", embed.Title)
	}
}

func TestRefreshEditsExistingMessageInPlace(t *testing.T) {
	r := newPinnedRig(t)
	p := r.rec.Pinned()

	if err := p.Refresh("g1"); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	first := r.guild(t, "g1").PinnedMessageID

	r.now = r.now.Add(time.Hour)
	if err := p.Refresh("g1"); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}

	pins := r.m.PinnedIDs("c1")
	if len(pins) != 1 || pins[0] != first {
		t.Fatalf("pinned messages = %v, want just %q edited in place", pins, first)
	}
}

func TestRefreshRecreatesDeletedMessage(t *testing.T) {
	r := newPinnedRig(t)
	p := r.rec.Pinned()

	if err := p.Refresh("g1"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	first := r.guild(t, "g1").PinnedMessageID

	r.m.DeleteMessage("c1", first)
	if err := p.Refresh("g1"); err != nil {
		t.Fatalf("Refresh after delete: %v", err)
	}

	pins := r.m.PinnedIDs("c1")
	if len(pins) != 1 {
		t.Fatalf("pinned messages = %v, want exactly one", pins)
	}
	if pins[0] == first {
		t.Fatal("expected a fresh message after deletion")
	}
	if got := r.guild(t, "g1").PinnedMessageID; got != pins[0] {
		t.Errorf("stored PinnedMessageID = %q, want %q", got, pins[0])
	}
}

func TestRefreshRepinsUnpinnedMessage(t *testing.T) {
	r := newPinnedRig(t)
	p := r.rec.Pinned()

	if err := p.Refresh("g1"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	id := r.guild(t, "g1").PinnedMessageID

	r.m.Unpin("c1", id)
	if err := p.Refresh("g1"); err != nil {
		t.Fatalf("Refresh after unpin: %v", err)
	}

	pins := r.m.PinnedIDs("c1")
	if len(pins) != 1 || pins[0] != id {
		t.Fatalf("pinned messages = %v, want %q re-pinned", pins, id)
	}
}

func TestRefreshAdoptsOrphanedBotPin(t *testing.T) {
	r := newPinnedRig(t)
	p := r.rec.Pinned()

	if err := p.Refresh("g1"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	id := r.guild(t, "g1").PinnedMessageID

	// Lose the id (say, a quarantined state file) but keep the pin.
	err := r.st.Update(func(st *store.State) error {
		st.Guilds["g1"].PinnedMessageID = ""
		return nil
	})
	if err != nil {
		t.Fatalf("clear id: %v", err)
	}

	if err := p.Refresh("g1"); err != nil {
		t.Fatalf("Refresh after losing id: %v", err)
	}

	pins := r.m.PinnedIDs("c1")
	if len(pins) != 1 || pins[0] != id {
		t.Fatalf("pinned messages = %v, want the original %q adopted", pins, id)
	}
	if got := r.guild(t, "g1").PinnedMessageID; got != id {
		t.Errorf("stored PinnedMessageID = %q, want %q", got, id)
	}
}

func TestRefreshDegradesWhenPinForbidden(t *testing.T) {
	r := newPinnedRig(t)
	r.m.SetGuildOwner("g1", "owner-1")
	r.m.FailPins("c1", &platform.CapabilityError{
		ChannelID: "c1",
		Missing:   []platform.Capability{platform.CapManageMessages},
	})

	// The message still goes out, just unpinned.
	if err := r.rec.Pinned().Refresh("g1"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if pins := r.m.PinnedIDs("c1"); len(pins) != 0 {
		t.Fatalf("pinned messages = %v, want none", pins)
	}
	id := r.guild(t, "g1").PinnedMessageID
	if id == "" {
		t.Fatal("PinnedMessageID not stored for the unpinned status message")
	}
	if r.m.EmbedFor("c1", id) == nil {
		t.Fatal("status message missing")
	}
	if got := len(r.m.DirectMessages("owner-1")); got != 1 {
		t.Fatalf("owner DMs = %d, want 1", got)
	}
}

func TestRefreshGivesUpWithoutSendCapability(t *testing.T) {
	r := newPinnedRig(t)
	r.m.SetGuildOwner("g1", "owner-1")
	r.m.SetCapabilities("c1", platform.CapabilitySet{platform.CapView: true})

	err := r.rec.Pinned().Refresh("g1")
	var capErr *platform.CapabilityError
	if !errors.As(err, &capErr) {
		t.Fatalf("Refresh error = %v, want CapabilityError", err)
	}

	if id := r.guild(t, "g1").PinnedMessageID; id != "" {
		t.Errorf("PinnedMessageID = %q, want empty", id)
	}
	if got := len(r.m.DirectMessages("owner-1")); got != 1 {
		t.Fatalf("owner DMs = %d, want 1", got)
	}
}

func TestRefreshNoOpWithoutEventChannel(t *testing.T) {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	r := newRig(t, now)
	err := r.st.Update(func(st *store.State) error {
		st.Guild("g1")
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := r.rec.Pinned().Refresh("g1"); err != nil {
		t.Fatalf("Refresh with no channel = %v, want nil", err)
	}
}

func TestRefreshConcurrentCallsCreateOneMessage(t *testing.T) {
	r := newPinnedRig(t)
	p := r.rec.Pinned()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Refresh("g1"); err != nil {
				t.Errorf("Refresh: %v", err)
			}
		}()
	}
	wg.Wait()

	if pins := r.m.PinnedIDs("c1"); len(pins) != 1 {
		t.Fatalf("pinned messages = %v, want exactly one", pins)
	}
}
