package reconcile

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nicolethornton330-maker/ChronoBot/internal/platform"
	"github.com/nicolethornton330-maker/ChronoBot/internal/store"
)

// Pinned keeps exactly one up-to-date, pinned status message per guild. It
// recovers from the message being deleted or unpinned and degrades (send
// without pinning) when the pin permission is missing. A per-guild mutex
// keeps concurrent refreshes (command handler + tick) from creating
// duplicates.
type Pinned struct {
	store      *store.Store
	messenger  platform.Messenger
	render     Renderer
	alerts     *OwnerAlerter
	defaultLoc *time.Location
	now        func() time.Time

	mu     sync.Mutex
	guilds map[string]*sync.Mutex
}

// NewPinned creates the pinned-message reconciler.
func NewPinned(st *store.Store, messenger platform.Messenger, render Renderer, alerts *OwnerAlerter, defaultLoc *time.Location, now func() time.Time) *Pinned {
	if now == nil {
		now = time.Now
	}
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &Pinned{
		store:      st,
		messenger:  messenger,
		render:     render,
		alerts:     alerts,
		defaultLoc: defaultLoc,
		now:        now,
		guilds:     make(map[string]*sync.Mutex),
	}
}

func (p *Pinned) guildLock(guildID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.guilds[guildID]
	if !ok {
		lock = &sync.Mutex{}
		p.guilds[guildID] = lock
	}
	return lock
}

// Refresh brings the guild's status message back to the desired state:
// existing, current and pinned. Safe to call from the tick and from command
// handlers at the same time.
func (p *Pinned) Refresh(guildID string) error {
	lock := p.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	now := p.now()

	var snap *store.GuildConfig
	p.store.View(func(st *store.State) {
		if g, ok := st.Guilds[guildID]; ok {
			snap = snapshotGuild(g)
		}
	})
	if snap == nil || snap.EventChannelID == "" {
		return nil
	}
	channelID := snap.EventChannelID
	loc := guildLocation(snap, p.defaultLoc)

	caps, err := p.messenger.Capabilities(channelID)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return nil
		}
		slog.Warn("Could not check channel capabilities", "guild", guildID, "error", err)
		caps = nil
	}
	if caps != nil {
		if missing := caps.Missing(platform.CapView, platform.CapSend, platform.CapEmbedLinks); len(missing) > 0 {
			capErr := &platform.CapabilityError{ChannelID: channelID, Missing: missing}
			p.alerts.Alert(now, guildID, capErr)
			return capErr
		}
	}

	embed := p.render.StatusEmbed(snap, now, loc)

	if snap.PinnedMessageID != "" {
		msg, err := p.messenger.FetchMessage(channelID, snap.PinnedMessageID)
		switch {
		case errors.Is(err, platform.ErrNotFound):
			// Deleted out from under us; recreate below.
		case err != nil:
			slog.Warn("Failed to fetch status message, retrying next tick",
				"guild", guildID, "message", snap.PinnedMessageID, "error", err)
			return err
		default:
			if !msg.Pinned {
				if err := p.messenger.PinMessage(channelID, msg.ID); err != nil {
					var capErr *platform.CapabilityError
					if errors.As(err, &capErr) {
						p.alerts.Alert(now, guildID, capErr)
					}
					slog.Warn("Could not re-pin status message, leaving unpinned",
						"guild", guildID, "error", err)
				}
			}
			if err := p.messenger.EditEmbed(channelID, msg.ID, embed); err != nil {
				slog.Warn("Failed to edit status message", "guild", guildID, "error", err)
				return err
			}
			return nil
		}
	}

	// No known message. Adopt an existing bot pin before creating a new one
	// so a lost id never leads to duplicates.
	if caps == nil || caps.Has(platform.CapReadHistory) {
		if pins, err := p.messenger.ListPinned(channelID); err == nil {
			for _, pin := range pins {
				if pin.AuthorID != p.messenger.BotUserID() {
					continue
				}
				if err := p.messenger.EditEmbed(channelID, pin.ID, embed); err == nil {
					slog.Info("Adopted existing pinned status message",
						"guild", guildID, "message", pin.ID)
					p.storePinnedID(guildID, pin.ID)
					return nil
				}
			}
		}
	}

	msg, err := p.messenger.SendEmbed(channelID, embed)
	if err != nil {
		var capErr *platform.CapabilityError
		if errors.As(err, &capErr) {
			p.alerts.Alert(now, guildID, capErr)
		}
		slog.Error("Failed to create status message", "guild", guildID, "error", err)
		return err
	}

	if err := p.messenger.PinMessage(channelID, msg.ID); err != nil {
		var capErr *platform.CapabilityError
		if errors.As(err, &capErr) {
			p.alerts.Alert(now, guildID, capErr)
		}
		slog.Warn("Could not pin new status message", "guild", guildID, "error", err)
	} else if pins, err := p.messenger.ListPinned(channelID); err == nil {
		// Unpin older status messages so only one bot pin remains.
		for _, pin := range pins {
			if pin.ID == msg.ID || pin.AuthorID != p.messenger.BotUserID() {
				continue
			}
			if err := p.messenger.UnpinMessage(channelID, pin.ID); err != nil {
				slog.Debug("Failed to unpin stale status message",
					"guild", guildID, "message", pin.ID, "error", err)
			}
		}
	}

	p.storePinnedID(guildID, msg.ID)
	return nil
}

func (p *Pinned) storePinnedID(guildID, messageID string) {
	err := p.store.Update(func(st *store.State) error {
		g, ok := st.Guilds[guildID]
		if !ok || g.PinnedMessageID == messageID {
			return store.ErrNoChange
		}
		g.PinnedMessageID = messageID
		return nil
	})
	if err != nil {
		slog.Error("Failed to persist pinned message id", "guild", guildID, "error", err)
	}
}
