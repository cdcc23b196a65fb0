// Package reconcile drives the periodic pass over every guild: firing due
// reminders, pruning expired events, sending digests and repairing the
// pinned status message. One tick runs at a time; failures are isolated per
// guild and per event so a single broken channel never stalls the rest.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/nicolethornton330-maker/ChronoBot/internal/platform"
	"github.com/nicolethornton330-maker/ChronoBot/internal/schedule"
	"github.com/nicolethornton330-maker/ChronoBot/internal/store"
)

// Options tunes the reconciler; zero values fall back to defaults.
type Options struct {
	Interval        time.Duration
	GraceWindow     time.Duration
	KeepWindow      time.Duration
	AlertInterval   time.Duration
	DefaultLocation *time.Location
	Now             func() time.Time
}

// Reconciler owns the periodic tick across all guilds.
type Reconciler struct {
	store     *store.Store
	messenger platform.Messenger
	render    Renderer
	pinned    *Pinned
	alerts    *OwnerAlerter

	defaultLoc *time.Location
	grace      time.Duration
	keep       time.Duration
	interval   time.Duration
	now        func() time.Time

	scheduler gocron.Scheduler
}

// New creates a reconciler and its pinned-message refresher.
func New(st *store.Store, messenger platform.Messenger, render Renderer, opts Options) *Reconciler {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	opts.GraceWindow, opts.KeepWindow = schedule.Clamp(opts.GraceWindow, opts.KeepWindow)
	if opts.DefaultLocation == nil {
		opts.DefaultLocation = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	alerts := NewOwnerAlerter(messenger, opts.AlertInterval)
	r := &Reconciler{
		store:      st,
		messenger:  messenger,
		render:     render,
		alerts:     alerts,
		defaultLoc: opts.DefaultLocation,
		grace:      opts.GraceWindow,
		keep:       opts.KeepWindow,
		interval:   opts.Interval,
		now:        opts.Now,
	}
	r.pinned = NewPinned(st, messenger, render, alerts, opts.DefaultLocation, opts.Now)
	return r
}

// Pinned exposes the pinned-message refresher so command handlers can
// refresh the public display immediately after a mutation.
func (r *Reconciler) Pinned() *Pinned {
	return r.pinned
}

// Start schedules the tick. Singleton mode guarantees tick N+1 never starts
// before tick N has fully returned.
func (r *Reconciler) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() { r.Tick(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule reconciliation job: %w", err)
	}

	r.scheduler = scheduler
	scheduler.Start()
	slog.Info("Reconciliation loop started", "interval", r.interval)
	return nil
}

// Stop shuts the scheduler down, letting an in-flight tick finish.
func (r *Reconciler) Stop() error {
	if r.scheduler == nil {
		return nil
	}
	if err := r.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	slog.Info("Reconciliation loop stopped")
	return nil
}

// Tick runs one reconciliation pass across all guilds.
func (r *Reconciler) Tick(ctx context.Context) {
	now := r.now()

	var guildIDs []string
	r.store.View(func(st *store.State) {
		for id := range st.Guilds {
			guildIDs = append(guildIDs, id)
		}
	})
	sort.Strings(guildIDs)

	slog.Debug("Reconciliation tick", "guilds", len(guildIDs))

	for _, guildID := range guildIDs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		r.safeReconcileGuild(ctx, now, guildID)
	}
}

// safeReconcileGuild is the per-guild isolation boundary: one misbehaving
// guild must not abort the tick for the others.
func (r *Reconciler) safeReconcileGuild(ctx context.Context, now time.Time, guildID string) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Guild reconciliation panicked", "guild", guildID, "panic", p)
		}
	}()
	r.reconcileGuild(ctx, now, guildID)
}

func (r *Reconciler) reconcileGuild(ctx context.Context, now time.Time, guildID string) {
	var snap *store.GuildConfig
	r.store.View(func(st *store.State) {
		if g, ok := st.Guilds[guildID]; ok {
			snap = snapshotGuild(g)
		}
	})
	if snap == nil || snap.EventChannelID == "" {
		return
	}

	if err := r.messenger.ResolveChannel(snap.EventChannelID); err != nil {
		slog.Warn("Event channel unreachable, skipping guild this tick",
			"guild", guildID, "channel", snap.EventChannelID, "error", err)
		return
	}

	loc := guildLocation(snap, r.defaultLoc)

	for _, ev := range snap.Events {
		select {
		case <-ctx.Done():
			return
		default:
		}
		out := schedule.Classify(now, ev, loc, r.grace, r.keep)
		switch out.Kind {
		case schedule.Start, schedule.Milestone, schedule.Repeat:
			r.deliver(now, guildID, snap, loc, *ev, out)
		}
	}

	r.prune(now, guildID)
	r.sendDigest(now, guildID, loc)

	if err := r.pinned.Refresh(guildID); err != nil {
		slog.Warn("Pinned status refresh failed", "guild", guildID, "error", err)
	}
}

// deliver sends one reminder and, only on success, records it. Send before
// persist: a crash in between causes a harmless duplicate next tick, which
// beats persisting first and silently losing a failed send.
func (r *Reconciler) deliver(now time.Time, guildID string, g *store.GuildConfig, loc *time.Location, ev store.EventRecord, out schedule.Outcome) {
	n := Notification{Kind: out.Kind, Event: ev, Days: out.Days}
	content := r.render.Notification(g.Theme, n, g.MentionRoleID)

	if _, err := r.messenger.SendMessage(g.EventChannelID, content, platform.MentionPolicy{RoleID: g.MentionRoleID}); err != nil {
		var capErr *platform.CapabilityError
		if errors.As(err, &capErr) {
			r.alerts.Alert(now, guildID, capErr)
		}
		slog.Error("Failed to send reminder",
			"guild", guildID, "event", ev.Name, "kind", out.Kind.String(), "error", err)
		return
	}

	dateKey := now.In(loc).Format(store.DateLayout)
	err := r.store.Update(func(st *store.State) error {
		g, ok := st.Guilds[guildID]
		if !ok {
			return store.ErrNoChange
		}
		live := g.FindEvent(ev.Name, ev.Timestamp)
		if live == nil {
			// Deleted or rescheduled while we were sending.
			return store.ErrNoChange
		}
		switch out.Kind {
		case schedule.Start:
			if live.StartAnnounced {
				return store.ErrNoChange
			}
			live.StartAnnounced = true
		case schedule.Milestone:
			if !live.MarkMilestone(out.Days) {
				return store.ErrNoChange
			}
		case schedule.Repeat:
			if !live.MarkRepeat(dateKey) {
				return store.ErrNoChange
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to persist announcement state",
			"guild", guildID, "event", ev.Name, "error", err)
	}

	if ev.OwnerUserID != "" {
		if err := r.messenger.SendDirectMessage(ev.OwnerUserID, content); err != nil {
			slog.Debug("Owner DM failed", "guild", guildID, "owner", ev.OwnerUserID, "error", err)
		}
	}
}

func (r *Reconciler) prune(now time.Time, guildID string) {
	err := r.store.Update(func(st *store.State) error {
		g, ok := st.Guilds[guildID]
		if !ok {
			return store.ErrNoChange
		}
		kept := g.Events[:0]
		for _, ev := range g.Events {
			if schedule.ShouldPrune(now, ev, r.grace, r.keep) {
				slog.Info("Pruning expired event", "guild", guildID, "event", ev.Name)
				continue
			}
			kept = append(kept, ev)
		}
		if len(kept) == len(g.Events) {
			return store.ErrNoChange
		}
		g.Events = kept
		return nil
	})
	if err != nil {
		slog.Error("Failed to prune events", "guild", guildID, "error", err)
	}
}

// sendDigest posts the daily summary at most once per guild-local day.
func (r *Reconciler) sendDigest(now time.Time, guildID string, loc *time.Location) {
	var snap *store.GuildConfig
	r.store.View(func(st *store.State) {
		if g, ok := st.Guilds[guildID]; ok {
			snap = snapshotGuild(g)
		}
	})
	if snap == nil || !snap.Digest.Enabled {
		return
	}

	channelID := snap.Digest.ChannelID
	if channelID == "" {
		channelID = snap.EventChannelID
	}
	if channelID == "" {
		return
	}

	today := now.In(loc).Format(store.DateLayout)
	if snap.Digest.LastSentDate == today {
		return
	}

	content := r.render.Digest(snap, now, loc)
	if _, err := r.messenger.SendMessage(channelID, content, platform.MentionPolicy{}); err != nil {
		var capErr *platform.CapabilityError
		if errors.As(err, &capErr) {
			r.alerts.Alert(now, guildID, capErr)
		}
		slog.Warn("Failed to send daily digest", "guild", guildID, "error", err)
		return
	}

	err := r.store.Update(func(st *store.State) error {
		g, ok := st.Guilds[guildID]
		if !ok {
			return store.ErrNoChange
		}
		g.Digest.LastSentDate = today
		return nil
	})
	if err != nil {
		slog.Error("Failed to persist digest date", "guild", guildID, "error", err)
	}
}

// snapshotGuild copies a guild config and its events so classification and
// network sends run without holding the store mutex and without racing
// command handlers.
func snapshotGuild(g *store.GuildConfig) *store.GuildConfig {
	snap := *g
	snap.Events = make([]*store.EventRecord, len(g.Events))
	for i, ev := range g.Events {
		evCopy := *ev
		snap.Events[i] = &evCopy
	}
	return &snap
}

// guildLocation resolves the guild's timezone, falling back on parse errors.
func guildLocation(g *store.GuildConfig, fallback *time.Location) *time.Location {
	if g.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		slog.Warn("Invalid guild timezone, using default", "timezone", g.Timezone, "error", err)
		return fallback
	}
	return loc
}
