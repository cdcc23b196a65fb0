package store

import (
	"slices"
	"sort"
	"time"
)

// DateLayout is the wire format for repeat anchors, announced repeat dates
// and digest bookkeeping.
const DateLayout = "2006-01-02"

// MaxRepeatHistory caps AnnouncedRepeatDates; the oldest entries are dropped
// once the cap is reached.
const MaxRepeatHistory = 180

// DefaultMilestones is the fallback day-offset template applied to guilds
// that have not configured their own.
var DefaultMilestones = []int{100, 60, 30, 14, 7, 2, 1, 0}

// State is the entire persisted document: every guild's configuration plus
// the user-to-guild links used for DM control.
type State struct {
	Guilds    map[string]*GuildConfig `json:"guilds"`
	UserLinks map[string]string       `json:"user_links"`
}

// GuildConfig stores per-server configuration
type GuildConfig struct {
	EventChannelID    string         `json:"event_channel_id,omitempty"`
	PinnedMessageID   string         `json:"pinned_message_id,omitempty"`
	MentionRoleID     string         `json:"mention_role_id,omitempty"`
	Timezone          string         `json:"timezone,omitempty"`
	Events            []*EventRecord `json:"events"`
	DefaultMilestones []int          `json:"default_milestones,omitempty"`
	Digest            DigestConfig   `json:"digest"`
	Theme             string         `json:"theme,omitempty"`
	Welcomed          bool           `json:"welcomed"`

	// EventAdminRoleIDs are roles whose members may manage any event.
	// AllowMemberEventCreation opens /addevent to regular members; it
	// defaults to off, so only event managers create events.
	EventAdminRoleIDs        []string `json:"event_admin_role_ids,omitempty"`
	AllowMemberEventCreation bool     `json:"allow_member_event_creation"`
}

// DigestConfig controls the optional once-a-day event summary
type DigestConfig struct {
	Enabled      bool   `json:"enabled"`
	ChannelID    string `json:"channel_id,omitempty"`
	LastSentDate string `json:"last_sent_date,omitempty"`
}

// EventRecord is a single tracked occasion within one guild
type EventRecord struct {
	Name                 string   `json:"name"`
	Timestamp            int64    `json:"timestamp"` // UTC epoch seconds
	Milestones           []int    `json:"milestones"`
	AnnouncedMilestones  []int    `json:"announced_milestones"`
	RepeatEveryDays      int      `json:"repeat_every_days,omitempty"`
	RepeatAnchorDate     string   `json:"repeat_anchor_date,omitempty"`
	AnnouncedRepeatDates []string `json:"announced_repeat_dates,omitempty"`
	Silenced             bool     `json:"silenced,omitempty"`
	StartAnnounced       bool     `json:"start_announced,omitempty"`
	OwnerUserID          string   `json:"owner_user_id,omitempty"`
	OwnerName            string   `json:"owner_name,omitempty"`
	CreatedByUserID      string   `json:"created_by_user_id,omitempty"`
	CreatedByName        string   `json:"created_by_name,omitempty"`
	BannerURL            string   `json:"banner_url,omitempty"`
}

// NewState returns an empty, usable document.
func NewState() *State {
	return &State{
		Guilds:    make(map[string]*GuildConfig),
		UserLinks: make(map[string]string),
	}
}

// Guild returns the config for a guild, creating and normalizing a fresh
// entry when the guild is unknown.
func (s *State) Guild(guildID string) *GuildConfig {
	if s.Guilds == nil {
		s.Guilds = make(map[string]*GuildConfig)
	}
	g, ok := s.Guilds[guildID]
	if !ok {
		g = &GuildConfig{}
		s.Guilds[guildID] = g
	}
	g.Normalize()
	return g
}

// Normalize fills zero-value defaults and keeps events sorted ascending by
// timestamp. Idempotent; runs on load and before every read path.
func (g *GuildConfig) Normalize() {
	if g.Events == nil {
		g.Events = []*EventRecord{}
	}
	if len(g.DefaultMilestones) == 0 {
		g.DefaultMilestones = slices.Clone(DefaultMilestones)
	}
	sort.SliceStable(g.Events, func(i, j int) bool {
		return g.Events[i].Timestamp < g.Events[j].Timestamp
	})
}

// AddEventAdminRole grants a role event management, keeping the list sorted.
// Returns false if the role was already present.
func (g *GuildConfig) AddEventAdminRole(roleID string) bool {
	if slices.Contains(g.EventAdminRoleIDs, roleID) {
		return false
	}
	g.EventAdminRoleIDs = append(g.EventAdminRoleIDs, roleID)
	slices.Sort(g.EventAdminRoleIDs)
	return true
}

// RemoveEventAdminRole revokes a role's event management. Returns false if
// the role was not present.
func (g *GuildConfig) RemoveEventAdminRole(roleID string) bool {
	idx := slices.Index(g.EventAdminRoleIDs, roleID)
	if idx < 0 {
		return false
	}
	g.EventAdminRoleIDs = slices.Delete(g.EventAdminRoleIDs, idx, idx+1)
	return true
}

// FindEvent locates a live event by its identity pair. Used to re-locate an
// event after a send so the apply step survives concurrent edits.
func (g *GuildConfig) FindEvent(name string, timestamp int64) *EventRecord {
	for _, ev := range g.Events {
		if ev.Name == name && ev.Timestamp == timestamp {
			return ev
		}
	}
	return nil
}

// When returns the event instant.
func (e *EventRecord) When() time.Time {
	return time.Unix(e.Timestamp, 0).UTC()
}

// HasMilestone reports whether n is a configured milestone offset.
func (e *EventRecord) HasMilestone(n int) bool {
	return slices.Contains(e.Milestones, n)
}

// HasAnnouncedMilestone reports whether milestone n has already fired.
func (e *EventRecord) HasAnnouncedMilestone(n int) bool {
	return slices.Contains(e.AnnouncedMilestones, n)
}

// MarkMilestone records milestone n as announced. Returns false if it was
// already recorded or is no longer configured, so callers can skip the
// persist when nothing changed.
func (e *EventRecord) MarkMilestone(n int) bool {
	if !e.HasMilestone(n) || e.HasAnnouncedMilestone(n) {
		return false
	}
	e.AnnouncedMilestones = append(e.AnnouncedMilestones, n)
	return true
}

// HasAnnouncedRepeat reports whether a repeat reminder already fired on the
// given date key.
func (e *EventRecord) HasAnnouncedRepeat(date string) bool {
	return slices.Contains(e.AnnouncedRepeatDates, date)
}

// MarkRepeat records a repeat firing for the given date key, dropping the
// oldest entries past MaxRepeatHistory. Returns false if already recorded.
func (e *EventRecord) MarkRepeat(date string) bool {
	if e.HasAnnouncedRepeat(date) {
		return false
	}
	e.AnnouncedRepeatDates = append(e.AnnouncedRepeatDates, date)
	if n := len(e.AnnouncedRepeatDates); n > MaxRepeatHistory {
		e.AnnouncedRepeatDates = slices.Clone(e.AnnouncedRepeatDates[n-MaxRepeatHistory:])
	}
	return true
}

// Reschedule moves the event to a new instant and resets all announcement
// history, which is only meaningful relative to the old schedule.
func (e *EventRecord) Reschedule(timestamp int64) {
	e.Timestamp = timestamp
	e.AnnouncedMilestones = nil
	e.AnnouncedRepeatDates = nil
	e.StartAnnounced = false
}

// SetMilestones replaces the milestone list, dropping announced entries that
// are not part of the new list.
func (e *EventRecord) SetMilestones(milestones []int) {
	list := slices.Clone(milestones)
	slices.Sort(list)
	list = slices.Compact(list)
	e.Milestones = list

	kept := e.AnnouncedMilestones[:0]
	for _, n := range e.AnnouncedMilestones {
		if slices.Contains(list, n) {
			kept = append(kept, n)
		}
	}
	e.AnnouncedMilestones = kept
}

// SetRepeat configures the recurring reminder and clears its history.
func (e *EventRecord) SetRepeat(everyDays int, anchorDate string) {
	e.RepeatEveryDays = everyDays
	e.RepeatAnchorDate = anchorDate
	e.AnnouncedRepeatDates = nil
}

// ClearRepeat disables the recurring reminder.
func (e *EventRecord) ClearRepeat() {
	e.RepeatEveryDays = 0
	e.RepeatAnchorDate = ""
	e.AnnouncedRepeatDates = nil
}
