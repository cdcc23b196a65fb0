package bot

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/nicolethornton330-maker/ChronoBot/internal/platform"
	"github.com/nicolethornton330-maker/ChronoBot/internal/render"
	"github.com/nicolethornton330-maker/ChronoBot/internal/schedule"
	"github.com/nicolethornton330-maker/ChronoBot/internal/store"
)

var errNoEventChannel = errors.New(
	"no events channel set yet — run `/seteventchannel` in the channel you want the countdown pinned in")

// targetGuildID resolves which guild a command applies to: the current guild,
// or in DMs the server the user linked with /linkserver.
func (b *Bot) targetGuildID(i *discordgo.InteractionCreate) (string, error) {
	if i.GuildID != "" {
		return i.GuildID, nil
	}
	user := interactionUser(i)
	if user == nil {
		return "", errors.New("I couldn't identify you")
	}
	var linked string
	b.store.View(func(st *store.State) {
		linked = st.UserLinks[user.ID]
	})
	if linked == "" {
		return "", errors.New(
			"I don't know which server to use for your DMs yet — run `/linkserver` in the server first, then try again here")
	}
	return linked, nil
}

func (b *Bot) guildLocation(guildID string) *time.Location {
	var tz string
	b.store.View(func(st *store.State) {
		if g, ok := st.Guilds[guildID]; ok {
			tz = g.Timezone
		}
	})
	if tz == "" {
		return b.defaultLoc
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return b.defaultLoc
	}
	return loc
}

func (b *Bot) parseEventInstant(guildID, date, clock string) (time.Time, error) {
	loc := b.guildLocation(guildID)
	at, err := time.ParseInLocation(DateFormat+" "+TimeFormat, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, errors.New(
			"I couldn't understand that date/time — use MM/DD/YYYY and 24-hour HH:MM, e.g. `date: 04/12/2026` `time: 09:00`")
	}
	return at, nil
}

func (b *Bot) handleAddEvent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData())

	guildID, err := b.targetGuildID(i)
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	if !b.canAddEvents(s, i, guildID) {
		respondEphemeral(s, i,
			"You don't have permission to add events here.\n"+
				"Ask an admin to either:\n"+
				"• enable `/allowmemberaddevents`, or\n"+
				"• add your role via `/addeventadminrole`.")
		return
	}

	name := strings.TrimSpace(opts["name"].StringValue())
	if name == "" {
		respondEphemeral(s, i, "The event name cannot be empty.")
		return
	}
	banner := ""
	if opt, ok := opts["banner"]; ok {
		banner = opt.StringValue()
	}

	at, err := b.parseEventInstant(guildID, opts["date"].StringValue(), opts["time"].StringValue())
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}
	if !at.After(time.Now()) {
		respondEphemeral(s, i, "That time is already in the past — events must be future-dated.")
		return
	}

	user := interactionUser(i)
	err = b.store.Update(func(st *store.State) error {
		g := st.Guild(guildID)
		if g.EventChannelID == "" {
			return errNoEventChannel
		}
		g.Events = append(g.Events, &store.EventRecord{
			Name:            name,
			Timestamp:       at.Unix(),
			Milestones:      slices.Clone(g.DefaultMilestones),
			OwnerUserID:     user.ID,
			OwnerName:       user.Username,
			CreatedByUserID: user.ID,
			CreatedByName:   user.Username,
			BannerURL:       banner,
		})
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	b.refreshPinned(guildID)
	respondEphemeral(s, i, fmt.Sprintf("✅ Added event **%s** on %s.",
		name, at.Format("January 2, 2006 at 3:04 PM MST")))
}

func (b *Bot) handleEditEvent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData())

	guildID, err := b.targetGuildID(i)
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	at, err := b.parseEventInstant(guildID, opts["date"].StringValue(), opts["time"].StringValue())
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}
	if !at.After(time.Now()) {
		respondEphemeral(s, i, "That time is already in the past — events must be future-dated.")
		return
	}

	manager, actorID := b.eventManagerFor(s, i, guildID)
	index := opts["index"].IntValue()
	var name string
	err = b.store.Update(func(st *store.State) error {
		g := st.Guild(guildID)
		if err := checkEventIndex(g, index); err != nil {
			return err
		}
		ev := g.Events[index-1]
		if !canEditEvent(manager, actorID, ev) {
			return errCannotEditEvent(ev)
		}
		name = ev.Name
		ev.Reschedule(at.Unix())
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	b.refreshPinned(guildID)
	respondEphemeral(s, i, fmt.Sprintf("✅ Rescheduled **%s** to %s. Reminder history was reset.",
		name, at.Format("January 2, 2006 at 3:04 PM MST")))
}

func (b *Bot) handleRemoveEvent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData())

	guildID, err := b.targetGuildID(i)
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	manager, actorID := b.eventManagerFor(s, i, guildID)
	index := opts["index"].IntValue()
	var name string
	err = b.store.Update(func(st *store.State) error {
		g := st.Guild(guildID)
		if err := checkEventIndex(g, index); err != nil {
			return err
		}
		ev := g.Events[index-1]
		if !canEditEvent(manager, actorID, ev) {
			return errCannotEditEvent(ev)
		}
		name = ev.Name
		g.Events = append(g.Events[:index-1], g.Events[index:]...)
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	b.refreshPinned(guildID)
	respondEphemeral(s, i, fmt.Sprintf("🗑 Removed event **%s**.", name))
}

func (b *Bot) handlePurgeEvents(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var count int
	err := b.store.Update(func(st *store.State) error {
		g := st.Guild(i.GuildID)
		count = len(g.Events)
		if count == 0 {
			return store.ErrNoChange
		}
		g.Events = nil
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	b.refreshPinned(i.GuildID)
	respondEphemeral(s, i, fmt.Sprintf("🗑 Removed all **%d** events.", count))
}

func (b *Bot) handleListEvents(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID, err := b.targetGuildID(i)
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	loc := b.guildLocation(guildID)
	now := time.Now()
	var lines []string
	b.store.View(func(st *store.State) {
		g, ok := st.Guilds[guildID]
		if !ok {
			return
		}
		for idx, ev := range g.Events {
			lines = append(lines, render.EventLine(idx+1, ev, now, loc))
		}
	})

	if len(lines) == 0 {
		respondEphemeral(s, i, "There are no events set for this server yet.\nAdd one with `/addevent`.")
		return
	}
	respondEphemeral(s, i, strings.Join(lines, "\n"))
}

func (b *Bot) handleEventInfo(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData())

	guildID, err := b.targetGuildID(i)
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	index := opts["index"].IntValue()
	loc := b.guildLocation(guildID)

	var (
		ev       store.EventRecord
		indexErr error
	)
	b.store.View(func(st *store.State) {
		g, ok := st.Guilds[guildID]
		if !ok {
			indexErr = errors.New("there are no events yet — add one with `/addevent`")
			return
		}
		if indexErr = checkEventIndex(g, index); indexErr != nil {
			return
		}
		ev = *g.Events[index-1]
	})
	if indexErr != nil {
		respondEphemeral(s, i, indexErr.Error())
		return
	}

	at := ev.When().In(loc)
	desc, _, passed := schedule.TimeRemaining(time.Now(), ev.When())
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**\n", ev.Name)
	fmt.Fprintf(&sb, "📅 %s\n", at.Format("January 2, 2006 at 3:04 PM MST"))
	if passed {
		sb.WriteString("➡️ Event has started or passed.\n")
	} else {
		fmt.Fprintf(&sb, "⏱ %s remaining\n", desc)
	}
	fmt.Fprintf(&sb, "🏁 Milestones: %s (announced: %s)\n",
		formatInts(ev.Milestones), formatInts(ev.AnnouncedMilestones))
	if ev.RepeatEveryDays > 0 {
		fmt.Fprintf(&sb, "🔁 Repeats every %d days (since %s)\n", ev.RepeatEveryDays, ev.RepeatAnchorDate)
	}
	if ev.Silenced {
		sb.WriteString("🔇 Reminders silenced\n")
	}
	if ev.OwnerUserID != "" {
		fmt.Fprintf(&sb, "👤 Owner: <@%s>\n", ev.OwnerUserID)
	}
	if ev.CreatedByUserID != "" {
		fmt.Fprintf(&sb, "✍️ Created by <@%s>\n", ev.CreatedByUserID)
	}
	if ev.BannerURL != "" {
		fmt.Fprintf(&sb, "🖼 %s\n", ev.BannerURL)
	}

	respondEphemeral(s, i, sb.String())
}

func (b *Bot) handleSetMilestones(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData())

	guildID, err := b.targetGuildID(i)
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	milestones, err := parseMilestoneList(opts["days"].StringValue())
	if err != nil {
		respondEphemeral(s, i, fmt.Sprintf("Invalid milestone list: %s", err.Error()))
		return
	}

	manager, actorID := b.eventManagerFor(s, i, guildID)
	index := opts["index"].IntValue()
	var name string
	err = b.store.Update(func(st *store.State) error {
		g := st.Guild(guildID)
		if err := checkEventIndex(g, index); err != nil {
			return err
		}
		ev := g.Events[index-1]
		if !canEditEvent(manager, actorID, ev) {
			return errCannotEditEvent(ev)
		}
		name = ev.Name
		ev.SetMilestones(milestones)
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	b.refreshPinned(guildID)
	respondEphemeral(s, i, fmt.Sprintf("✅ Milestones for **%s** set to %s.", name, formatInts(milestones)))
}

func (b *Bot) handleClearMilestones(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData())

	guildID, err := b.targetGuildID(i)
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	manager, actorID := b.eventManagerFor(s, i, guildID)
	index := opts["index"].IntValue()
	var name string
	err = b.store.Update(func(st *store.State) error {
		g := st.Guild(guildID)
		if err := checkEventIndex(g, index); err != nil {
			return err
		}
		ev := g.Events[index-1]
		if !canEditEvent(manager, actorID, ev) {
			return errCannotEditEvent(ev)
		}
		name = ev.Name
		ev.SetMilestones(nil)
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	respondEphemeral(s, i, fmt.Sprintf("✅ Milestone reminders disabled for **%s**.", name))
}

func (b *Bot) handleSetRepeat(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData())

	guildID, err := b.targetGuildID(i)
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	every := opts["every_days"].IntValue()
	if every < 1 || every > 365 {
		respondEphemeral(s, i, "`every_days` must be between 1 and 365.")
		return
	}

	loc := b.guildLocation(guildID)
	anchor := time.Now().In(loc).Format(store.DateLayout)
	if opt, ok := opts["anchor"]; ok {
		parsed, err := time.ParseInLocation(DateFormat, opt.StringValue(), loc)
		if err != nil {
			respondEphemeral(s, i, "I couldn't understand the anchor date — use MM/DD/YYYY.")
			return
		}
		anchor = parsed.Format(store.DateLayout)
	}

	manager, actorID := b.eventManagerFor(s, i, guildID)
	index := opts["index"].IntValue()
	var name string
	err = b.store.Update(func(st *store.State) error {
		g := st.Guild(guildID)
		if err := checkEventIndex(g, index); err != nil {
			return err
		}
		ev := g.Events[index-1]
		if !canEditEvent(manager, actorID, ev) {
			return errCannotEditEvent(ev)
		}
		name = ev.Name
		ev.SetRepeat(int(every), anchor)
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	respondEphemeral(s, i, fmt.Sprintf("🔁 **%s** will now remind every %d days (anchor %s).", name, every, anchor))
}

func (b *Bot) handleClearRepeat(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData())

	guildID, err := b.targetGuildID(i)
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	manager, actorID := b.eventManagerFor(s, i, guildID)
	index := opts["index"].IntValue()
	var name string
	err = b.store.Update(func(st *store.State) error {
		g := st.Guild(guildID)
		if err := checkEventIndex(g, index); err != nil {
			return err
		}
		ev := g.Events[index-1]
		if !canEditEvent(manager, actorID, ev) {
			return errCannotEditEvent(ev)
		}
		name = ev.Name
		ev.ClearRepeat()
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	respondEphemeral(s, i, fmt.Sprintf("✅ Recurring reminder removed from **%s**.", name))
}

func (b *Bot) handleSilence(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData())

	guildID, err := b.targetGuildID(i)
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	manager, actorID := b.eventManagerFor(s, i, guildID)
	index := opts["index"].IntValue()
	silenced := opts["silenced"].BoolValue()
	var name string
	err = b.store.Update(func(st *store.State) error {
		g := st.Guild(guildID)
		if err := checkEventIndex(g, index); err != nil {
			return err
		}
		ev := g.Events[index-1]
		if !canEditEvent(manager, actorID, ev) {
			return errCannotEditEvent(ev)
		}
		name = ev.Name
		if ev.Silenced == silenced {
			return store.ErrNoChange
		}
		ev.Silenced = silenced
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	b.refreshPinned(guildID)
	if silenced {
		respondEphemeral(s, i, fmt.Sprintf("🔇 Reminders for **%s** are now silenced. The event stays listed.", name))
	} else {
		respondEphemeral(s, i, fmt.Sprintf("🔔 Reminders for **%s** are back on.", name))
	}
}

func (b *Bot) handleSetEventOwner(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData())

	guildID, err := b.targetGuildID(i)
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	owner := opts["owner"].UserValue(s)
	manager, actorID := b.eventManagerFor(s, i, guildID)
	index := opts["index"].IntValue()
	var name string
	err = b.store.Update(func(st *store.State) error {
		g := st.Guild(guildID)
		if err := checkEventIndex(g, index); err != nil {
			return err
		}
		ev := g.Events[index-1]
		if !canEditEvent(manager, actorID, ev) {
			return errCannotEditEvent(ev)
		}
		name = ev.Name
		ev.OwnerUserID = owner.ID
		ev.OwnerName = owner.Username
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	b.refreshPinned(guildID)
	respondEphemeral(s, i, fmt.Sprintf("✅ Updated owner for **%s** to <@%s>.", name, owner.ID))
}

func (b *Bot) handleClearEventOwner(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData())

	guildID, err := b.targetGuildID(i)
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	manager, actorID := b.eventManagerFor(s, i, guildID)
	index := opts["index"].IntValue()
	var name string
	err = b.store.Update(func(st *store.State) error {
		g := st.Guild(guildID)
		if err := checkEventIndex(g, index); err != nil {
			return err
		}
		ev := g.Events[index-1]
		if !canEditEvent(manager, actorID, ev) {
			return errCannotEditEvent(ev)
		}
		name = ev.Name
		ev.OwnerUserID = ""
		ev.OwnerName = ""
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	b.refreshPinned(guildID)
	respondEphemeral(s, i, fmt.Sprintf("✅ Removed the owner from **%s**.", name))
}

func (b *Bot) handleSetEventChannel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := b.store.Update(func(st *store.State) error {
		g := st.Guild(i.GuildID)
		g.EventChannelID = i.ChannelID
		// Force a fresh status message in the new channel.
		g.PinnedMessageID = ""
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	b.refreshPinned(i.GuildID)
	respondEphemeral(s, i,
		"✅ This channel is now the event countdown channel for this server.\nUse `/addevent` to add events.")
}

func (b *Bot) handleSetMentionRole(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData())

	var roleID string
	if opt, ok := opts["role"]; ok {
		role := opt.RoleValue(s, i.GuildID)
		// The everyone pseudo-role shares the guild's id.
		if role.ID == i.GuildID {
			respondEphemeral(s, i, "I won't ping @everyone — pick a normal role, or leave it out to clear.")
			return
		}
		roleID = role.ID
	}

	err := b.store.Update(func(st *store.State) error {
		st.Guild(i.GuildID).MentionRoleID = roleID
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	if roleID == "" {
		respondEphemeral(s, i, "✅ Cleared the mention role.")
	} else {
		respondEphemeral(s, i, fmt.Sprintf("✅ I'll ping <@&%s> on milestone reminders.", roleID))
	}
}

func (b *Bot) handleSetTimezone(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData())
	tz := strings.TrimSpace(opts["tz"].StringValue())

	if _, err := time.LoadLocation(tz); err != nil {
		respondEphemeral(s, i, fmt.Sprintf(
			"`%s` is not a valid timezone — use an IANA name like `America/Chicago` or `Europe/Berlin`.", tz))
		return
	}

	err := b.store.Update(func(st *store.State) error {
		st.Guild(i.GuildID).Timezone = tz
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	b.refreshPinned(i.GuildID)
	respondEphemeral(s, i, fmt.Sprintf("✅ Server timezone set to **%s**.", tz))
}

func (b *Bot) handleSetTheme(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData())
	theme := opts["theme"].StringValue()

	if !render.ValidTheme(theme) {
		respondEphemeral(s, i, fmt.Sprintf("Unknown theme. Available: %s.", strings.Join(render.ThemeNames(), ", ")))
		return
	}

	err := b.store.Update(func(st *store.State) error {
		st.Guild(i.GuildID).Theme = theme
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	respondEphemeral(s, i, fmt.Sprintf("✅ Theme set to **%s**.", theme))
}

func (b *Bot) handleSetDigest(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData())
	enabled := opts["enabled"].BoolValue()

	channelID := ""
	if opt, ok := opts["channel"]; ok {
		channelID = opt.ChannelValue(s).ID
	}

	err := b.store.Update(func(st *store.State) error {
		g := st.Guild(i.GuildID)
		g.Digest.Enabled = enabled
		if channelID != "" {
			g.Digest.ChannelID = channelID
		}
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	if enabled {
		respondEphemeral(s, i, "📋 Daily digest enabled.")
	} else {
		respondEphemeral(s, i, "📋 Daily digest disabled.")
	}
}

func (b *Bot) handleLinkServer(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if manager, _ := b.eventManagerFor(s, i, i.GuildID); !manager {
		respondEphemeral(s, i,
			"You need to be a server event manager to link DM control.\n"+
				"(Manage Server / Administrator, or a configured event admin role.)")
		return
	}

	user := interactionUser(i)
	err := b.store.Update(func(st *store.State) error {
		if st.UserLinks == nil {
			st.UserLinks = make(map[string]string)
		}
		st.UserLinks[user.ID] = i.GuildID
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	respondEphemeral(s, i,
		"🔗 Linked your user to this server.\nYou can now DM me commands like `/addevent` and I'll apply them here.")
}

func (b *Bot) handleRefresh(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var channelSet bool
	b.store.View(func(st *store.State) {
		if g, ok := st.Guilds[i.GuildID]; ok {
			channelSet = g.EventChannelID != ""
		}
	})
	if !channelSet {
		respondEphemeral(s, i, errNoEventChannel.Error())
		return
	}

	if err := b.reconciler.Pinned().Refresh(i.GuildID); err != nil {
		respondEphemeral(s, i, fmt.Sprintf("Couldn't refresh the countdown: %s", err.Error()))
		return
	}
	respondEphemeral(s, i, "⏱ Countdown updated.")
}

func (b *Bot) handleHealth(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var channelID string
	b.store.View(func(st *store.State) {
		if g, ok := st.Guilds[i.GuildID]; ok {
			channelID = g.EventChannelID
		}
	})
	if channelID == "" {
		respondEphemeral(s, i, errNoEventChannel.Error())
		return
	}

	caps, err := b.messenger.Capabilities(channelID)
	if err != nil {
		respondEphemeral(s, i, fmt.Sprintf("I can't inspect <#%s> right now: %s", channelID, err.Error()))
		return
	}

	required := []platform.Capability{
		platform.CapView, platform.CapSend, platform.CapEmbedLinks,
		platform.CapReadHistory, platform.CapManageMessages,
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Health check for <#%s>:**\n", channelID)
	for _, c := range required {
		mark := "✅"
		if !caps.Has(c) {
			mark = "❌"
		}
		fmt.Fprintf(&sb, "%s `%s`\n", mark, c)
	}
	if len(caps.Missing(required...)) == 0 {
		sb.WriteString("\nAll good — I have everything I need.")
	} else {
		sb.WriteString("\nGrant the missing permissions in the channel settings so I can do my job.")
	}
	respondEphemeral(s, i, sb.String())
}

func (b *Bot) handleResendSetup(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guild, err := s.State.Guild(i.GuildID)
	if err != nil {
		guild, err = s.Guild(i.GuildID)
		if err != nil {
			respondEphemeral(s, i, "I couldn't look up this server right now. Try again in a moment.")
			return
		}
	}

	setup := render.Setup(guild.Name, fmt.Sprintf("<@%s>", guild.OwnerID))
	delivered := b.messenger.SendDirectMessage(guild.OwnerID, setup) == nil
	if !delivered {
		_, sendErr := b.messenger.SendMessage(i.ChannelID, setup, platform.MentionPolicy{})
		delivered = sendErr == nil
	}

	updateErr := b.store.Update(func(st *store.State) error {
		st.Guild(i.GuildID).Welcomed = true
		return nil
	})
	if updateErr != nil {
		respondEphemeral(s, i, updateErr.Error())
		return
	}

	if delivered {
		respondEphemeral(s, i, "📨 Setup instructions have been resent.")
	} else {
		respondEphemeral(s, i, "I couldn't deliver the setup guide — the owner may have DMs disabled.")
	}
}

func (b *Bot) handleAddEventAdminRole(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData())
	role := opts["role"].RoleValue(s, i.GuildID)

	err := b.store.Update(func(st *store.State) error {
		if !st.Guild(i.GuildID).AddEventAdminRole(role.ID) {
			return store.ErrNoChange
		}
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	respondEphemeral(s, i, fmt.Sprintf("✅ <@&%s> can now manage any event in this server.", role.ID))
}

func (b *Bot) handleRemoveEventAdminRole(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData())
	role := opts["role"].RoleValue(s, i.GuildID)

	err := b.store.Update(func(st *store.State) error {
		if !st.Guild(i.GuildID).RemoveEventAdminRole(role.ID) {
			return store.ErrNoChange
		}
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	respondEphemeral(s, i, fmt.Sprintf("✅ Removed <@&%s> from event managers.", role.ID))
}

func (b *Bot) handleListEventAdminRoles(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var roleIDs []string
	b.store.View(func(st *store.State) {
		if g, ok := st.Guilds[i.GuildID]; ok {
			roleIDs = append(roleIDs, g.EventAdminRoleIDs...)
		}
	})

	if len(roleIDs) == 0 {
		respondEphemeral(s, i,
			"No event admin roles set.\nUse `/addeventadminrole` to add one (Manage Server required).")
		return
	}

	lines := make([]string, len(roleIDs))
	for idx, id := range roleIDs {
		lines[idx] = fmt.Sprintf("• <@&%s>", id)
	}
	respondEphemeral(s, i, "Event admin roles:\n"+strings.Join(lines, "\n"))
}

func (b *Bot) handleAllowMemberAddEvents(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData())
	enabled := opts["enabled"].BoolValue()

	err := b.store.Update(func(st *store.State) error {
		g := st.Guild(i.GuildID)
		if g.AllowMemberEventCreation == enabled {
			return store.ErrNoChange
		}
		g.AllowMemberEventCreation = enabled
		return nil
	})
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	if enabled {
		respondEphemeral(s, i, "✅ Member event creation is now **enabled**.")
	} else {
		respondEphemeral(s, i, "✅ Member event creation is now **disabled**.")
	}
}

func (b *Bot) handleHelp(s *discordgo.Session, i *discordgo.InteractionCreate) {
	respondEphemeral(s, i, render.Help())
}

// small formatting helpers

func formatInts(values []int) string {
	if len(values) == 0 {
		return "none"
	}
	parts := make([]string, len(values))
	for idx, v := range values {
		parts[idx] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}
