package bot

import (
	"fmt"
	"slices"

	"github.com/bwmarrin/discordgo"
	"github.com/nicolethornton330-maker/ChronoBot/internal/store"
)

const eventManagerPerms = discordgo.PermissionAdministrator | discordgo.PermissionManageGuild

// isEventManager reports whether a member may manage any event in the guild:
// Manage Server or Administrator permission, or one of the configured event
// admin roles.
func isEventManager(member *discordgo.Member, perms int64, adminRoleIDs []string) bool {
	if member == nil {
		return false
	}
	if perms&eventManagerPerms != 0 {
		return true
	}
	for _, id := range member.Roles {
		if slices.Contains(adminRoleIDs, id) {
			return true
		}
	}
	return false
}

// canEditEvent is the per-event gate: the event owner or a server event
// manager.
func canEditEvent(manager bool, actorID string, ev *store.EventRecord) bool {
	return manager || (ev.OwnerUserID != "" && ev.OwnerUserID == actorID)
}

// errCannotEditEvent is the denial shown for a per-event mutation.
func errCannotEditEvent(ev *store.EventRecord) error {
	hint := ""
	if ev.OwnerUserID != "" {
		hint = fmt.Sprintf(" (<@%s>)", ev.OwnerUserID)
	}
	return fmt.Errorf("you can't change that event — only the event owner%s or a server event manager can", hint)
}

// actorMember resolves the invoking user's membership in the target guild.
// In-guild interactions carry the member; DM invocations look it up, so the
// permission check holds even when commands arrive through /linkserver.
func (b *Bot) actorMember(s *discordgo.Session, i *discordgo.InteractionCreate, guildID string) *discordgo.Member {
	if i.GuildID == guildID && i.Member != nil {
		return i.Member
	}
	user := interactionUser(i)
	if user == nil {
		return nil
	}
	if member, err := s.State.Member(guildID, user.ID); err == nil {
		return member
	}
	member, err := s.GuildMember(guildID, user.ID)
	if err != nil {
		return nil
	}
	return member
}

// memberPermissions computes effective guild-level permissions. Interaction
// payloads carry them precomputed; fetched members get them derived from
// their roles, with the guild owner holding everything.
func (b *Bot) memberPermissions(s *discordgo.Session, guildID string, member *discordgo.Member) int64 {
	if member == nil {
		return 0
	}
	if member.Permissions != 0 {
		return member.Permissions
	}

	guild, err := s.State.Guild(guildID)
	if err != nil {
		if guild, err = s.Guild(guildID); err != nil {
			return 0
		}
	}
	if member.User != nil && guild.OwnerID == member.User.ID {
		return discordgo.PermissionAll
	}

	var perms int64
	for _, role := range guild.Roles {
		// The everyone role shares the guild's id.
		if role.ID == guildID || slices.Contains(member.Roles, role.ID) {
			perms |= role.Permissions
		}
	}
	return perms
}

// eventManagerFor resolves the invoker's manager status for the target guild.
func (b *Bot) eventManagerFor(s *discordgo.Session, i *discordgo.InteractionCreate, guildID string) (manager bool, actorID string) {
	user := interactionUser(i)
	if user == nil {
		return false, ""
	}

	var adminRoles []string
	b.store.View(func(st *store.State) {
		if g, ok := st.Guilds[guildID]; ok {
			adminRoles = slices.Clone(g.EventAdminRoleIDs)
		}
	})

	member := b.actorMember(s, i, guildID)
	perms := b.memberPermissions(s, guildID, member)
	return isEventManager(member, perms, adminRoles), user.ID
}

// canAddEvents reports whether the invoker may create events in the guild:
// the member-creation toggle, or event manager status.
func (b *Bot) canAddEvents(s *discordgo.Session, i *discordgo.InteractionCreate, guildID string) bool {
	var allow bool
	b.store.View(func(st *store.State) {
		if g, ok := st.Guilds[guildID]; ok {
			allow = g.AllowMemberEventCreation
		}
	})
	if allow {
		return true
	}
	manager, _ := b.eventManagerFor(s, i, guildID)
	return manager
}
