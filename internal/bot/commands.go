package bot

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/nicolethornton330-maker/ChronoBot/internal/render"
	"github.com/nicolethornton330-maker/ChronoBot/internal/store"
)

// DateFormat / TimeFormat are the user-facing input formats.
const (
	DateFormat = "01/02/2006"
	TimeFormat = "15:04"
)

var (
	manageGuildPerm    = int64(discordgo.PermissionManageGuild)
	manageMessagesPerm = int64(discordgo.PermissionManageMessages)
	dmDisallowed       = false
)

func indexOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "index",
		Description: description,
		Required:    true,
	}
}

// Slash command definitions
func (b *Bot) getCommandDefinitions() []*discordgo.ApplicationCommand {
	themeChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(render.ThemeNames()))
	for _, name := range render.ThemeNames() {
		themeChoices = append(themeChoices, &discordgo.ApplicationCommandOptionChoice{
			Name:  name,
			Value: name,
		})
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "addevent",
			Description: "Add a new event to the countdown",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "date",
					Description: "Date in MM/DD/YYYY format",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "time",
					Description: "Time in 24-hour HH:MM format (server timezone)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Name of the event",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "banner",
					Description: "Optional banner image URL",
					Required:    false,
				},
			},
		},
		{
			Name:        "editevent",
			Description: "Reschedule an event (resets its reminder history)",
			Options: []*discordgo.ApplicationCommandOption{
				indexOption("The number shown in /listevents"),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "date",
					Description: "New date in MM/DD/YYYY format",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "time",
					Description: "New time in 24-hour HH:MM format",
					Required:    true,
				},
			},
		},
		{
			Name:        "removeevent",
			Description: "Remove an event by its list number",
			Options: []*discordgo.ApplicationCommandOption{
				indexOption("The number shown in /listevents"),
			},
		},
		{
			Name:                     "purgeevents",
			Description:              "Remove ALL events from this server",
			DefaultMemberPermissions: &manageGuildPerm,
			DMPermission:             &dmDisallowed,
		},
		{
			Name:        "listevents",
			Description: "List all events for this server",
		},
		{
			Name:        "eventinfo",
			Description: "Show full details for one event",
			Options: []*discordgo.ApplicationCommandOption{
				indexOption("The number shown in /listevents"),
			},
		},
		{
			Name:        "setmilestones",
			Description: "Set the milestone day-offsets for an event",
			Options: []*discordgo.ApplicationCommandOption{
				indexOption("The number shown in /listevents"),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "days",
					Description: "Comma-separated day offsets, e.g. 30,14,7,1,0",
					Required:    true,
				},
			},
		},
		{
			Name:        "clearmilestones",
			Description: "Disable milestone reminders for an event",
			Options: []*discordgo.ApplicationCommandOption{
				indexOption("The number shown in /listevents"),
			},
		},
		{
			Name:        "setrepeat",
			Description: "Set a recurring reminder for an event",
			Options: []*discordgo.ApplicationCommandOption{
				indexOption("The number shown in /listevents"),
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "every_days",
					Description: "Remind every N days (1-365)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "anchor",
					Description: "Anchor date MM/DD/YYYY (defaults to today)",
					Required:    false,
				},
			},
		},
		{
			Name:        "clearrepeat",
			Description: "Remove the recurring reminder from an event",
			Options: []*discordgo.ApplicationCommandOption{
				indexOption("The number shown in /listevents"),
			},
		},
		{
			Name:        "silence",
			Description: "Mute or unmute all reminders for one event",
			Options: []*discordgo.ApplicationCommandOption{
				indexOption("The number shown in /listevents"),
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "silenced",
					Description: "true to mute, false to unmute",
					Required:    true,
				},
			},
		},
		{
			Name:        "seteventowner",
			Description: "Set or transfer the owner of an event",
			Options: []*discordgo.ApplicationCommandOption{
				indexOption("The number shown in /listevents"),
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "owner",
					Description: "New event owner",
					Required:    true,
				},
			},
		},
		{
			Name:        "cleareventowner",
			Description: "Remove the owner from an event",
			Options: []*discordgo.ApplicationCommandOption{
				indexOption("The number shown in /listevents"),
			},
		},
		{
			Name:                     "seteventchannel",
			Description:              "Use this channel for the pinned countdown and reminders",
			DefaultMemberPermissions: &manageGuildPerm,
			DMPermission:             &dmDisallowed,
		},
		{
			Name:                     "setmentionrole",
			Description:              "Role to ping on milestone reminders",
			DefaultMemberPermissions: &manageGuildPerm,
			DMPermission:             &dmDisallowed,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "Role to mention (leave out to clear)",
					Required:    false,
				},
			},
		},
		{
			Name:                     "settimezone",
			Description:              "Set the server timezone for dates and milestones",
			DefaultMemberPermissions: &manageGuildPerm,
			DMPermission:             &dmDisallowed,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "tz",
					Description: "IANA timezone name, e.g. America/Chicago",
					Required:    true,
				},
			},
		},
		{
			Name:                     "settheme",
			Description:              "Pick the reminder wording theme",
			DefaultMemberPermissions: &manageGuildPerm,
			DMPermission:             &dmDisallowed,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "theme",
					Description: "Theme name",
					Required:    true,
					Choices:     themeChoices,
				},
			},
		},
		{
			Name:                     "setdigest",
			Description:              "Enable or disable the daily event digest",
			DefaultMemberPermissions: &manageGuildPerm,
			DMPermission:             &dmDisallowed,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "enabled",
					Description: "true to enable, false to disable",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel for the digest (defaults to the events channel)",
					Required:    false,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
			},
		},
		{
			Name:                     "addeventadminrole",
			Description:              "Allow a role to manage any event",
			DefaultMemberPermissions: &manageGuildPerm,
			DMPermission:             &dmDisallowed,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "Role that can manage events",
					Required:    true,
				},
			},
		},
		{
			Name:                     "removeeventadminrole",
			Description:              "Remove a role from event management",
			DefaultMemberPermissions: &manageGuildPerm,
			DMPermission:             &dmDisallowed,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "Role to remove",
					Required:    true,
				},
			},
		},
		{
			Name:         "listeventadminroles",
			Description:  "List roles allowed to manage any event",
			DMPermission: &dmDisallowed,
		},
		{
			Name:                     "allowmemberaddevents",
			Description:              "Toggle whether members can create their own events",
			DefaultMemberPermissions: &manageGuildPerm,
			DMPermission:             &dmDisallowed,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "enabled",
					Description: "If true, members may add events and become the owner",
					Required:    true,
				},
			},
		},
		{
			Name:         "linkserver",
			Description:  "Link yourself to this server for DM control",
			DMPermission: &dmDisallowed,
		},
		{
			Name:                     "refresh",
			Description:              "Force-refresh the pinned countdown",
			DefaultMemberPermissions: &manageMessagesPerm,
			DMPermission:             &dmDisallowed,
		},
		{
			Name:         "health",
			Description:  "Check my permissions in the events channel",
			DMPermission: &dmDisallowed,
		},
		{
			Name:                     "resendsetup",
			Description:              "Resend the onboarding/setup message",
			DefaultMemberPermissions: &manageGuildPerm,
			DMPermission:             &dmDisallowed,
		},
		{
			Name:        "help",
			Description: "Show ChronoBot setup & command help",
		},
	}
}

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	slog.Info("Registering slash commands")

	commandDefinitions := b.getCommandDefinitions()
	registeredCommands := make([]*discordgo.ApplicationCommand, 0, len(commandDefinitions))

	for _, cmd := range commandDefinitions {
		registered, err := b.session.ApplicationCommandCreate(
			b.session.State.User.ID,
			"", // Empty string = global command
			cmd,
		)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		registeredCommands = append(registeredCommands, registered)
		slog.Debug("Registered command", "name", cmd.Name)
	}

	b.commands = registeredCommands
	slog.Info("Slash commands registered", "count", len(registeredCommands))
	return nil
}

// Helper functions

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func optionMap(data discordgo.ApplicationCommandInteractionData) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options))
	for _, opt := range data.Options {
		opts[opt.Name] = opt
	}
	return opts
}

// interactionUser works in both guild and DM contexts.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}

// parseMilestoneList parses "30,14,7,1,0" into non-negative day offsets in
// the given order; SetMilestones sorts and dedupes on apply.
func parseMilestoneList(input string) ([]int, error) {
	parts := strings.Split(input, ",")
	milestones := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", part)
		}
		if n < 0 {
			return nil, fmt.Errorf("milestone offsets must be non-negative, got %d", n)
		}
		milestones = append(milestones, n)
	}
	if len(milestones) == 0 {
		return nil, fmt.Errorf("no milestone offsets given")
	}
	return milestones, nil
}

// checkEventIndex validates a 1-based /listevents position.
func checkEventIndex(g *store.GuildConfig, index int64) error {
	if len(g.Events) == 0 {
		return fmt.Errorf("there are no events yet — add one with `/addevent`")
	}
	if index < 1 || index > int64(len(g.Events)) {
		return fmt.Errorf("index must be between 1 and %d", len(g.Events))
	}
	return nil
}

// refreshPinned updates the public display right after a mutation so users
// see the change without waiting for the next tick.
func (b *Bot) refreshPinned(guildID string) {
	if err := b.reconciler.Pinned().Refresh(guildID); err != nil {
		slog.Warn("Pinned refresh after command failed", "guild", guildID, "error", err)
	}
}
