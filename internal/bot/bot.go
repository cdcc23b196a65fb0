package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/nicolethornton330-maker/ChronoBot/internal/config"
	"github.com/nicolethornton330-maker/ChronoBot/internal/platform"
	"github.com/nicolethornton330-maker/ChronoBot/internal/reconcile"
	"github.com/nicolethornton330-maker/ChronoBot/internal/render"
	"github.com/nicolethornton330-maker/ChronoBot/internal/store"
)

// Bot represents the Discord bot instance
type Bot struct {
	config     *config.Config
	session    *discordgo.Session
	store      *store.Store
	messenger  platform.Messenger
	renderer   *render.Renderer
	reconciler *reconcile.Reconciler
	defaultLoc *time.Location
	commands   []*discordgo.ApplicationCommand
}

// New creates a new Bot instance
func New(cfg *config.Config) (*Bot, error) {
	// Create Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Set intents
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	// Initialize storage
	st, err := store.Open(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	loc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid default timezone: %w", err)
	}

	messenger := platform.NewDiscord(session)
	renderer := render.New()

	b := &Bot{
		config:     cfg,
		session:    session,
		store:      st,
		messenger:  messenger,
		renderer:   renderer,
		defaultLoc: loc,
	}
	b.reconciler = reconcile.New(st, messenger, renderer, reconcile.Options{
		Interval:        time.Duration(cfg.PollingIntervalSeconds) * time.Second,
		DefaultLocation: loc,
	})

	// Register command handlers
	b.registerHandlers()

	return b, nil
}

// Start opens the Discord connection and starts the reconciliation loop
func (b *Bot) Start(ctx context.Context) error {
	// Open Discord connection
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	slog.Info("Connected to Discord", "user", b.session.State.User.Username)

	// Register slash commands
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	// Start the reconciliation loop
	if err := b.reconciler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reconciler: %w", err)
	}

	return nil
}

// Stop gracefully shuts down the bot, letting an in-flight tick finish
func (b *Bot) Stop() error {
	if b.reconciler != nil {
		if err := b.reconciler.Stop(); err != nil {
			slog.Error("Failed to stop reconciler", "error", err)
		}
	}

	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

// registerHandlers sets up Discord event handlers
func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(b.handleGuildJoin)
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("Bot is ready", "guilds", len(r.Guilds))
	})
}

// handleGuildJoin sends the onboarding guide the first time the bot lands in
// a guild. The welcomed flag keeps this a one-shot.
func (b *Bot) handleGuildJoin(s *discordgo.Session, g *discordgo.GuildCreate) {
	var welcomed bool
	b.store.View(func(st *store.State) {
		if cfg, ok := st.Guilds[g.ID]; ok {
			welcomed = cfg.Welcomed
		}
	})
	if welcomed {
		return
	}

	ownerMention := ""
	if g.OwnerID != "" {
		ownerMention = fmt.Sprintf("<@%s>", g.OwnerID)
	}
	setup := render.Setup(g.Name, ownerMention)

	sent := false
	if g.OwnerID != "" {
		if err := b.messenger.SendDirectMessage(g.OwnerID, setup); err == nil {
			sent = true
		}
	}
	if !sent {
		// Fallback: first channel the bot can speak in.
		for _, ch := range g.Channels {
			if ch.Type != discordgo.ChannelTypeGuildText {
				continue
			}
			if _, err := b.messenger.SendMessage(ch.ID, setup, platform.MentionPolicy{}); err == nil {
				sent = true
				break
			}
		}
	}
	if !sent {
		slog.Warn("Could not deliver onboarding message", "guild", g.ID)
	}

	// Welcomed after the first attempt, delivered or not.
	err := b.store.Update(func(st *store.State) error {
		st.Guild(g.ID).Welcomed = true
		return nil
	})
	if err != nil {
		slog.Error("Failed to persist welcomed flag", "guild", g.ID, "error", err)
	}
}

// handleInteraction processes slash command interactions
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	slog.Debug("Received command", "command", data.Name, "guild", i.GuildID)

	switch data.Name {
	case "addevent":
		b.handleAddEvent(s, i)
	case "editevent":
		b.handleEditEvent(s, i)
	case "removeevent":
		b.handleRemoveEvent(s, i)
	case "purgeevents":
		b.handlePurgeEvents(s, i)
	case "listevents":
		b.handleListEvents(s, i)
	case "eventinfo":
		b.handleEventInfo(s, i)
	case "setmilestones":
		b.handleSetMilestones(s, i)
	case "clearmilestones":
		b.handleClearMilestones(s, i)
	case "setrepeat":
		b.handleSetRepeat(s, i)
	case "clearrepeat":
		b.handleClearRepeat(s, i)
	case "silence":
		b.handleSilence(s, i)
	case "seteventowner":
		b.handleSetEventOwner(s, i)
	case "cleareventowner":
		b.handleClearEventOwner(s, i)
	case "seteventchannel":
		b.handleSetEventChannel(s, i)
	case "setmentionrole":
		b.handleSetMentionRole(s, i)
	case "settimezone":
		b.handleSetTimezone(s, i)
	case "settheme":
		b.handleSetTheme(s, i)
	case "setdigest":
		b.handleSetDigest(s, i)
	case "addeventadminrole":
		b.handleAddEventAdminRole(s, i)
	case "removeeventadminrole":
		b.handleRemoveEventAdminRole(s, i)
	case "listeventadminroles":
		b.handleListEventAdminRoles(s, i)
	case "allowmemberaddevents":
		b.handleAllowMemberAddEvents(s, i)
	case "linkserver":
		b.handleLinkServer(s, i)
	case "refresh":
		b.handleRefresh(s, i)
	case "health":
		b.handleHealth(s, i)
	case "resendsetup":
		b.handleResendSetup(s, i)
	case "help":
		b.handleHelp(s, i)
	default:
		slog.Warn("Unknown command", "command", data.Name)
	}
}
