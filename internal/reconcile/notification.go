package reconcile

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/nicolethornton330-maker/ChronoBot/internal/schedule"
	"github.com/nicolethornton330-maker/ChronoBot/internal/store"
)

// Notification is the neutral "something fired" value the loop hands to the
// presentation layer. Wording, themes and flavor live entirely outside the
// reconciliation core.
type Notification struct {
	Kind  schedule.Kind
	Event store.EventRecord
	Days  int
}

// Renderer turns reconciliation outcomes into user-visible content.
type Renderer interface {
	// Notification renders the channel announcement for a firing.
	Notification(theme string, n Notification, mentionRoleID string) string

	// StatusEmbed renders the pinned status message for a guild.
	StatusEmbed(g *store.GuildConfig, now time.Time, loc *time.Location) *discordgo.MessageEmbed

	// Digest renders the once-a-day event summary.
	Digest(g *store.GuildConfig, now time.Time, loc *time.Location) string
}
