package platform

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// ErrNotFound is returned when a channel or message no longer exists (as
// opposed to a transient or permission failure).
var ErrNotFound = errors.New("not found")

// Capability is a channel-level permission the bot may or may not hold.
type Capability string

const (
	CapView            Capability = "view_channel"
	CapSend            Capability = "send_messages"
	CapEmbedLinks      Capability = "embed_links"
	CapReadHistory     Capability = "read_message_history"
	CapManageMessages  Capability = "manage_messages"
	CapMentionEveryone Capability = "mention_everyone"
)

// CapabilitySet is the set of capabilities the bot holds in one channel.
type CapabilitySet map[Capability]bool

// Has reports whether the set contains c.
func (s CapabilitySet) Has(c Capability) bool {
	return s[c]
}

// Missing returns the subset of want not present, sorted for stable
// reporting.
func (s CapabilitySet) Missing(want ...Capability) []Capability {
	var missing []Capability
	for _, c := range want {
		if !s[c] {
			missing = append(missing, c)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

// CapabilityError is the structured report for a privileged operation the
// bot cannot perform in a channel. Raw platform permission errors are
// translated into this at the adapter boundary.
type CapabilityError struct {
	ChannelID string
	Missing   []Capability
}

func (e *CapabilityError) Error() string {
	names := make([]string, len(e.Missing))
	for i, c := range e.Missing {
		names[i] = string(c)
	}
	return fmt.Sprintf("missing capabilities in channel %s: %s", e.ChannelID, strings.Join(names, ", "))
}

// Key is a stable identifier for the missing set, used to rate-limit owner
// notifications per distinct report.
func (e *CapabilityError) Key() string {
	names := make([]string, len(e.Missing))
	for i, c := range e.Missing {
		names[i] = string(c)
	}
	sort.Strings(names)
	return e.ChannelID + "|" + strings.Join(names, ",")
}

// Message is the minimal view of a platform message the core needs.
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	Pinned    bool
}

// MentionPolicy restricts which mentions a message may actually ping.
// An empty policy pings nothing even if the text contains mention markup.
type MentionPolicy struct {
	RoleID string
}

// Messenger is the core's only dependency on the chat platform. The real
// implementation adapts discordgo; tests use the in-memory fake. Every
// method has bounded local failure semantics; callers treat errors as
// per-call, never fatal.
type Messenger interface {
	// BotUserID identifies messages authored by this bot.
	BotUserID() string

	// ResolveChannel verifies the channel exists and is reachable.
	ResolveChannel(channelID string) error

	// SendMessage posts plain text restricted by the mention policy.
	SendMessage(channelID, content string, mentions MentionPolicy) (*Message, error)

	// SendEmbed posts an embed message.
	SendEmbed(channelID string, embed *discordgo.MessageEmbed) (*Message, error)

	// EditEmbed replaces the embed of an existing message.
	EditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed) error

	// PinMessage pins a message in its channel.
	PinMessage(channelID, messageID string) error

	// UnpinMessage removes a pin.
	UnpinMessage(channelID, messageID string) error

	// FetchMessage retrieves a message by id; ErrNotFound if deleted.
	FetchMessage(channelID, messageID string) (*Message, error)

	// ListPinned returns the channel's currently pinned messages.
	ListPinned(channelID string) ([]*Message, error)

	// Capabilities reports the bot's effective permissions in a channel,
	// used to pre-check before attempting privileged operations.
	Capabilities(channelID string) (CapabilitySet, error)

	// SendDirectMessage DMs a user. Best-effort; users can block DMs.
	SendDirectMessage(userID, content string) error

	// GuildOwnerID returns the owning user of a guild, for capability
	// failure notifications.
	GuildOwnerID(guildID string) (string, error)
}
