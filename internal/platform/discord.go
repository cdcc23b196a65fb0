package platform

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// Discord adapts a discordgo session to the Messenger interface, translating
// REST failures into the core's error taxonomy: 404s become ErrNotFound,
// 403s become structured CapabilityError reports.
type Discord struct {
	session *discordgo.Session
}

// NewDiscord wraps an open discordgo session.
func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func (d *Discord) BotUserID() string {
	if d.session.State != nil && d.session.State.User != nil {
		return d.session.State.User.ID
	}
	return ""
}

func (d *Discord) ResolveChannel(channelID string) error {
	if _, err := d.session.State.Channel(channelID); err == nil {
		return nil
	}
	_, err := d.session.Channel(channelID)
	return d.translate(channelID, err, CapView)
}

func (d *Discord) SendMessage(channelID, content string, mentions MentionPolicy) (*Message, error) {
	allowed := &discordgo.MessageAllowedMentions{}
	if mentions.RoleID != "" {
		allowed.Roles = []string{mentions.RoleID}
	}
	msg, err := d.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         content,
		AllowedMentions: allowed,
	})
	if err != nil {
		return nil, d.translate(channelID, err, CapView, CapSend)
	}
	return fromDiscordMessage(msg), nil
}

func (d *Discord) SendEmbed(channelID string, embed *discordgo.MessageEmbed) (*Message, error) {
	msg, err := d.session.ChannelMessageSendEmbed(channelID, embed)
	if err != nil {
		return nil, d.translate(channelID, err, CapView, CapSend, CapEmbedLinks)
	}
	return fromDiscordMessage(msg), nil
}

func (d *Discord) EditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed) error {
	_, err := d.session.ChannelMessageEditEmbed(channelID, messageID, embed)
	return d.translate(channelID, err, CapSend, CapEmbedLinks)
}

func (d *Discord) PinMessage(channelID, messageID string) error {
	err := d.session.ChannelMessagePin(channelID, messageID)
	return d.translate(channelID, err, CapManageMessages)
}

func (d *Discord) UnpinMessage(channelID, messageID string) error {
	err := d.session.ChannelMessageUnpin(channelID, messageID)
	return d.translate(channelID, err, CapManageMessages)
}

func (d *Discord) FetchMessage(channelID, messageID string) (*Message, error) {
	msg, err := d.session.ChannelMessage(channelID, messageID)
	if err != nil {
		return nil, d.translate(channelID, err, CapView, CapReadHistory)
	}
	return fromDiscordMessage(msg), nil
}

func (d *Discord) ListPinned(channelID string) ([]*Message, error) {
	msgs, err := d.session.ChannelMessagesPinned(channelID)
	if err != nil {
		return nil, d.translate(channelID, err, CapView, CapReadHistory)
	}
	out := make([]*Message, len(msgs))
	for i, m := range msgs {
		out[i] = fromDiscordMessage(m)
		out[i].Pinned = true
	}
	return out, nil
}

func (d *Discord) Capabilities(channelID string) (CapabilitySet, error) {
	perms, err := d.session.UserChannelPermissions(d.BotUserID(), channelID)
	if err != nil {
		return nil, d.translate(channelID, err, CapView)
	}
	set := CapabilitySet{}
	for c, bit := range capabilityBits {
		if perms&bit != 0 {
			set[c] = true
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		for c := range capabilityBits {
			set[c] = true
		}
	}
	return set, nil
}

func (d *Discord) SendDirectMessage(userID, content string) error {
	channel, err := d.session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("failed to open DM channel: %w", err)
	}
	_, err = d.session.ChannelMessageSend(channel.ID, content)
	return err
}

func (d *Discord) GuildOwnerID(guildID string) (string, error) {
	if guild, err := d.session.State.Guild(guildID); err == nil && guild.OwnerID != "" {
		return guild.OwnerID, nil
	}
	guild, err := d.session.Guild(guildID)
	if err != nil {
		return "", err
	}
	return guild.OwnerID, nil
}

var capabilityBits = map[Capability]int64{
	CapView:            discordgo.PermissionViewChannel,
	CapSend:            discordgo.PermissionSendMessages,
	CapEmbedLinks:      discordgo.PermissionEmbedLinks,
	CapReadHistory:     discordgo.PermissionReadMessageHistory,
	CapManageMessages:  discordgo.PermissionManageMessages,
	CapMentionEveryone: discordgo.PermissionMentionEveryone,
}

// translate maps a discordgo REST failure onto the core taxonomy. required
// lists the capabilities the attempted operation needs; on a 403 the actual
// missing subset is reported when it can be determined.
func (d *Discord) translate(channelID string, err error, required ...Capability) error {
	if err == nil {
		return nil
	}
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) && rerr.Response != nil {
		switch rerr.Response.StatusCode {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusForbidden:
			missing := required
			if caps, capErr := d.Capabilities(channelID); capErr == nil {
				if m := caps.Missing(required...); len(m) > 0 {
					missing = m
				}
			}
			return &CapabilityError{ChannelID: channelID, Missing: missing}
		}
	}
	return err
}

func fromDiscordMessage(m *discordgo.Message) *Message {
	msg := &Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Pinned:    m.Pinned,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
	}
	return msg
}
