package platform

import (
	"fmt"
	"slices"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Memory is an in-memory Messenger used by tests. Channels must be created
// explicitly; unknown channels behave like deleted ones. Failures can be
// scripted per channel to exercise permission and transient-error paths.
type Memory struct {
	mu     sync.Mutex
	botID  string
	nextID int

	channels map[string]*memoryChannel
	dms      map[string][]string
	owners   map[string]string

	// SendErr/PinErr/EditErr, when set for a channel, fail the matching
	// operation with the given error.
	sendErr map[string]error
	pinErr  map[string]error
	editErr map[string]error
	caps    map[string]CapabilitySet
}

type memoryChannel struct {
	messages map[string]*memoryMessage
	order    []string
}

type memoryMessage struct {
	Message
	content string
	embed   *discordgo.MessageEmbed
}

// NewMemory creates a fake messenger whose bot user has the given id.
func NewMemory(botID string) *Memory {
	return &Memory{
		botID:    botID,
		channels: make(map[string]*memoryChannel),
		dms:      make(map[string][]string),
		owners:   make(map[string]string),
		sendErr:  make(map[string]error),
		pinErr:   make(map[string]error),
		editErr:  make(map[string]error),
		caps:     make(map[string]CapabilitySet),
	}
}

// AddChannel registers a channel with full capabilities.
func (m *Memory) AddChannel(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[channelID] = &memoryChannel{messages: make(map[string]*memoryMessage)}
	m.caps[channelID] = CapabilitySet{
		CapView: true, CapSend: true, CapEmbedLinks: true,
		CapReadHistory: true, CapManageMessages: true,
	}
}

// SetCapabilities overrides the reported capabilities for a channel.
func (m *Memory) SetCapabilities(channelID string, caps CapabilitySet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caps[channelID] = caps
}

// FailSends makes SendMessage/SendEmbed fail in the channel with err, or
// succeed again when err is nil.
func (m *Memory) FailSends(channelID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr[channelID] = err
}

// FailPins makes PinMessage/UnpinMessage fail in the channel with err.
func (m *Memory) FailPins(channelID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pinErr[channelID] = err
}

// FailEdits makes EditEmbed fail in the channel with err.
func (m *Memory) FailEdits(channelID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.editErr[channelID] = err
}

// SetGuildOwner records the owner reported for a guild.
func (m *Memory) SetGuildOwner(guildID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[guildID] = userID
}

// DeleteMessage simulates a user deleting a message out from under the bot.
func (m *Memory) DeleteMessage(channelID, messageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[channelID]; ok {
		delete(ch.messages, messageID)
		ch.order = slices.DeleteFunc(ch.order, func(id string) bool { return id == messageID })
	}
}

// Unpin simulates a user unpinning a message without deleting it.
func (m *Memory) Unpin(channelID, messageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[channelID]; ok {
		if msg, ok := ch.messages[messageID]; ok {
			msg.Pinned = false
		}
	}
}

// SentContents returns the text of every plain message sent to the channel,
// oldest first. Embed-only messages contribute their embed title.
func (m *Memory) SentContents(channelID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[channelID]
	if !ok {
		return nil
	}
	var out []string
	for _, id := range ch.order {
		msg := ch.messages[id]
		if msg.content != "" {
			out = append(out, msg.content)
		}
	}
	return out
}

// PinnedIDs returns the ids of currently pinned messages in the channel.
func (m *Memory) PinnedIDs(channelID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[channelID]
	if !ok {
		return nil
	}
	var out []string
	for _, id := range ch.order {
		if ch.messages[id].Pinned {
			out = append(out, id)
		}
	}
	return out
}

// DirectMessages returns the DMs sent to a user, oldest first.
func (m *Memory) DirectMessages(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.dms[userID])
}

// EmbedFor returns the embed of a message, or nil.
func (m *Memory) EmbedFor(channelID, messageID string) *discordgo.MessageEmbed {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[channelID]; ok {
		if msg, ok := ch.messages[messageID]; ok {
			return msg.embed
		}
	}
	return nil
}

// Messenger implementation

func (m *Memory) BotUserID() string { return m.botID }

func (m *Memory) ResolveChannel(channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[channelID]; !ok {
		return ErrNotFound
	}
	return nil
}

func (m *Memory) SendMessage(channelID, content string, _ MentionPolicy) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendLocked(channelID, content, nil)
}

func (m *Memory) SendEmbed(channelID string, embed *discordgo.MessageEmbed) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendLocked(channelID, "", embed)
}

func (m *Memory) sendLocked(channelID, content string, embed *discordgo.MessageEmbed) (*Message, error) {
	if err := m.sendErr[channelID]; err != nil {
		return nil, err
	}
	ch, ok := m.channels[channelID]
	if !ok {
		return nil, ErrNotFound
	}
	m.nextID++
	msg := &memoryMessage{
		Message: Message{
			ID:        fmt.Sprintf("msg-%d", m.nextID),
			ChannelID: channelID,
			AuthorID:  m.botID,
		},
		content: content,
		embed:   embed,
	}
	ch.messages[msg.ID] = msg
	ch.order = append(ch.order, msg.ID)
	out := msg.Message
	return &out, nil
}

func (m *Memory) EditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.editErr[channelID]; err != nil {
		return err
	}
	ch, ok := m.channels[channelID]
	if !ok {
		return ErrNotFound
	}
	msg, ok := ch.messages[messageID]
	if !ok {
		return ErrNotFound
	}
	msg.embed = embed
	return nil
}

func (m *Memory) PinMessage(channelID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.pinErr[channelID]; err != nil {
		return err
	}
	ch, ok := m.channels[channelID]
	if !ok {
		return ErrNotFound
	}
	msg, ok := ch.messages[messageID]
	if !ok {
		return ErrNotFound
	}
	msg.Pinned = true
	return nil
}

func (m *Memory) UnpinMessage(channelID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.pinErr[channelID]; err != nil {
		return err
	}
	ch, ok := m.channels[channelID]
	if !ok {
		return ErrNotFound
	}
	msg, ok := ch.messages[messageID]
	if !ok {
		return ErrNotFound
	}
	msg.Pinned = false
	return nil
}

func (m *Memory) FetchMessage(channelID, messageID string) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[channelID]
	if !ok {
		return nil, ErrNotFound
	}
	msg, ok := ch.messages[messageID]
	if !ok {
		return nil, ErrNotFound
	}
	out := msg.Message
	return &out, nil
}

func (m *Memory) ListPinned(channelID string) ([]*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[channelID]
	if !ok {
		return nil, ErrNotFound
	}
	var out []*Message
	for _, id := range ch.order {
		if msg := ch.messages[id]; msg.Pinned {
			pinned := msg.Message
			out = append(out, &pinned)
		}
	}
	return out, nil
}

func (m *Memory) Capabilities(channelID string) (CapabilitySet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	caps, ok := m.caps[channelID]
	if !ok {
		return nil, ErrNotFound
	}
	return caps, nil
}

func (m *Memory) SendDirectMessage(userID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dms[userID] = append(m.dms[userID], content)
	return nil
}

func (m *Memory) GuildOwnerID(guildID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.owners[guildID]
	if !ok {
		return "", ErrNotFound
	}
	return owner, nil
}
