package reconcile

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nicolethornton330-maker/ChronoBot/internal/platform"
)

// DefaultAlertInterval is how often the same missing-capability report may
// be re-sent to a guild owner.
const DefaultAlertInterval = 24 * time.Hour

// OwnerAlerter delivers missing-capability reports to guild owners over DM,
// rate-limited per distinct report so a broken channel never spams on every
// tick.
type OwnerAlerter struct {
	messenger platform.Messenger
	interval  time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

// NewOwnerAlerter creates an alerter with the given re-send interval;
// non-positive means DefaultAlertInterval.
func NewOwnerAlerter(messenger platform.Messenger, interval time.Duration) *OwnerAlerter {
	if interval <= 0 {
		interval = DefaultAlertInterval
	}
	return &OwnerAlerter{
		messenger: messenger,
		interval:  interval,
		last:      make(map[string]time.Time),
	}
}

// Alert notifies the guild owner about a capability failure, unless the same
// report already went out within the interval. All failures here are logged
// and swallowed; alerting is a courtesy, never required for correctness.
func (a *OwnerAlerter) Alert(now time.Time, guildID string, capErr *platform.CapabilityError) {
	key := guildID + "|" + capErr.Key()

	a.mu.Lock()
	if sent, ok := a.last[key]; ok && now.Sub(sent) < a.interval {
		a.mu.Unlock()
		return
	}
	a.last[key] = now
	a.mu.Unlock()

	ownerID, err := a.messenger.GuildOwnerID(guildID)
	if err != nil {
		slog.Warn("Could not resolve guild owner for capability alert",
			"guild", guildID, "error", err)
		return
	}

	if err := a.messenger.SendDirectMessage(ownerID, remediation(capErr)); err != nil {
		slog.Warn("Failed to DM guild owner about missing capabilities",
			"guild", guildID, "owner", ownerID, "error", err)
	}
}

func remediation(capErr *platform.CapabilityError) string {
	msg := fmt.Sprintf(
		"Hi! I'm missing permissions in <#%s> and can't do my job there.\n\n"+
			"Please grant me the following in that channel's settings:\n",
		capErr.ChannelID)
	for _, c := range capErr.Missing {
		msg += fmt.Sprintf("• `%s`\n", c)
	}
	msg += "\nOnce fixed, everything resumes automatically on the next update cycle."
	return msg
}
