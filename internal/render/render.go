// Package render turns neutral reconciliation outcomes into user-visible
// Discord content. All wording, theming and flavor lives here so the
// reconciliation core stays free of cosmetic churn.
package render

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/nicolethornton330-maker/ChronoBot/internal/reconcile"
	"github.com/nicolethornton330-maker/ChronoBot/internal/schedule"
	"github.com/nicolethornton330-maker/ChronoBot/internal/store"
)

// EmbedColor is the ChronoBot purple.
const EmbedColor = 0x8C52FF

// DefaultTheme is used when a guild has not picked one.
const DefaultTheme = "classic"

// phrases holds the per-theme templates. Milestone/repeat templates take
// (name, count); tomorrow/today/start take (name).
type phrases struct {
	milestone []string
	tomorrow  []string
	today     []string
	start     []string
	repeat    []string
}

var themes = map[string]phrases{
	"classic": {
		milestone: []string{
			"💌 **%s** is **%d days** away!",
			"📅 Only **%[2]d days** until **%[1]s**!",
		},
		tomorrow: []string{"✨ **%s** is **tomorrow**! ✨"},
		today:    []string{"🎉 **%s** is **today**!"},
		start: []string{
			"🚀 **%s** is starting now! 🎉",
			"🔔 It's time — **%s** begins now!",
		},
		repeat: []string{"🔁 Reminder: **%s** is coming up in **%d days**."},
	},
	"hype": {
		milestone: []string{
			"🔥 **%[2]d DAYS** until **%[1]s** — LET'S GO!",
			"⚡ **%[1]s** hype check: **%[2]d days** out!",
		},
		tomorrow: []string{"🚨 TOMORROW. **%s**. TOMORROW. 🚨"},
		today:    []string{"💥 IT'S HAPPENING — **%s** IS TODAY!"},
		start:    []string{"💥 **%s** IS LIVE RIGHT NOW!"},
		repeat:   []string{"⏰ Heads up: **%s** in **%d days**. Stay ready."},
	},
	"cozy": {
		milestone: []string{
			"🍂 Just **%[2]d** more days until **%[1]s**.",
			"☕ A gentle reminder: **%s** is **%d days** away.",
		},
		tomorrow: []string{"🌙 **%s** is tomorrow. Sleep well!"},
		today:    []string{"🌤 Today's the day — **%s**."},
		start:    []string{"🕯 **%s** is beginning. Enjoy!"},
		repeat:   []string{"🫖 Little nudge: **%s** is **%d days** out."},
	},
}

// ThemeNames lists the available themes for the settheme command.
func ThemeNames() []string {
	return []string{"classic", "hype", "cozy"}
}

// ValidTheme reports whether name is a known theme.
func ValidTheme(name string) bool {
	_, ok := themes[name]
	return ok
}

// Renderer implements reconcile.Renderer.
type Renderer struct {
	pick func(n int) int
}

// New returns a renderer with random flavor selection.
func New() *Renderer {
	return &Renderer{pick: rand.IntN}
}

// NewDeterministic always picks the first flavor variant; used in tests.
func NewDeterministic() *Renderer {
	return &Renderer{pick: func(int) int { return 0 }}
}

func (r *Renderer) theme(name string) phrases {
	if p, ok := themes[name]; ok {
		return p
	}
	return themes[DefaultTheme]
}

func (r *Renderer) choose(options []string) string {
	return options[r.pick(len(options))]
}

// Notification renders the channel announcement for one firing. The mention
// role, when configured, is prefixed to milestone announcements only.
func (r *Renderer) Notification(theme string, n reconcile.Notification, mentionRoleID string) string {
	p := r.theme(theme)

	var body string
	switch n.Kind {
	case schedule.Start:
		body = fmt.Sprintf(r.choose(p.start), n.Event.Name)
	case schedule.Milestone:
		switch n.Days {
		case 0:
			body = fmt.Sprintf(r.choose(p.today), n.Event.Name)
		case 1:
			body = fmt.Sprintf(r.choose(p.tomorrow), n.Event.Name)
		default:
			body = fmt.Sprintf(r.choose(p.milestone), n.Event.Name, n.Days)
		}
	case schedule.Repeat:
		body = fmt.Sprintf(r.choose(p.repeat), n.Event.Name, n.Days)
	default:
		body = fmt.Sprintf("**%s**", n.Event.Name)
	}

	if mentionRoleID != "" && n.Kind == schedule.Milestone {
		return fmt.Sprintf("<@&%s> %s", mentionRoleID, body)
	}
	return body
}

// StatusEmbed builds the pinned countdown embed: every event, soonest first,
// with its remaining time or a started marker.
func (r *Renderer) StatusEmbed(g *store.GuildConfig, now time.Time, loc *time.Location) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Upcoming Event Countdowns",
		Description: "Live countdowns for this server's events.",
		Color:       EmbedColor,
	}

	if len(g.Events) == 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "No events yet",
			Value: "Use `/addevent` to add one.",
		})
		return embed
	}

	anyUpcoming := false
	for _, ev := range g.Events {
		at := ev.When().In(loc)
		desc, _, passed := schedule.TimeRemaining(now, ev.When())
		dateStr := at.Format("January 2, 2006 at 3:04 PM MST")

		var lines []string
		lines = append(lines, fmt.Sprintf("**%s**", dateStr))
		if ev.OwnerUserID != "" {
			lines = append(lines, fmt.Sprintf("👤 <@%s>", ev.OwnerUserID))
		}
		if passed {
			lines = append(lines, "➡️ Event has started or passed. 🎉")
		} else {
			anyUpcoming = true
			lines = append(lines, fmt.Sprintf("⏱ **%s** remaining", desc))
		}
		if ev.Silenced {
			lines = append(lines, "🔇 reminders silenced")
		}

		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  ev.Name,
			Value: strings.Join(lines, "\n"),
		})
	}

	if !anyUpcoming {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: "All listed events have already started or passed.",
		}
	}
	return embed
}

// Digest renders the once-a-day summary of upcoming events.
func (r *Renderer) Digest(g *store.GuildConfig, now time.Time, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString("📋 **Daily event digest**\n\n")

	upcoming := 0
	for _, ev := range g.Events {
		desc, _, passed := schedule.TimeRemaining(now, ev.When())
		if passed {
			continue
		}
		upcoming++
		at := ev.When().In(loc)
		sb.WriteString(fmt.Sprintf("• **%s** — %s (%s)\n",
			ev.Name, at.Format("Jan 2, 2006 15:04"), desc))
	}

	if upcoming == 0 {
		sb.WriteString("Nothing on the calendar. Use `/addevent` to add something!")
	}
	return sb.String()
}

// EventLine renders one row of the /listevents output.
func EventLine(index int, ev *store.EventRecord, now time.Time, loc *time.Location) string {
	at := ev.When().In(loc)
	desc, _, passed := schedule.TimeRemaining(now, ev.When())
	status := "⏳ active"
	if passed {
		status = "✅ done"
	}
	if ev.Silenced {
		status += " 🔇"
	}
	line := fmt.Sprintf("**%d. %s** — %s (%s) [%s]",
		index, ev.Name, at.Format("01/02/2006 15:04"), desc, status)
	if ev.OwnerUserID != "" {
		line += fmt.Sprintf(" — <@%s>", ev.OwnerUserID)
	}
	return line
}
