package render

import "fmt"

// Setup is the onboarding message sent when the bot joins a guild.
func Setup(guildName, ownerMention string) string {
	greeting := "Hi!"
	if ownerMention != "" {
		greeting = fmt.Sprintf("Hi %s!", ownerMention)
	}
	return fmt.Sprintf(
		"%s Thanks for adding **ChronoBot** to **%s** 🕒\n\n"+
			"I keep track of your server's upcoming events, post a live pinned "+
			"countdown, and send milestone reminders along the way.\n\n"+
			"**Quick setup:**\n\n"+
			"1️⃣ Go to the channel where you want the countdown pinned and run `/seteventchannel`.\n"+
			"2️⃣ Add your first event: `/addevent date: 04/12/2026 time: 09:00 name: Game Night`\n"+
			"   (MM/DD/YYYY and 24-hour HH:MM, server timezone — change it with `/settimezone`).\n"+
			"3️⃣ Manage events with `/listevents`, `/editevent`, `/removeevent` and friends.\n\n"+
			"By default only event managers (Manage Server / Administrator) can add or "+
			"change events — use `/addeventadminrole` to let a role manage all events, "+
			"or `/allowmemberaddevents` to let everyone create their own.\n\n"+
			"Optional: `/setmentionrole` to ping a role on reminders, `/setdigest` for a "+
			"daily summary, `/settheme` to change my tone, and `/linkserver` + DM me to "+
			"manage events from your DMs.\n\n"+
			"I'll handle the pinned countdown and reminders automatically once an events "+
			"channel and at least one event are set up. ✨",
		greeting, guildName)
}

// Help is the /help command body.
func Help() string {
	return "**ChronoBot — Commands**\n\n" +
		"**Setup**\n" +
		"• `/seteventchannel` — pin the live countdown in the current channel\n" +
		"• `/settimezone tz: America/Chicago` — set the server timezone\n" +
		"• `/setmentionrole role: @Events` — role pinged on reminders\n" +
		"• `/setdigest enabled: true channel: #general` — daily event summary\n" +
		"• `/settheme theme: hype` — reminder tone (classic, hype, cozy)\n\n" +
		"**Permissions**\n" +
		"• `/addeventadminrole role: @Mods` — let a role manage all events\n" +
		"• `/removeeventadminrole role: @Mods` / `/listeventadminroles`\n" +
		"• `/allowmemberaddevents enabled: true` — let members create their own events\n\n" +
		"**Events** (owner or event manager)\n" +
		"• `/addevent date: MM/DD/YYYY time: HH:MM name: ...` — add an event\n" +
		"• `/listevents`, `/eventinfo index: N` — inspect events\n" +
		"• `/editevent index: N date: ... time: ...` — reschedule (resets reminders)\n" +
		"• `/removeevent index: N`, `/purgeevents` — delete events\n" +
		"• `/setmilestones index: N days: 30,14,7,1,0` / `/clearmilestones`\n" +
		"• `/setrepeat index: N every_days: 7` / `/clearrepeat` — recurring reminder\n" +
		"• `/silence index: N silenced: true` — mute one event's reminders\n" +
		"• `/seteventowner index: N owner: @user` / `/cleareventowner`\n\n" +
		"**Utility**\n" +
		"• `/refresh` — force-refresh the pinned countdown\n" +
		"• `/health` — check my permissions in the events channel\n" +
		"• `/linkserver` — control this server's events from DMs\n" +
		"• `/resendsetup` — resend the setup guide"
}
