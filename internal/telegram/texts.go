package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/all-mute/tg-sleepwatch/internal/domain"
)

// UI texts in English
const (
	startFmt = "👋 Hello %s! Welcome to the Sleep Challenge Bot.\n\n" +
		"This bot will help you track your sleep schedule and compete with friends.\n\n" +
		"Use /join to join the challenge or /help to see all commands."

	helpText = "🌙 Sleep Challenge Bot Commands 🌙\n\n" +
		"/start - Start the bot\n" +
		"/join - Join the sleep challenge\n" +
		"/unjoin - Leave the sleep challenge\n" +
		"/update - Change your timezone or target bedtime\n" +
		"/leaderboard - View the current rankings\n" +
		"/history - Show your sleep points for the last 30 days\n" +
		"/help - Show this help message\n\n" +
		"Every day I'll ask you what time you went to sleep. " +
		"Based on that, you'll get points for sleeping on time!"

	alreadyJoinedText = "You are already participating in the sleep challenge! " +
		"Use /update to change your settings or /unjoin to leave."

	askTZText     = "Let's get started! First, please select your timezone:"
	askCustomTZ   = "Enter your timezone (e.g., Europe/Berlin):"
	invalidTZText = "❌ I don't know that timezone. Please use an IANA name like Europe/Berlin."

	askTargetText = "Now, please tell me what time you aim to go to sleep each night.\n" +
		"Send me the time in 24-hour format (HH:MM), e.g., 23:00 for 11 PM."
	invalidTimeText = "❌ Invalid time format. Please use the 24-hour format (HH:MM), e.g., 23:00 for 11 PM."

	joinedFmt = "✅ Perfect! You're now part of the sleep challenge.\n\n" +
		"Your settings:\n" +
		"• Timezone: %s\n" +
		"• Target sleep time: %s\n\n" +
		"I'll ask you about your sleep time at %s each day. " +
		"Good luck with your sleep goals! 😴"

	updatedFmt = "✅ Settings updated.\n\n" +
		"• Timezone: %s\n" +
		"• Target sleep time: %s"

	unjoinedText = "You have successfully left the sleep challenge. " +
		"Your data will be kept, so if you join again, your history will still be there. " +
		"Use /join if you want to rejoin anytime!"
	notJoinedText = "You are not currently participating in the sleep challenge. " +
		"Use /join if you want to join!"

	duplicateReportText = "You already reported your sleep time for that night."
	canceledText        = "Operation cancelled. Use /join to join the challenge or /help to see all commands."

	promptFmt = "Hello! What time did you go to sleep last night (%s)?\n\n" +
		"Please reply with the time in 24-hour format (HH:MM), e.g., 23:30 for 11:30 PM."
)

// timezone presets shown during the join flow
var tzChoices = [][]string{
	{"UTC", "Europe/Moscow", "Europe/London"},
	{"US/Eastern", "US/Central", "US/Pacific"},
	{"Asia/Tokyo", "Asia/Singapore", "Australia/Sydney"},
}

func tzKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, row := range tzChoices {
		var btns []tgbotapi.InlineKeyboardButton
		for _, tz := range row {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(tz, "tz:"+tz))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(btns...))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✍️ Other…", "tz:custom"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/leaderboard"),
			tgbotapi.NewKeyboardButton("/history"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/help"),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

// scoreFeedback picks a reply tier by how the night scored.
func scoreFeedback(rec domain.SleepRecord, target domain.TimeOfDay) string {
	var mood string
	switch {
	case rec.Points >= 6:
		mood = "🌟 Excellent! You went to sleep on time or earlier!"
	case rec.Points >= 4:
		mood = "👍 Good job! You were only a little bit late."
	case rec.Points >= 1:
		mood = "😕 You were quite late, but still got some points."
	case rec.Points >= 0:
		mood = "😴 You were very late last night."
	default:
		mood = "😱 Oh no! You were extremely late and got negative points."
	}

	reported := "—"
	if rec.Reported != nil {
		reported = rec.Reported.String()
	}
	return fmt.Sprintf("%s\n\n"+
		"Your target sleep time: %s\n"+
		"Your actual sleep time: %s\n"+
		"Points earned: %d\n\n"+
		"Use /leaderboard to see the rankings or /history to see your progress.",
		mood, target.String(), reported, rec.Points)
}

// formatLeaderboard renders ranked entries as a monospace table with medals
// for the top three.
func formatLeaderboard(entries []domain.LeaderboardEntry, w domain.Window) string {
	if len(entries) == 0 {
		return "No participants in the challenge yet."
	}

	var b strings.Builder
	b.WriteString("🏆 SLEEP CHALLENGE LEADERBOARD 🏆\n")
	if w.AllTime() {
		b.WriteString("(all time)\n\n")
	} else {
		fmt.Fprintf(&b, "(last %d days)\n\n", w.Days)
	}

	for _, e := range entries {
		prefix := fmt.Sprintf("%d.", e.Rank)
		switch e.Rank {
		case 1:
			prefix = "🥇"
		case 2:
			prefix = "🥈"
		case 3:
			prefix = "🥉"
		}
		name := e.Username
		if name == "" {
			name = fmt.Sprintf("User %d", e.ParticipantID)
		}
		fmt.Fprintf(&b, "%s %s — %d pts (%d nights)\n", prefix, name, e.Total, e.Nights)
	}
	return b.String()
}

// formatHistory renders records as a monospace text bar chart.
func formatHistory(records []domain.SleepRecord) string {
	if len(records) == 0 {
		return "No data available yet. Report your sleep time first!"
	}

	var b strings.Builder
	b.WriteString("Points for the last 30 days:\n\n")
	b.WriteString("Date       | Points | Graph\n")
	b.WriteString("-----------+--------+--------\n")
	for _, r := range records {
		bar := ""
		if n := r.Points; n > 0 {
			if n > 20 {
				n = 20
			}
			bar = strings.Repeat("█", n)
		}
		note := ""
		if r.Missed() {
			note = " (missed)"
		}
		fmt.Fprintf(&b, "%s | %6d | %s%s\n", r.Date, r.Points, bar, note)
	}
	return b.String()
}
