package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/all-mute/tg-sleepwatch/internal/domain"
	"github.com/all-mute/tg-sleepwatch/internal/store"
)

func promptText(date domain.Date) string {
	return fmt.Sprintf(promptFmt, date)
}

func (r *Router) handleStart(chatID int64, name string) {
	if name == "" {
		name = "there"
	}
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(startFmt, name))
	msg.ReplyMarkup = mainMenuKeyboard()
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Error("send failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

// --- Join / update conversations ---

func (r *Router) handleJoin(ctx context.Context, chatID int64) {
	p, err := r.reg.Get(ctx, chatID)
	if err == nil && p.Active {
		r.sendText(chatID, alreadyJoinedText)
		return
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		r.log.Error("get participant failed", zap.Int64("chatID", chatID), zap.Error(err))
		r.sendText(chatID, "Something went wrong. Please try again later.")
		return
	}

	r.setPending(chatID, pending{kind: pendingJoinTZ})
	msg := tgbotapi.NewMessage(chatID, askTZText)
	msg.ReplyMarkup = tzKeyboard()
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Error("send failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (r *Router) handleUpdateSettings(ctx context.Context, chatID int64) {
	p, err := r.reg.Get(ctx, chatID)
	if err != nil || !p.Active {
		r.sendText(chatID, notJoinedText)
		return
	}

	r.setPending(chatID, pending{kind: pendingUpdateTZ})
	msg := tgbotapi.NewMessage(chatID, "Pick your new timezone:")
	msg.ReplyMarkup = tzKeyboard()
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Error("send failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (r *Router) handleTZCallback(ctx context.Context, chatID int64, value, cbID string) {
	r.answerCallback(cbID)

	st := r.getPending(chatID)
	if st.kind != pendingJoinTZ && st.kind != pendingUpdateTZ {
		return // stale keyboard from a finished conversation
	}

	if value == "custom" {
		r.sendText(chatID, askCustomTZ)
		return
	}
	r.acceptTZ(ctx, chatID, st, value)
}

// acceptTZ validates the chosen timezone and advances the conversation to the
// target-bedtime step.
func (r *Router) acceptTZ(_ context.Context, chatID int64, st pending, tz string) {
	canon, err := domain.ValidateTZ(tz)
	if err != nil {
		r.sendText(chatID, invalidTZText)
		return
	}

	next := pendingJoinTarget
	if st.kind == pendingUpdateTZ {
		next = pendingUpdateTarget
	}
	r.setPending(chatID, pending{kind: next, tz: canon})
	r.sendText(chatID, fmt.Sprintf("Great! Your timezone is set to %s.\n\n%s", canon, askTargetText))
}

// finishJoinFlow runs once the target bedtime arrives by text.
func (r *Router) finishJoinFlow(ctx context.Context, chatID int64, name string, st pending, text string) {
	target, err := domain.ParseTimeOfDay(text)
	if err != nil {
		r.sendText(chatID, invalidTimeText)
		return
	}

	switch st.kind {
	case pendingJoinTarget:
		p, err := r.reg.Join(ctx, chatID, name, st.tz, target)
		if err != nil {
			r.log.Error("join failed", zap.Int64("chatID", chatID), zap.Error(err))
			r.sendText(chatID, "Could not save your settings. Please try /join again.")
			return
		}
		r.clearPending(chatID)
		r.sendText(chatID, fmt.Sprintf(joinedFmt, p.TZ, p.Target.String(), r.promptTime.String()))
	case pendingUpdateTarget:
		p, err := r.reg.UpdateConfig(ctx, chatID, &st.tz, &target)
		if err != nil {
			if errors.Is(err, domain.ErrNotActive) {
				r.sendText(chatID, notJoinedText)
			} else {
				r.log.Error("update failed", zap.Int64("chatID", chatID), zap.Error(err))
				r.sendText(chatID, "Could not save your settings. Please try /update again.")
			}
			r.clearPending(chatID)
			return
		}
		r.clearPending(chatID)
		r.sendText(chatID, fmt.Sprintf(updatedFmt, p.TZ, p.Target.String()))
	}
}

func (r *Router) handleUnjoin(ctx context.Context, chatID int64) {
	err := r.reg.Unjoin(ctx, chatID)
	switch {
	case errors.Is(err, domain.ErrNotActive):
		r.sendText(chatID, notJoinedText)
	case err != nil:
		r.log.Error("unjoin failed", zap.Int64("chatID", chatID), zap.Error(err))
		r.sendText(chatID, "Something went wrong. Please try again later.")
	default:
		r.sendText(chatID, unjoinedText)
	}
}

// --- Queries ---

// handleLeaderboard accepts "/leaderboard", "/leaderboard all" and
// "/leaderboard <days>".
func (r *Router) handleLeaderboard(ctx context.Context, chatID int64, text string) {
	w := domain.LastDays(r.defaultDays)
	if fields := strings.Fields(text); len(fields) > 1 {
		switch arg := fields[1]; {
		case arg == "all":
			w = domain.AllTime()
		default:
			if n, err := strconv.Atoi(arg); err == nil && n > 0 {
				w = domain.LastDays(n)
			}
		}
	}

	entries, err := r.svc.Leaderboard(ctx, w)
	if err != nil {
		r.log.Error("leaderboard failed", zap.Error(err))
		r.sendText(chatID, "Could not load the leaderboard right now.")
		return
	}
	r.sendText(chatID, formatLeaderboard(entries, w))
}

func (r *Router) handleHistory(ctx context.Context, chatID int64) {
	records, err := r.svc.History(ctx, chatID, 30)
	if errors.Is(err, domain.ErrNotActive) {
		r.sendText(chatID, notJoinedText)
		return
	}
	if err != nil {
		r.log.Error("history failed", zap.Int64("chatID", chatID), zap.Error(err))
		r.sendText(chatID, "Could not load your history right now.")
		return
	}
	r.sendText(chatID, formatHistory(records))
}

// --- Free-form text ---

// handleFreeForm feeds conversation steps, and otherwise treats a bare HH:MM
// from an active participant as a sleep-time report for the last prompted night.
func (r *Router) handleFreeForm(ctx context.Context, chatID int64, name, text string) {
	st := r.getPending(chatID)
	switch st.kind {
	case pendingJoinTZ, pendingUpdateTZ:
		r.acceptTZ(ctx, chatID, st, text)
		return
	case pendingJoinTarget, pendingUpdateTarget:
		r.finishJoinFlow(ctx, chatID, name, st, text)
		return
	}

	reported, err := domain.ParseTimeOfDay(text)
	if err != nil {
		// Not a time and not a command; stay quiet.
		return
	}

	_, err = r.svc.Report(ctx, chatID, "", reported)
	switch {
	case errors.Is(err, domain.ErrNotActive):
		r.sendText(chatID, notJoinedText)
	case errors.Is(err, domain.ErrDuplicateReport):
		r.sendText(chatID, duplicateReportText)
	case err != nil:
		r.log.Error("report failed", zap.Int64("chatID", chatID), zap.Error(err))
		r.sendText(chatID, "Could not record your sleep time. Please try again.")
	}
	// On success the ScoreComputed effect delivers the feedback message.
}
