package telegram

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/all-mute/tg-sleepwatch/internal/challenge"
	"github.com/all-mute/tg-sleepwatch/internal/domain"
	"github.com/all-mute/tg-sleepwatch/internal/registry"
)

// Pending state kinds used in the join/update conversations.
const (
	pendingJoinTZ       = "join_tz"
	pendingJoinTarget   = "join_target"
	pendingUpdateTZ     = "update_tz"
	pendingUpdateTarget = "update_target"
)

// pending holds the position in a conversational flow plus the draft values
// collected so far (non-persistent, in-memory).
type pending struct {
	kind string
	tz   string
}

// Router wires Telegram updates to the challenge engine and delivers its
// outbound effects. It also holds the minimal per-chat conversation state.
type Router struct {
	bot         *tgbotapi.BotAPI
	log         *zap.Logger
	svc         *challenge.Service
	reg         *registry.Registry
	promptTime  domain.TimeOfDay
	defaultDays int

	mu    sync.RWMutex
	state map[int64]pending
}

// NewRouter creates a new Telegram router.
func NewRouter(bot *tgbotapi.BotAPI, svc *challenge.Service, reg *registry.Registry, promptTime domain.TimeOfDay, defaultDays int, log *zap.Logger) *Router {
	return &Router{
		bot:         bot,
		log:         log,
		svc:         svc,
		reg:         reg,
		promptTime:  promptTime,
		defaultDays: defaultDays,
		state:       make(map[int64]pending),
	}
}

func (r *Router) setPending(chatID int64, p pending) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = p
}

func (r *Router) getPending(chatID int64) pending {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state[chatID]
}

func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		text := strings.TrimSpace(msg.Text)

		switch {
		case strings.HasPrefix(text, "/start"):
			r.handleStart(chatID, displayName(msg.From))
		case strings.HasPrefix(text, "/help"):
			r.sendText(chatID, helpText)
		case strings.HasPrefix(text, "/join"):
			r.handleJoin(ctx, chatID)
		case strings.HasPrefix(text, "/unjoin"):
			r.handleUnjoin(ctx, chatID)
		case strings.HasPrefix(text, "/update"):
			r.handleUpdateSettings(ctx, chatID)
		case strings.HasPrefix(text, "/leaderboard"):
			r.handleLeaderboard(ctx, chatID, text)
		case strings.HasPrefix(text, "/history"):
			r.handleHistory(ctx, chatID)
		case strings.HasPrefix(text, "/cancel"):
			r.clearPending(chatID)
			r.sendText(chatID, canceledText)
		default:
			r.handleFreeForm(ctx, chatID, displayName(msg.From), text)
		}
		return
	}

	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		if cb.Message == nil {
			return
		}
		chatID := cb.Message.Chat.ID

		if strings.HasPrefix(cb.Data, "tz:") {
			r.handleTZCallback(ctx, chatID, strings.TrimPrefix(cb.Data, "tz:"), cb.ID)
		}
		// Unknown callback — ignore silently
	}
}

// PromptDue implements challenge.Effects: deliver the daily sleep-time prompt.
func (r *Router) PromptDue(_ context.Context, p domain.Participant, date domain.Date) {
	msg := tgbotapi.NewMessage(p.ID, promptText(date))
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Error("prompt send failed", zap.Int64("id", p.ID), zap.Error(err))
	}
}

// ScoreComputed implements challenge.Effects: tell the participant how the
// night scored.
func (r *Router) ScoreComputed(_ context.Context, p domain.Participant, rec domain.SleepRecord) {
	r.sendText(p.ID, scoreFeedback(rec, p.Target))
}

func (r *Router) sendText(chatID int64, text string) {
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Error("send failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (r *Router) answerCallback(id string) {
	_, _ = r.bot.Request(tgbotapi.NewCallback(id, ""))
}

func displayName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return u.UserName
	}
	return u.FirstName
}
