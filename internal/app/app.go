package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/all-mute/tg-sleepwatch/internal/challenge"
	"github.com/all-mute/tg-sleepwatch/internal/config"
	"github.com/all-mute/tg-sleepwatch/internal/domain"
	"github.com/all-mute/tg-sleepwatch/internal/leaderboard"
	"github.com/all-mute/tg-sleepwatch/internal/registry"
	"github.com/all-mute/tg-sleepwatch/internal/scheduler"
	"github.com/all-mute/tg-sleepwatch/internal/store"
	"github.com/all-mute/tg-sleepwatch/internal/telegram"
	"github.com/all-mute/tg-sleepwatch/internal/web"
)

// App owns process lifecycle: wiring, the polling loop, and shutdown.
type App struct {
	cfg config.Config
	log *zap.Logger
	bot *tgbotapi.BotAPI

	promptTime domain.TimeOfDay
	dupPolicy  challenge.DuplicatePolicy
}

// New validates configuration and connects to Telegram.
func New(cfg config.Config, log *zap.Logger) (*App, error) {
	promptTime, err := domain.ParseTimeOfDay(cfg.PromptTime)
	if err != nil {
		return nil, fmt.Errorf("PROMPT_TIME: %w", err)
	}
	dupPolicy, err := challenge.ParseDuplicatePolicy(cfg.DuplicatePolicy)
	if err != nil {
		return nil, fmt.Errorf("DUPLICATE_POLICY: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	return &App{
		cfg:        cfg,
		log:        log,
		bot:        bot,
		promptTime: promptTime,
		dupPolicy:  dupPolicy,
	}, nil
}

// Run wires the engine together and blocks until a shutdown signal.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting tg-sleepwatch",
		zap.String("prompt_time", a.promptTime.String()),
		zap.String("http", a.cfg.HTTPAddr),
	)

	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	defer func() { _ = repo.Close() }()
	a.log.Info("sqlite ready", zap.String("path", a.cfg.DBPath))

	reg := registry.New(repo, a.log)
	agg := leaderboard.New(repo, a.cfg.IncludeZeroTotals)
	svc := challenge.New(reg, repo, agg, a.dupPolicy, a.cfg.MissedPenalty, a.log)
	sched := scheduler.New(reg, svc, a.promptTime, a.log, clockwork.NewRealClock())
	reg.SetNotifier(sched)

	router := telegram.NewRouter(a.bot, svc, reg, a.promptTime, a.cfg.LeaderboardDays, a.log)
	svc.SetEffects(router)

	a.registerCommands()

	httpSrv := &http.Server{
		Addr:         a.cfg.HTTPAddr,
		Handler:      web.NewRouter(svc, a.cfg.LeaderboardDays, a.log),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()
	go func() {
		if err := sched.Run(ctx); err != nil {
			a.log.Error("scheduler error", zap.Error(err))
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")

			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := httpSrv.Shutdown(shCtx)
			cancel()
			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			return nil

		case upd := <-updCh:
			router.HandleUpdate(ctx, upd)
		}
	}
}

// registerCommands publishes the command menu shown in the Telegram client.
func (a *App) registerCommands() {
	cmds := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Start the bot"},
		tgbotapi.BotCommand{Command: "help", Description: "Show available commands"},
		tgbotapi.BotCommand{Command: "join", Description: "Join the sleep challenge"},
		tgbotapi.BotCommand{Command: "unjoin", Description: "Leave the sleep challenge"},
		tgbotapi.BotCommand{Command: "update", Description: "Change timezone or target bedtime"},
		tgbotapi.BotCommand{Command: "leaderboard", Description: "View current rankings"},
		tgbotapi.BotCommand{Command: "history", Description: "Show your sleep points"},
	)
	if _, err := a.bot.Request(cmds); err != nil {
		a.log.Warn("set commands failed", zap.Error(err))
	}
}
