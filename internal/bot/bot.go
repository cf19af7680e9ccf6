// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"battle-royale-bot/internal/config"
	"battle-royale-bot/internal/handler"
)

const defaultPollTimeout = 10 * time.Second

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	standingsHandler *handler.StandingsHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Standings handler.StandingsProvider
}

// New creates a new Bot instance. Commands are served once Register is called;
// the results service needs the bot's Dispatcher before it can answer them.
func New(cfg *config.Config) (*Bot, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	timeout := cfg.Bot.PollTimeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}

	pref := tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot: teleBot,
		cfg: cfg,
	}
	b.registerMiddleware()

	return b, nil
}

// Register wires the command handlers to their dependencies.
func (b *Bot) Register(deps *Dependencies) {
	b.standingsHandler = handler.NewStandingsHandler(deps.Standings)
	b.registerHandlers()
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", handler.HandleHelp)
	b.bot.Handle("/help", handler.HandleHelp)
	b.bot.Handle("/standings", b.standingsHandler.HandleStandings)
}

// Dispatcher returns a Dispatcher that posts reports to the configured notify chats.
func (b *Bot) Dispatcher() *Dispatcher {
	return NewDispatcher(b.bot, b.cfg.Notify.Chats)
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
