// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"battle-royale-bot/internal/game/battleroyale"
	"battle-royale-bot/internal/model"
	"battle-royale-bot/internal/render"
	"battle-royale-bot/internal/repository"
	"battle-royale-bot/internal/service"
)

const standingsTimeout = 10 * time.Second

// StandingsProvider returns the latest leaderboard of a game.
type StandingsProvider interface {
	Standings(ctx context.Context, gameID int64) (*model.Game, *battleroyale.Leaderboard, error)
}

// StandingsHandler handles the /standings command.
type StandingsHandler struct {
	standings StandingsProvider
}

// NewStandingsHandler creates a new StandingsHandler.
func NewStandingsHandler(standings StandingsProvider) *StandingsHandler {
	return &StandingsHandler{standings: standings}
}

// HandleStandings handles /standings <game id>.
func (h *StandingsHandler) HandleStandings(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), standingsTimeout)
	defer cancel()
	return c.Reply(h.StandingsText(ctx, c.Args()))
}

// StandingsText builds the reply for a /standings command with the given arguments.
func (h *StandingsHandler) StandingsText(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "❌ Usage: /standings <game id>"
	}
	gameID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || gameID <= 0 {
		return "❌ Game id must be a positive number"
	}

	game, lb, err := h.standings.Standings(ctx, gameID)
	switch {
	case err == nil:
		return render.Leaderboard(game, lb)
	case errors.Is(err, repository.ErrGameNotFound):
		return fmt.Sprintf("❌ Game %d not found", gameID)
	case errors.Is(err, service.ErrNoStandings):
		return fmt.Sprintf("⏳ %s has no completed maps yet", gameName(game, gameID))
	default:
		log.Error().Err(err).Int64("game_id", gameID).Msg("Failed to load standings")
		return "❌ Failed to load standings, please try again later"
	}
}

// HandleHelp lists the available commands.
func HandleHelp(c tele.Context) error {
	var sb strings.Builder
	sb.WriteString("🎮 Battle Royale results bot\n")
	sb.WriteString("━━━━━━━━━━━━━━━\n")
	sb.WriteString("/standings <game id> - latest leaderboard\n")
	sb.WriteString("/help - this message")
	return c.Reply(sb.String())
}

func gameName(game *model.Game, gameID int64) string {
	if game != nil && game.Name != "" {
		return game.Name
	}
	return fmt.Sprintf("Game %d", gameID)
}
