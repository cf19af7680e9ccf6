package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v3"

	"battle-royale-bot/internal/game/battleroyale"
	"battle-royale-bot/internal/model"
	"battle-royale-bot/internal/render"
)

// ErrNoNotifyChats is returned when there is nowhere to deliver a report.
// Nothing is recorded as delivered, so the report goes out once chats are configured.
var ErrNoNotifyChats = errors.New("no notify chats configured")

// Sender is the part of *tele.Bot the dispatcher needs.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Dispatcher posts rendered reportables to every notify chat.
// Chats are served concurrently; within a chat messages keep their report order.
type Dispatcher struct {
	sender Sender
	chats  []int64
}

// NewDispatcher creates a Dispatcher sending to the given chats.
func NewDispatcher(sender Sender, chats []int64) *Dispatcher {
	return &Dispatcher{sender: sender, chats: chats}
}

// Dispatch sends each reportable to each chat. Any failed send fails the
// whole dispatch so nothing is recorded as delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, game *model.Game, reportables []battleroyale.ReportableContext) error {
	if len(reportables) == 0 {
		return nil
	}
	if len(d.chats) == 0 {
		return fmt.Errorf("%w: %d reportables of game %d held back", ErrNoNotifyChats, len(reportables), game.ID)
	}

	texts := make([]string, len(reportables))
	for i, rc := range reportables {
		texts[i] = render.Reportable(game, rc)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, chatID := range d.chats {
		chatID := chatID
		g.Go(func() error {
			chat := &tele.Chat{ID: chatID}
			for i, text := range texts {
				if err := ctx.Err(); err != nil {
					return err
				}
				if _, err := d.sender.Send(chat, text); err != nil {
					rc := reportables[i]
					return fmt.Errorf("failed to send %s/%s for %s to chat %d: %w", rc.Type, rc.SubType, rc.Key(), chatID, err)
				}
			}
			log.Debug().Int64("game_id", game.ID).Int64("chat_id", chatID).Int("count", len(texts)).Msg("Report sent")
			return nil
		})
	}
	return g.Wait()
}
