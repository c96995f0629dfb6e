package bot

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/themaden/copperx-telegram-bot/core/telegram/keyboard"
	tgsender "github.com/themaden/copperx-telegram-bot/core/telegram/sender"
	"github.com/themaden/copperx-telegram-bot/internal/flow"
)

// telebotChannel binds the conversation machine's outbound side to telebot.
// Sends are routed through the async dispatcher; on queue saturation they
// fall back to a synchronous call so user-facing replies are never dropped.
type telebotChannel struct {
	bot        atomic.Pointer[tele.Bot]
	dispatcher *tgsender.Dispatcher
}

func newTelebotChannel(dispatcher *tgsender.Dispatcher) *telebotChannel {
	return &telebotChannel{dispatcher: dispatcher}
}

// Bind attaches the live bot once the runtime has built it.
func (ch *telebotChannel) Bind(bot *tele.Bot) {
	ch.bot.Store(bot)
}

func (ch *telebotChannel) SendText(ctx context.Context, chatID int64, text string) error {
	return ch.send(ctx, chatID, text, nil)
}

func (ch *telebotChannel) SendChoice(ctx context.Context, chatID int64, text string, rows [][]flow.Choice) error {
	btnRows := make([][]keyboard.InlineBtn, 0, len(rows))
	for _, row := range rows {
		btns := make([]keyboard.InlineBtn, 0, len(row))
		for _, choice := range row {
			btns = append(btns, keyboard.InlineBtn{
				Text:   choice.Label,
				Unique: choice.Action,
				Data:   choice.Payload,
			})
		}
		btnRows = append(btnRows, btns)
	}
	return ch.send(ctx, chatID, text, keyboard.InlineButtonsRows(btnRows...))
}

func (ch *telebotChannel) SendMenu(ctx context.Context, chatID int64, text string, rows [][]string) error {
	return ch.send(ctx, chatID, text, keyboard.ReplyButtons(rows...))
}

func (ch *telebotChannel) send(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) error {
	bot := ch.bot.Load()
	if bot == nil {
		return fmt.Errorf("bot: channel not bound")
	}

	recipient := &tele.Chat{ID: chatID}
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: markup}
	run := func() error {
		_, err := bot.Send(recipient, text, opts)
		return err
	}

	if ch.dispatcher == nil {
		return run()
	}
	if err := ch.dispatcher.Enqueue(ctx, "send.text", "sendMessage", run); err != nil {
		if errors.Is(err, tgsender.ErrQueueFull) || errors.Is(err, tgsender.ErrQueueClosed) {
			return run()
		}
		return err
	}
	return nil
}
