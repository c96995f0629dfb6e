package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"log/slog"

	"github.com/themaden/copperx-telegram-bot/core/logger"
	"github.com/themaden/copperx-telegram-bot/internal/api"
	"github.com/themaden/copperx-telegram-bot/internal/domain"
)

// DepositFunc delivers a deposit event to the chat that subscribed.
type DepositFunc func(chatID int64, dep domain.DepositNotification)

type authRequest struct {
	SocketID    string `json:"socket_id"`
	ChannelName string `json:"channel_name"`
}

type authResponse struct {
	Auth string `json:"auth"`
}

type subscription struct {
	client  *Client
	channel string
}

// Bridge maintains at most one deposit subscription per chat. Re-auth for a
// chat tears down the previous connection before opening a new one; logout
// and session reset unsubscribe.
type Bridge struct {
	wsURL     string
	authPath  string
	gateway   *api.Client
	onDeposit DepositFunc

	mu   sync.Mutex
	subs map[int64]*subscription
}

// NewBridge wires the bridge to the websocket endpoint and the auth route on
// the wallet API.
func NewBridge(wsURL, authPath string, gateway *api.Client, onDeposit DepositFunc) *Bridge {
	return &Bridge{
		wsURL:     wsURL,
		authPath:  authPath,
		gateway:   gateway,
		onDeposit: onDeposit,
		subs:      make(map[int64]*subscription),
	}
}

// Subscribe opens a connection for the chat and joins its organization's
// private channel. Any existing subscription for the chat is dropped first.
func (b *Bridge) Subscribe(ctx context.Context, chatID int64, orgID, token string) error {
	if orgID == "" {
		return fmt.Errorf("notify: empty organization id")
	}
	b.Unsubscribe(chatID)

	channel := "private-org-" + orgID

	authorize := func(ctx context.Context, socketID, channelName string) (string, error) {
		var resp authResponse
		err := b.gateway.Post(ctx, token, b.authPath, authRequest{
			SocketID:    socketID,
			ChannelName: channelName,
		}, &resp)
		if err != nil {
			return "", err
		}
		if resp.Auth == "" {
			return "", fmt.Errorf("empty auth signature")
		}
		return resp.Auth, nil
	}

	client := NewClient(b.wsURL, authorize, func(ch, event string, data []byte) {
		if event != "deposit" || ch != channel {
			return
		}
		var dep domain.DepositNotification
		if err := json.Unmarshal(data, &dep); err != nil {
			logger.Warn(logger.Background(), "notify", "deposit.decode_fail",
				slog.Int64("chat_id", chatID),
				slog.String("err", err.Error()),
			)
			return
		}
		logger.Info(logger.Background(), "notify", "deposit",
			slog.Int64("chat_id", chatID),
			slog.String("channel", ch),
		)
		b.onDeposit(chatID, dep)
	})

	if err := client.Dial(ctx); err != nil {
		return err
	}
	if err := client.Subscribe(ctx, channel); err != nil {
		client.Close()
		return err
	}

	b.mu.Lock()
	b.subs[chatID] = &subscription{client: client, channel: channel}
	b.mu.Unlock()

	logger.Info(logger.Background(), "notify", "subscribed",
		slog.Int64("chat_id", chatID),
		slog.String("channel", channel),
	)
	return nil
}

// Unsubscribe closes the chat's subscription if one exists.
func (b *Bridge) Unsubscribe(chatID int64) {
	b.mu.Lock()
	sub, ok := b.subs[chatID]
	if ok {
		delete(b.subs, chatID)
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	_ = sub.client.Unsubscribe(sub.channel)
	sub.client.Close()
	logger.Debug(logger.Background(), "notify", "unsubscribed",
		slog.Int64("chat_id", chatID),
		slog.String("channel", sub.channel),
	)
}

// Shutdown closes every live subscription.
func (b *Bridge) Shutdown() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[int64]*subscription)
	b.mu.Unlock()

	for chatID, sub := range subs {
		sub.client.Close()
		logger.Debug(logger.Background(), "notify", "unsubscribed",
			slog.Int64("chat_id", chatID),
			slog.String("channel", sub.channel),
		)
	}
}
