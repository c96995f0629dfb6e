package services

import (
	"context"

	"log/slog"

	"github.com/themaden/copperx-telegram-bot/core/logger"
	"github.com/themaden/copperx-telegram-bot/internal/api"
	"github.com/themaden/copperx-telegram-bot/internal/domain"
)

// Wallet covers wallet listings, balances, and the default wallet selection.
type Wallet struct {
	gw *api.Client
}

// NewWallet builds the wallet service on top of the gateway client.
func NewWallet(gw *api.Client) *Wallet {
	return &Wallet{gw: gw}
}

type setDefaultRequest struct {
	WalletID string `json:"walletId"`
}

// Wallets lists the organization's custodial wallets.
func (s *Wallet) Wallets(ctx context.Context, token string) ([]domain.Wallet, error) {
	var env itemsEnvelope[domain.Wallet]
	if err := s.gw.Get(ctx, token, "/api/wallets", nil, &env); err != nil {
		return nil, err
	}
	return env.Items, nil
}

// Balances reads the current funds snapshot across all wallets.
func (s *Wallet) Balances(ctx context.Context, token string) ([]domain.Balance, error) {
	var env itemsEnvelope[domain.Balance]
	if err := s.gw.Get(ctx, token, "/api/wallets/balances", nil, &env); err != nil {
		return nil, err
	}
	return env.Items, nil
}

// DefaultWallet fetches the wallet used when a transfer step needs a network
// and currency and the user has not named one.
func (s *Wallet) DefaultWallet(ctx context.Context, token string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	if err := s.gw.Get(ctx, token, "/api/wallets/default", nil, &wallet); err != nil {
		return nil, err
	}
	return &wallet, nil
}

// SetDefaultWallet changes the default wallet selection.
func (s *Wallet) SetDefaultWallet(ctx context.Context, token, walletID string) error {
	err := s.gw.Put(ctx, token, "/api/wallets/default", setDefaultRequest{WalletID: walletID}, nil)
	logger.Debug(ctx, "service.wallet", "default.set",
		slog.String("wallet_id", walletID),
		slog.String("status", logger.Status(err)),
	)
	return err
}
