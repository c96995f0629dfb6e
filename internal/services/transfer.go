package services

import (
	"context"
	"net/url"
	"strconv"

	"log/slog"

	"github.com/themaden/copperx-telegram-bot/core/logger"
	"github.com/themaden/copperx-telegram-bot/internal/api"
	"github.com/themaden/copperx-telegram-bot/internal/domain"
)

// Transfer covers transaction history and the three submission paths.
type Transfer struct {
	gw *api.Client
}

// NewTransfer builds the transfer service on top of the gateway client.
func NewTransfer(gw *api.Client) *Transfer {
	return &Transfer{gw: gw}
}

type sendEmailRequest struct {
	Email      string `json:"email"`
	Amount     string `json:"amount"`
	CurrencyID string `json:"currencyId"`
}

type walletWithdrawRequest struct {
	Address    string `json:"address"`
	Amount     string `json:"amount"`
	CurrencyID string `json:"currencyId"`
	Network    string `json:"network"`
}

type offrampRequest struct {
	Amount        string `json:"amount"`
	CurrencyID    string `json:"currencyId"`
	BankAccountID string `json:"bankAccountId"`
}

// Transactions returns one page of transfer history plus the total count.
func (s *Transfer) Transactions(ctx context.Context, token string, page, limit int) ([]domain.Transaction, int, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))
	var env pageEnvelope[domain.Transaction]
	if err := s.gw.Get(ctx, token, "/api/transfers", query, &env); err != nil {
		return nil, 0, err
	}
	return env.Items, env.Total, nil
}

// Transaction fetches a single transfer by id.
func (s *Transfer) Transaction(ctx context.Context, token, id string) (*domain.Transaction, error) {
	var tx domain.Transaction
	if err := s.gw.Get(ctx, token, "/api/transfers/"+id, nil, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// SendToEmail submits a transfer to an email recipient.
func (s *Transfer) SendToEmail(ctx context.Context, token, email, amount, currencyID string) (string, error) {
	var ack submitAck
	err := s.gw.Post(ctx, token, "/api/transfers/send", sendEmailRequest{
		Email:      email,
		Amount:     amount,
		CurrencyID: currencyID,
	}, &ack)
	s.logSubmit(ctx, "submit.email", ack.ID, err)
	if err != nil {
		return "", err
	}
	return ack.ID, nil
}

// SendToWallet submits a withdrawal to an external wallet address.
func (s *Transfer) SendToWallet(ctx context.Context, token, address, amount, currencyID, network string) (string, error) {
	var ack submitAck
	err := s.gw.Post(ctx, token, "/api/transfers/wallet-withdraw", walletWithdrawRequest{
		Address:    address,
		Amount:     amount,
		CurrencyID: currencyID,
		Network:    network,
	}, &ack)
	s.logSubmit(ctx, "submit.wallet", ack.ID, err)
	if err != nil {
		return "", err
	}
	return ack.ID, nil
}

// WithdrawToBank submits an off-ramp to a linked bank account.
func (s *Transfer) WithdrawToBank(ctx context.Context, token, bankAccountID, amount, currencyID string) (string, error) {
	var ack submitAck
	err := s.gw.Post(ctx, token, "/api/transfers/offramp", offrampRequest{
		Amount:        amount,
		CurrencyID:    currencyID,
		BankAccountID: bankAccountID,
	}, &ack)
	s.logSubmit(ctx, "submit.bank", ack.ID, err)
	if err != nil {
		return "", err
	}
	return ack.ID, nil
}

func (s *Transfer) logSubmit(ctx context.Context, event, transferID string, err error) {
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
	}
	if transferID != "" {
		attrs = append(attrs, slog.String("transfer_id", transferID))
	}
	logger.Info(ctx, "service.transfer", event, attrs...)
}
