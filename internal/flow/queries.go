package flow

import (
	"context"

	"github.com/themaden/copperx-telegram-bot/internal/session"
)

func (m *Machine) cmdStart(ctx context.Context, sess *session.Session) error {
	if sess.Authenticated() {
		return m.sendMainMenu(ctx, sess, msgWelcomeBack(sess.Identity))
	}
	return m.channel.SendChoice(ctx, sess.ChatID, msgWelcome, [][]Choice{
		{{Label: "🔑 Login", Action: ActionLogin}},
	})
}

func (m *Machine) sendMainMenu(ctx context.Context, sess *session.Session, text string) error {
	return m.channel.SendMenu(ctx, sess.ChatID, text, MenuRows())
}

func (m *Machine) cmdBalance(ctx context.Context, sess *session.Session) error {
	if !m.requireAuth(ctx, sess) {
		return nil
	}
	balances, err := m.wallets.Balances(ctx, sess.AuthToken)
	if err != nil {
		return m.channel.SendText(ctx, sess.ChatID, msgFetchFailed(err))
	}
	return m.channel.SendText(ctx, sess.ChatID, formatBalances(balances))
}

func (m *Machine) cmdWallets(ctx context.Context, sess *session.Session) error {
	if !m.requireAuth(ctx, sess) {
		return nil
	}
	wallets, err := m.wallets.Wallets(ctx, sess.AuthToken)
	if err != nil {
		return m.channel.SendText(ctx, sess.ChatID, msgFetchFailed(err))
	}
	return m.channel.SendText(ctx, sess.ChatID, formatWallets(wallets))
}

// cmdSetDefault offers an inline picker over the user's wallets.
func (m *Machine) cmdSetDefault(ctx context.Context, sess *session.Session) error {
	if !m.requireAuth(ctx, sess) {
		return nil
	}
	wallets, err := m.wallets.Wallets(ctx, sess.AuthToken)
	if err != nil {
		return m.channel.SendText(ctx, sess.ChatID, msgFetchFailed(err))
	}
	if len(wallets) == 0 {
		return m.channel.SendText(ctx, sess.ChatID, msgNoWallets)
	}

	rows := make([][]Choice, 0, len(wallets))
	for _, w := range wallets {
		label := w.Network + " · " + truncateAddress(w.Address)
		if w.IsDefault {
			label = "⭐ " + label
		}
		rows = append(rows, []Choice{{Label: label, Action: ActionSetDefault, Payload: w.ID}})
	}
	return m.channel.SendChoice(ctx, sess.ChatID, msgPickDefaultWallet, rows)
}

func (m *Machine) actionSetDefault(ctx context.Context, sess *session.Session, walletID string) error {
	if !m.requireAuth(ctx, sess) {
		return nil
	}
	if walletID == "" {
		return m.channel.SendText(ctx, sess.ChatID, msgGenericError)
	}
	if err := m.wallets.SetDefaultWallet(ctx, sess.AuthToken, walletID); err != nil {
		return m.channel.SendText(ctx, sess.ChatID, msgFetchFailed(err))
	}
	return m.channel.SendText(ctx, sess.ChatID, msgDefaultWalletSet)
}

func (m *Machine) cmdHistory(ctx context.Context, sess *session.Session) error {
	if !m.requireAuth(ctx, sess) {
		return nil
	}
	transactions, total, err := m.transfers.Transactions(ctx, sess.AuthToken, 1, historyPageSize)
	if err != nil {
		return m.channel.SendText(ctx, sess.ChatID, msgFetchFailed(err))
	}
	return m.channel.SendText(ctx, sess.ChatID, formatHistory(transactions, total))
}

func (m *Machine) cmdProfile(ctx context.Context, sess *session.Session) error {
	if !m.requireAuth(ctx, sess) {
		return nil
	}
	user, err := m.auth.Profile(ctx, sess.AuthToken)
	if err != nil {
		return m.channel.SendText(ctx, sess.ChatID, msgFetchFailed(err))
	}
	kycs, err := m.auth.KYCs(ctx, sess.AuthToken)
	if err != nil {
		return m.channel.SendText(ctx, sess.ChatID, msgFetchFailed(err))
	}
	return m.channel.SendText(ctx, sess.ChatID, formatProfile(user, kycs))
}
