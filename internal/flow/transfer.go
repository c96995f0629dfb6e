package flow

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/themaden/copperx-telegram-bot/core/logger"
	"github.com/themaden/copperx-telegram-bot/internal/domain"
	"github.com/themaden/copperx-telegram-bot/internal/session"
)

const minWalletAddressLen = 10

// kindSpec is one row of the closed transfer-kind table: how to prompt for
// and validate the recipient, and how to submit the finished draft. Adding a
// transfer kind means adding a row here and nowhere else.
type kindSpec struct {
	label  string
	prompt string
	// validate returns a user-facing rejection message, or "" to accept.
	validate func(m *Machine, input string) string
	submit   func(ctx context.Context, m *Machine, token string, d *domain.TransferDraft) (string, error)
}

var transferKinds = map[domain.TransferKind]kindSpec{
	domain.TransferEmail: {
		label:  "Send to Email",
		prompt: msgAskEmailRecipient,
		validate: func(_ *Machine, input string) string {
			if !validEmail(input) {
				return msgInvalidRecipientEmail
			}
			return ""
		},
		submit: func(ctx context.Context, m *Machine, token string, d *domain.TransferDraft) (string, error) {
			return m.transfers.SendToEmail(ctx, token, d.Recipient, d.Amount, d.CurrencyID)
		},
	},
	domain.TransferWallet: {
		label:  "Send to Wallet",
		prompt: msgAskWalletAddress,
		validate: func(_ *Machine, input string) string {
			if len(input) < minWalletAddressLen {
				return msgInvalidWalletAddress
			}
			return ""
		},
		submit: func(ctx context.Context, m *Machine, token string, d *domain.TransferDraft) (string, error) {
			return m.transfers.SendToWallet(ctx, token, d.Recipient, d.Amount, d.CurrencyID, d.Network)
		},
	},
	domain.TransferBank: {
		label:  "Withdraw to Bank",
		prompt: msgAskBankAccount,
		validate: func(m *Machine, input string) string {
			if len(input) < m.bankMinLen {
				return msgInvalidBankAccount(m.bankMinLen)
			}
			return ""
		},
		submit: func(ctx context.Context, m *Machine, token string, d *domain.TransferDraft) (string, error) {
			return m.transfers.WithdrawToBank(ctx, token, d.Recipient, d.Amount, d.CurrencyID)
		},
	},
}

func (m *Machine) cmdSend(ctx context.Context, sess *session.Session) error {
	if !m.requireAuth(ctx, sess) {
		return nil
	}
	return m.channel.SendChoice(ctx, sess.ChatID, msgPickSendMethod, [][]Choice{
		{{Label: "📧 " + transferKinds[domain.TransferEmail].label, Action: ActionSendEmail}},
		{{Label: "🔐 " + transferKinds[domain.TransferWallet].label, Action: ActionSendWallet}},
		{{Label: "🏦 " + transferKinds[domain.TransferBank].label, Action: ActionWithdrawBank}},
		{{Label: "❌ Cancel", Action: ActionCancel}},
	})
}

func (m *Machine) startTransfer(ctx context.Context, sess *session.Session, kind domain.TransferKind) error {
	if !m.requireAuth(ctx, sess) {
		return nil
	}
	spec, ok := transferKinds[kind]
	if !ok {
		return m.channel.SendText(ctx, sess.ChatID, msgGenericError)
	}
	sess.Draft = &domain.TransferDraft{Kind: kind}
	sess.State = session.StateAwaitingRecipient
	return m.channel.SendText(ctx, sess.ChatID, spec.prompt)
}

func (m *Machine) textRecipient(ctx context.Context, sess *session.Session, text string) error {
	draft := sess.Draft
	if draft == nil {
		sess.ClearFlow()
		return m.channel.SendText(ctx, sess.ChatID, msgSessionExpired)
	}
	spec := transferKinds[draft.Kind]

	input := strings.TrimSpace(text)
	if reject := spec.validate(m, input); reject != "" {
		return m.channel.SendText(ctx, sess.ChatID, reject)
	}

	// Every kind charges the default wallet's currency; wallet withdrawals
	// additionally inherit its network.
	wallet, err := m.wallets.DefaultWallet(ctx, sess.AuthToken)
	if err != nil {
		sess.ClearFlow()
		return m.channel.SendText(ctx, sess.ChatID, msgTransferFailed(err))
	}

	draft.Recipient = input
	draft.CurrencyID = wallet.CurrencyID
	draft.CurrencyCode = wallet.CurrencyCode
	if draft.Kind == domain.TransferWallet {
		draft.Network = wallet.Network
	}
	sess.State = session.StateAwaitingAmount
	return m.channel.SendText(ctx, sess.ChatID, msgAskAmount(wallet.CurrencyCode))
}

func (m *Machine) textAmount(ctx context.Context, sess *session.Session, text string) error {
	draft := sess.Draft
	if draft == nil {
		sess.ClearFlow()
		return m.channel.SendText(ctx, sess.ChatID, msgSessionExpired)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil || !amount.IsPositive() {
		return m.channel.SendText(ctx, sess.ChatID, msgInvalidAmount)
	}

	draft.Amount = amount.StringFixed(2)
	sess.State = session.StateAwaitingConfirmation
	return m.channel.SendChoice(ctx, sess.ChatID, formatTransferSummary(draft), [][]Choice{
		{
			{Label: "✅ Confirm", Action: ActionConfirm},
			{Label: "❌ Cancel", Action: ActionCancel},
		},
	})
}

// confirmTransfer submits the draft exactly once. Success and failure both
// end the conversation: there is no automatic retry, the user starts over.
func (m *Machine) confirmTransfer(ctx context.Context, sess *session.Session) error {
	if sess.State != session.StateAwaitingConfirmation || sess.Draft == nil {
		return m.channel.SendText(ctx, sess.ChatID, msgNothingToConfirm)
	}
	if !m.requireAuth(ctx, sess) {
		return nil
	}

	draft := sess.Draft
	spec := transferKinds[draft.Kind]
	transferID, err := spec.submit(ctx, m, sess.AuthToken, draft)
	sess.ClearFlow()
	if err != nil {
		logger.Warn(ctx, "app", "transfer.fail",
			slog.Int64("chat_id", sess.ChatID),
			slog.String("kind", string(draft.Kind)),
		)
		return m.channel.SendText(ctx, sess.ChatID, msgTransferFailed(err))
	}

	logger.Info(ctx, "app", "transfer.ok",
		slog.Int64("chat_id", sess.ChatID),
		slog.String("kind", string(draft.Kind)),
		slog.String("transfer_id", transferID),
	)
	return m.channel.SendText(ctx, sess.ChatID, msgTransferDone(draft, transferID))
}

func formatTransferSummary(d *domain.TransferDraft) string {
	spec := transferKinds[d.Kind]
	var b strings.Builder
	b.WriteString("📝 *Confirm Transaction*\n\n")
	fmt.Fprintf(&b, "Type: %s\n", spec.label)
	fmt.Fprintf(&b, "To: `%s`\n", truncateAddress(d.Recipient))
	if d.Network != "" {
		fmt.Fprintf(&b, "Network: %s\n", d.Network)
	}
	fmt.Fprintf(&b, "Amount: %s %s\n\nProceed?", d.Amount, d.CurrencyCode)
	return b.String()
}
