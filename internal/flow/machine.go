// Package flow implements the conversation state machine. Every inbound
// event (command, free text, or button action) is interpreted against the
// chat's session state; the machine owns all transitions and talks to an
// abstract channel so it runs the same against Telegram or a test double.
package flow

import (
	"context"

	"log/slog"

	"github.com/themaden/copperx-telegram-bot/core/logger"
	"github.com/themaden/copperx-telegram-bot/internal/domain"
	"github.com/themaden/copperx-telegram-bot/internal/session"
)

// Choice is one inline button: a label shown to the user and the action
// (plus optional payload) delivered back when pressed.
type Choice struct {
	Label   string
	Action  string
	Payload string
}

// Channel is the outbound side of a conversation.
type Channel interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendChoice(ctx context.Context, chatID int64, text string, rows [][]Choice) error
	// SendMenu replaces the chat's reply keyboard with the given labels.
	SendMenu(ctx context.Context, chatID int64, text string, rows [][]string) error
}

// AuthService covers login and account lookups.
type AuthService interface {
	RequestOTP(ctx context.Context, email string) error
	Authenticate(ctx context.Context, email, otp string) (*domain.AuthResponse, error)
	Profile(ctx context.Context, token string) (*domain.User, error)
	KYCs(ctx context.Context, token string) ([]domain.KYC, error)
}

// WalletService covers wallet listings and the default selection.
type WalletService interface {
	Wallets(ctx context.Context, token string) ([]domain.Wallet, error)
	Balances(ctx context.Context, token string) ([]domain.Balance, error)
	DefaultWallet(ctx context.Context, token string) (*domain.Wallet, error)
	SetDefaultWallet(ctx context.Context, token, walletID string) error
}

// TransferService covers history and the three submission paths.
type TransferService interface {
	Transactions(ctx context.Context, token string, page, limit int) ([]domain.Transaction, int, error)
	SendToEmail(ctx context.Context, token, email, amount, currencyID string) (string, error)
	SendToWallet(ctx context.Context, token, address, amount, currencyID, network string) (string, error)
	WithdrawToBank(ctx context.Context, token, bankAccountID, amount, currencyID string) (string, error)
}

// Notifier manages per-chat deposit subscriptions.
type Notifier interface {
	Subscribe(ctx context.Context, chatID int64, orgID, token string) error
	Unsubscribe(chatID int64)
}

// Limiter is the abuse guard in front of the machine.
type Limiter interface {
	Allow(userID int64) (bool, int)
	AllowCommand(sess *session.Session, userID int64, command string) (bool, int)
}

// Options wire the machine's dependencies.
type Options struct {
	Store     session.Store
	Guard     Limiter
	Auth      AuthService
	Wallets   WalletService
	Transfers TransferService
	Notifier  Notifier
	Channel   Channel

	// BankAccountMinLength rejects bank account input shorter than this.
	BankAccountMinLength int
}

// Machine drives every conversation.
type Machine struct {
	store     session.Store
	guard     Limiter
	auth      AuthService
	wallets   WalletService
	transfers TransferService
	notifier  Notifier
	channel   Channel

	bankMinLen int
}

// New builds the machine.
func New(opts Options) *Machine {
	bankMin := opts.BankAccountMinLength
	if bankMin <= 0 {
		bankMin = 5
	}
	return &Machine{
		store:      opts.Store,
		guard:      opts.Guard,
		auth:       opts.Auth,
		wallets:    opts.Wallets,
		transfers:  opts.Transfers,
		notifier:   opts.Notifier,
		channel:    opts.Channel,
		bankMinLen: bankMin,
	}
}

// InProgress reports whether the chat is mid-conversation, used to route
// free text into the machine.
func (m *Machine) InProgress(chatID int64) bool {
	sess, err := m.store.GetOrCreate(context.Background(), chatID)
	if err != nil {
		return false
	}
	sess.Lock()
	defer sess.Unlock()
	return sess.State != session.StateIdle
}

// HandleCommand processes one named command for the chat.
func (m *Machine) HandleCommand(ctx context.Context, chatID, userID int64, command string) error {
	return m.dispatch(ctx, chatID, userID, func(sess *session.Session) error {
		if ok, wait := m.guard.AllowCommand(sess, userID, command); !ok {
			return m.channel.SendText(ctx, chatID, msgRateLimited(wait))
		}
		return m.runCommand(ctx, sess, command)
	})
}

// HandleText processes free text against the chat's current state. Text in
// the idle state that matches no menu label is ignored.
func (m *Machine) HandleText(ctx context.Context, chatID, userID int64, text string) error {
	if command, ok := menuCommand(text); ok {
		return m.HandleCommand(ctx, chatID, userID, command)
	}
	return m.dispatch(ctx, chatID, userID, func(sess *session.Session) error {
		return m.runText(ctx, sess, text)
	})
}

// HandleAction processes one inline button press.
func (m *Machine) HandleAction(ctx context.Context, chatID, userID int64, action, payload string) error {
	return m.dispatch(ctx, chatID, userID, func(sess *session.Session) error {
		return m.runAction(ctx, sess, action, payload)
	})
}

// NotifyDeposit delivers a realtime deposit event into the chat. It bypasses
// the guard: the event originates from the wallet API, not the user.
func (m *Machine) NotifyDeposit(chatID int64, dep domain.DepositNotification) {
	ctx := logger.Background()
	if err := m.channel.SendText(ctx, chatID, formatDeposit(dep)); err != nil {
		logger.Warn(ctx, "notify", "deposit.deliver_fail",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
	}
}

// dispatch applies the global guard, acquires the session run lock for the
// whole event, and persists the session afterwards.
func (m *Machine) dispatch(ctx context.Context, chatID, userID int64, fn func(*session.Session) error) error {
	if ok, wait := m.guard.Allow(userID); !ok {
		return m.channel.SendText(ctx, chatID, msgRateLimited(wait))
	}

	sess, err := m.store.GetOrCreate(ctx, chatID)
	if err != nil {
		logger.Error(ctx, "app", "session.load_fail",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return m.channel.SendText(ctx, chatID, msgGenericError)
	}

	sess.Lock()
	defer sess.Unlock()

	handlerErr := fn(sess)

	if err := m.store.Replace(ctx, sess); err != nil {
		logger.Error(ctx, "app", "session.persist_fail",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
	}
	return handlerErr
}

func (m *Machine) runCommand(ctx context.Context, sess *session.Session, command string) error {
	switch command {
	case CmdStart:
		return m.cmdStart(ctx, sess)
	case CmdLogin:
		return m.startLogin(ctx, sess)
	case CmdLogout:
		return m.cmdLogout(ctx, sess)
	case CmdCancel:
		return m.cancel(ctx, sess)
	case CmdBalance:
		return m.cmdBalance(ctx, sess)
	case CmdWallets:
		return m.cmdWallets(ctx, sess)
	case CmdSetDefault:
		return m.cmdSetDefault(ctx, sess)
	case CmdSend:
		return m.cmdSend(ctx, sess)
	case CmdHistory:
		return m.cmdHistory(ctx, sess)
	case CmdProfile:
		return m.cmdProfile(ctx, sess)
	case CmdHelp:
		return m.channel.SendText(ctx, sess.ChatID, msgHelp)
	default:
		return m.channel.SendText(ctx, sess.ChatID, msgUnknownCommand)
	}
}

func (m *Machine) runText(ctx context.Context, sess *session.Session, text string) error {
	switch sess.State {
	case session.StateAwaitingEmail:
		return m.textEmail(ctx, sess, text)
	case session.StateAwaitingOTP:
		return m.textOTP(ctx, sess, text)
	case session.StateAwaitingRecipient:
		return m.textRecipient(ctx, sess, text)
	case session.StateAwaitingAmount:
		return m.textAmount(ctx, sess, text)
	case session.StateAwaitingConfirmation:
		// The confirmation step only accepts button presses.
		return m.channel.SendText(ctx, sess.ChatID, msgUseButtons)
	default:
		return nil
	}
}

func (m *Machine) runAction(ctx context.Context, sess *session.Session, action, payload string) error {
	switch action {
	case ActionLogin:
		return m.startLogin(ctx, sess)
	case ActionSendEmail:
		return m.startTransfer(ctx, sess, domain.TransferEmail)
	case ActionSendWallet:
		return m.startTransfer(ctx, sess, domain.TransferWallet)
	case ActionWithdrawBank:
		return m.startTransfer(ctx, sess, domain.TransferBank)
	case ActionSetDefault:
		return m.actionSetDefault(ctx, sess, payload)
	case ActionConfirm:
		return m.confirmTransfer(ctx, sess)
	case ActionCancel:
		return m.cancel(ctx, sess)
	case ActionBackToMain:
		return m.sendMainMenu(ctx, sess, msgMainMenu)
	default:
		logger.Debug(ctx, "app", "action.unknown",
			slog.Int64("chat_id", sess.ChatID),
			slog.String("action", action),
		)
		return nil
	}
}

// cancel aborts any in-flight conversation. It is idempotent: cancelling an
// idle session just reports there is nothing to cancel.
func (m *Machine) cancel(ctx context.Context, sess *session.Session) error {
	if sess.State == session.StateIdle && sess.Draft == nil {
		return m.channel.SendText(ctx, sess.ChatID, msgNothingToCancel)
	}
	sess.ClearFlow()
	return m.channel.SendText(ctx, sess.ChatID, msgCancelled)
}

// requireAuth rejects protected entries for unauthenticated sessions with no
// state change and no service call.
func (m *Machine) requireAuth(ctx context.Context, sess *session.Session) bool {
	if sess.Authenticated() {
		return true
	}
	_ = m.channel.SendChoice(ctx, sess.ChatID, msgNotLoggedIn, [][]Choice{
		{{Label: "🔑 Login", Action: ActionLogin}},
	})
	return false
}
