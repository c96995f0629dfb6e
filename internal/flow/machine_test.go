package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/themaden/copperx-telegram-bot/internal/api"
	"github.com/themaden/copperx-telegram-bot/internal/domain"
	"github.com/themaden/copperx-telegram-bot/internal/session"
)

const (
	testChatID = int64(42)
	testUserID = int64(42)
)

type sentMessage struct {
	text    string
	choices [][]Choice
	menu    [][]string
}

type fakeChannel struct {
	sent []sentMessage
}

func (f *fakeChannel) SendText(_ context.Context, _ int64, text string) error {
	f.sent = append(f.sent, sentMessage{text: text})
	return nil
}

func (f *fakeChannel) SendChoice(_ context.Context, _ int64, text string, rows [][]Choice) error {
	f.sent = append(f.sent, sentMessage{text: text, choices: rows})
	return nil
}

func (f *fakeChannel) SendMenu(_ context.Context, _ int64, text string, rows [][]string) error {
	f.sent = append(f.sent, sentMessage{text: text, menu: rows})
	return nil
}

func (f *fakeChannel) last(t *testing.T) sentMessage {
	t.Helper()
	require.NotEmpty(t, f.sent, "expected at least one outbound message")
	return f.sent[len(f.sent)-1]
}

type fakeAuth struct {
	otpErr       error
	otpRequests  []string
	authResp     *domain.AuthResponse
	authErr      error
	authAttempts int
}

func (f *fakeAuth) RequestOTP(_ context.Context, email string) error {
	f.otpRequests = append(f.otpRequests, email)
	return f.otpErr
}

func (f *fakeAuth) Authenticate(_ context.Context, _, _ string) (*domain.AuthResponse, error) {
	f.authAttempts++
	if f.authErr != nil {
		return nil, f.authErr
	}
	return f.authResp, nil
}

func (f *fakeAuth) Profile(_ context.Context, _ string) (*domain.User, error) {
	return &domain.User{Email: "me@example.com"}, nil
}

func (f *fakeAuth) KYCs(_ context.Context, _ string) ([]domain.KYC, error) {
	return nil, nil
}

type fakeWallets struct {
	balances      []domain.Balance
	balancesCalls int
	defaultWallet *domain.Wallet
	defaultErr    error
}

func (f *fakeWallets) Wallets(_ context.Context, _ string) ([]domain.Wallet, error) {
	return nil, nil
}

func (f *fakeWallets) Balances(_ context.Context, _ string) ([]domain.Balance, error) {
	f.balancesCalls++
	return f.balances, nil
}

func (f *fakeWallets) DefaultWallet(_ context.Context, _ string) (*domain.Wallet, error) {
	if f.defaultErr != nil {
		return nil, f.defaultErr
	}
	return f.defaultWallet, nil
}

func (f *fakeWallets) SetDefaultWallet(_ context.Context, _, _ string) error {
	return nil
}

type submitCall struct {
	kind      domain.TransferKind
	recipient string
	amount    string
	currency  string
	network   string
}

type fakeTransfers struct {
	submitID  string
	submitErr error
	submits   []submitCall
}

func (f *fakeTransfers) Transactions(_ context.Context, _ string, _, _ int) ([]domain.Transaction, int, error) {
	return nil, 0, nil
}

func (f *fakeTransfers) SendToEmail(_ context.Context, _, email, amount, currencyID string) (string, error) {
	f.submits = append(f.submits, submitCall{kind: domain.TransferEmail, recipient: email, amount: amount, currency: currencyID})
	return f.submitID, f.submitErr
}

func (f *fakeTransfers) SendToWallet(_ context.Context, _, address, amount, currencyID, network string) (string, error) {
	f.submits = append(f.submits, submitCall{kind: domain.TransferWallet, recipient: address, amount: amount, currency: currencyID, network: network})
	return f.submitID, f.submitErr
}

func (f *fakeTransfers) WithdrawToBank(_ context.Context, _, bankAccountID, amount, currencyID string) (string, error) {
	f.submits = append(f.submits, submitCall{kind: domain.TransferBank, recipient: bankAccountID, amount: amount, currency: currencyID})
	return f.submitID, f.submitErr
}

type fakeNotifier struct {
	subscribed   []string
	unsubscribed []int64
	subscribeErr error
}

func (f *fakeNotifier) Subscribe(_ context.Context, _ int64, orgID, _ string) error {
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.subscribed = append(f.subscribed, orgID)
	return nil
}

func (f *fakeNotifier) Unsubscribe(chatID int64) {
	f.unsubscribed = append(f.unsubscribed, chatID)
}

type allowAll struct{}

func (allowAll) Allow(int64) (bool, int) { return true, 0 }

func (allowAll) AllowCommand(*session.Session, int64, string) (bool, int) { return true, 0 }

type denyAll struct {
	wait int
}

func (d denyAll) Allow(int64) (bool, int) { return false, d.wait }

func (d denyAll) AllowCommand(*session.Session, int64, string) (bool, int) { return false, d.wait }

type fixture struct {
	machine   *Machine
	store     session.Store
	channel   *fakeChannel
	auth      *fakeAuth
	wallets   *fakeWallets
	transfers *fakeTransfers
	notifier  *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   session.NewMemoryStore(),
		channel: &fakeChannel{},
		auth: &fakeAuth{
			authResp: &domain.AuthResponse{
				Token:        "tok-123",
				RefreshToken: "refresh-123",
				User: domain.User{
					ID:             "u-1",
					Email:          "me@example.com",
					FirstName:      "Ada",
					OrganizationID: "org-1",
				},
			},
		},
		wallets: &fakeWallets{
			defaultWallet: &domain.Wallet{
				ID:           "w-1",
				Network:      "polygon",
				CurrencyID:   "usdc-id",
				CurrencyCode: "USDC",
			},
		},
		transfers: &fakeTransfers{submitID: "tx-1"},
		notifier:  &fakeNotifier{},
	}
	f.machine = New(Options{
		Store:     f.store,
		Guard:     allowAll{},
		Auth:      f.auth,
		Wallets:   f.wallets,
		Transfers: f.transfers,
		Notifier:  f.notifier,
		Channel:   f.channel,
	})
	return f
}

func (f *fixture) session(t *testing.T) *session.Session {
	t.Helper()
	sess, err := f.store.GetOrCreate(context.Background(), testChatID)
	require.NoError(t, err)
	return sess
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.machine.HandleCommand(ctx, testChatID, testUserID, CmdLogin))
	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "me@example.com"))
	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "123456"))
	require.True(t, f.session(t).Authenticated())
}

func TestProtectedCommandRejectedWhenUnauthenticated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.machine.HandleCommand(ctx, testChatID, testUserID, CmdBalance))

	require.Zero(t, f.wallets.balancesCalls, "no service call may happen")
	require.Equal(t, session.StateIdle, f.session(t).State)
	require.Contains(t, f.channel.last(t).text, "log in")
}

func TestLoginFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.machine.HandleCommand(ctx, testChatID, testUserID, CmdLogin))
	require.Equal(t, session.StateAwaitingEmail, f.session(t).State)

	// Both '@' and '.' are required.
	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "not-an-email"))
	require.Equal(t, session.StateAwaitingEmail, f.session(t).State)
	require.Empty(t, f.auth.otpRequests)

	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "me@example.com"))
	require.Equal(t, []string{"me@example.com"}, f.auth.otpRequests)
	require.Equal(t, session.StateAwaitingOTP, f.session(t).State)

	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "123456"))

	sess := f.session(t)
	require.Equal(t, session.StateIdle, sess.State)
	require.Equal(t, "tok-123", sess.AuthToken)
	require.Equal(t, "refresh-123", sess.RefreshToken)
	require.Equal(t, "org-1", sess.OrganizationID)
	require.NotNil(t, sess.Identity)
	require.Empty(t, sess.PendingEmail)
	require.Equal(t, []string{"org-1"}, f.notifier.subscribed)
}

func TestOTPWithoutPendingEmailExpiresSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess := f.session(t)
	sess.State = session.StateAwaitingOTP

	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "123456"))

	require.Equal(t, session.StateIdle, f.session(t).State)
	require.Zero(t, f.auth.authAttempts)
	require.Contains(t, f.channel.last(t).text, "expired")
}

func TestOTPFailureRevertsToIdle(t *testing.T) {
	f := newFixture(t)
	f.auth.authErr = &api.Failure{Message: "Invalid OTP", HTTPStatus: 401}
	ctx := context.Background()

	require.NoError(t, f.machine.HandleCommand(ctx, testChatID, testUserID, CmdLogin))
	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "me@example.com"))
	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "000000"))

	sess := f.session(t)
	require.Equal(t, session.StateIdle, sess.State, "a rejected code ends the attempt")
	require.Empty(t, sess.PendingEmail)
	require.False(t, sess.Authenticated())
	require.Equal(t, 1, f.auth.authAttempts)
	require.Contains(t, f.channel.last(t).text, "/login")

	// Further text is no longer treated as a code.
	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "111111"))
	require.Equal(t, 1, f.auth.authAttempts)
}

func TestSubscribeFailureDoesNotFailLogin(t *testing.T) {
	f := newFixture(t)
	f.notifier.subscribeErr = &api.Failure{Message: "boom", HTTPStatus: 500}

	f.login(t)

	require.True(t, f.session(t).Authenticated())
}

func TestLogoutClearsSessionAndSubscription(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	require.NoError(t, f.machine.HandleCommand(context.Background(), testChatID, testUserID, CmdLogout))

	sess := f.session(t)
	require.False(t, sess.Authenticated())
	require.Empty(t, sess.RefreshToken)
	require.Nil(t, sess.Identity)
	require.Empty(t, sess.OrganizationID)
	require.Equal(t, session.StateIdle, sess.State)
	require.Equal(t, []int64{testChatID}, f.notifier.unsubscribed)
}

func TestLoginEntryResetsExistingSession(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	// A half-typed draft and an old token must not survive a new login.
	sess := f.session(t)
	sess.Draft = &domain.TransferDraft{Kind: domain.TransferEmail}
	sess.State = session.StateAwaitingAmount

	require.NoError(t, f.machine.HandleCommand(context.Background(), testChatID, testUserID, CmdLogin))

	sess = f.session(t)
	require.False(t, sess.Authenticated())
	require.Nil(t, sess.Draft)
	require.Equal(t, session.StateAwaitingEmail, sess.State)
	require.Equal(t, []int64{testChatID}, f.notifier.unsubscribed)
}

func TestSendToWalletHappyPath(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()

	require.NoError(t, f.machine.HandleCommand(ctx, testChatID, testUserID, CmdSend))
	require.NoError(t, f.machine.HandleAction(ctx, testChatID, testUserID, ActionSendWallet, ""))
	require.Equal(t, session.StateAwaitingRecipient, f.session(t).State)

	// Too short for a wallet address.
	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "0xabc"))
	require.Equal(t, session.StateAwaitingRecipient, f.session(t).State)

	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "0x1234567890abcdef"))
	sess := f.session(t)
	require.Equal(t, session.StateAwaitingAmount, sess.State)
	require.Equal(t, "polygon", sess.Draft.Network)
	require.Equal(t, "usdc-id", sess.Draft.CurrencyID)

	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "12.5"))
	sess = f.session(t)
	require.Equal(t, session.StateAwaitingConfirmation, sess.State)
	require.Equal(t, "12.50", sess.Draft.Amount)
	summary := f.channel.last(t)
	require.Contains(t, summary.text, "12.50 USDC")
	require.NotEmpty(t, summary.choices)

	require.NoError(t, f.machine.HandleAction(ctx, testChatID, testUserID, ActionConfirm, ""))
	require.Len(t, f.transfers.submits, 1)
	call := f.transfers.submits[0]
	require.Equal(t, domain.TransferWallet, call.kind)
	require.Equal(t, "0x1234567890abcdef", call.recipient)
	require.Equal(t, "12.50", call.amount)
	require.Equal(t, "polygon", call.network)

	sess = f.session(t)
	require.Equal(t, session.StateIdle, sess.State)
	require.Nil(t, sess.Draft)
	require.Contains(t, f.channel.last(t).text, "tx-1")
}

func TestAmountValidation(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()

	require.NoError(t, f.machine.HandleAction(ctx, testChatID, testUserID, ActionSendEmail, ""))
	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "friend@example.com"))

	for _, input := range []string{"zero", "-5", "0", "1,5"} {
		require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, input))
		require.Equal(t, session.StateAwaitingAmount, f.session(t).State, "input %q must be rejected", input)
	}

	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "5"))
	require.Equal(t, "5.00", f.session(t).Draft.Amount)
}

func TestConfirmFailureEndsConversation(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.transfers.submitErr = &api.Failure{Message: "Insufficient balance", HTTPStatus: 422}
	ctx := context.Background()

	require.NoError(t, f.machine.HandleAction(ctx, testChatID, testUserID, ActionSendEmail, ""))
	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "friend@example.com"))
	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "10"))
	require.NoError(t, f.machine.HandleAction(ctx, testChatID, testUserID, ActionConfirm, ""))

	sess := f.session(t)
	require.Equal(t, session.StateIdle, sess.State)
	require.Nil(t, sess.Draft)
	require.Len(t, f.transfers.submits, 1, "no automatic retry")
	require.Contains(t, f.channel.last(t).text, "Insufficient balance")

	// A second confirm finds nothing pending.
	require.NoError(t, f.machine.HandleAction(ctx, testChatID, testUserID, ActionConfirm, ""))
	require.Len(t, f.transfers.submits, 1)
	require.Contains(t, f.channel.last(t).text, "no pending transaction")
}

func TestBankRecipientMinLength(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()

	require.NoError(t, f.machine.HandleAction(ctx, testChatID, testUserID, ActionWithdrawBank, ""))
	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "1234"))
	require.Equal(t, session.StateAwaitingRecipient, f.session(t).State)

	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "bank-acct-1"))
	require.Equal(t, session.StateAwaitingAmount, f.session(t).State)
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()

	require.NoError(t, f.machine.HandleAction(ctx, testChatID, testUserID, ActionSendEmail, ""))
	require.NoError(t, f.machine.HandleAction(ctx, testChatID, testUserID, ActionCancel, ""))

	sess := f.session(t)
	require.Equal(t, session.StateIdle, sess.State)
	require.Nil(t, sess.Draft)
	require.True(t, sess.Authenticated(), "cancel must not touch auth")

	require.NoError(t, f.machine.HandleAction(ctx, testChatID, testUserID, ActionCancel, ""))
	require.Equal(t, session.StateIdle, f.session(t).State)
	require.Contains(t, f.channel.last(t).text, "nothing to cancel")
}

func TestDefaultWalletFailureAbortsTransfer(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.wallets.defaultErr = &api.Failure{Message: "upstream down", HTTPStatus: 502}
	ctx := context.Background()

	require.NoError(t, f.machine.HandleAction(ctx, testChatID, testUserID, ActionSendWallet, ""))
	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "0x1234567890abcdef"))

	sess := f.session(t)
	require.Equal(t, session.StateIdle, sess.State)
	require.Nil(t, sess.Draft)
}

func TestRateLimitedEventNeverReachesHandling(t *testing.T) {
	f := newFixture(t)
	f.machine.guard = denyAll{wait: 7}
	ctx := context.Background()

	require.NoError(t, f.machine.HandleCommand(ctx, testChatID, testUserID, CmdLogin))

	require.Equal(t, session.StateIdle, f.session(t).State)
	require.Contains(t, f.channel.last(t).text, "7 seconds")
}

func TestMenuLabelsRouteAsCommands(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	require.NoError(t, f.machine.HandleText(context.Background(), testChatID, testUserID, MenuBalance))
	require.Equal(t, 1, f.wallets.balancesCalls)
}

func TestIdleTextIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before := len(f.channel.sent)
	require.NoError(t, f.machine.HandleText(ctx, testChatID, testUserID, "hello there"))
	require.Len(t, f.channel.sent, before)
}

func TestDepositNotification(t *testing.T) {
	f := newFixture(t)

	f.machine.NotifyDeposit(testChatID, domain.DepositNotification{
		Amount:       "100.00",
		CurrencyCode: "USDC",
		Network:      "polygon",
		TxHash:       "0xdeadbeefdeadbeefdeadbeef",
	})

	last := f.channel.last(t)
	require.Contains(t, last.text, "New Deposit")
	require.Contains(t, last.text, "100.00 USDC")
	require.True(t, strings.Contains(last.text, "polygon"))
}
