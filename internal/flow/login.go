package flow

import (
	"context"
	"strings"

	"log/slog"

	"github.com/themaden/copperx-telegram-bot/core/logger"
	"github.com/themaden/copperx-telegram-bot/internal/session"
)

// startLogin begins the OTP flow. Entering login always resets the session
// first, so a half-finished transfer or an old token never leaks into the
// new conversation.
func (m *Machine) startLogin(ctx context.Context, sess *session.Session) error {
	wasAuthenticated := sess.Authenticated()
	sess.ClearAuth()
	if wasAuthenticated {
		m.notifier.Unsubscribe(sess.ChatID)
	}
	sess.State = session.StateAwaitingEmail
	return m.channel.SendText(ctx, sess.ChatID, msgAskEmail)
}

func (m *Machine) textEmail(ctx context.Context, sess *session.Session, text string) error {
	email := strings.TrimSpace(text)
	if !validEmail(email) {
		return m.channel.SendText(ctx, sess.ChatID, msgInvalidEmail)
	}

	if err := m.auth.RequestOTP(ctx, email); err != nil {
		sess.ClearFlow()
		return m.channel.SendText(ctx, sess.ChatID, msgOTPRequestFailed(err))
	}

	sess.PendingEmail = email
	sess.State = session.StateAwaitingOTP
	return m.channel.SendText(ctx, sess.ChatID, msgAskOTP(email))
}

func (m *Machine) textOTP(ctx context.Context, sess *session.Session, text string) error {
	if sess.PendingEmail == "" {
		sess.ClearFlow()
		return m.channel.SendText(ctx, sess.ChatID, msgSessionExpired)
	}

	otp := strings.TrimSpace(text)
	resp, err := m.auth.Authenticate(ctx, sess.PendingEmail, otp)
	if err != nil {
		// A rejected code ends the attempt; the user restarts with /login.
		sess.ClearFlow()
		return m.channel.SendText(ctx, sess.ChatID, msgOTPFailed(err))
	}

	user := resp.User
	sess.AuthToken = resp.Token
	sess.RefreshToken = resp.RefreshToken
	sess.Identity = &user
	sess.OrganizationID = user.OrganizationID
	sess.ClearFlow()

	if err := m.notifier.Subscribe(ctx, sess.ChatID, sess.OrganizationID, sess.AuthToken); err != nil {
		logger.Warn(ctx, "notify", "subscribe.fail",
			slog.Int64("chat_id", sess.ChatID),
			slog.String("err", err.Error()),
		)
	}

	logger.Info(ctx, "app", "login",
		slog.Int64("chat_id", sess.ChatID),
		slog.String("user_id", user.ID),
	)
	return m.sendMainMenu(ctx, sess, msgLoginSuccess(&user))
}

func (m *Machine) cmdLogout(ctx context.Context, sess *session.Session) error {
	if !sess.Authenticated() {
		return m.channel.SendText(ctx, sess.ChatID, msgNotLoggedIn)
	}
	m.notifier.Unsubscribe(sess.ChatID)
	sess.ClearAuth()
	logger.Info(ctx, "app", "logout",
		slog.Int64("chat_id", sess.ChatID),
	)
	return m.channel.SendText(ctx, sess.ChatID, msgLoggedOut)
}

// validEmail is a lightweight shape check. The API is the final authority
// on whether an address exists.
func validEmail(email string) bool {
	return strings.Contains(email, "@") && strings.Contains(email, ".")
}
