package services

import (
	"context"

	"log/slog"

	"github.com/themaden/copperx-telegram-bot/core/logger"
	"github.com/themaden/copperx-telegram-bot/internal/api"
	"github.com/themaden/copperx-telegram-bot/internal/domain"
)

// Auth covers the email OTP login flow and account lookups.
type Auth struct {
	gw *api.Client
}

// NewAuth builds the auth service on top of the gateway client.
func NewAuth(gw *api.Client) *Auth {
	return &Auth{gw: gw}
}

type otpRequest struct {
	Email string `json:"email"`
}

type authenticateRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// RequestOTP asks the API to send a one-time password to the given email.
func (s *Auth) RequestOTP(ctx context.Context, email string) error {
	err := s.gw.Post(ctx, "", "/api/auth/email-otp/request", otpRequest{Email: email}, nil)
	logger.Debug(ctx, "service.auth", "otp.request",
		slog.String("status", logger.Status(err)),
	)
	return err
}

// Authenticate exchanges the email and OTP for tokens and the user profile.
// The OTP value itself is never logged.
func (s *Auth) Authenticate(ctx context.Context, email, otp string) (*domain.AuthResponse, error) {
	var resp domain.AuthResponse
	err := s.gw.Post(ctx, "", "/api/auth/email-otp/authenticate", authenticateRequest{Email: email, OTP: otp}, &resp)
	if err != nil {
		logger.Warn(ctx, "service.auth", "authenticate.fail")
		return nil, err
	}
	logger.Info(ctx, "service.auth", "authenticate.ok",
		slog.String("user_id", resp.User.ID),
	)
	return &resp, nil
}

// Profile fetches the authenticated account profile.
func (s *Auth) Profile(ctx context.Context, token string) (*domain.User, error) {
	var user domain.User
	if err := s.gw.Get(ctx, token, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// KYCs lists the verification records attached to the account.
func (s *Auth) KYCs(ctx context.Context, token string) ([]domain.KYC, error) {
	var env itemsEnvelope[domain.KYC]
	if err := s.gw.Get(ctx, token, "/api/kycs", nil, &env); err != nil {
		return nil, err
	}
	return env.Items, nil
}
