// Package session holds per-chat conversation state: auth tokens, the user
// identity, the current flow position, and the transfer draft being
// accumulated. Storage is pluggable; an in-memory store is the default and a
// Postgres-backed store survives restarts.
package session

import (
	"context"
	"sync"

	"github.com/themaden/copperx-telegram-bot/internal/domain"
)

// State identifies a conversation step. Every event is interpreted against
// the session's current state; unknown text in StateIdle is ignored.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
	// StateAwaitingEmail waits for the login email address.
	StateAwaitingEmail State = "awaiting_email"
	// StateAwaitingOTP waits for the one-time password sent to the email.
	StateAwaitingOTP State = "awaiting_otp"
	// StateAwaitingRecipient waits for a transfer destination.
	StateAwaitingRecipient State = "awaiting_recipient"
	// StateAwaitingAmount waits for the transfer amount.
	StateAwaitingAmount State = "awaiting_amount"
	// StateAwaitingConfirmation waits for the final confirm/cancel choice.
	StateAwaitingConfirmation State = "awaiting_confirmation"
)

// CommandWindow is one fixed rate-limit window for a single command.
type CommandWindow struct {
	ResetAt int64 `json:"resetAt"`
	Count   int   `json:"count"`
}

// Session is the mutable per-chat record. The embedded mutex serializes all
// event handling for the chat; callers hold it for the whole event.
type Session struct {
	mu sync.Mutex

	ChatID         int64        `json:"chatId"`
	AuthToken      string       `json:"authToken,omitempty"`
	RefreshToken   string       `json:"refreshToken,omitempty"`
	Identity       *domain.User `json:"identity,omitempty"`
	OrganizationID string       `json:"organizationId,omitempty"`

	// PendingEmail carries the login email between the email and OTP steps.
	PendingEmail string                `json:"pendingEmail,omitempty"`
	State        State                 `json:"state"`
	Draft        *domain.TransferDraft `json:"draft,omitempty"`

	// CommandWindows holds the per-command rate windows keyed by command name.
	CommandWindows map[string]*CommandWindow `json:"commandWindows,omitempty"`
}

// NewSession returns an idle session for the chat.
func NewSession(chatID int64) *Session {
	return &Session{
		ChatID:         chatID,
		State:          StateIdle,
		CommandWindows: make(map[string]*CommandWindow),
	}
}

// Lock acquires the session run lock.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session run lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Authenticated reports whether the session carries a bearer token.
func (s *Session) Authenticated() bool {
	return s.AuthToken != ""
}

// ClearFlow drops the flow position, the pending login email, and any draft.
func (s *Session) ClearFlow() {
	s.State = StateIdle
	s.PendingEmail = ""
	s.Draft = nil
}

// ClearAuth drops the auth fields together with the flow position. The four
// auth fields always transition as one unit.
func (s *Session) ClearAuth() {
	s.AuthToken = ""
	s.RefreshToken = ""
	s.Identity = nil
	s.OrganizationID = ""
	s.ClearFlow()
}

// Store persists sessions keyed by chat id. GetOrCreate always returns the
// same *Session for a chat within one process so the run lock stays
// meaningful across concurrent updates.
type Store interface {
	GetOrCreate(ctx context.Context, chatID int64) (*Session, error)
	// Replace writes the session's current value through to the backing
	// storage. In-memory stores may treat it as a no-op.
	Replace(ctx context.Context, s *Session) error
	// Reset discards all stored state for the chat.
	Reset(ctx context.Context, chatID int64) error
}
