package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/themaden/copperx-telegram-bot/internal/domain"
)

func TestMemoryStoreReturnsSamePointer(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a, err := store.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	b, err := store.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	require.Same(t, a, b, "one live session per chat")

	other, err := store.GetOrCreate(ctx, 2)
	require.NoError(t, err)
	require.NotSame(t, a, other)
}

func TestMemoryStoreReset(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	sess.AuthToken = "tok"

	require.NoError(t, store.Reset(ctx, 1))

	fresh, err := store.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	require.NotSame(t, sess, fresh)
	require.Empty(t, fresh.AuthToken)
	require.Equal(t, StateIdle, fresh.State)
}

func TestClearAuthDropsEverythingTogether(t *testing.T) {
	sess := NewSession(1)
	sess.AuthToken = "tok"
	sess.RefreshToken = "ref"
	sess.Identity = &domain.User{ID: "u-1"}
	sess.OrganizationID = "org-1"
	sess.State = StateAwaitingAmount
	sess.Draft = &domain.TransferDraft{Kind: domain.TransferEmail}
	sess.PendingEmail = "me@example.com"

	sess.ClearAuth()

	require.False(t, sess.Authenticated())
	require.Empty(t, sess.RefreshToken)
	require.Nil(t, sess.Identity)
	require.Empty(t, sess.OrganizationID)
	require.Equal(t, StateIdle, sess.State)
	require.Nil(t, sess.Draft)
	require.Empty(t, sess.PendingEmail)
}

func TestClearFlowKeepsAuth(t *testing.T) {
	sess := NewSession(1)
	sess.AuthToken = "tok"
	sess.State = StateAwaitingConfirmation
	sess.Draft = &domain.TransferDraft{Kind: domain.TransferWallet}

	sess.ClearFlow()

	require.True(t, sess.Authenticated())
	require.Equal(t, StateIdle, sess.State)
	require.Nil(t, sess.Draft)
}

func TestSessionRoundTripsThroughJSON(t *testing.T) {
	sess := NewSession(7)
	sess.AuthToken = "tok"
	sess.State = StateAwaitingAmount
	sess.Draft = &domain.TransferDraft{
		Kind:       domain.TransferWallet,
		Recipient:  "0x1234567890",
		Network:    "polygon",
		CurrencyID: "usdc-id",
	}
	sess.CommandWindows["send"] = &CommandWindow{ResetAt: 1234, Count: 2}

	raw, err := json.Marshal(sess)
	require.NoError(t, err)

	restored := NewSession(7)
	require.NoError(t, json.Unmarshal(raw, restored))
	require.Equal(t, sess.AuthToken, restored.AuthToken)
	require.Equal(t, sess.State, restored.State)
	require.Equal(t, sess.Draft, restored.Draft)
	require.Equal(t, 2, restored.CommandWindows["send"].Count)
}
