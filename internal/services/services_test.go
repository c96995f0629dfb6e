package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/themaden/copperx-telegram-bot/internal/api"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]any
}

func newGateway(t *testing.T, status int, response string, record *recordedRequest) *api.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record.method = r.Method
		record.path = r.URL.Path
		record.query = r.URL.RawQuery
		record.auth = r.Header.Get("Authorization")
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&record.body)
		}
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return api.New(srv.URL, time.Second)
}

func TestAuthenticateReturnsTokensAndUser(t *testing.T) {
	var rec recordedRequest
	gw := newGateway(t, 200, `{
		"token": "tok-1",
		"refreshToken": "ref-1",
		"user": {"id": "u-1", "email": "me@example.com", "organizationId": "org-1"}
	}`, &rec)

	resp, err := NewAuth(gw).Authenticate(context.Background(), "me@example.com", "123456")
	require.NoError(t, err)
	require.Equal(t, "/api/auth/email-otp/authenticate", rec.path)
	require.Empty(t, rec.auth, "authentication itself carries no bearer token")
	require.Equal(t, "me@example.com", rec.body["email"])
	require.Equal(t, "123456", rec.body["otp"])
	require.Equal(t, "tok-1", resp.Token)
	require.Equal(t, "org-1", resp.User.OrganizationID)
}

func TestBalancesUnwrapsItems(t *testing.T) {
	var rec recordedRequest
	gw := newGateway(t, 200, `{"items":[
		{"network":"polygon","currencyCode":"USDC","balance":"100.00"},
		{"network":"arbitrum","currencyCode":"USDC","balance":"5.25"}
	]}`, &rec)

	balances, err := NewWallet(gw).Balances(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, "/api/wallets/balances", rec.path)
	require.Equal(t, "Bearer tok", rec.auth)
	require.Len(t, balances, 2)
	require.Equal(t, "polygon", balances[0].Network)
}

func TestSetDefaultWallet(t *testing.T) {
	var rec recordedRequest
	gw := newGateway(t, 200, `{"message":"ok"}`, &rec)

	err := NewWallet(gw).SetDefaultWallet(context.Background(), "tok", "w-7")
	require.NoError(t, err)
	require.Equal(t, http.MethodPut, rec.method)
	require.Equal(t, "/api/wallets/default", rec.path)
	require.Equal(t, "w-7", rec.body["walletId"])
}

func TestTransactionsPagination(t *testing.T) {
	var rec recordedRequest
	gw := newGateway(t, 200, `{"items":[{"id":"t-1","type":"send"}],"total":37}`, &rec)

	items, total, err := NewTransfer(gw).Transactions(context.Background(), "tok", 2, 10)
	require.NoError(t, err)
	require.Equal(t, "/api/transfers", rec.path)
	require.Equal(t, "limit=10&page=2", rec.query)
	require.Equal(t, 37, total)
	require.Len(t, items, 1)
}

func TestTransactionByID(t *testing.T) {
	var rec recordedRequest
	gw := newGateway(t, 200, `{"id":"t-3","type":"withdraw","status":"pending","amount":"50.00"}`, &rec)

	tx, err := NewTransfer(gw).Transaction(context.Background(), "tok", "t-3")
	require.NoError(t, err)
	require.Equal(t, "/api/transfers/t-3", rec.path)
	require.Equal(t, "Bearer tok", rec.auth)
	require.Equal(t, "t-3", tx.ID)
	require.Equal(t, "pending", tx.Status)
}

func TestSendToWalletBody(t *testing.T) {
	var rec recordedRequest
	gw := newGateway(t, 200, `{"id":"tx-9","message":"ok"}`, &rec)

	id, err := NewTransfer(gw).SendToWallet(context.Background(), "tok", "0xabc1234567", "12.50", "usdc-id", "polygon")
	require.NoError(t, err)
	require.Equal(t, "/api/transfers/wallet-withdraw", rec.path)
	require.Equal(t, "0xabc1234567", rec.body["address"])
	require.Equal(t, "12.50", rec.body["amount"])
	require.Equal(t, "usdc-id", rec.body["currencyId"])
	require.Equal(t, "polygon", rec.body["network"])
	require.Equal(t, "tx-9", id)
}

func TestWithdrawToBankFailurePropagates(t *testing.T) {
	var rec recordedRequest
	gw := newGateway(t, 422, `{"message":"No bank account linked","error":"NO_BANK"}`, &rec)

	_, err := NewTransfer(gw).WithdrawToBank(context.Background(), "tok", "acct-1", "10.00", "usdc-id")
	var failure *api.Failure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "No bank account linked", failure.Message)
	require.Equal(t, "/api/transfers/offramp", rec.path)
	require.Equal(t, "acct-1", rec.body["bankAccountId"])
}
