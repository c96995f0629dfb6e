package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBearerAttachedOnlyWithToken(t *testing.T) {
	var authHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)

	require.NoError(t, client.Get(context.Background(), "", "/api/auth/me", nil, nil))
	require.Empty(t, authHeader)

	require.NoError(t, client.Get(context.Background(), "secret-token", "/api/auth/me", nil, nil))
	require.Equal(t, "Bearer secret-token", authHeader)
}

func TestRequestCarriesCorrelationID(t *testing.T) {
	ids := map[string]struct{}{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		require.NotEmpty(t, id)
		ids[id] = struct{}{}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	require.NoError(t, client.Get(context.Background(), "", "/a", nil, nil))
	require.NoError(t, client.Get(context.Background(), "", "/a", nil, nil))
	require.Len(t, ids, 2, "every request gets a fresh id")
}

func TestPostEncodesAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "me@example.com", body["email"])

		w.Write([]byte(`{"success":true,"message":"sent"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	err := client.Post(context.Background(), "", "/api/auth/email-otp/request",
		map[string]string{"email": "me@example.com"}, &out)
	require.NoError(t, err)
	require.True(t, out.Success)
	require.Equal(t, "sent", out.Message)
}

func TestQueryParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1", r.URL.Query().Get("page"))
		require.Equal(t, "10", r.URL.Query().Get("limit"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	query := url.Values{}
	query.Set("page", "1")
	query.Set("limit", "10")
	require.NoError(t, client.Get(context.Background(), "", "/api/transfers", query, nil))
}

func TestErrorTranslation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Insufficient balance","error":"INSUFFICIENT_FUNDS"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	err := client.Post(context.Background(), "tok", "/api/transfers/send", map[string]string{}, nil)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "Insufficient balance", failure.Message)
	require.Equal(t, http.StatusUnprocessableEntity, failure.HTTPStatus)
	require.Equal(t, "INSUFFICIENT_FUNDS", failure.Code())
}

func TestErrorWithoutBodyFallsBackToGenericMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second)
	err := client.Get(context.Background(), "", "/api/wallets", nil, nil)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "An error occurred", failure.Message)
	require.Equal(t, http.StatusBadGateway, failure.HTTPStatus)
}

func TestTransportErrorBecomesFailure(t *testing.T) {
	client := New("http://127.0.0.1:1", 200*time.Millisecond)
	err := client.Get(context.Background(), "", "/api/wallets", nil, nil)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, 500, failure.HTTPStatus)
	require.Equal(t, "An error occurred", failure.Message)
}
