package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/themaden/copperx-telegram-bot/internal/api"
	"github.com/themaden/copperx-telegram-bot/internal/domain"
)

var upgrader = websocket.Upgrader{}

// fakePusher upgrades the connection, announces a socket id, and hands the
// raw connection to the test scenario.
func fakePusher(t *testing.T, scenario func(conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteJSON(map[string]any{
			"event": "pusher:connection_established",
			"data":  `{"socket_id":"81.1234","activity_timeout":120}`,
		}))
		scenario(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestSubscribeSendsAuthorizedJoin(t *testing.T) {
	joined := make(chan frame, 1)
	url := fakePusher(t, func(conn *websocket.Conn) {
		joined <- readFrame(t, conn)
	})

	var gotSocketID, gotChannel string
	authorize := func(_ context.Context, socketID, channel string) (string, error) {
		gotSocketID = socketID
		gotChannel = channel
		return "key:signature", nil
	}

	client := NewClient(url, authorize, nil)
	require.NoError(t, client.Dial(context.Background()))
	defer client.Close()

	require.NoError(t, client.Subscribe(context.Background(), "private-org-1"))

	require.Equal(t, "81.1234", gotSocketID)
	require.Equal(t, "private-org-1", gotChannel)

	select {
	case f := <-joined:
		require.Equal(t, "pusher:subscribe", f.Event)
		var data map[string]string
		require.NoError(t, json.Unmarshal(f.Data, &data))
		require.Equal(t, "private-org-1", data["channel"])
		require.Equal(t, "key:signature", data["auth"])
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe frame never arrived")
	}
}

func TestPingIsAnswered(t *testing.T) {
	pong := make(chan frame, 1)
	url := fakePusher(t, func(conn *websocket.Conn) {
		require.NoError(t, conn.WriteJSON(map[string]any{"event": "pusher:ping"}))
		pong <- readFrame(t, conn)
	})

	client := NewClient(url, nil, nil)
	require.NoError(t, client.Dial(context.Background()))
	defer client.Close()

	select {
	case f := <-pong:
		require.Equal(t, "pusher:pong", f.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("pong never arrived")
	}
}

func TestEventsAreDeliveredDecoded(t *testing.T) {
	url := fakePusher(t, func(conn *websocket.Conn) {
		require.NoError(t, conn.WriteJSON(map[string]any{
			"event":   "deposit",
			"channel": "private-org-1",
			"data":    `{"amount":"100.00","currencyCode":"USDC","network":"polygon"}`,
		}))
		time.Sleep(200 * time.Millisecond)
	})

	events := make(chan []byte, 1)
	client := NewClient(url, nil, func(channel, event string, data []byte) {
		if event == "deposit" {
			events <- data
		}
	})
	require.NoError(t, client.Dial(context.Background()))
	defer client.Close()

	select {
	case data := <-events:
		var dep domain.DepositNotification
		require.NoError(t, json.Unmarshal(data, &dep))
		require.Equal(t, "100.00", dep.Amount)
		require.Equal(t, "USDC", dep.CurrencyCode)
	case <-time.After(2 * time.Second):
		t.Fatal("deposit event never arrived")
	}
}

func TestBridgeAuthorizesAgainstWalletAPI(t *testing.T) {
	subscribed := make(chan frame, 1)
	wsURL := fakePusher(t, func(conn *websocket.Conn) {
		subscribed <- readFrame(t, conn)
		time.Sleep(200 * time.Millisecond)
	})

	var authBody map[string]string
	var bearer string
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/notifications/auth", r.URL.Path)
		bearer = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&authBody))
		w.Write([]byte(`{"auth":"key:sig"}`))
	}))
	defer apiSrv.Close()

	bridge := NewBridge(wsURL, "/api/notifications/auth", api.New(apiSrv.URL, time.Second),
		func(int64, domain.DepositNotification) {})
	defer bridge.Shutdown()

	require.NoError(t, bridge.Subscribe(context.Background(), 42, "org-1", "tok-1"))

	require.Equal(t, "Bearer tok-1", bearer)
	require.Equal(t, "81.1234", authBody["socket_id"])
	require.Equal(t, "private-org-1", authBody["channel_name"])

	select {
	case f := <-subscribed:
		require.Equal(t, "pusher:subscribe", f.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe frame never arrived")
	}
}

func TestBridgeKeepsOneSubscriptionPerChat(t *testing.T) {
	conns := make(chan *websocket.Conn, 4)
	wsURL := fakePusher(t, func(conn *websocket.Conn) {
		conns <- conn
		readFrame(t, conn)
		time.Sleep(time.Second)
	})

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"auth":"key:sig"}`))
	}))
	defer apiSrv.Close()

	bridge := NewBridge(wsURL, "/api/notifications/auth", api.New(apiSrv.URL, time.Second),
		func(int64, domain.DepositNotification) {})
	defer bridge.Shutdown()

	require.NoError(t, bridge.Subscribe(context.Background(), 42, "org-1", "tok-1"))
	require.NoError(t, bridge.Subscribe(context.Background(), 42, "org-2", "tok-2"))

	bridge.mu.Lock()
	require.Len(t, bridge.subs, 1)
	require.Equal(t, "private-org-2", bridge.subs[42].channel)
	bridge.mu.Unlock()
}
