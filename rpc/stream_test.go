package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"marketledger/native/market"
)

func TestEventStreamUnavailableWithoutHub(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	req := httptest.NewRequest(http.MethodGet, "/ws/events", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEventStreamDeliversFilteredEvents(t *testing.T) {
	hub := NewEventHub()
	env := newTestEnv(t, ServerConfig{Hub: hub})
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events?type=" + market.EventTypeConfigInitialized
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	tok := env.token(env.authority)
	_, resp := env.call("native_transfer", map[string]interface{}{"to": env.buyer.Hex(), "amount": 10}, tok)
	require.Nil(t, resp.Error)
	_, resp = env.call("market_initializeConfig", map[string]interface{}{"feeBps": 100}, tok)
	require.Nil(t, resp.Error)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var frame StreamEvent
	require.NoError(t, json.Unmarshal(data, &frame))
	require.Equal(t, market.EventTypeConfigInitialized, frame.Type)
	require.Equal(t, "100", frame.Attributes["feeBps"])
}

func TestEventHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewEventHub()
	updates, cancel := hub.subscribe()
	for i := 0; i < streamBufferEvents+10; i++ {
		hub.Emit(typedEvent("native.transferred"))
	}
	require.Len(t, updates, streamBufferEvents)
	cancel()
	require.Zero(t, hub.Subscribers())
}

type typedEvent string

func (e typedEvent) EventType() string { return string(e) }
