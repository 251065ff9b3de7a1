package events_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"vendosync/internal/auth"
	"vendosync/internal/events"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestParseKeys(t *testing.T) {
	keys, err := events.ParseKeys("vendor, item,vendor", auth.Executive)
	require.NoError(t, err)
	require.Equal(t, []string{"vendor", "item"}, keys)

	_, err = events.ParseKeys("users", auth.Manager)
	require.ErrorIs(t, err, events.ErrForbiddenKey)

	_, err = events.ParseKeys("orders", auth.Admin)
	require.ErrorIs(t, err, events.ErrUnknownKey)

	keys, err = events.ParseKeys("", auth.Executive)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"vendor", "item", "procurement", "rfq"}, keys)

	keys, err = events.ParseKeys("", auth.Admin)
	require.NoError(t, err)
	require.Contains(t, keys, "users")
}

func TestRedisPublisherUsesResourceChannel(t *testing.T) {
	client := newRedis(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, events.Channel(events.ResourceRFQ))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := events.NewRedisPublisher(client)
	require.NoError(t, pub.Publish(ctx, events.Event{
		ActorID:      "u1",
		ChangeType:   events.Add,
		ResourceType: events.ResourceRFQ,
		Payload:      map[string]string{"id": "r1"},
	}))

	select {
	case msg := <-sub.Channel():
		require.Equal(t, "changes:rfq", msg.Channel)
		require.JSONEq(t,
			`{"actor_id":"u1","change_type":"add","resource_type":"rfq","payload":{"id":"r1"}}`,
			msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestHubRejectsBeforeUpgrade(t *testing.T) {
	client := newRedis(t)
	a := auth.NewAuthenticator("secret")
	hub := events.NewHub(client, a, nil)

	exec, err := a.Sign(auth.Actor{UID: "e1", Role: auth.Executive}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"no token", "?keys=vendor", http.StatusUnauthorized},
		{"forbidden key", "?keys=users&token=" + exec, http.StatusForbidden},
		{"unknown key", "?keys=orders&token=" + exec, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			hub.ServeWS(w, httptest.NewRequest(http.MethodGet, "/ws/changes"+tt.query, nil))
			require.Equal(t, tt.status, w.Code)
		})
	}
}

func TestHubForwardsSubscribedResources(t *testing.T) {
	client := newRedis(t)
	a := auth.NewAuthenticator("secret")
	srv := httptest.NewServer(http.HandlerFunc(events.NewHub(client, a, nil).ServeWS))
	defer srv.Close()

	token, err := a.Sign(auth.Actor{UID: "e1", Role: auth.Executive}, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/changes?keys=vendor&token=" + token
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	pub := events.NewRedisPublisher(client)
	// событие по ресурсу без подписки не должно прийти
	require.NoError(t, pub.Publish(ctx, events.Event{ActorID: "u1", ChangeType: events.Add, ResourceType: events.ResourceItem}))
	require.NoError(t, pub.Publish(ctx, events.Event{
		ActorID:      events.SystemActor,
		ChangeType:   events.Modify,
		ResourceType: events.ResourceVendor,
		Payload:      map[string]any{"id": "v1", "gred": 72.5},
	}))

	var got struct {
		ActorID      string          `json:"actor_id"`
		ChangeType   string          `json:"change_type"`
		ResourceType string          `json:"resource_type"`
		Payload      json.RawMessage `json:"payload"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	require.Equal(t, "system", got.ActorID)
	require.Equal(t, "modify", got.ChangeType)
	require.Equal(t, "vendor", got.ResourceType)
	require.JSONEq(t, `{"id":"v1","gred":72.5}`, string(got.Payload))
}
