package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"vendosync/internal/auth"
	"vendosync/internal/logger"
)

// Hub пересылает события из Redis подключенным по websocket клиентам
type Hub struct {
	client         *redis.Client
	auth           *auth.Authenticator
	writeTimeout   time.Duration
	originPatterns []string
}

func NewHub(client *redis.Client, a *auth.Authenticator, originPatterns []string) *Hub {
	return &Hub{
		client:         client,
		auth:           a,
		writeTimeout:   5 * time.Second,
		originPatterns: originPatterns,
	}
}

// ServeWS обрабатывает GET /ws/changes?keys=vendor,item&token=...
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	token := r.URL.Query().Get("token")
	if token == "" {
		token = auth.BearerToken(r.Header.Get("Authorization"))
	}
	actor, err := h.auth.Authenticate(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "auth/unauthenticated", "Authentication required.")
		return
	}

	keys, err := ParseKeys(r.URL.Query().Get("keys"), actor.Role)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrForbiddenKey) {
			status = http.StatusForbidden
		}
		writeError(w, status, "socket/invalid-keys", err.Error())
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	channels := make([]string, 0, len(keys))
	for _, k := range keys {
		channels = append(channels, Channel(k))
	}
	pubsub := h.client.Subscribe(ctx, channels...)
	defer pubsub.Close()

	// подписка должна быть подтверждена до апгрейда соединения
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Error("Failed to subscribe to change channels", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "error/unexpected", "An unexpected error occurred.")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		log.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	log.Debug("Client subscribed", zap.String("uid", actor.UID), zap.Strings("keys", keys))

	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				readErr <- err
				return
			}
		}
	}()

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-readErr:
			conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case msg, ok := <-msgs:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "closed")
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, h.writeTimeout)
			err := wsjson.Write(writeCtx, conn, json.RawMessage(msg.Payload))
			cancelWrite()
			if err != nil {
				log.Debug("Websocket write failed", zap.Error(err))
				conn.Close(websocket.StatusInternalError, "write_failed")
				return
			}
		}
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}
