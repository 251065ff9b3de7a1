package logger_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"vendosync/internal/logger"
)

func TestNewBuildsForBothEnvironments(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		log, err := logger.New(logger.Config{Level: "debug", Environment: env, ServiceName: "vendosync"})
		require.NoError(t, err)
		require.NotNil(t, log)
	}
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	require.Equal(t, zap.L(), logger.FromContext(context.Background()))

	log := zap.NewNop()
	require.Same(t, log, logger.FromContext(logger.WithContext(context.Background(), log)))
}

func TestMiddlewareLogsRequest(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	var inner *zap.Logger
	h := middleware.RequestID(logger.Middleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = logger.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))

	require.NotNil(t, inner)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	require.Equal(t, "HTTP Request", entry.Message)
	fields := entry.ContextMap()
	require.Equal(t, "/api/ping", fields["path"])
	require.EqualValues(t, http.StatusTeapot, fields["status"])
	require.NotEmpty(t, fields["request_id"])
}
