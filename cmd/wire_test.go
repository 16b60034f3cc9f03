package main

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"shopping-assistant/internal/config"
)

func mockConfig() config.Config {
	return config.Config{
		Driver:          config.DriverMemory,
		ExtractionModel: "gpt-4o",
		PollInterval:    time.Millisecond,
		RunTimeout:      time.Second,
		MockLLM:         true,
	}
}

func call(t *testing.T, a *app, method, path, body string) (int, map[string]any) {
	t.Helper()
	resp, err := a.handler.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       path,
		Body:       body,
	})
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &out), resp.Body)
	return resp.StatusCode, out
}

func TestBuild_RejectsInvalidConfig(t *testing.T) {
	cfg := mockConfig()
	cfg.Driver = "postgres"
	_, err := build(context.Background(), cfg)
	require.Error(t, err)
}

func TestBuild_ShoppingSessionLifecycle(t *testing.T) {
	cfg := mockConfig()
	cfg.Driver = config.DriverSQLite
	cfg.DSN = filepath.Join(t.TempDir(), "shop.db")

	a, err := build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.close)

	status, user := call(t, a, http.MethodPost, "/api/users", `{"name":"Ada","email":"ada@example.com","password":"pw"}`)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "1", user["id"])

	status, _ = call(t, a, http.MethodPost, "/api/login", `{"email":"ada@example.com","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, a, http.MethodPost, "/api/users/1/preferences", `{"preferences":[{"key":"color","value":"black"}]}`)
	require.Equal(t, http.StatusOK, status)

	status, created := call(t, a, http.MethodPost, "/api/users/1/shopping_sessions", `{"intent":"running shoes"}`)
	require.Equal(t, http.StatusCreated, status)
	session := created["session"].(map[string]any)
	require.Equal(t, "1", session["id"])
	require.NotEmpty(t, session["thread_id"])
	require.Len(t, created["messages"], 2)

	status, chat := call(t, a, http.MethodPost, "/api/shopping_sessions/1/messages", `{"message":"budget: under 100"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "completed", chat["status"])

	status, desc := call(t, a, http.MethodPost, "/api/shopping_sessions/1/product_description", `{"product_page":"Trail runner, 280g"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "completed", desc["status"])

	status, cmp := call(t, a, http.MethodPost, "/api/shopping_sessions/1/product_comparison", "")
	require.Equal(t, http.StatusOK, status)
	for _, m := range cmp["messages"].([]any) {
		require.Equal(t, "assistant", m.(map[string]any)["role"])
	}

	status, end := call(t, a, http.MethodPost, "/api/shopping_sessions/1/end", "")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, end["extracted"], map[string]any{"key": "budget", "value": "under 100"})

	status, prefs := call(t, a, http.MethodGet, "/api/users/1/preferences", "")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, prefs["preferences"], map[string]any{"id": "1", "key": "color", "value": "black"})

	status, _ = call(t, a, http.MethodGet, "/api/users/2/sessions", "")
	require.Equal(t, http.StatusNotFound, status)
}
