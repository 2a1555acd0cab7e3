package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"homelink/auth"
	"homelink/internal/config"
	"homelink/internal/engine"
	"homelink/internal/memstore"
	"homelink/internal/models"
	"homelink/internal/queue"
	"homelink/internal/registry"
	webModels "homelink/internal/web/models"

	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type client struct {
	t       *testing.T
	handler http.Handler
	token   string
	basic   [2]string
}

func newServer(t *testing.T) http.Handler {
	t.Helper()
	store := memstore.New()
	reg := registry.NewRegistry(store)
	q := queue.NewQueue(store, reg, config.QueueConfig{
		Lookahead:          time.Hour,
		PollInterval:       10 * time.Millisecond,
		DefaultPollTimeout: 200 * time.Millisecond,
		MaxPollTimeout:     time.Second,
	})
	eng := engine.NewEngine(store, q, config.EngineConfig{MaxRetries: 3, RetryBackoff: time.Millisecond})
	q.SetResolver(eng)

	ws := NewWebServer(Dependencies{
		Auth:     auth.NewAuthModule(store, "test-secret", time.Hour),
		Users:    store,
		Registry: reg,
		Queue:    q,
		Links:    engine.NewLinkService(store, reg),
	})
	return ws.Handler()
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.basic[0] != "" {
		req.SetBasicAuth(c.basic[0], c.basic[1])
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	return w
}

func (c *client) expect(method, path string, body any, status int, out any) {
	c.t.Helper()
	w := c.do(method, path, body)
	if w.Code != status {
		c.t.Fatalf("%s %s: expected %d, got %d: %s", method, path, status, w.Code, w.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			c.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}

func register(t *testing.T, h http.Handler, username, owner string) *client {
	t.Helper()
	c := &client{t: t, handler: h}
	var resp webModels.TokenResponse
	c.expect(http.MethodPost, "/api/auth/register", webModels.RegisterRequest{Username: username, Password: "pw", OwnerUsername: owner}, http.StatusCreated, &resp)
	c.token = resp.Token
	return c
}

func TestLEDScenarioOverHTTP(t *testing.T) {
	h := newServer(t)
	alice := register(t, h, "alice", "")

	var dev models.Device
	alice.expect(http.MethodPost, "/api/devices", map[string]any{
		"name": "d1",
		"data": map[string]any{"components": []any{map[string]any{"name": "LED", "actions": []string{"on", "off", "toggle"}}}},
	}, http.StatusCreated, &dev)

	var cmd models.Command
	alice.expect(http.MethodPost, "/api/commands", map[string]any{
		"device_id": dev.ID,
		"data":      map[string]string{"name": "LED", "action": "on"},
	}, http.StatusCreated, &cmd)

	var pending []models.Command
	alice.expect(http.MethodGet, "/api/commands", nil, http.StatusOK, &pending)
	if len(pending) != 1 || pending[0].Data.Action != "on" {
		t.Fatalf("expected one pending command, got %+v", pending)
	}

	alice.expect(http.MethodDelete, fmt.Sprintf("/api/commands/%d", cmd.ID), nil, http.StatusNoContent, nil)

	alice.expect(http.MethodGet, "/api/commands", nil, http.StatusOK, &pending)
	if len(pending) != 0 {
		t.Fatalf("expected no pending commands, got %+v", pending)
	}
	var all []models.Command
	alice.expect(http.MethodGet, "/api/commands?all=1", nil, http.StatusOK, &all)
	if len(all) != 1 || !all[0].Executed {
		t.Fatalf("expected executed command in history, got %+v", all)
	}
}

func TestLinkFiresThroughAPI(t *testing.T) {
	h := newServer(t)
	alice := register(t, h, "alice", "")

	var button, lamp models.Device
	alice.expect(http.MethodPost, "/api/devices", map[string]any{
		"name": "button",
		"data": map[string]any{"components": []any{map[string]any{"name": "Button", "actions": []string{"pressed"}, "is_output": true}}},
	}, http.StatusCreated, &button)
	alice.expect(http.MethodPost, "/api/devices", map[string]any{
		"name": "lamp",
		"data": map[string]any{"components": []any{map[string]any{"name": "LED", "actions": []string{"on", "off"}}}},
	}, http.StatusCreated, &lamp)

	var link models.CommandsLink
	alice.expect(http.MethodPost, "/api/links", map[string]any{
		"owner_id": 999,
		"triggers": []any{map[string]any{"device_id": button.ID, "component_name": "Button", "action": "pressed", "satisfied_at": nil}},
		"results":  []any{map[string]any{"device_id": lamp.ID, "data": map[string]string{"name": "LED", "action": "on"}}},
		"ttl":      "00:00:10",
	}, http.StatusCreated, &link)
	if link.OwnerID == 999 || link.TTL == nil || link.TTL.String() != "00:00:10" {
		t.Fatalf("expected owner stamped and ttl round-tripped, got %+v", link)
	}

	alice.expect(http.MethodPost, "/api/commands", map[string]any{
		"device_id":    button.ID,
		"data":         map[string]string{"name": "Button", "action": "pressed"},
		"self_execute": true,
	}, http.StatusCreated, nil)

	var pending []models.Command
	alice.expect(http.MethodGet, "/api/commands", nil, http.StatusOK, &pending)
	if len(pending) != 1 || pending[0].DeviceID != lamp.ID || pending[0].Data.Action != "on" {
		t.Fatalf("expected the lamp command from the link, got %+v", pending)
	}
}

func TestDeviceAccountBasicAuth(t *testing.T) {
	h := newServer(t)
	alice := register(t, h, "alice", "")
	pico := register(t, h, "pico", "alice")

	var me models.User
	pico.expect(http.MethodGet, "/api/users/me", nil, http.StatusOK, &me)

	var dev models.Device
	alice.expect(http.MethodPost, "/api/devices", map[string]any{
		"name":       "pico",
		"account_id": me.ID,
		"data":       map[string]any{"components": []any{map[string]any{"name": "LED", "actions": []string{"on"}}}},
	}, http.StatusCreated, &dev)

	firmware := &client{t: t, handler: h, basic: [2]string{"pico", "pw"}}
	var cmd models.Command
	firmware.expect(http.MethodPost, "/api/commands", map[string]any{
		"data": map[string]string{"name": "LED", "action": "on"},
	}, http.StatusCreated, &cmd)
	if cmd.DeviceID != dev.ID {
		t.Fatalf("expected device inferred from account, got %+v", cmd)
	}

	var polled []models.Command
	firmware.expect(http.MethodGet, "/api/commands/poll?timeout=1", nil, http.StatusOK, &polled)
	if len(polled) != 1 {
		t.Fatalf("expected poll to return the command, got %+v", polled)
	}
}

func TestErrorMapping(t *testing.T) {
	h := newServer(t)
	anon := &client{t: t, handler: h}
	anon.expect(http.MethodGet, "/api/devices", nil, http.StatusUnauthorized, nil)
	anon.expect(http.MethodPost, "/api/auth/login", webModels.LoginRequest{Username: "x", Password: "y"}, http.StatusUnauthorized, nil)

	alice := register(t, h, "alice", "")
	var errResp webModels.ErrorResponse
	alice.expect(http.MethodGet, "/api/devices/12345", nil, http.StatusNotFound, &errResp)
	if errResp.Error != "not_found" {
		t.Fatalf("unexpected error body %+v", errResp)
	}
	alice.expect(http.MethodPost, "/api/commands", map[string]any{"data": map[string]string{"name": "LED"}}, http.StatusBadRequest, nil)
	alice.expect(http.MethodDelete, "/api/commands/77", nil, http.StatusNotFound, nil)
	alice.expect(http.MethodGet, "/api/devices/abc", nil, http.StatusBadRequest, nil)

	dup := &client{t: t, handler: h}
	dup.expect(http.MethodPost, "/api/auth/register", webModels.RegisterRequest{Username: "alice", Password: "pw"}, http.StatusConflict, nil)
}

func TestPollTimesOutEmpty(t *testing.T) {
	h := newServer(t)
	alice := register(t, h, "alice", "")

	start := time.Now()
	var polled []models.Command
	alice.expect(http.MethodGet, "/api/commands/poll?timeout=0.3", nil, http.StatusOK, &polled)
	if len(polled) != 0 {
		t.Fatalf("expected empty poll, got %+v", polled)
	}
	if time.Since(start) < 300*time.Millisecond {
		t.Fatal("poll returned before its timeout")
	}
}

func TestHealth(t *testing.T) {
	ws := NewWebServer(Dependencies{
		Auth:   auth.NewAuthModule(memstore.New(), "s", time.Hour),
		Health: func(context.Context) error { return fmt.Errorf("db down") },
	})
	w := httptest.NewRecorder()
	ws.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
