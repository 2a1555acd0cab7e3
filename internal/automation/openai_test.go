package automation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"homelink/internal/config"
	"homelink/internal/models"

	"github.com/sashabaranov/go-openai"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 3 {
			t.Errorf("unexpected request %+v", req)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
			t.Errorf("expected json_object response format, got %+v", req.ResponseFormat)
		}
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte("rate limited"))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient(url string) *Client {
	return NewClient(config.LLMConfig{BaseURL: url + "/", APIKey: "key", Model: "test-model"})
}

func TestClientGenerate(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"text":"turning it on","commands":[{"device_id":3,"data":{"name":"LED","action":"on"},"repeat_interval":"00:10:00"}]}`)

	gen, err := testClient(srv.URL).Generate(context.Background(), "light please", nil)
	if err != nil {
		t.Fatal(err)
	}
	if gen.Text != "turning it on" || len(gen.Commands) != 1 {
		t.Fatalf("unexpected generation %+v", gen)
	}
	if gen.Commands[0].RepeatInterval == nil || gen.Commands[0].RepeatInterval.Minutes() != 10 {
		t.Fatalf("unexpected repeat interval %v", gen.Commands[0].RepeatInterval)
	}
}

func TestClientUpstreamErrors(t *testing.T) {
	cases := map[string]*httptest.Server{
		"bad status": chatServer(t, http.StatusTooManyRequests, ""),
		"not json":   chatServer(t, http.StatusOK, "sure, here you go"),
		"no choices": emptyChatServer(t),
	}
	for name, srv := range cases {
		if _, err := testClient(srv.URL).Generate(context.Background(), "x", nil); !errors.Is(err, models.ErrUpstreamGeneration) {
			t.Errorf("%s: expected upstream error, got %v", name, err)
		}
	}
}

func TestClientSuggestLinks(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"links":[{"triggers":[{"device_id":1,"component_name":"Door","action":"opened","satisfied_at":null}],"results":[{"device_id":2,"data":{"name":"LED","action":"on"}}],"ttl":"00:00:30"}]}`)

	links, err := testClient(srv.URL).SuggestLinks(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 || links[0].TTL == nil || links[0].TTL.Seconds() != 30 {
		t.Fatalf("unexpected links %+v", links)
	}
}

func emptyChatServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}
