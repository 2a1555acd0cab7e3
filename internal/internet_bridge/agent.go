package internet_bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"homelink/internal/logging"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type Config struct {
	PublicWS       string // ws://host:port/agent
	LocalURL       string // http://localhost:5069
	ServerID       string
	RetryDelay     time.Duration
	RequestTimeout time.Duration
}

// Agent keeps a websocket open to the public relay and replays relayed
// requests against the local API
type Agent struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

func NewAgent(cfg Config) *Agent {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 150 * time.Second
	}
	return &Agent{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		log:    logging.Component("bridge"),
	}
}

// Start reconnects until ctx is cancelled
func (a *Agent) Start(ctx context.Context) {
	for {
		if err := a.run(ctx); err != nil {
			a.log.Warn().Err(err).Msg("agent disconnected, reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.cfg.RetryDelay):
		}
	}
}

func (a *Agent) run(ctx context.Context) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, a.cfg.PublicWS, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return ws.WriteJSON(v)
	}

	if err := write(registerMsg{Type: msgRegister, ID: a.cfg.ServerID}); err != nil {
		return err
	}
	a.log.Info().Str("server_id", a.cfg.ServerID).Str("relay", a.cfg.PublicWS).Msg("agent registered")

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return err
		}

		var req requestMsg
		if err := json.Unmarshal(msg, &req); err != nil || req.Type != msgRequest {
			continue
		}

		// long polls must not block other relayed requests
		go func() {
			resp := a.doLocalRequest(ctx, req)
			if err := write(resp); err != nil {
				a.log.Debug().Err(err).Str("req_id", req.ReqID).Msg("failed to send response")
			}
		}()
	}
}

func (a *Agent) doLocalRequest(ctx context.Context, req requestMsg) responseMsg {
	resp := responseMsg{Type: msgResponse, ReqID: req.ReqID}

	url := strings.TrimRight(a.cfg.LocalURL, "/") + req.Path
	if req.Query != "" {
		url += "?" + req.Query
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bytes.NewReader(req.Body))
	if err != nil {
		resp.Status = http.StatusBadRequest
		return resp
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	r, err := a.client.Do(httpReq)
	if err != nil {
		a.log.Warn().Err(err).Str("path", req.Path).Msg("local request failed")
		resp.Status = http.StatusBadGateway
		resp.Body, _ = json.Marshal(map[string]string{"error": "local request failed"})
		return resp
	}
	defer r.Body.Close()

	raw, _ := io.ReadAll(r.Body)
	resp.Status = r.StatusCode
	if json.Valid(raw) {
		resp.Body = raw
	}
	return resp
}
