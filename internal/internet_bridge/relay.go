package internet_bridge

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"homelink/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type agentConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (a *agentConn) send(v any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ws.WriteJSON(v)
}

// Relay is the public side: agents dial in over websocket and client requests
// are forwarded to the agent named by X-Server-ID
type Relay struct {
	agentsMu sync.Mutex
	agents   map[string]*agentConn

	pendingMu sync.Mutex
	pending   map[string]chan responseMsg

	timeout  time.Duration
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewRelay(timeout time.Duration) *Relay {
	if timeout <= 0 {
		timeout = 150 * time.Second
	}
	return &Relay{
		agents:   map[string]*agentConn{},
		pending:  map[string]chan responseMsg{},
		timeout:  timeout,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:      logging.Component("relay"),
	}
}

// Handler routes /agent to the websocket endpoint and everything else to agents
func (rl *Relay) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/agent", rl.handleAgentWS)
	r.NoRoute(rl.handleClientRequest)
	return r
}

// Online reports whether an agent is connected
func (rl *Relay) Online(id string) bool {
	rl.agentsMu.Lock()
	defer rl.agentsMu.Unlock()
	_, ok := rl.agents[id]
	return ok
}

func (rl *Relay) handleAgentWS(c *gin.Context) {
	ws, err := rl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	conn := &agentConn{ws: ws}
	var agentID string
	defer func() {
		if agentID == "" {
			return
		}
		rl.agentsMu.Lock()
		if rl.agents[agentID] == conn {
			delete(rl.agents, agentID)
		}
		rl.agentsMu.Unlock()
		rl.log.Info().Str("agent_id", agentID).Msg("agent disconnected")
	}()

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			continue
		}

		switch env.Type {
		case msgRegister:
			var reg registerMsg
			if err := json.Unmarshal(msg, &reg); err != nil || reg.ID == "" {
				continue
			}
			agentID = reg.ID
			rl.agentsMu.Lock()
			rl.agents[agentID] = conn
			rl.agentsMu.Unlock()
			rl.log.Info().Str("agent_id", agentID).Msg("agent registered")

		case msgResponse:
			var resp responseMsg
			if err := json.Unmarshal(msg, &resp); err != nil {
				continue
			}
			rl.pendingMu.Lock()
			ch, ok := rl.pending[resp.ReqID]
			delete(rl.pending, resp.ReqID)
			rl.pendingMu.Unlock()
			if ok {
				ch <- resp
			}
		}
	}
}

func (rl *Relay) handleClientRequest(c *gin.Context) {
	agentID := c.GetHeader(ServerIDHeader)
	if agentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + ServerIDHeader})
		return
	}

	rl.agentsMu.Lock()
	agent, ok := rl.agents[agentID]
	rl.agentsMu.Unlock()
	if !ok {
		c.JSON(http.StatusBadGateway, gin.H{"error": "agent offline"})
		return
	}

	body, _ := io.ReadAll(c.Request.Body)
	headers := make(map[string]string)
	for _, h := range forwardedHeaders {
		if v := c.GetHeader(h); v != "" {
			headers[h] = v
		}
	}

	req := requestMsg{
		Type:    msgRequest,
		ReqID:   uuid.NewString(),
		Method:  c.Request.Method,
		Path:    c.Request.URL.Path,
		Query:   c.Request.URL.RawQuery,
		Headers: headers,
	}
	if json.Valid(body) {
		req.Body = body
	}

	respChan := make(chan responseMsg, 1)
	rl.pendingMu.Lock()
	rl.pending[req.ReqID] = respChan
	rl.pendingMu.Unlock()
	defer func() {
		rl.pendingMu.Lock()
		delete(rl.pending, req.ReqID)
		rl.pendingMu.Unlock()
	}()

	if err := agent.send(req); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "agent unreachable"})
		return
	}

	timer := time.NewTimer(rl.timeout)
	defer timer.Stop()
	select {
	case resp := <-respChan:
		if len(resp.Body) == 0 {
			c.Status(resp.Status)
			return
		}
		c.Data(resp.Status, "application/json", resp.Body)
	case <-timer.C:
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "timeout"})
	case <-c.Request.Context().Done():
	}
}
