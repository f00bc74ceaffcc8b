package web

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clayshell/clayshell/internal/overlay"
	"github.com/clayshell/clayshell/internal/session"
)

// wsRequest is one boundary call from the UI.
type wsRequest struct {
	Op     string          `json:"op"`
	Seq    int64           `json:"seq"`
	ID     string          `json:"id,omitempty"`
	Dir    string          `json:"dir,omitempty"`
	Resume bool            `json:"resume,omitempty"`
	Data   string          `json:"data,omitempty"` // base64
	Cols   int             `json:"cols,omitempty"`
	Rows   int             `json:"rows,omitempty"`
	State  json.RawMessage `json:"state,omitempty"`
}

// wsResponse is a call result or a push signal.
type wsResponse struct {
	Type    string           `json:"type"` // result, output, hotReloadStyle, requestSaveState, forceReload
	Seq     int64            `json:"seq,omitempty"`
	OK      bool             `json:"ok"`
	Code    string           `json:"code,omitempty"`
	Message string           `json:"message,omitempty"`
	ID      string           `json:"id,omitempty"`
	Data    string           `json:"data,omitempty"` // base64
	Active  bool             `json:"active,omitempty"`
	State   json.RawMessage  `json:"state,omitempty"`
	Path    string           `json:"path,omitempty"`
	Plugins *overlay.Plugins `json:"plugins,omitempty"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     allowWSOrigin,
}

func allowWSOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return false
	}
	return strings.EqualFold(originURL.Host, r.Host)
}

// wsClient serializes writes to one connection.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(msg wsResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(msg)
}

func (s *Server) addClient(c *wsClient) {
	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()
}

func (s *Server) removeClient(c *wsClient) {
	s.clientsMu.Lock()
	delete(s.clients, c)
	s.clientsMu.Unlock()
}

// broadcast pushes a signal to every connected client, dropping clients
// whose writes fail.
func (s *Server) broadcast(msg wsResponse) {
	s.clientsMu.Lock()
	targets := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.clientsMu.Unlock()

	for _, c := range targets {
		if err := c.send(msg); err != nil {
			s.removeClient(c)
			_ = c.conn.Close()
		}
	}
}

// Output pushes session output bytes. Implements host.UI.
func (s *Server) Output(id string, data []byte) {
	s.broadcast(wsResponse{Type: "output", OK: true, ID: id, Data: base64.StdEncoding.EncodeToString(data)})
}

// HotReloadStyle tells the UI to hot-swap its style resource in place.
func (s *Server) HotReloadStyle() {
	s.broadcast(wsResponse{Type: "hotReloadStyle", OK: true})
}

// RequestSaveState asks the UI to persist its snapshot.
func (s *Server) RequestSaveState() {
	s.broadcast(wsResponse{Type: "requestSaveState", OK: true})
}

// ForceReload tells the UI to reload, bypassing caches.
func (s *Server) ForceReload() {
	s.broadcast(wsResponse{Type: "forceReload", OK: true})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &wsClient{conn: conn}
	s.addClient(client)
	defer func() {
		s.removeClient(client)
		_ = conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				webLog.Warn("websocket_closed_unexpectedly", slog.String("error", err.Error()))
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			_ = client.send(wsResponse{Type: "result", Code: "INVALID_MESSAGE", Message: "invalid json payload"})
			continue
		}
		client.sendResult(s.dispatch(r, req))
	}
}

func (c *wsClient) sendResult(resp wsResponse) {
	resp.Type = "result"
	_ = c.send(resp)
}

// dispatch executes one boundary call and shapes the result.
func (s *Server) dispatch(r *http.Request, req wsRequest) wsResponse {
	h := s.cfg.Host
	resp := wsResponse{Seq: req.Seq, OK: true}

	switch req.Op {
	case "ping":

	case "create":
		if err := h.CreateSession(req.ID, req.Dir, req.Resume); err != nil {
			resp.OK = false
			resp.Message = err.Error()
			if errors.Is(err, session.ErrDuplicateSession) {
				resp.Code = "DUPLICATE_SESSION"
			} else {
				resp.Code = "SPAWN_FAILED"
			}
			break
		}
		resp.ID = req.ID

	case "sendInput":
		data, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			resp.OK = false
			resp.Code = "INVALID_INPUT"
			break
		}
		h.SendInput(req.ID, data)

	case "resize":
		h.Resize(req.ID, req.Cols, req.Rows)

	case "destroy":
		h.DestroySession(req.ID)

	case "isActive":
		resp.Active = h.IsActive(req.ID)

	case "saveState":
		if !h.SaveState(req.State) {
			resp.OK = false
			resp.Code = "STATE_SAVE_FAILED"
		}

	case "loadState":
		if snapshot, ok := h.LoadState(); ok {
			resp.State = snapshot
		}

	case "pickDirectory":
		if path, ok := h.PickDirectory(r.Context()); ok {
			resp.Path = path
		}

	case "listPlugins":
		plugins := h.ListPlugins()
		resp.Plugins = &plugins

	case "resetEditableSource":
		if !h.ResetEditableSource() {
			resp.OK = false
			resp.Code = "RESET_FAILED"
		}

	case "resetGuidance":
		if !h.ResetGuidance() {
			resp.OK = false
			resp.Code = "RESET_FAILED"
		}

	case "nukeOverlay":
		if !h.NukeOverlay() {
			resp.OK = false
			resp.Code = "RESET_FAILED"
		}

	default:
		resp.OK = false
		resp.Code = "UNSUPPORTED_OP"
		resp.Message = "unknown op: " + req.Op
	}
	return resp
}
