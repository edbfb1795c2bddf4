// Package web is the observability layer: a websocket Hub that broadcasts
// rptnode/linkset state to connected dashboards, adapted from the
// teacher's AMI-polling Hub (internal/web/ws.go) into a push layer fed
// directly by the controller loop instead of periodic AMI scrapes.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

type messageEnvelope struct {
	MessageType string `json:"messageType"`
	Data        any    `json:"data,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

type clientInfo struct {
	isAdmin bool
}

// StatusSource supplies the initial snapshot sent to a newly connected
// client, mirroring the teacher's StateManager but backed by rptnode.Node
// and linkset.Set instead of AMI-derived state.
type StatusSource interface {
	NodeSnapshot() NodeView
	LinkSnapshot() []LinkView
}

// Hub manages websocket clients and fans out state changes to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]clientInfo
	logger  *zap.SugaredLogger
}

// NewHub builds an empty Hub. logger may be nil, in which case log calls
// are no-ops.
func NewHub(logger *zap.SugaredLogger) *Hub {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Hub{clients: map[*websocket.Conn]clientInfo{}, logger: logger}
}

// ClientCount reports how many websocket clients are presently connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades the request and registers a client, sending it an
// initial STATUS_UPDATE and LINK_SNAPSHOT before handing off to the
// broadcast loops. authValidator may be nil, in which case all connections
// are accepted as non-admin.
func (h *Hub) HandleWS(src StatusSource, authValidator func(r *http.Request) (allowed bool, isAdmin bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowed, isAdmin := true, false
		if authValidator != nil {
			allowed, isAdmin = authValidator(r)
		}
		if !allowed {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			http.Error(w, "websocket_accept_failed", http.StatusInternalServerError)
			return
		}
		h.mu.Lock()
		h.clients[c] = clientInfo{isAdmin: isAdmin}
		count := len(h.clients)
		h.mu.Unlock()
		h.logger.Infow("ws client connected", "total", count, "admin", isAdmin)

		go func() {
			defer func() {
				h.mu.Lock()
				delete(h.clients, c)
				h.mu.Unlock()
				c.Close(websocket.StatusNormalClosure, "")
			}()
			for {
				if _, _, err := c.Read(context.Background()); err != nil {
					return
				}
			}
		}()

		h.sendEnvelope(c, "STATUS_UPDATE", src.NodeSnapshot())
		links := src.LinkSnapshot()
		if !isAdmin {
			links = maskLinkIPs(links)
		}
		h.sendEnvelope(c, "LINK_SNAPSHOT", links)
	}
}

func (h *Hub) sendEnvelope(c *websocket.Conn, msgType string, data any) {
	env := messageEnvelope{MessageType: msgType, Data: data, Timestamp: time.Now().UnixMilli()}
	b, err := json.Marshal(env)
	if err != nil {
		h.logger.Errorw("marshal failed", "type", msgType, "err", err)
		return
	}
	if err := c.Write(context.Background(), websocket.MessageText, b); err != nil {
		h.logger.Warnw("write failed", "type", msgType, "err", err)
	}
}

func (h *Hub) broadcast(msgType string, adminData, maskedData any) {
	adminEnv := messageEnvelope{MessageType: msgType, Data: adminData, Timestamp: time.Now().UnixMilli()}
	adminPayload, _ := json.Marshal(adminEnv)
	maskedEnv := messageEnvelope{MessageType: msgType, Data: maskedData, Timestamp: time.Now().UnixMilli()}
	maskedPayload, _ := json.Marshal(maskedEnv)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c, info := range h.clients {
		payload := maskedPayload
		if info.isAdmin {
			payload = adminPayload
		}
		go func(conn *websocket.Conn, p []byte) {
			_ = conn.Write(context.Background(), websocket.MessageText, p)
		}(c, payload)
	}
}

func (h *Hub) broadcastUnmasked(msgType string, data any) {
	h.broadcast(msgType, data, data)
}

// StatusLoop fans out node state changes as STATUS_UPDATE messages.
func (h *Hub) StatusLoop(updates <-chan NodeView) {
	for v := range updates {
		h.broadcastUnmasked("STATUS_UPDATE", v)
	}
}

// LinkAddedLoop fans out newly connected links as LINK_ADDED messages,
// masking IPs for non-admin clients.
func (h *Hub) LinkAddedLoop(updates <-chan LinkView) {
	for v := range updates {
		masked := v
		masked.IP = maskIP(masked.IP)
		h.broadcast("LINK_ADDED", v, masked)
	}
}

// LinkRemovedLoop fans out link disconnects as LINK_REMOVED messages.
func (h *Hub) LinkRemovedLoop(names <-chan string) {
	for name := range names {
		h.broadcastUnmasked("LINK_REMOVED", name)
	}
}

// TxEventLoop fans out TX session edges from a rptnode.KeyingTracker as
// SOURCE_NODE_KEYING_EVENT messages.
func (h *Hub) TxEventLoop(events <-chan TxEvent) {
	for evt := range events {
		h.broadcastUnmasked("SOURCE_NODE_KEYING_EVENT", evt)
	}
}

// TelemetryLoop fans out queued telemetry announcements as TELEMETRY
// messages, useful for a dashboard "now playing" indicator.
func (h *Hub) TelemetryLoop(items <-chan TelemetryView) {
	for item := range items {
		h.broadcastUnmasked("TELEMETRY", item)
	}
}

// HeartbeatLoop periodically re-sends the current snapshot so a client
// that missed edge events (or just reconnected) stays in sync.
func (h *Hub) HeartbeatLoop(src StatusSource, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		links := src.LinkSnapshot()
		h.broadcast("LINK_SNAPSHOT", links, maskLinkIPs(links))
		h.broadcastUnmasked("STATUS_UPDATE", src.NodeSnapshot())
	}
}

// maskIP masks the last two octets of an IPv4 address for non-admin
// viewers; non-IPv4 strings (including "") are left untouched.
func maskIP(ip string) string {
	if ip == "" {
		return ip
	}
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return ip
	}
	return parts[0] + "." + parts[1] + ".*.*"
}

func maskLinkIPs(links []LinkView) []LinkView {
	masked := make([]LinkView, len(links))
	copy(masked, links)
	for i := range masked {
		masked[i].IP = maskIP(masked[i].IP)
	}
	return masked
}
