package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/phraser/location-server/internal/phrases"
	"github.com/phraser/location-server/internal/places"
)

// WSHandler streams phrase updates over a websocket: the client sends the
// same location pings as POST /geocode and receives the same response
// envelope per ping.
type WSHandler struct {
	resolver *places.Resolver
	orch     *phrases.Orchestrator
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(resolver *places.Resolver, orch *phrases.Orchestrator, log *logrus.Logger) *WSHandler {
	return &WSHandler{
		resolver: resolver,
		orch:     orch,
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteJSON(v)
}

func (h *WSHandler) LocationWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx := c.Request.Context()

	// clientId may come from the query; per-message values override it.
	defaultClientID := clientIdentifier(c, c.Query("clientId"))

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, rerr := conn.ReadMessage()
		if rerr != nil {
			return
		}
		// any inbound traffic counts as liveness, not just pongs
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var req GeocodeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			_ = wc.writeJSON(wsError{Type: "error", Code: "INVALID_ARGUMENT", Message: "invalid json"})
			continue
		}
		if req.Latitude == nil || req.Longitude == nil {
			_ = wc.writeJSON(wsError{Type: "error", Code: "INVALID_ARGUMENT", Message: "latitude and longitude required"})
			continue
		}
		if !validMode(req.Mode) {
			_ = wc.writeJSON(wsError{Type: "error", Code: "INVALID_ARGUMENT", Message: "mode must be one of new, append, refresh"})
			continue
		}

		clientID := defaultClientID
		if req.ClientID != "" {
			clientID = req.ClientID
		}

		place, err := h.resolver.Resolve(ctx, *req.Latitude, *req.Longitude)
		if err != nil {
			h.log.WithError(err).Warn("ws place resolution failed")
			_ = wc.writeJSON(wsError{Type: "error", Code: "UNAVAILABLE", Message: "place lookup failed"})
			continue
		}

		result, err := h.orch.Handle(ctx, clientID, place, req.Mode)
		if err != nil {
			h.log.WithError(err).Error("ws orchestration failed")
			_ = wc.writeJSON(wsError{Type: "error", Code: "INTERNAL", Message: "internal error"})
			continue
		}

		if err := wc.writeJSON(toGeocodeResponse(result)); err != nil {
			return
		}
	}
}
