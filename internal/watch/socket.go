package watch

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"media-relay/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// StatusReader returns the current snapshot of a session.
type StatusReader interface {
	GetStatus(id session.ID) (session.Snapshot, error)
}

// SocketHandler streams session snapshots over websocket connections.
type SocketHandler struct {
	hub      *Hub
	status   StatusReader
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewSocketHandler returns a SocketHandler. Origins are not checked.
func NewSocketHandler(hub *Hub, status StatusReader, log *slog.Logger) *SocketHandler {
	return &SocketHandler{
		hub:    hub,
		status: status,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Watch handles GET /sessions/{session_id}/ws. The client first receives the
// current snapshot, if the session exists, then one message per update.
// Messages sent by the client are discarded.
func (h *SocketHandler) Watch(w http.ResponseWriter, r *http.Request) {
	id := session.ID(chi.URLParam(r, "session_id"))
	clientID := uuid.NewString()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		h.log.Warn("websocket upgrade failed", slog.String("session_id", string(id)), slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	log := h.log.With(slog.String("session_id", string(id)), slog.String("client_id", clientID))
	log.Info("watcher connected")
	defer log.Info("watcher disconnected")

	// Subscribe before reading the current state so no update falls between.
	sub := h.hub.Subscribe(id)
	defer sub.Close()

	var sent uint64
	if snap, err := h.status.GetStatus(id); err == nil {
		if err := writeSnapshot(conn, snap); err != nil {
			return
		}
		sent = snap.Version
	} else if !errors.Is(err, session.ErrUnknownSession) {
		log.Error("read session failed", slog.String("error", err.Error()))
		return
	}

	closed := make(chan struct{})
	go readPump(conn, closed)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case snap, ok := <-sub.C():
			if !ok {
				return
			}
			if snap.Version <= sent {
				continue
			}
			if err := writeSnapshot(conn, snap); err != nil {
				log.Debug("websocket write failed", slog.String("error", err.Error()))
				return
			}
			sent = snap.Version
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap session.Snapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(snap)
}

// readPump drains client frames so control messages are processed, and
// closes done when the connection goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
