package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/BenjDW/maitre-slither/core/events"
)

const wsWriteTimeout = 10 * time.Second

// handleEventsWS streams committed settlement events as JSON text frames. The
// optional cursor query parameter replays the retained backlog after that
// sequence number before the live feed takes over.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	cursor, err := parseEventCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		http.Error(w, "invalid cursor", http.StatusBadRequest)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	ctx := r.Context()
	entries, cancel, backlog := s.node.SubscribeEvents(cursor)
	defer cancel()

	for i := range backlog {
		if err := writeEventEntry(ctx, conn, backlog[i]); err != nil {
			closeOnStreamError(conn, err)
			return
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-entries:
			if !ok {
				return
			}
			if err := writeEventEntry(ctx, conn, entry); err != nil {
				closeOnStreamError(conn, err)
				return
			}
		}
	}
}

func writeEventEntry(ctx context.Context, conn *websocket.Conn, entry events.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	writeCtx, cancelWrite := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancelWrite()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func closeOnStreamError(conn *websocket.Conn, err error) {
	if websocket.CloseStatus(err) == -1 {
		conn.Close(websocket.StatusInternalError, "stream failure")
	}
}

func parseEventCursor(raw string) (uint64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	return strconv.ParseUint(trimmed, 10, 64)
}
