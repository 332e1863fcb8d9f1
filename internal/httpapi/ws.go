package httpapi

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/catalogops/syncboard/internal/syncstate"
)

const wsWriteTimeout = 5 * time.Second

// handleWebSocket streams store snapshots to a browser: the current state
// on connect, then one message per transition. The connection is write-only
// from our side; CloseRead tears the context down when the browser goes
// away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logf("websocket accept failed: %v", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	ctx := conn.CloseRead(r.Context())

	snapshots := make(chan syncstate.Snapshot, 16)
	cancel := s.store.Subscribe(func(snap syncstate.Snapshot) {
		select {
		case snapshots <- snap:
		default:
			// Slow reader misses an intermediate snapshot and catches
			// up on the next one.
		}
	})
	defer cancel()

	if err := writeSnapshot(ctx, conn, s.store.State()); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case snap := <-snapshots:
			if err := writeSnapshot(ctx, conn, snap); err != nil {
				return
			}
		}
	}
}

func writeSnapshot(ctx context.Context, conn *websocket.Conn, snap syncstate.Snapshot) error {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, snap)
}
