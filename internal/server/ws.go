package server

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// handleWS streams bus events to a connected view over WebSocket, so a
// write made through one view is observed by every other without polling.
// The subscription is released when the connection goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	events, release := s.bus.Subscribe(16)
	defer release()

	// Reads are discarded; the socket is one-way. The read loop exists to
	// notice the peer closing.
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(readCtx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-readCtx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case evt, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "")
				return
			}
			if err := wsjson.Write(ctx, conn, evt); err != nil {
				return
			}
		}
	}
}
