package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

const eventWriteTimeout = 5 * time.Second

// streamEvents relays every bus event to a websocket client until the
// client goes away.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		Error(w, http.StatusNotFound, "event stream disabled")
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		s.log.Warn("accept websocket", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	// Nothing is read from the client; CloseRead cancels ctx once it
	// disconnects.
	ctx := conn.CloseRead(r.Context())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := s.events.SubscribeAll(ctx)
	if err != nil {
		s.log.Warn("subscribe events", zap.Error(err))
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	s.log.Debug("event stream opened", zap.String("remote", r.RemoteAddr))

	for ev := range events {
		wctx, wcancel := context.WithTimeout(ctx, eventWriteTimeout)
		err := wsjson.Write(wctx, conn, ev)
		wcancel()
		if err != nil {
			s.log.Debug("event stream closed", zap.Error(err))
			cancel()
			// Drain so the subscription goroutines can exit.
			for range events {
			}
			return
		}
	}
	conn.Close(websocket.StatusNormalClosure, "")
}
