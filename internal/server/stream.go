// internal/server/stream.go
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/monofi/monofid/internal/events"
)

// streamedTypes are the event types pushed to dashboard WebSocket clients.
var streamedTypes = []events.EventType{
	events.AllocationsRefreshed,
	events.SubmissionBroadcast,
	events.SubmissionConfirmed,
	events.SubmissionFailed,
	events.PriceUpdated,
	events.WhaleDetected,
}

const (
	streamBuffer = 32
	writeTimeout = 5 * time.Second
)

type streamMessage struct {
	Type      events.EventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Data      events.Event     `json:"data"`
}

// handleEventStream upgrades the connection and forwards bus events as JSON
// text frames until the client goes away.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Event stream is not configured")
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	logger := s.logger.With(zap.String("remote", conn.RemoteAddr().String()))
	logger.Debug("Event stream client connected")

	// Slow clients drop frames instead of stalling the bus.
	frames := make(chan []byte, streamBuffer)
	subs := make([]events.Subscription, 0, len(streamedTypes))
	for _, eventType := range streamedTypes {
		subs = append(subs, s.bus.SubscribeFunc(eventType, func(_ context.Context, e events.Event) error {
			payload, err := json.Marshal(streamMessage{
				Type:      e.Type(),
				Timestamp: e.Timestamp(),
				Data:      e,
			})
			if err != nil {
				return err
			}
			select {
			case frames <- payload:
			default:
				logger.Debug("Dropping frame for slow client")
			}
			return nil
		}))
	}

	done := make(chan struct{})

	// Reads are discarded; a read error means the client disconnected.
	go func() {
		defer close(done)
		for {
			if _, err := wsutil.ReadClientMessage(conn, nil); err != nil {
				return
			}
		}
	}()

	go func() {
		defer func() {
			for _, sub := range subs {
				sub.Unsubscribe()
			}
			_ = conn.Close()
			logger.Debug("Event stream client disconnected")
		}()

		for {
			select {
			case payload := <-frames:
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := wsutil.WriteServerMessage(conn, ws.OpText, payload); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
}
