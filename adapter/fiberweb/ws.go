package fiberweb

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gopanel/gopanel/auth"
	"github.com/gopanel/gopanel/logstore"
)

// LogStream pushes newly appended log entries to websocket clients, for
// a live activity view.
type LogStream struct {
	broadcaster *logstore.Broadcaster
	secret      string
	log         *zap.Logger
}

func NewLogStream(b *logstore.Broadcaster, secret string, log *zap.Logger) *LogStream {
	return &LogStream{broadcaster: b, secret: secret, log: log}
}

// UpgradeMiddleware rejects plain HTTP requests on the websocket route.
func UpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Handle serves one websocket client. The session token arrives as a
// query parameter since browsers cannot set headers on websocket dials.
func (s *LogStream) Handle(conn *websocket.Conn) {
	defer conn.Close()

	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		return
	}
	if _, err := auth.ParseToken(s.secret, tokenStr); err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		return
	}

	entries, cancel := s.broadcaster.Subscribe()
	defer cancel()

	// Read loop only to notice the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case e, ok := <-entries:
			if !ok {
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				s.log.Debug("log stream write failed", zap.Error(err))
				return
			}
		}
	}
}
