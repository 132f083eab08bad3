package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/b3hniya/tenderd-fms-sub000/internal/events"
	"github.com/b3hniya/tenderd-fms-sub000/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// LiveFeed bridges the Redis broadcast channels to websocket clients.
// Each connection gets its own subscription; a slow client only stalls
// itself.
type LiveFeed struct {
	live     *store.LiveState
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewLiveFeed(live *store.LiveState, logger *zap.Logger) *LiveFeed {
	return &LiveFeed{
		live:   live,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (f *LiveFeed) Serve(c *gin.Context) {
	conn, err := f.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := f.live.Subscribe(c.Request.Context(), events.ChannelTelemetry, events.ChannelStatus)
	defer sub.Close()

	// Reader only consumes control frames; any error means the client left.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	msgs := sub.Channel()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
