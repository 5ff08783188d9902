package marketfeed

import (
	"net/http"
	"time"

	"github.com/Jainex17/CoinPlay/internal/ledger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Relay streams a symbol's trade events to websocket clients.
type Relay struct {
	subscriber Subscriber
	upgrader   websocket.Upgrader
	log        logrus.FieldLogger
}

// NewRelay creates a relay. Connections are accepted only from the given
// origins; an empty list accepts any origin.
func NewRelay(subscriber Subscriber, allowedOrigins []string, log logrus.FieldLogger) *Relay {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return &Relay{
		subscriber: subscriber,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

func (r *Relay) ServeFeed(c *gin.Context) {
	symbol, ok := ledger.ParseSymbol(c.Param("symbol"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol"})
		return
	}

	sub, err := r.subscriber.Subscribe(c.Request.Context(), symbol)
	if err != nil {
		r.log.WithError(err).WithField("symbol", symbol).Error("Failed to subscribe to market feed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market feed unavailable"})
		return
	}

	conn, err := r.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Close()
		r.log.WithError(err).Debug("WebSocket upgrade failed")
		return
	}

	closed := make(chan struct{})
	go r.readPump(conn, closed)
	r.writePump(conn, sub, closed)
}

// readPump discards client frames and reports when the peer goes away.
func (r *Relay) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				r.log.WithError(err).Debug("WebSocket closed unexpectedly")
			}
			return
		}
	}
}

func (r *Relay) writePump(conn *websocket.Conn, sub Subscription, closed <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		conn.Close()
	}()

	for {
		select {
		case <-closed:
			return
		case message, ok := <-sub.Messages():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (r *Relay) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/feed/:symbol", r.ServeFeed)
}
