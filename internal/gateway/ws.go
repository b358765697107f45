package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/terminal-bench/paygate/internal/checkout"
)

// WSClient is one websocket subscriber watching a session's quote status.
type WSClient struct {
	ID        uuid.UUID
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
	Done      chan struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamQuote upgrades the connection and pushes quote-validity frames for
// the session whenever an evaluation runs, so a client can watch a held quote
// expire without polling.
func (g *Gateway) streamQuote(c *gin.Context) {
	sessionID := c.Param("id")
	if _, ok := g.loadSession(c); !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := &WSClient{
		ID:        uuid.New(),
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan []byte, 8),
		Done:      make(chan struct{}),
	}

	g.wsMu.Lock()
	g.wsClients[client.ID] = client
	g.wsMu.Unlock()

	go g.wsReadPump(client)
	go g.wsWritePump(client)
}

func (g *Gateway) wsReadPump(client *WSClient) {
	defer func() {
		g.wsMu.Lock()
		delete(g.wsClients, client.ID)
		g.wsMu.Unlock()
		close(client.Done)
		client.Conn.Close()
	}()

	for {
		// Incoming frames are ignored; the stream is one-way.
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (g *Gateway) wsWritePump(client *WSClient) {
	// Closing the connection here unblocks the read pump, which owns the
	// deregistration.
	defer client.Conn.Close()

	for {
		select {
		case message := <-client.Send:
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-client.Done:
			return
		}
	}
}

// broadcastQuoteStatus pushes the session's current quote validity to every
// subscriber of that session.
func (g *Gateway) broadcastQuoteStatus(ctx checkout.Context, now time.Time) {
	validity := ctx.Quote.Check(now, ctx.CurrentRate)
	frame, err := json.Marshal(quoteStatus{
		SessionID:     ctx.SessionID,
		State:         ctx.Quote.State,
		Validity:      validity,
		RemainingHold: ctx.Quote.RemainingHold(now).Seconds(),
		CurrentRate:   ctx.CurrentRate.String(),
		At:            now,
	})
	if err != nil {
		return
	}

	g.wsMu.RLock()
	defer g.wsMu.RUnlock()

	for _, client := range g.wsClients {
		if client.SessionID != ctx.SessionID {
			continue
		}
		select {
		case client.Send <- frame:
		default:
			// Slow consumer; drop the frame rather than block the evaluation path.
		}
	}
}
