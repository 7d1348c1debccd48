package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vbonduro/auctionhouse/internal/ledger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// feedEvent is the wire form of a projection change pushed to subscribers.
type feedEvent struct {
	Seq  uint64          `json:"seq"`
	Kind string          `json:"kind"`
	Time time.Time       `json:"time"`
	Data json.RawMessage `json:"data"`
}

type feedClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Feed broadcasts applied ledger events to every connected websocket. A
// client that cannot keep up is dropped rather than allowed to stall the
// broadcast loop.
type Feed struct {
	logger     *slog.Logger
	register   chan *feedClient
	unregister chan *feedClient
	broadcast  chan []byte
	clients    map[*feedClient]bool
	done       chan struct{}
}

func NewFeed(logger *slog.Logger) *Feed {
	return &Feed{
		logger:     logger,
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		broadcast:  make(chan []byte, 256),
		clients:    make(map[*feedClient]bool),
		done:       make(chan struct{}),
	}
}

// Publish queues an applied event for broadcast. Safe from the ingest
// goroutine; drops the event when the feed is saturated.
func (f *Feed) Publish(ev ledger.RawEvent) {
	payload, err := json.Marshal(feedEvent{
		Seq:  ev.Seq,
		Kind: string(ev.Kind),
		Time: ev.Time,
		Data: ev.Data,
	})
	if err != nil {
		f.logger.Error("failed to encode feed event", "seq", ev.Seq, "error", err)
		return
	}
	select {
	case f.broadcast <- payload:
	default:
		f.logger.Warn("feed saturated, dropping event", "seq", ev.Seq)
	}
}

// Run owns the client set until ctx is cancelled. On shutdown it closes
// done so pumps and late connects stop waiting on the hub.
func (f *Feed) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range f.clients {
				f.drop(client)
			}
			close(f.done)
			return
		case client := <-f.register:
			f.clients[client] = true
			f.logger.Info("feed client connected", "client", client.id)
		case client := <-f.unregister:
			if f.clients[client] {
				f.drop(client)
			}
		case payload := <-f.broadcast:
			for client := range f.clients {
				select {
				case client.send <- payload:
				default:
					f.drop(client)
				}
			}
		}
	}
}

func (f *Feed) drop(client *feedClient) {
	delete(f.clients, client)
	close(client.send)
	if err := client.conn.Close(); err != nil {
		f.logger.Debug("feed connection close", "client", client.id, "error", err)
	}
	f.logger.Info("feed client disconnected", "client", client.id)
}

func (f *Feed) handleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	client := &feedClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, 256),
	}
	select {
	case f.register <- client:
	case <-f.done:
		_ = conn.Close()
		return
	}
	go f.writePump(client)
	go f.readPump(client)
}

func (f *Feed) writePump(client *feedClient) {
	for payload := range client.send {
		if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			f.release(client)
			return
		}
	}
}

// readPump discards inbound frames; its job is noticing disconnects.
func (f *Feed) readPump(client *feedClient) {
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			f.release(client)
			return
		}
	}
}

// release hands the client back to the hub, or gives up if the hub has
// already shut down.
func (f *Feed) release(client *feedClient) {
	select {
	case f.unregister <- client:
	case <-f.done:
	}
}
