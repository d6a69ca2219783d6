package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// WSPublisher streams bus events as JSON text frames to a websocket endpoint,
// such as a live plot view.
type WSPublisher struct {
	url    string
	logger *slog.Logger
	unsub  func()

	conn *websocket.Conn // owned by writePump after NewWSPublisher returns
	send chan []byte
	done chan struct{}

	stopOnce sync.Once
}

// NewWSPublisher dials url and starts the write pump.
func NewWSPublisher(ctx context.Context, url string, logger *slog.Logger) (*WSPublisher, error) {
	p := &WSPublisher{
		url:    url,
		logger: logger.With("component", "ws"),
		send:   make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	conn, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	p.conn = conn
	go p.writePump()
	return p, nil
}

// Attach subscribes the publisher to every event on bus.
func (p *WSPublisher) Attach(bus *Bus) {
	p.unsub = bus.OnAll(p.Publish)
}

// Publish queues event for sending. Events are dropped while the queue is full.
func (p *WSPublisher) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("ws marshal", "err", err)
		return
	}
	select {
	case p.send <- data:
	default:
		p.logger.Warn("ws send queue full, dropping event", "type", event.Type)
	}
}

// Stop flushes queued events and closes the connection. Safe to call multiple times.
func (p *WSPublisher) Stop() {
	p.stopOnce.Do(func() {
		if p.unsub != nil {
			p.unsub()
		}
		close(p.send)
		<-p.done
	})
}

func (p *WSPublisher) dial(ctx context.Context) (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial %s: %w", p.url, err)
	}
	// Nothing is read from the peer; CloseRead keeps control frames flowing.
	conn.CloseRead(context.Background())
	return conn, nil
}

func (p *WSPublisher) writePump() {
	defer close(p.done)
	for msg := range p.send {
		if err := p.write(msg); err == nil {
			continue
		}
		// One redial per failed message, then give up on that message.
		p.conn.Close(websocket.StatusGoingAway, "write failed")
		conn, err := p.dial(context.Background())
		if err != nil {
			p.logger.Warn("ws redial failed, dropping event", "err", err)
			continue
		}
		p.conn = conn
		if err := p.write(msg); err != nil {
			p.logger.Warn("ws write failed, dropping event", "err", err)
		}
	}
	// Channel closed by Stop; close connection.
	p.conn.Close(websocket.StatusNormalClosure, "")
}

func (p *WSPublisher) write(msg []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return p.conn.Write(ctx, websocket.MessageText, msg)
}
