// Package websocket exposes the broadcast bus to browser scoreboards over
// WebSocket connections.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/okian/scorecast/internal/domain/model"
	"github.com/okian/scorecast/pkg/metrics"
)

// Display is one connected scoreboard. It implements broadcast.Subscriber.
type Display struct {
	id   string
	conn *websocket.Conn

	clock        clockwork.Clock
	writeTimeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func newDisplay(conn *websocket.Conn, clock clockwork.Clock, writeTimeout time.Duration) *Display {
	return &Display{
		id:           uuid.NewString(),
		conn:         conn,
		clock:        clock,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

// ID returns the session id assigned at connect.
func (d *Display) ID() string { return d.id }

// Receive writes e to the browser as one JSON text frame. On a closed
// display it does nothing.
func (d *Display) Receive(_ context.Context, e model.UpdateEvent) error { //nolint:gocritic // hugeParam: events are immutable values
	if d.closed() {
		return nil
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}

	_ = d.conn.SetWriteDeadline(d.clock.Now().Add(d.writeTimeout))
	if err := d.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		if d.closed() {
			return nil
		}
		d.close()
		return fmt.Errorf("%w: session %s: %w", ErrWrite, d.id, err)
	}
	return nil
}

// Done is closed once the display is torn down.
func (d *Display) Done() <-chan struct{} { return d.done }

func (d *Display) closed() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

func (d *Display) close() {
	d.closeOnce.Do(func() {
		close(d.done)
		_ = d.conn.Close()
	})
}

// readLoop discards inbound frames and returns when the peer goes away or
// stops answering pings.
func (d *Display) readLoop(pongWait time.Duration) {
	d.conn.SetReadLimit(maxInboundMessage)
	_ = d.conn.SetReadDeadline(d.clock.Now().Add(pongWait))
	d.conn.SetPongHandler(func(string) error {
		return d.conn.SetReadDeadline(d.clock.Now().Add(pongWait))
	})

	for {
		if _, _, err := d.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// pingLoop pings the browser every interval until the display closes.
func (d *Display) pingLoop(interval time.Duration) {
	ticker := d.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			deadline := d.clock.Now().Add(d.writeTimeout)
			if err := d.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				metrics.RecordWebSocketPingFailure()
				d.close()
				return
			}
		case <-d.done:
			return
		}
	}
}
