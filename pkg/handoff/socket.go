package handoff

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const socketWriteTimeout = 10 * time.Second

// SocketWindow is a Window backed by a websocket connection to the
// viewer. Text frames are delivered as strings, protocol strings are sent
// as text frames and everything else as JSON.
type SocketWindow struct {
	conn *websocket.Conn
	msgs chan any
	done chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

var _ Window = (*SocketWindow)(nil)

// NewSocketWindow starts reading from conn.
func NewSocketWindow(conn *websocket.Conn) *SocketWindow {
	w := &SocketWindow{
		conn: conn,
		msgs: make(chan any, 16),
		done: make(chan struct{}),
	}

	go w.read()

	return w
}

func (w *SocketWindow) read() {
	defer close(w.msgs)

	for {
		typ, data, err := w.conn.ReadMessage()
		if err != nil {
			return
		}

		if typ != websocket.TextMessage {
			continue
		}

		select {
		case w.msgs <- string(data):
		case <-w.done:
			return
		}
	}
}

// Post implements Window.
func (w *SocketWindow) Post(ctx context.Context, msg any) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	deadline := time.Now().Add(socketWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}

	var err error
	if s, ok := msg.(string); ok {
		err = w.conn.WriteMessage(websocket.TextMessage, []byte(s))
	} else {
		err = w.conn.WriteJSON(msg)
	}

	if err != nil {
		return fmt.Errorf("posting to window: %w", err)
	}

	return nil
}

// Messages implements Window.
func (w *SocketWindow) Messages() <-chan any {
	return w.msgs
}

// Close sends a close frame and releases the connection.
func (w *SocketWindow) Close() error {
	var err error

	w.closeOnce.Do(func() {
		close(w.done)

		w.writeMu.Lock()
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		w.writeMu.Unlock()

		err = w.conn.Close()
	})

	return err
}
