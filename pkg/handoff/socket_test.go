package handoff

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketWindow_Handshake(t *testing.T) {
	result := make(chan State, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		win := NewSocketWindow(conn)
		defer func() { _ = win.Close() }()

		h := New(quietLogger(), opener(win), Options{Interval: 5 * time.Millisecond})
		result <- h.Run(r.Context(), "bin/crash", fetchOK([]byte{1, 2, 3}))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	defer func() { _ = conn.Close() }()

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var payload Message

	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		if string(data) == Ping {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(Pong)))

			continue
		}

		require.NoError(t, json.Unmarshal(data, &payload))

		break
	}

	assert.Equal(t, []byte{1, 2, 3}, payload.Perfetto.Buffer)
	assert.Equal(t, "Trace of bin/crash", payload.Perfetto.Title)
	assert.Equal(t, "trace.json.gz", payload.Perfetto.FileName)

	select {
	case s := <-result:
		assert.Equal(t, Done, s)
	case <-time.After(5 * time.Second):
		t.Fatal("handshake did not finish")
	}
}

func TestSocketWindow_ClosedByViewer(t *testing.T) {
	result := make(chan State, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}

		win := NewSocketWindow(conn)
		defer func() { _ = win.Close() }()

		h := New(quietLogger(), opener(win), Options{Interval: 5 * time.Millisecond})
		result <- h.Run(context.Background(), "bin/crash", fetchOK([]byte{1}))
	}))
	defer srv.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	require.NoError(t, conn.Close())

	select {
	case s := <-result:
		assert.Equal(t, Abandoned, s)
	case <-time.After(5 * time.Second):
		t.Fatal("handshake did not finish")
	}
}
