package conn_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DOIDFoundation/tmrpc/conn"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebsocketServer(t *testing.T, handle func(c *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); ok && (user != "alice" || pass != "secret") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		handle(c)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebsocketStreamEcho(t *testing.T) {
	url := newWebsocketServer(t, func(c *websocket.Conn) {
		for {
			typ, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(typ, data); err != nil {
				return
			}
		}
	})

	s, err := conn.WebsocketDialer(url, conn.DefaultConfig)(context.Background())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WritePing(time.Now().Add(time.Second)))
	require.NoError(t, s.WriteMessage([]byte(`{"jsonrpc":"2.0"}`), time.Now().Add(time.Second)))
	data, err := s.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0"}`, string(data))
}

func TestWebsocketStreamPeerClose(t *testing.T) {
	url := newWebsocketServer(t, func(c *websocket.Conn) {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye")
		c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	})

	s, err := conn.WebsocketDialer(url, conn.DefaultConfig)(context.Background())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ReadMessage()
	assert.ErrorIs(t, err, conn.ErrPeerClosed)
}

func TestWebsocketDialerCredentials(t *testing.T) {
	url := newWebsocketServer(t, func(c *websocket.Conn) {})

	withUser := strings.Replace(url, "ws://", "ws://alice:wrong@", 1)
	_, err := conn.WebsocketDialer(withUser, conn.DefaultConfig)(context.Background())
	assert.Error(t, err)

	withUser = strings.Replace(url, "ws://", "ws://alice:secret@", 1)
	s, err := conn.WebsocketDialer(withUser, conn.DefaultConfig)(context.Background())
	require.NoError(t, err)
	s.Close()
}
