package streaming

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// echoServer returns a test server that echoes WebSocket messages back.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestConn_ConnectAndSendReceive(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx))
	defer c.Close()
	assert.True(t, c.IsConnected())

	require.NoError(t, c.Send(map[string]string{"hello": "world"}))

	data, err := c.Receive(ctx)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "world", got["hello"])
}

func TestConn_ReceivePreservesOrder(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	for _, m := range []string{`"a"`, `"b"`, `"c"`} {
		require.NoError(t, c.SendRaw([]byte(m)))
	}
	for _, want := range []string{`"a"`, `"b"`, `"c"`} {
		data, err := c.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}
}

func TestConn_ConnectTwiceIsNoop(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()
	require.NoError(t, c.Connect(context.Background()))
}

func TestConn_ConnectWithRetry_Success(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv), MaxRetries: 2, RetryBackoffBase: 10 * time.Millisecond})
	require.NoError(t, c.ConnectWithRetry(context.Background()))
	defer c.Close()
	assert.True(t, c.IsConnected())
}

func TestConn_ConnectWithRetry_Failure(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewConn(&ConnConfig{
		URL:              wsURL(srv),
		MaxRetries:       3,
		RetryBackoffBase: 5 * time.Millisecond,
		RetryBackoffMax:  10 * time.Millisecond,
	})
	err := c.ConnectWithRetry(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), attempts.Load())

	var dialErr *DialError
	require.ErrorAs(t, err, &dialErr)
	assert.Equal(t, http.StatusForbidden, dialErr.StatusCode)
}

func TestConn_ConnectWithRetry_ContextCancelled(t *testing.T) {
	c := NewConn(&ConnConfig{URL: "ws://127.0.0.1:1", MaxRetries: 5, RetryBackoffBase: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.ConnectWithRetry(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConn_SendBeforeConnect(t *testing.T) {
	c := NewConn(&ConnConfig{URL: "ws://unused"})
	assert.ErrorIs(t, c.Send("x"), ErrNotConnected)

	_, err := c.Receive(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConn_Close_Idempotent(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, c.IsClosed())
	assert.False(t, c.IsConnected())
}

func TestConn_OperationsAfterClose(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.SendRaw([]byte("{}")), ErrConnectionClosed)
	assert.ErrorIs(t, c.Connect(context.Background()), ErrConnectionClosed)

	_, err := c.Receive(context.Background())
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestConn_ReceiveContextCancel(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConn_PeerCloseEndsReceive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"last":true}`))
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	}))
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	data, err := c.Receive(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"last":true}`, string(data))

	_, err = c.Receive(context.Background())
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestConn_Heartbeat(t *testing.T) {
	pings := make(chan struct{}, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetPingHandler(func(string) error {
			select {
			case pings <- struct{}{}:
			default:
			}
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartHeartbeat(ctx, 10*time.Millisecond)

	select {
	case <-pings:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received")
	}
}

func TestConn_SendMarshalError(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	err := c.Send(make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal")
}

func TestConnConfig_Defaults(t *testing.T) {
	cfg := &ConnConfig{}
	cfg.defaults()

	assert.Equal(t, DefaultDialTimeout, cfg.DialTimeout)
	assert.Equal(t, DefaultWriteWait, cfg.WriteWait)
	assert.Equal(t, int64(DefaultMaxMessageSize), cfg.MaxMessageSize)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultRetryBackoffBase, cfg.RetryBackoffBase)
	assert.Equal(t, DefaultRetryBackoffMax, cfg.RetryBackoffMax)
	assert.Equal(t, DefaultCloseGracePeriod, cfg.CloseGracePeriod)
	assert.Equal(t, DefaultReadBuffer, cfg.ReadBuffer)
}

func TestCalculateBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		d := calculateBackoff(base, time.Second)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
	assert.LessOrEqual(t, calculateBackoff(time.Minute, time.Second), time.Second)
}
