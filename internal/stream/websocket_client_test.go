package stream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysmon-agent/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newWSServer(t *testing.T, frames chan<- model.Envelope, authHeader chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case authHeader <- r.Header.Get("Authorization"):
		default:
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env model.Envelope
			if json.Unmarshal(data, &env) == nil {
				frames <- env
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebSocketClientAppend(t *testing.T) {
	frames := make(chan model.Envelope, 4)
	auth := make(chan string, 1)
	srv := newWSServer(t, frames, auth)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	c := NewWebSocketClient(url, "s3cret", nil, time.Second, discardLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Ping(ctx))
	assert.Equal(t, "Bearer s3cret", <-auth)

	sample := model.MetricSample{DeviceID: "dev-7", Timestamp: time.Unix(1700000000, 0).UTC()}
	require.NoError(t, c.Append(ctx, sample))

	select {
	case env := <-frames:
		assert.Equal(t, model.RecordTypeMetric, env.Type)
		assert.Equal(t, "dev-7", env.DeviceID)
		assert.Equal(t, int64(1700000000), env.TimestampUnix)
	case <-ctx.Done():
		t.Fatal("no frame received")
	}

	require.NoError(t, c.Close(ctx))
}

func TestWebSocketClientDialFailure(t *testing.T) {
	c := NewWebSocketClient("ws://127.0.0.1:1/ws", "", nil, time.Second, discardLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := c.Append(ctx, model.MetricSample{})
	require.ErrorContains(t, err, "websocket dial")
	require.NoError(t, c.Close(ctx))
}
