package stream

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"sysmon-agent/internal/model"
)

type recordingServer struct {
	mu       sync.Mutex
	methods  []string
	auth     []string
	received []map[string]any
	reject   error
}

func (s *recordingServer) handle(_ any, stream grpc.ServerStream) error {
	method, _ := grpc.MethodFromServerStream(stream)
	md, _ := metadata.FromIncomingContext(stream.Context())
	s.mu.Lock()
	s.methods = append(s.methods, method)
	s.auth = append(s.auth, md.Get("authorization")...)
	reject := s.reject
	s.mu.Unlock()

	var frame map[string]any
	if err := stream.RecvMsg(&frame); err != nil {
		return err
	}
	if reject != nil {
		return reject
	}
	s.mu.Lock()
	s.received = append(s.received, frame)
	s.mu.Unlock()
	return stream.SendMsg(map[string]any{"accepted": true})
}

func (s *recordingServer) frames() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.received...)
}

func startBufconnServer(t *testing.T, reject error) (*recordingServer, grpc.DialOption) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	rec := &recordingServer{reject: reject}
	srv := grpc.NewServer(grpc.UnknownServiceHandler(rec.handle))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	return rec, dialer
}

func TestGRPCClientAppendSendsEnvelopes(t *testing.T) {
	rec, dialer := startBufconnServer(t, nil)
	const method = "/sysmon.metrics.v1.MetricsService/AppendRecords"
	c := NewGRPCClient("bufnet", nil, "tok", method, 2*time.Second, discardLogger(), dialer)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Append(ctx, model.SessionStart{SystemInfo: model.DeviceIdentity{DeviceID: "d1"}}))
	require.NoError(t, c.Append(ctx, model.MetricSample{DeviceID: "d1", AvgCPUPercent: 25}))

	frames := rec.frames()
	require.Len(t, frames, 2)
	assert.Equal(t, string(model.RecordTypeSessionStart), frames[0]["type"])
	assert.Equal(t, string(model.RecordTypeMetric), frames[1]["type"])
	assert.Equal(t, "d1", frames[1]["device_id"])

	rec.mu.Lock()
	assert.Equal(t, []string{method, method}, rec.methods)
	assert.Equal(t, []string{"Bearer tok", "Bearer tok"}, rec.auth)
	rec.mu.Unlock()

	require.NoError(t, c.Close(ctx))
}

func TestGRPCClientAppendReturnsServerStatus(t *testing.T) {
	rec, dialer := startBufconnServer(t, status.Error(codes.Unauthenticated, "invalid token"))
	c := NewGRPCClient("bufnet", nil, "expired", "/sysmon.metrics.v1.MetricsService/AppendRecords", 2*time.Second, discardLogger(), dialer)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 5; i++ {
		err := c.Append(ctx, model.MetricSample{DeviceID: "d1"})
		require.Error(t, err, "append %d", i)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
		assert.Contains(t, err.Error(), "invalid token")
	}
	assert.Empty(t, rec.frames())

	err := c.Append(ctx, model.SessionStart{SystemInfo: model.DeviceIdentity{DeviceID: "d1"}})
	require.ErrorContains(t, err, "append session_start")
	require.NoError(t, c.Close(ctx))
}

func TestGRPCClientPingTimesOut(t *testing.T) {
	dialer := grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
		return nil, net.ErrClosed
	})
	c := NewGRPCClient("bufnet", nil, "", "/x/y", 200*time.Millisecond, discardLogger(), dialer)

	err := c.Ping(context.Background())
	require.ErrorContains(t, err, "grpc dial bufnet")
	require.NoError(t, c.Close(context.Background()))
}
