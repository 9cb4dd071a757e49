package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nadzzz/thirdeye/internal/message"
)

func startServer(t *testing.T, handler func(context.Context, *message.Command) (*message.State, error)) (*Transport, *grpc.ClientConn) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	tr := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- tr.Serve(ctx, lis, handler) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		select {
		case err := <-served:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return tr, conn
}

func TestCommand(t *testing.T) {
	var got *message.Command
	_, conn := startServer(t, func(_ context.Context, cmd *message.Command) (*message.State, error) {
		got = cmd
		return &message.State{Mode: cmd.Mode}, nil
	})

	var state message.State
	err := conn.Invoke(context.Background(), CommandMethod,
		&message.Command{Kind: message.CommandSelectMode, Mode: message.ModeNavigate}, &state,
		grpc.CallContentSubtype("json"))
	require.NoError(t, err)

	assert.Equal(t, message.ModeNavigate, state.Mode)
	require.NotNil(t, got)
	assert.Equal(t, "grpc", got.Source)
	assert.NotEmpty(t, got.ID)
}

func TestCommandErrors(t *testing.T) {
	_, conn := startServer(t, func(context.Context, *message.Command) (*message.State, error) {
		return nil, errors.New("boom")
	})

	var state message.State
	err := conn.Invoke(context.Background(), CommandMethod,
		&message.Command{Kind: message.CommandTorch}, &state, grpc.CallContentSubtype("json"))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	err = conn.Invoke(context.Background(), CommandMethod,
		&message.Command{Kind: message.CommandStop}, &state, grpc.CallContentSubtype("json"))
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestEventsStream(t *testing.T) {
	tr, conn := startServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := conn.NewStream(ctx, &ServiceDesc.Streams[0], EventsMethod, grpc.CallContentSubtype("json"))
	require.NoError(t, err)
	require.NoError(t, stream.SendMsg(&EventsRequest{Types: []message.EventType{message.EventSpeak}}))
	require.NoError(t, stream.CloseSend())

	require.Eventually(t, func() bool { return tr.subs.Len() == 1 }, time.Second, 5*time.Millisecond)

	skipped := message.NewEvent(message.EventTorch)
	spoken := message.NewEvent(message.EventSpeak)
	spoken.Text = "Yol açık."
	require.NoError(t, tr.Publish(ctx, skipped))
	require.NoError(t, tr.Publish(ctx, spoken))

	var ev message.Event
	require.NoError(t, stream.RecvMsg(&ev))
	assert.Equal(t, spoken.ID, ev.ID, "filtered stream only carries requested types")
	assert.Equal(t, "Yol açık.", ev.Text)
}

func TestHealthService(t *testing.T) {
	_, conn := startServer(t, nil)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
