// Package grpc implements the gRPC transport for thirdeye.
//
// The service thirdeye.v1.Assistant has a unary Command method and a
// server-streaming Events method. Messages are the JSON encodings of
// message.Command, message.State and message.Event, carried with the
// "json" content-subtype, so smart glasses and companion apps can talk to
// the daemon without generated stubs. The standard gRPC health service is
// registered alongside.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/thirdeye/internal/message"
	"github.com/nadzzz/thirdeye/internal/transport"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "thirdeye.v1.Assistant"

const (
	CommandMethod = "/" + ServiceName + "/Command"
	EventsMethod  = "/" + ServiceName + "/Events"
)

// Codec marshals messages as JSON. Clients select it with
// grpc.CallContentSubtype("json").
type Codec struct{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func init() {
	encoding.RegisterCodec(Codec{})
}

// EventsRequest opens an event stream. An empty Types list receives every event.
type EventsRequest struct {
	Types []message.EventType `json:"types,omitempty"`
}

func (r *EventsRequest) wants(t message.EventType) bool {
	return len(r.Types) == 0 || slices.Contains(r.Types, t)
}

// AssistantServer is the server API for thirdeye.v1.Assistant.
type AssistantServer interface {
	Command(ctx context.Context, cmd *message.Command) (*message.State, error)
	Events(req *EventsRequest, stream grpc.ServerStream) error
}

// ServiceDesc describes thirdeye.v1.Assistant for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AssistantServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Command", Handler: commandHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Events", Handler: eventsHandler, ServerStreams: true},
	},
	Metadata: "thirdeye/v1/assistant.proto",
}

func commandHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(message.Command)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AssistantServer).Command(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CommandMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AssistantServer).Command(ctx, req.(*message.Command))
	}
	return interceptor(ctx, in, info, handler)
}

func eventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(EventsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(AssistantServer).Events(in, stream)
}

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port   int
	subs   *transport.Subscribers
	server *grpc.Server
	health *health.Server

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{
		port: port,
		subs: transport.NewSubscribers("grpc", 32),
		done: make(chan struct{}),
	}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	slog.Info("grpc transport listening", "port", t.port)
	return t.Serve(ctx, lis, handler)
}

// Serve runs the server on lis until ctx is cancelled.
func (t *Transport) Serve(ctx context.Context, lis net.Listener, handler transport.Handler) error {
	t.server = grpc.NewServer(grpc.ChainUnaryInterceptor(logUnary))
	t.server.RegisterService(&ServiceDesc, &service{t: t, handler: handler})

	t.health = health.NewServer()
	t.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(t.server, t.health)

	go func() {
		select {
		case <-ctx.Done():
		case <-t.done:
		}
		slog.Info("grpc transport shutting down")
		t.stop()
	}()

	if err := t.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

func (t *Transport) stop() {
	t.stopOnce.Do(func() {
		close(t.done)
		if t.health != nil {
			t.health.Shutdown()
		}
		if t.server != nil {
			t.server.GracefulStop()
		}
	})
}

// Publish pushes ev to every open Events stream.
func (t *Transport) Publish(_ context.Context, ev message.Event) error {
	t.subs.Broadcast(ev)
	return nil
}

// Close ends open event streams and gracefully stops the gRPC server.
func (t *Transport) Close() error {
	t.stop()
	return nil
}

type service struct {
	t       *Transport
	handler transport.Handler
}

func (s *service) Command(ctx context.Context, cmd *message.Command) (*message.State, error) {
	if err := transport.Prepare(cmd, s.t.Name()); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	state, err := s.handler(ctx, cmd)
	if err != nil {
		if errors.Is(err, transport.ErrBadCommand) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return state, nil
}

func (s *service) Events(req *EventsRequest, stream grpc.ServerStream) error {
	events, unsubscribe := s.t.subs.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case <-s.t.done:
			return status.Error(codes.Unavailable, "server shutting down")
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !req.wants(ev.Type) {
				continue
			}
			if err := stream.SendMsg(&ev); err != nil {
				return err
			}
		}
	}
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		slog.Warn("grpc call failed", "method", info.FullMethod, "code", status.Code(err), "duration", time.Since(start), "error", err)
	} else {
		slog.Debug("grpc call", "method", info.FullMethod, "duration", time.Since(start))
	}
	return resp, err
}
