// Package grpcapi exposes the session manager over gRPC.
package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"ai-session-insights-service/internal/models"
)

const ServiceName = "insights.v1.SessionService"

const (
	startSessionMethod = "/" + ServiceName + "/StartSession"
	stopSessionMethod  = "/" + ServiceName + "/StopSession"
	streamAudioMethod  = "/" + ServiceName + "/StreamAudio"
)

type StartSessionRequest struct{}

type StartSessionResponse struct {
	SessionID        string `json:"sessionId"`
	AlreadyRecording bool   `json:"alreadyRecording"`
}

type StopSessionRequest struct{}

// StopSessionResponse carries the closed record; Record is nil when no
// session was active.
type StopSessionResponse struct {
	Record *models.SessionRecord `json:"record,omitempty"`
}

// AudioChunk is 16-bit little-endian mono PCM at the pipeline sample rate.
type AudioChunk struct {
	Audio []byte `json:"audio"`
}

type StreamAck struct {
	SessionID string `json:"sessionId"`
	Bytes     int64  `json:"bytes"`
	Frames    int    `json:"frames"`
}

// SessionServiceServer is the server API for SessionService.
type SessionServiceServer interface {
	StartSession(context.Context, *StartSessionRequest) (*StartSessionResponse, error)
	StopSession(context.Context, *StopSessionRequest) (*StopSessionResponse, error)
	StreamAudio(grpc.ClientStreamingServer[AudioChunk, StreamAck]) error
}

// RegisterSessionServiceServer registers srv on s.
func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}

func startSessionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StartSessionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).StartSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: startSessionMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionServiceServer).StartSession(ctx, req.(*StartSessionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func stopSessionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StopSessionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).StopSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: stopSessionMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionServiceServer).StopSession(ctx, req.(*StopSessionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func streamAudioHandler(srv any, stream grpc.ServerStream) error {
	return srv.(SessionServiceServer).StreamAudio(&grpc.GenericServerStream[AudioChunk, StreamAck]{ServerStream: stream})
}

// SessionServiceDesc is the grpc.ServiceDesc for SessionService.
var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartSession", Handler: startSessionHandler},
		{MethodName: "StopSession", Handler: stopSessionHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamAudio",
			Handler:       streamAudioHandler,
			ClientStreams: true,
		},
	},
}
