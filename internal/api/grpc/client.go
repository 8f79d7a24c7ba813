package grpcapi

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls SessionService with the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) StartSession(ctx context.Context, opts ...grpc.CallOption) (*StartSessionResponse, error) {
	out := new(StartSessionResponse)
	if err := c.cc.Invoke(ctx, startSessionMethod, &StartSessionRequest{}, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) StopSession(ctx context.Context, opts ...grpc.CallOption) (*StopSessionResponse, error) {
	out := new(StopSessionResponse)
	if err := c.cc.Invoke(ctx, stopSessionMethod, &StopSessionRequest{}, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// StreamAudio opens a client stream. Send chunks, then CloseAndRecv for
// the ack.
func (c *Client) StreamAudio(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[AudioChunk, StreamAck], error) {
	stream, err := c.cc.NewStream(ctx, &SessionServiceDesc.Streams[0], streamAudioMethod, c.callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[AudioChunk, StreamAck]{ClientStream: stream}, nil
}

func (c *Client) callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
