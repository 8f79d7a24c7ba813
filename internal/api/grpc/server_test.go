package grpcapi

import (
	"context"
	"net"
	"sync"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"ai-session-insights-service/internal/models"
	"ai-session-insights-service/internal/observability"
	"ai-session-insights-service/internal/observability/metrics"
	"ai-session-insights-service/internal/service/audio"
	"ai-session-insights-service/internal/service/session"
)

type fakeSessions struct {
	mu       sync.Mutex
	id       string
	startErr error
	frames   int
	bytes    int
	stopped  bool
}

func (f *fakeSessions) Start(context.Context) (session.StartResult, error) {
	if f.startErr != nil {
		return session.StartResult{}, f.startErr
	}
	return session.StartResult{SessionID: f.id}, nil
}

func (f *fakeSessions) Stop(context.Context) (*models.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return &models.SessionRecord{ID: f.id, EndReason: models.EndReasonStopped}, nil
}

func (f *fakeSessions) HandleFrame(frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames++
	f.bytes += len(frame)
}

func (f *fakeSessions) SessionID() string { return f.id }

func dial(t *testing.T, sessions Sessions, limits audio.Limits) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor()),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(metrics.DefaultMetrics)),
	)
	Register(srv, sessions, 64, limits)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn)
}

func TestServer_StartStop(t *testing.T) {
	sessions := &fakeSessions{id: "s1"}
	c := dial(t, sessions, audio.Limits{})
	ctx := context.Background()

	start, err := c.StartSession(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if start.SessionID != "s1" {
		t.Errorf("expected session s1, got %s", start.SessionID)
	}

	stop, err := c.StopSession(ctx)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stop.Record == nil || stop.Record.ID != "s1" {
		t.Errorf("expected record for s1, got %+v", stop.Record)
	}
	if stop.Record.EndReason != models.EndReasonStopped {
		t.Errorf("expected reason %s, got %s", models.EndReasonStopped, stop.Record.EndReason)
	}
}

func TestServer_StartWhileEnding(t *testing.T) {
	c := dial(t, &fakeSessions{startErr: session.ErrSessionEnding}, audio.Limits{})

	_, err := c.StartSession(context.Background())
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("expected FailedPrecondition, got %v", err)
	}
}

func TestServer_StreamAudio(t *testing.T) {
	sessions := &fakeSessions{id: "s1"}
	c := dial(t, sessions, audio.Limits{})

	stream, err := c.StreamAudio(context.Background())
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := stream.Send(&AudioChunk{Audio: make([]byte, 100)}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	ack, err := stream.CloseAndRecv()
	if err != nil {
		t.Fatalf("close: %v", err)
	}

	if ack.SessionID != "s1" {
		t.Errorf("expected ack for s1, got %s", ack.SessionID)
	}
	if ack.Bytes != 300 {
		t.Errorf("expected 300 bytes, got %d", ack.Bytes)
	}
	// 4 full 64-byte frames plus the 44-byte remainder
	if ack.Frames != 5 {
		t.Errorf("expected 5 frames, got %d", ack.Frames)
	}

	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	if sessions.bytes != 300 {
		t.Errorf("expected 300 bytes delivered to the manager, got %d", sessions.bytes)
	}
}

func TestServer_StreamAudioLimit(t *testing.T) {
	c := dial(t, &fakeSessions{id: "s1"}, audio.Limits{MaxStreamBytes: 150})

	stream, err := c.StreamAudio(context.Background())
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	stream.Send(&AudioChunk{Audio: make([]byte, 100)})
	stream.Send(&AudioChunk{Audio: make([]byte, 100)})

	_, err = stream.CloseAndRecv()
	if status.Code(err) != codes.ResourceExhausted {
		t.Errorf("expected ResourceExhausted, got %v", err)
	}
}

func TestJSONCodec(t *testing.T) {
	var c jsonCodec
	if c.Name() != CodecName {
		t.Errorf("expected codec %s, got %s", CodecName, c.Name())
	}
	data, err := c.Marshal(&StreamAck{SessionID: "s1", Frames: 2})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var ack StreamAck
	if err := c.Unmarshal(data, &ack); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ack.SessionID != "s1" || ack.Frames != 2 {
		t.Errorf("expected round trip, got %+v", ack)
	}
}
