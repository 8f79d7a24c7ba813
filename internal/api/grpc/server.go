package grpcapi

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-session-insights-service/internal/models"
	"ai-session-insights-service/internal/observability/logging"
	"ai-session-insights-service/internal/service/audio"
	"ai-session-insights-service/internal/service/session"
)

// Sessions is the part of session.Manager the API drives.
type Sessions interface {
	Start(ctx context.Context) (session.StartResult, error)
	Stop(ctx context.Context) (*models.SessionRecord, error)
	HandleFrame(frame []byte)
	SessionID() string
}

// Server implements SessionServiceServer on top of the session manager.
type Server struct {
	sessions   Sessions
	frameBytes int
	limits     audio.Limits
}

// NewServer creates the API server. Inbound audio is re-chunked into
// frameBytes frames.
func NewServer(sessions Sessions, frameBytes int, limits audio.Limits) *Server {
	return &Server{sessions: sessions, frameBytes: frameBytes, limits: limits}
}

// Register creates a Server and registers it on g.
func Register(g *grpc.Server, sessions Sessions, frameBytes int, limits audio.Limits) *Server {
	s := NewServer(sessions, frameBytes, limits)
	RegisterSessionServiceServer(g, s)
	return s
}

func (s *Server) StartSession(ctx context.Context, _ *StartSessionRequest) (*StartSessionResponse, error) {
	res, err := s.sessions.Start(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &StartSessionResponse{SessionID: res.SessionID, AlreadyRecording: res.AlreadyRecording}, nil
}

func (s *Server) StopSession(ctx context.Context, _ *StopSessionRequest) (*StopSessionResponse, error) {
	rec, err := s.sessions.Stop(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &StopSessionResponse{Record: rec}, nil
}

// StreamAudio feeds inbound chunks to the session until the client closes
// its side. Audio received while no session is recording is dropped by the
// manager.
func (s *Server) StreamAudio(stream grpc.ClientStreamingServer[AudioChunk, StreamAck]) error {
	h := audio.NewHandler(s.sessions, s.frameBytes, s.limits)
	logger := logging.WithComponent("grpc")

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.Close()
			return err
		}
		if err := h.Write(chunk.Audio); err != nil {
			if errors.Is(err, audio.ErrChunkTooLarge) {
				return status.Error(codes.InvalidArgument, err.Error())
			}
			return status.Error(codes.ResourceExhausted, err.Error())
		}
	}
	h.Close()

	st := h.Stats()
	logger.Info().
		Int64("bytes", st.Bytes).
		Int("frames", st.Frames).
		Dur("audio", st.Duration).
		Msg("Audio stream finished")

	return stream.SendAndClose(&StreamAck{
		SessionID: s.sessions.SessionID(),
		Bytes:     st.Bytes,
		Frames:    st.Frames,
	})
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, session.ErrSessionEnding):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
