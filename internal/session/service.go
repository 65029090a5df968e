package session

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service is the explicit replacement for a process-wide "recording" flag:
// every capture has its own id and its own state.
type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func (s *Service) NewCapture(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := s.store.Create(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// StartCapture is a no-op when the session is already recording.
func (s *Service) StartCapture(ctx context.Context, id string) (bool, error) {
	started, err := s.store.Start(ctx, id)
	if err != nil {
		return false, err
	}
	if started {
		s.logger.Debug("Capture started", zap.String("session_id", id))
	}
	return started, nil
}

// AppendChunk buffers audio only while recording; chunks posted to an idle
// session are dropped and reported as not accepted.
func (s *Service) AppendChunk(ctx context.Context, id string, chunk []byte) (bool, error) {
	if len(chunk) == 0 {
		return s.store.Recording(ctx, id)
	}
	return s.store.Append(ctx, id, chunk)
}

// StopCapture is a no-op unless recording; on stop it returns the buffered
// audio.
func (s *Service) StopCapture(ctx context.Context, id string) ([]byte, bool, error) {
	audio, stopped, err := s.store.Stop(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if stopped {
		s.logger.Debug("Capture stopped",
			zap.String("session_id", id),
			zap.Int("bytes", len(audio)),
		)
	}
	return audio, stopped, nil
}

func (s *Service) Recording(ctx context.Context, id string) (bool, error) {
	return s.store.Recording(ctx, id)
}
