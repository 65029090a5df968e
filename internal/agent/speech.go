package agent

import (
	"context"

	"go.uber.org/zap"
)

// Speech turns an uploaded clip into a transcript: transcode, then STT.
type Speech struct {
	transcoder *Transcoder
	stt        STTClient
	logger     *zap.Logger
}

func NewSpeech(transcoder *Transcoder, stt STTClient, logger *zap.Logger) *Speech {
	if transcoder == nil {
		transcoder = NewTranscoder()
	}
	return &Speech{transcoder: transcoder, stt: stt, logger: logger}
}

func (s *Speech) Transcribe(ctx context.Context, filename string, audioData []byte) (string, error) {
	normalized, err := s.transcoder.Normalize(filename, audioData)
	if err != nil {
		return "", err
	}
	return s.stt.Transcribe(ctx, normalized)
}

// TranscribeOrPlaceholder is the boundary form of Transcribe: failures are
// logged and replaced by a user-visible placeholder. ok is false when the
// returned text is a placeholder.
func (s *Speech) TranscribeOrPlaceholder(ctx context.Context, filename string, audioData []byte) (text string, ok bool) {
	text, err := s.Transcribe(ctx, filename, audioData)
	if err != nil {
		s.logger.Warn("Transcription failed",
			zap.String("filename", filename),
			zap.Int("bytes", len(audioData)),
			zap.Error(err),
		)
		return Placeholder(err), false
	}
	return text, true
}
