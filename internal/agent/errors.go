package agent

import "errors"

// Collaborator failures. Callers convert them to a user-visible string with
// Placeholder instead of failing the interaction.
var (
	// ErrUnrecognizedSpeech is returned when audio was received but no speech could be decoded
	ErrUnrecognizedSpeech = errors.New("speech not recognized")

	// ErrServiceUnavailable is returned when a speech or NLP backend cannot be reached or fails
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrUnsupportedFormat is returned for uploads that are neither WAV nor MP3
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Placeholder maps a collaborator error to the text shown in place of a
// transcript.
func Placeholder(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnrecognizedSpeech):
		return "[Could not understand the audio. Please try again.]"
	case errors.Is(err, ErrServiceUnavailable):
		return "[Speech service is unavailable. Please type the note instead.]"
	case errors.Is(err, ErrUnsupportedFormat):
		return "[Unsupported audio format. Upload a WAV or MP3 file.]"
	default:
		return "[Transcription failed.]"
	}
}
