package transcribe

import "context"

// Result carries a transcription outcome.
type Result struct {
	Transcript string
	Language   string
	Provider   string
}

// Transcriber turns recorded audio into text. Implementations must honor the
// context deadline; a transcription failure is a pipeline-stage failure, never
// a crash.
type Transcriber interface {
	// Transcribe reads audio bytes (with its filename for format detection)
	// and returns the transcript.
	Transcribe(ctx context.Context, filename string, audio []byte) (Result, error)

	// Name returns the provider name (e.g. "whisper").
	Name() string
}
