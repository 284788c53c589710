package transcribe

import (
	"fmt"
	"strings"
)

// NewProvider creates a transcriber by name. Only whisper ships today; the
// indirection keeps the processor independent of the provider choice.
func NewProvider(name, apiKey string) (Transcriber, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "whisper":
		if apiKey == "" {
			return nil, fmt.Errorf("whisper transcriber requires an API key")
		}
		return NewWhisperProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported transcription provider %q (supported: whisper)", name)
	}
}
