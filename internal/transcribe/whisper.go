package transcribe

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// WhisperProvider transcribes audio through the OpenAI audio API.
type WhisperProvider struct {
	client *openai.Client
	model  string
}

func NewWhisperProvider(apiKey string) *WhisperProvider {
	return &WhisperProvider{
		client: openai.NewClient(apiKey),
		model:  openai.Whisper1,
	}
}

func (p *WhisperProvider) Name() string { return "whisper" }

func (p *WhisperProvider) Transcribe(ctx context.Context, filename string, audio []byte) (Result, error) {
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.model,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return Result{}, fmt.Errorf("whisper transcription: %w", err)
	}
	return Result{
		Transcript: resp.Text,
		Language:   resp.Language,
		Provider:   p.Name(),
	}, nil
}
