package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

// Status is the call outcome label.
type Status string

const (
	StatusConnected      Status = "connected"       // reached the intended person, real conversation
	StatusReception      Status = "reception"       // stopped at a receptionist / transfer
	StatusNoConversation Status = "no_conversation" // voicemail, hang-up, no meaningful talk
)

// Result is the classification outcome persisted alongside the recording.
type Result struct {
	Status     Status  `json:"status"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Rule thresholds. Calls under minDuration seconds or transcripts under
// minTranscriptLen characters never reach the model.
const (
	minDuration      = 10
	minTranscriptLen = 20
	receptionMaxDur  = 60
	connectedMinDur  = 60
)

// receptionKeywords are phrases that indicate the call stopped at a
// receptionist or is being transferred.
var receptionKeywords = []string{
	"担当者に代わります",
	"担当者におつなぎ",
	"少々お待ちください",
	"おつなぎいたします",
	"取り次ぎます",
	"折り返し",
	"ただいま席を外して",
}

// ChatCompleter is the model surface the classifier needs; *openai.Client
// satisfies it.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Classifier labels a call transcript as connected, reception or
// no_conversation. Deterministic rules run first; the model is only consulted
// for calls the rules cannot decide, and a model failure degrades to a coarse
// duration rule rather than failing the recording.
type Classifier struct {
	client ChatCompleter
	model  string
	log    *slog.Logger
}

func New(apiKey string, log *slog.Logger) *Classifier {
	return NewWithClient(openai.NewClient(apiKey), log)
}

func NewWithClient(client ChatCompleter, log *slog.Logger) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{client: client, model: openai.GPT4oMini, log: log}
}

const systemPrompt = `You classify sales-call transcripts into exactly one of three statuses:
- "connected": the caller reached the intended person and had a real conversation.
- "reception": the call stopped at a receptionist or operator, or the caller was asked to wait for a transfer that never completed.
- "no_conversation": voicemail, immediate hang-up, wrong number, or no meaningful exchange.

Heuristics: very short calls are rarely connected; mentions of transferring or taking a message suggest reception; a back-and-forth about the product or scheduling suggests connected.

Respond with a JSON object: {"status": "...", "confidence": 0.0-1.0, "reason": "one short sentence"}.`

// Classify applies the decision procedure in strict order: duration/length
// floor, reception keyword rule, then the model with a safe fallback.
func (c *Classifier) Classify(ctx context.Context, transcript string, durationSeconds int) Result {
	if durationSeconds < minDuration || utf8.RuneCountInString(transcript) < minTranscriptLen {
		return Result{
			Status:     StatusNoConversation,
			Confidence: 1.0,
			Reason:     "call too short or transcript empty",
		}
	}

	if durationSeconds < receptionMaxDur && containsAny(transcript, receptionKeywords) {
		return Result{
			Status:     StatusReception,
			Confidence: 0.9,
			Reason:     "transfer phrase detected in a short call",
		}
	}

	res, err := c.askModel(ctx, transcript, durationSeconds)
	if err != nil {
		c.log.Warn("classification model call failed, using duration fallback", "err", err)
		return fallback(durationSeconds)
	}
	return res
}

func (c *Classifier) askModel(ctx context.Context, transcript string, durationSeconds int) (Result, error) {
	user := fmt.Sprintf("Call duration: %d seconds.\nTranscript:\n%s", durationSeconds, transcript)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("model returned no choices")
	}

	content := stripFences(resp.Choices[0].Message.Content)
	var out Result
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return Result{}, fmt.Errorf("parse model response: %w", err)
	}
	return normalize(out), nil
}

// normalize fills defaults for missing fields and clamps confidence.
func normalize(r Result) Result {
	switch r.Status {
	case StatusConnected, StatusReception, StatusNoConversation:
	default:
		r.Status = StatusNoConversation
	}
	if r.Confidence <= 0 {
		r.Confidence = 0.5
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
	if r.Reason == "" {
		r.Reason = "model gave no reason"
	}
	return r
}

func fallback(durationSeconds int) Result {
	status := StatusNoConversation
	if durationSeconds >= connectedMinDur {
		status = StatusConnected
	}
	return Result{
		Status:     status,
		Confidence: 0.6,
		Reason:     "fallback estimate from call duration (model unavailable)",
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite JSON mode.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}
