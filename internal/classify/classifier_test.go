package classify

import (
	"context"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

// fakeModel returns a scripted chat completion (or error) and records whether
// it was called at all.
type fakeModel struct {
	content string
	err     error
	called  bool
}

func (f *fakeModel) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.called = true
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

// longTranscript is comfortably over the rule-1 length floor and free of
// reception keywords.
const longTranscript = "本日はお時間をいただきありがとうございます。製品の導入についてご説明させていただきます。"

func TestClassify_ShortCallSkipsModel(t *testing.T) {
	m := &fakeModel{}
	c := NewWithClient(m, nil)

	res := c.Classify(context.Background(), "", 5)
	if res.Status != StatusNoConversation {
		t.Fatalf("expected no_conversation, got %q", res.Status)
	}
	if res.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %v", res.Confidence)
	}
	if m.called {
		t.Fatalf("expected the model not to be called")
	}
}

func TestClassify_ShortTranscriptSkipsModel(t *testing.T) {
	m := &fakeModel{}
	c := NewWithClient(m, nil)

	res := c.Classify(context.Background(), "もしもし", 120)
	if res.Status != StatusNoConversation || res.Confidence != 1.0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if m.called {
		t.Fatalf("expected the model not to be called")
	}
}

func TestClassify_ReceptionKeywordRule(t *testing.T) {
	m := &fakeModel{}
	c := NewWithClient(m, nil)

	transcript := "お電話ありがとうございます。担当者に代わりますので少々お待ちください。"
	res := c.Classify(context.Background(), transcript, 30)
	if res.Status != StatusReception {
		t.Fatalf("expected reception, got %q", res.Status)
	}
	if res.Confidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %v", res.Confidence)
	}
	if m.called {
		t.Fatalf("expected the model not to be called")
	}
}

func TestClassify_ReceptionKeywordIgnoredOnLongCall(t *testing.T) {
	// A transfer phrase in a long call usually means the transfer completed;
	// the keyword rule only applies under the duration cap.
	m := &fakeModel{content: `{"status":"connected","confidence":0.8,"reason":"long conversation"}`}
	c := NewWithClient(m, nil)

	transcript := "担当者に代わります。" + longTranscript
	res := c.Classify(context.Background(), transcript, 300)
	if !m.called {
		t.Fatalf("expected the model to be consulted")
	}
	if res.Status != StatusConnected {
		t.Fatalf("expected connected, got %q", res.Status)
	}
}

func TestClassify_ParsesModelResponse(t *testing.T) {
	m := &fakeModel{content: `{"status":"connected","confidence":0.85,"reason":"scheduling discussed"}`}
	c := NewWithClient(m, nil)

	res := c.Classify(context.Background(), longTranscript, 180)
	if res.Status != StatusConnected || res.Confidence != 0.85 || res.Reason != "scheduling discussed" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestClassify_DefaultsMissingFields(t *testing.T) {
	m := &fakeModel{content: `{}`}
	c := NewWithClient(m, nil)

	res := c.Classify(context.Background(), longTranscript, 180)
	if res.Status != StatusNoConversation {
		t.Fatalf("expected default status no_conversation, got %q", res.Status)
	}
	if res.Confidence != 0.5 {
		t.Fatalf("expected default confidence 0.5, got %v", res.Confidence)
	}
	if res.Reason == "" {
		t.Fatalf("expected a default reason")
	}
}

func TestClassify_UnknownStatusDefaulted(t *testing.T) {
	m := &fakeModel{content: `{"status":"maybe","confidence":0.7,"reason":"?"}`}
	c := NewWithClient(m, nil)

	res := c.Classify(context.Background(), longTranscript, 180)
	if res.Status != StatusNoConversation {
		t.Fatalf("expected unknown status coerced to no_conversation, got %q", res.Status)
	}
}

func TestClassify_StripsMarkdownFences(t *testing.T) {
	m := &fakeModel{content: "```json\n{\"status\":\"reception\",\"confidence\":0.75,\"reason\":\"operator\"}\n```"}
	c := NewWithClient(m, nil)

	res := c.Classify(context.Background(), longTranscript, 180)
	if res.Status != StatusReception || res.Confidence != 0.75 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestClassify_FallbackOnModelError(t *testing.T) {
	m := &fakeModel{err: errors.New("timeout")}
	c := NewWithClient(m, nil)

	res := c.Classify(context.Background(), longTranscript, 120)
	if res.Status != StatusConnected {
		t.Fatalf("expected connected fallback for 120s, got %q", res.Status)
	}
	if res.Confidence != 0.6 {
		t.Fatalf("expected confidence 0.6, got %v", res.Confidence)
	}
	if !strings.Contains(res.Reason, "fallback") {
		t.Fatalf("expected fallback-marked reason, got %q", res.Reason)
	}

	res = c.Classify(context.Background(), longTranscript, 20)
	if res.Status != StatusNoConversation || res.Confidence != 0.6 {
		t.Fatalf("expected no_conversation fallback for 20s, got %+v", res)
	}
}

func TestClassify_FallbackOnMalformedJSON(t *testing.T) {
	m := &fakeModel{content: `not json at all`}
	c := NewWithClient(m, nil)

	res := c.Classify(context.Background(), longTranscript, 90)
	if res.Status != StatusConnected || res.Confidence != 0.6 {
		t.Fatalf("expected duration fallback, got %+v", res)
	}
}
