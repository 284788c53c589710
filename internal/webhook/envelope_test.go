package webhook

import (
	"encoding/json"
	"testing"
)

func TestPushMessage_RoundTrip(t *testing.T) {
	raw := []byte(`{"event":"recording.completed","payload":{"account_id":"acc1","object":{"recordings":[{"call_id":"c1","id":"r1","duration":42,"download_url":"https://example.com/rec/r1.mp3?tk=x"}]}}}`)

	m := NewPushMessage(raw, "topic/0/17")
	if m.Message.MessageID != "topic/0/17" {
		t.Fatalf("expected message id, got %q", m.Message.MessageID)
	}

	env, err := m.DecodeEnvelope()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if env.Event != EventRecordingCompleted {
		t.Fatalf("expected recording.completed, got %q", env.Event)
	}
	if env.Payload.AccountID != "acc1" {
		t.Fatalf("expected account id, got %q", env.Payload.AccountID)
	}
	if len(env.Payload.Object.Recordings) != 1 {
		t.Fatalf("expected one recording, got %d", len(env.Payload.Object.Recordings))
	}
	rec := env.Payload.Object.Recordings[0]
	if rec.CallID != "c1" || rec.RecordingID != "r1" || rec.Duration != 42 {
		t.Fatalf("unexpected recording: %+v", rec)
	}
}

func TestDecodeEnvelope_MalformedBase64(t *testing.T) {
	var m PushMessage
	m.Message.Data = "not base64!!!"
	if _, err := m.DecodeEnvelope(); err == nil {
		t.Fatalf("expected error for malformed base64")
	}
}

func TestDecodeEnvelope_MalformedJSON(t *testing.T) {
	m := NewPushMessage([]byte("{nope"), "id")
	if _, err := m.DecodeEnvelope(); err == nil {
		t.Fatalf("expected error for malformed json")
	}
}

func TestRecording_FileExtension(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://example.com/rec/r1.mp3?tk=x", "mp3"},
		{"https://example.com/rec/r1.M4A", "m4a"},
		{"https://example.com/rec/r1.wav#frag", "wav"},
		{"https://example.com/rec/r1", "mp3"},
		{"https://example.com/v2/rec.download/r1", "mp3"},
	}
	for _, tc := range cases {
		r := Recording{DownloadURL: tc.url}
		if got := r.FileExtension(); got != tc.want {
			t.Fatalf("url %q: expected %q, got %q", tc.url, tc.want, got)
		}
	}
}

func TestEnvelope_ChallengePayloadParses(t *testing.T) {
	raw := []byte(`{"event":"endpoint.url_validation","payload":{"plainToken":"pt"}}`)
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if env.Event != EventURLValidation {
		t.Fatalf("expected url_validation event, got %q", env.Event)
	}
	if env.Payload.PlainToken != "pt" {
		t.Fatalf("expected plain token, got %q", env.Payload.PlainToken)
	}
}
