package webhook

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Event names sent by the provider that this pipeline acts on.
const (
	EventURLValidation      = "endpoint.url_validation"
	EventRecordingCompleted = "recording.completed"
	EventPhoneRecording     = "phone.recording_completed"
)

// Envelope is the raw inbound payload from the provider. It is treated as
// immutable: the proxy forwards the raw bytes and the processor decodes them.
type Envelope struct {
	Event   string  `json:"event"`
	Payload Payload `json:"payload"`
}

type Payload struct {
	AccountID  string `json:"account_id"`
	PlainToken string `json:"plainToken,omitempty"`
	Object     Object `json:"object"`
}

type Object struct {
	Recordings []Recording `json:"recordings"`
}

// Recording describes one call recording: identifiers, direction, duration
// and a time-limited download URL. The download URL expires quickly, so a
// recording must be fetched promptly after delivery.
type Recording struct {
	CallID       string `json:"call_id"`
	RecordingID  string `json:"id"`
	Direction    string `json:"direction"`
	Duration     int    `json:"duration"`
	DownloadURL  string `json:"download_url"`
	CallerNumber string `json:"caller_number"`
	CallerName   string `json:"caller_name"`
	CalleeNumber string `json:"callee_number"`
	CalleeName   string `json:"callee_name"`
}

// FileExtension derives the audio extension from the download URL, defaulting
// to mp3 (the provider's recording format).
func (r Recording) FileExtension() string {
	if i := strings.LastIndex(r.DownloadURL, "."); i >= 0 {
		ext := r.DownloadURL[i+1:]
		if j := strings.IndexAny(ext, "?#"); j >= 0 {
			ext = ext[:j]
		}
		switch strings.ToLower(ext) {
		case "mp3", "mp4", "m4a", "wav", "ogg":
			return strings.ToLower(ext)
		}
	}
	return "mp3"
}

// PushMessage is the push-delivery wrapper the queue relay POSTs to the
// processor: the serialized envelope base64-encoded in data, plus the
// queue-assigned message id.
type PushMessage struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
}

// NewPushMessage wraps raw envelope bytes for push delivery.
func NewPushMessage(raw []byte, messageID string) PushMessage {
	var m PushMessage
	m.Message.Data = base64.StdEncoding.EncodeToString(raw)
	m.Message.MessageID = messageID
	return m
}

// DecodeEnvelope unwraps a push message payload: base64 decode, then JSON
// parse into an Envelope. Any malformed input yields an error; the caller
// answers 400 and the message is never processed.
func (m PushMessage) DecodeEnvelope() (Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(m.Message.Data)
	if err != nil {
		return Envelope{}, fmt.Errorf("decode push data: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("parse envelope: %w", err)
	}
	return env, nil
}
