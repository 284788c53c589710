package ingress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"callpipe/internal/webhook"
)

type fakePublisher struct {
	keys   []string
	values [][]byte
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, key, value []byte) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, string(key))
	p.values = append(p.values, value)
	return nil
}

func newRouter(h Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook/zoom", h.HandleWebhook)
	return r
}

func post(r *gin.Engine, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/zoom", bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const eventBody = `{"event":"phone.recording_completed","payload":{"account_id":"acc1","object":{"recordings":[]}}}`

func TestHandleWebhook_ChallengeNeedsNoSignature(t *testing.T) {
	pub := &fakePublisher{}
	r := newRouter(Handler{Secret: "s3cret", Publisher: pub})

	body := []byte(`{"event":"endpoint.url_validation","payload":{"plainToken":"pt-1"}}`)
	w := post(r, body, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp webhook.ChallengeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected challenge response, got %v", err)
	}
	want, _ := webhook.Challenge("pt-1", "s3cret")
	if resp != want {
		t.Fatalf("expected %+v, got %+v", want, resp)
	}
	if len(pub.values) != 0 {
		t.Fatalf("challenge must never publish")
	}
}

func TestHandleWebhook_ChallengeMissingPlainToken(t *testing.T) {
	r := newRouter(Handler{Secret: "s3cret", Publisher: &fakePublisher{}})
	w := post(r, []byte(`{"event":"endpoint.url_validation","payload":{}}`), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleWebhook_ChallengeMissingSecretIsServerError(t *testing.T) {
	r := newRouter(Handler{Secret: "", Publisher: &fakePublisher{}})
	w := post(r, []byte(`{"event":"endpoint.url_validation","payload":{"plainToken":"pt"}}`), nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestHandleWebhook_ValidSignaturePublishes(t *testing.T) {
	pub := &fakePublisher{}
	r := newRouter(Handler{Secret: "s3cret", Publisher: pub})

	body := []byte(eventBody)
	sig := webhook.Signature(body, "1700000000", "s3cret")
	w := post(r, body, map[string]string{
		"x-zm-signature":         sig,
		"x-zm-request-timestamp": "1700000000",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(pub.values) != 1 {
		t.Fatalf("expected one publish, got %d", len(pub.values))
	}
	if !bytes.Equal(pub.values[0], body) {
		t.Fatalf("expected raw body published unmodified")
	}
	if pub.keys[0] != "acc1" {
		t.Fatalf("expected account id as partition key, got %q", pub.keys[0])
	}
}

func TestHandleWebhook_BadSignatureRejected(t *testing.T) {
	pub := &fakePublisher{}
	r := newRouter(Handler{Secret: "s3cret", Publisher: pub})

	body := []byte(eventBody)
	w := post(r, body, map[string]string{
		"x-zm-signature":         "v0=deadbeef",
		"x-zm-request-timestamp": "1700000000",
	})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if len(pub.values) != 0 {
		t.Fatalf("rejected webhook must not publish")
	}
}

func TestHandleWebhook_MissingHeadersTolerated(t *testing.T) {
	// Deliberate policy: events without signature headers are accepted with
	// a warning instead of dropped.
	pub := &fakePublisher{}
	r := newRouter(Handler{Secret: "s3cret", Publisher: pub})

	w := post(r, []byte(eventBody), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(pub.values) != 1 {
		t.Fatalf("expected publish despite missing headers")
	}
}

func TestHandleWebhook_MalformedJSONRejected(t *testing.T) {
	r := newRouter(Handler{Secret: "s3cret", Publisher: &fakePublisher{}})
	w := post(r, []byte(`{nope`), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleWebhook_PublishFailureIsServerError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	r := newRouter(Handler{Secret: "s3cret", Publisher: pub})

	body := []byte(eventBody)
	sig := webhook.Signature(body, "1700000000", "s3cret")
	w := post(r, body, map[string]string{
		"x-zm-signature":         sig,
		"x-zm-request-timestamp": "1700000000",
	})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
