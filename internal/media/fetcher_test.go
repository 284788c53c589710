package media

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeUploader struct {
	path        string
	size        int64
	contentType string
	data        []byte
	err         error
}

func (u *fakeUploader) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	if u.err != nil {
		return u.err
	}
	u.path = path
	u.size = size
	u.contentType = contentType
	u.data, _ = io.ReadAll(r)
	return nil
}

func TestFetch_DownloadsAndStores(t *testing.T) {
	audio := strings.Repeat("x", 32*1024) // ~2s at the estimate rate
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer dl-tok" {
			t.Errorf("expected bearer token, got %q", got)
		}
		_, _ = io.WriteString(w, audio)
	}))
	defer srv.Close()

	up := &fakeUploader{}
	f := NewFetcher(up)

	sm, audioBytes, err := f.Fetch(context.Background(), srv.URL, "call-1", "mp3", "dl-tok")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(audioBytes) != audio {
		t.Fatalf("expected downloaded bytes returned")
	}
	if sm.Path != "recordings/call-1.mp3" {
		t.Fatalf("unexpected path %q", sm.Path)
	}
	if sm.Size != int64(len(audio)) {
		t.Fatalf("expected size %d, got %d", len(audio), sm.Size)
	}
	if sm.EstimatedDuration != 2 {
		t.Fatalf("expected 2s estimate, got %d", sm.EstimatedDuration)
	}
	if up.contentType != "audio/mpeg" {
		t.Fatalf("expected audio/mpeg, got %q", up.contentType)
	}
	if len(up.data) != len(audio) {
		t.Fatalf("expected uploaded bytes to match download")
	}
}

func TestFetch_NoBearerHeaderWhenEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("expected no Authorization header")
		}
		_, _ = io.WriteString(w, "abc")
	}))
	defer srv.Close()

	f := NewFetcher(&fakeUploader{})
	if _, _, err := f.Fetch(context.Background(), srv.URL, "c", "mp3", ""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestFetch_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewFetcher(&fakeUploader{})
	if _, _, err := f.Fetch(context.Background(), srv.URL, "c", "mp3", ""); err == nil {
		t.Fatalf("expected error for 403 download")
	}
}

func TestFetch_UploadFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "abc")
	}))
	defer srv.Close()

	f := NewFetcher(&fakeUploader{err: io.ErrClosedPipe})
	if _, _, err := f.Fetch(context.Background(), srv.URL, "c", "mp3", ""); err == nil {
		t.Fatalf("expected storage error to propagate")
	}
}

func TestEstimateDuration_MonotoneInSize(t *testing.T) {
	if EstimateDuration(0) != 0 {
		t.Fatalf("expected 0 for empty file")
	}
	prev := -1
	for _, size := range []int64{1, 16 * 1024, 160 * 1024, 1 << 20, 10 << 20} {
		d := EstimateDuration(size)
		if d < prev {
			t.Fatalf("estimate not monotone at size %d", size)
		}
		prev = d
	}
	// 1 minute of 128kbps audio.
	if got := EstimateDuration(60 * 16 * 1024); got != 60 {
		t.Fatalf("expected 60s, got %d", got)
	}
}

func TestContentTypeFor(t *testing.T) {
	if contentTypeFor("MP3") != "audio/mpeg" {
		t.Fatalf("expected case-insensitive mp3 mapping")
	}
	if contentTypeFor("bin") != "application/octet-stream" {
		t.Fatalf("expected octet-stream fallback")
	}
}
