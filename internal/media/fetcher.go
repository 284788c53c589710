package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"callpipe/internal/config"
)

const (
	downloadTimeout = 60 * time.Second
	signedURLExpiry = time.Hour

	// Stored audio never changes once written.
	cacheControl = "public, max-age=31536000, immutable"
)

// StoredMedia is the durable artifact of a downloaded recording. Created once
// per recording, never mutated; reads go through SignedURL.
type StoredMedia struct {
	Path              string
	Size              int64
	EstimatedDuration int
}

// Uploader is the object-storage surface the fetcher needs; *Store satisfies it.
type Uploader interface {
	Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
}

// Store wraps a MinIO bucket for audio objects.
type Store struct {
	mc     *minio.Client
	bucket string
}

func NewStore(cfg config.MinioConfig) (*Store, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Store{mc: mc, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket if it does not exist. Called once at startup.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.mc.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket check: %w", err)
	}
	if !exists {
		if err := s.mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("make bucket: %w", err)
		}
	}
	return nil
}

func (s *Store) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	_, err := s.mc.PutObject(ctx, s.bucket, path, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: cacheControl,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", path, err)
	}
	return nil
}

// SignedURL mints a fresh time-limited read URL for a stored object. URLs are
// never cached; each caller gets its own expiry window.
func (s *Store) SignedURL(ctx context.Context, path string) (string, error) {
	u, err := s.mc.PresignedGetObject(ctx, s.bucket, path, signedURLExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", path, err)
	}
	return u.String(), nil
}

// Fetcher downloads recording media and persists it to object storage.
type Fetcher struct {
	Storage Uploader
	Client  *http.Client
}

func NewFetcher(storage Uploader) *Fetcher {
	return &Fetcher{
		Storage: storage,
		Client:  &http.Client{Timeout: downloadTimeout},
	}
}

// Fetch downloads the resource at downloadURL (optionally authenticated with
// bearer) and uploads it under a path keyed by callID and extension. The raw
// audio bytes are returned alongside the artifact so the transcription stage
// does not re-download. Network and storage failures come back as one wrapped
// error; the processor treats it as a pipeline-stage failure.
func (f *Fetcher) Fetch(ctx context.Context, downloadURL, callID, ext, bearer string) (StoredMedia, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return StoredMedia{}, nil, fmt.Errorf("fetch media for call %s: %w", callID, err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return StoredMedia{}, nil, fmt.Errorf("fetch media for call %s: %w", callID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StoredMedia{}, nil, fmt.Errorf("fetch media for call %s: download returned %d", callID, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return StoredMedia{}, nil, fmt.Errorf("fetch media for call %s: read body: %w", callID, err)
	}

	path := ObjectPath(callID, ext)
	if err := f.Storage.Upload(ctx, path, bytes.NewReader(data), int64(len(data)), contentTypeFor(ext)); err != nil {
		return StoredMedia{}, nil, fmt.Errorf("store media for call %s: %w", callID, err)
	}

	return StoredMedia{
		Path:              path,
		Size:              int64(len(data)),
		EstimatedDuration: EstimateDuration(int64(len(data))),
	}, data, nil
}

// ObjectPath keys stored audio by call id and extension.
func ObjectPath(callID, ext string) string {
	return fmt.Sprintf("recordings/%s.%s", callID, ext)
}

// EstimateDuration approximates audio length in seconds from byte size,
// assuming ~16KB/s (128kbps). An approximation for display only, not ground
// truth; the provider's reported duration wins when present.
func EstimateDuration(size int64) int {
	const bytesPerSecond = 16 * 1024
	return int(size / bytesPerSecond)
}

func contentTypeFor(ext string) string {
	switch strings.ToLower(ext) {
	case "mp3":
		return "audio/mpeg"
	case "m4a", "mp4":
		return "audio/mp4"
	case "wav":
		return "audio/wav"
	case "ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
