package artifact

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Presigner is implemented by stores that can hand out time-limited direct
// download URLs for their files.
type Presigner interface {
	PresignURL(ctx context.Context, filePath string) (string, error)
}

var _ Presigner = (*s3Store)(nil)

type presignEntry struct {
	url       string
	expiresAt time.Time
}

// presignCache keeps presigned URLs for half their validity so that a
// returned URL always has a reasonable lifetime left.
type presignCache struct {
	client *s3.PresignClient
	expiry time.Duration
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[string]presignEntry
}

func newPresignCache(client *s3.PresignClient, expiry time.Duration) *presignCache {
	return &presignCache{
		client:  client,
		expiry:  expiry,
		ttl:     expiry / 2,
		entries: make(map[string]presignEntry),
	}
}

func (c *presignCache) get(key string, now time.Time) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || !now.Before(entry.expiresAt) {
		return "", false
	}

	return entry.url, true
}

func (c *presignCache) put(key, url string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = presignEntry{url: url, expiresAt: now.Add(c.ttl)}
}

// PresignURL returns a presigned GET URL for a file of the run.
func (s *s3Store) PresignURL(ctx context.Context, filePath string) (string, error) {
	if !IsAllowedPath(filePath) {
		return "", fmt.Errorf("path %q is not allowed", filePath)
	}

	key := s.key(filePath)
	now := time.Now()

	if url, ok := s.presign.get(key, now); ok {
		return url, nil
	}

	req, err := s.presign.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presign.expiry))
	if err != nil {
		return "", fmt.Errorf("presigning %q: %w", key, err)
	}

	s.presign.put(key, req.URL, now)

	return req.URL, nil
}
