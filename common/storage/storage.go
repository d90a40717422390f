package storage

import (
	"context"
	"time"
)

// ObjectInfo describes a stored object for inspection endpoints.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag"`
	ContentType  string    `json:"content_type"`
	LastModified time.Time `json:"last_modified"`
}

// ContentStore defines the content-addressed store boundary the dispatcher
// depends on. Locators are either plain http(s) URLs or bucket object keys.
type ContentStore interface {
	// Fetch retrieves the content behind a URL in a single attempt.
	Fetch(ctx context.Context, url string) ([]byte, error)

	// Download resolves a locator and streams its content to destPath.
	Download(ctx context.Context, locator, destPath string) error

	// Upload stores content under its content hash and returns the locator.
	Upload(ctx context.Context, content []byte) (string, error)

	// Presign returns a time-limited GET URL for an object key.
	Presign(ctx context.Context, locator string, expiry time.Duration) (string, error)
}

// Lister is implemented by stores that can enumerate their objects.
type Lister interface {
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}
