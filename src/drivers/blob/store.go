package blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nas-ai/uploads-api/src/domain/files"
)

// Providers
const (
	ProviderVercel = "vercel"
	ProviderS3     = "s3"
)

var (
	ErrNotConfigured = fmt.Errorf("%w: blob store is not configured", files.ErrValidation)
	ErrMissingToken  = fmt.Errorf("%w: blob store token missing", files.ErrValidation)
	ErrBlobNotFound  = fmt.Errorf("%w: blob not found", files.ErrNotFound)
	ErrForeignURL    = fmt.Errorf("%w: url does not belong to this blob store", files.ErrValidation)
	ErrUpstream      = fmt.Errorf("%w: blob store request failed", files.ErrUpstream)
)

// Store is the capability set the bridge needs from a remote object store.
// Objects are addressed by their public URL.
type Store interface {
	Provider() string
	List(ctx context.Context, prefix string) ([]files.BlobObject, error)
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
	Delete(ctx context.Context, url string) error
	Put(ctx context.Context, pathname string, body io.Reader, size int64, contentType string) (*files.BlobObject, error)
}

type tokenKey struct{}

// WithToken attaches a per-request vendor token that overrides the
// configured one.
func WithToken(ctx context.Context, token string) context.Context {
	token = strings.TrimSpace(token)
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context, fallback string) string {
	if t, ok := ctx.Value(tokenKey{}).(string); ok && t != "" {
		return t
	}
	return fallback
}
