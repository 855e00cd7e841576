package blob

import (
	"context"
	"time"

	"github.com/nas-ai/uploads-api/src/config"
	"github.com/sirupsen/logrus"
)

// NewFromConfig selects the backend named by blob.provider. An empty
// provider means Vercel Blob, whose token may also arrive per request.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (Store, error) {
	timeout := time.Duration(cfg.BlobTimeoutSecs) * time.Second

	switch cfg.BlobProvider {
	case ProviderS3:
		return NewS3Store(ctx, S3Options{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			PublicURL:    cfg.S3PublicURL,
			UsePathStyle: cfg.S3UsePathStyle,
			Retries:      cfg.BlobRetries,
		}, logger)
	default:
		return NewVercelStore(VercelOptions{
			APIURL:     cfg.BlobAPIURL,
			APIVersion: cfg.BlobAPIVersion,
			Token:      cfg.BlobToken,
			Timeout:    timeout,
			Retries:    cfg.BlobRetries,
			Hosts:      cfg.BlobHosts,
		}, logger), nil
	}
}
