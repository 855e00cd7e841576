package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/nas-ai/uploads-api/src/domain/files"
	"github.com/nas-ai/uploads-api/src/metrics"
	"github.com/sirupsen/logrus"
)

// S3Options configures an S3 compatible bucket (AWS, MinIO, R2).
type S3Options struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	PublicURL    string
	UsePathStyle bool
	Retries      int
}

// S3Store implements Store against a single bucket. Object URLs are the
// public base URL joined with the object key.
type S3Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
	logger    *logrus.Logger
}

// NewS3Store builds the client. It does not touch the network.
func NewS3Store(ctx context.Context, opts S3Options, logger *logrus.Logger) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, ErrNotConfigured
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
		config.WithRetryMaxAttempts(opts.Retries + 1),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = opts.UsePathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	publicURL := strings.TrimRight(opts.PublicURL, "/")
	if publicURL == "" {
		publicURL = defaultPublicURL(opts)
	}

	return &S3Store{
		client:    client,
		bucket:    opts.Bucket,
		publicURL: publicURL,
		logger:    logger,
	}, nil
}

func defaultPublicURL(opts S3Options) string {
	if opts.Endpoint != "" {
		return strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
}

func (s *S3Store) Provider() string { return ProviderS3 }

// URLFor returns the public URL of key.
func (s *S3Store) URLFor(key string) string {
	return s.publicURL + "/" + escapePathname(key)
}

func (s *S3Store) keyFor(rawURL string) (string, error) {
	if err := validateBlobURL(rawURL); err != nil {
		return "", err
	}
	if !strings.HasPrefix(rawURL, s.publicURL+"/") {
		return "", ErrForeignURL
	}
	key, err := url.PathUnescape(strings.TrimPrefix(rawURL, s.publicURL+"/"))
	if err != nil || key == "" {
		return "", fmt.Errorf("%w: invalid object key", files.ErrValidation)
	}
	return key, nil
}

// HealthCheck verifies the bucket is reachable.
func (s *S3Store) HealthCheck(ctx context.Context) error {
	start := time.Now()
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	metrics.RecordBlobOperation(ProviderS3, "head_bucket", time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("%w: head bucket %s: %v", ErrUpstream, s.bucket, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]files.BlobObject, error) {
	start := time.Now()

	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var out []files.BlobObject
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			metrics.RecordBlobOperation(ProviderS3, "list_objects", time.Since(start), false)
			return nil, fmt.Errorf("%w: list objects: %v", ErrUpstream, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			out = append(out, files.BlobObject{
				URL:        s.URLFor(key),
				Pathname:   key,
				Size:       aws.ToInt64(obj.Size),
				UploadedAt: aws.ToTime(obj.LastModified),
			})
		}
	}

	metrics.RecordBlobOperation(ProviderS3, "list_objects", time.Since(start), true)
	return out, nil
}

func (s *S3Store) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	key, err := s.keyFor(rawURL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		metrics.RecordBlobOperation(ProviderS3, "get_object", time.Since(start), false)
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("%w: get object %s: %v", ErrUpstream, key, err)
	}

	metrics.RecordBlobOperation(ProviderS3, "get_object", time.Since(start), true)
	return result.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, rawURL string) error {
	key, err := s.keyFor(rawURL)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		metrics.RecordBlobOperation(ProviderS3, "delete_object", time.Since(start), false)
		return fmt.Errorf("%w: delete object %s: %v", ErrUpstream, key, err)
	}

	metrics.RecordBlobOperation(ProviderS3, "delete_object", time.Since(start), true)
	s.logger.WithField("key", key).Debug("S3 delete object")
	return nil
}

// Put uploads body under pathname. Non seekable bodies are buffered since
// the SDK needs to rewind for signing and retries.
func (s *S3Store) Put(ctx context.Context, pathname string, body io.Reader, size int64, contentType string) (*files.BlobObject, error) {
	key := strings.TrimLeft(pathname, "/")
	if key == "" {
		return nil, fmt.Errorf("%w: empty object key", files.ErrValidation)
	}

	var reader io.ReadSeeker
	if rs, ok := body.(io.ReadSeeker); ok {
		reader = rs
	} else {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("read blob body: %w", err)
		}
		reader = bytes.NewReader(data)
		size = int64(len(data))
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   reader,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	start := time.Now()
	if _, err := s.client.PutObject(ctx, input); err != nil {
		metrics.RecordBlobOperation(ProviderS3, "put_object", time.Since(start), false)
		return nil, fmt.Errorf("%w: put object %s: %v", ErrUpstream, key, err)
	}
	metrics.RecordBlobOperation(ProviderS3, "put_object", time.Since(start), true)

	s.logger.WithFields(logrus.Fields{"key": key, "size": size}).Debug("S3 put object")
	return &files.BlobObject{
		URL:        s.URLFor(key),
		Pathname:   key,
		Size:       size,
		UploadedAt: time.Now().UTC(),
	}, nil
}
