package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nas-ai/uploads-api/src/domain/files"
	"github.com/nas-ai/uploads-api/src/metrics"
	"github.com/nas-ai/uploads-api/src/services/common"
	"github.com/sirupsen/logrus"
)

const vercelPageLimit = 1000

// VercelStore talks to the Vercel Blob REST API.
type VercelStore struct {
	apiURL     string
	apiVersion string
	token      string
	hosts      []string
	client     *common.ResilientHTTPClient
	logger     *logrus.Logger
}

type VercelOptions struct {
	APIURL     string
	APIVersion string
	Token      string
	Timeout    time.Duration
	Retries    int
	// Hosts lists the hosts Fetch and Delete accept. "*.example.com" matches
	// any subdomain; an entry with a port must match host:port exactly.
	Hosts []string
}

func NewVercelStore(opts VercelOptions, logger *logrus.Logger) *VercelStore {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &VercelStore{
		apiURL:     strings.TrimRight(opts.APIURL, "/"),
		apiVersion: opts.APIVersion,
		token:      opts.Token,
		hosts:      opts.Hosts,
		client:     common.NewResilientHTTPClient(opts.Timeout, common.DefaultRetryConfig(opts.Retries), logger),
		logger:     logger,
	}
}

func (s *VercelStore) Provider() string { return ProviderVercel }

type vercelBlob struct {
	URL        string    `json:"url"`
	Pathname   string    `json:"pathname"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type vercelListResponse struct {
	Blobs   []vercelBlob `json:"blobs"`
	Cursor  string       `json:"cursor"`
	HasMore bool         `json:"hasMore"`
}

type vercelError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (b vercelBlob) object() files.BlobObject {
	return files.BlobObject{URL: b.URL, Pathname: b.Pathname, Size: b.Size, UploadedAt: b.UploadedAt}
}

func (s *VercelStore) authorize(ctx context.Context, req *http.Request) error {
	token := tokenFrom(ctx, s.token)
	if token == "" {
		return ErrMissingToken
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if s.apiVersion != "" {
		req.Header.Set("x-api-version", s.apiVersion)
	}
	return nil
}

// List pages through every blob under prefix.
func (s *VercelStore) List(ctx context.Context, prefix string) ([]files.BlobObject, error) {
	start := time.Now()
	var out []files.BlobObject
	cursor := ""

	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(vercelPageLimit))
		if prefix != "" {
			q.Set("prefix", prefix)
		}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		endpoint := s.apiURL + "?" + q.Encode()

		var page vercelListResponse
		err := s.doJSON(ctx, "list", func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return nil, err
			}
			return req, s.authorize(ctx, req)
		}, &page)
		if err != nil {
			metrics.RecordBlobOperation(ProviderVercel, "list", time.Since(start), false)
			return nil, err
		}

		for _, b := range page.Blobs {
			out = append(out, b.object())
		}
		if !page.HasMore || page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	metrics.RecordBlobOperation(ProviderVercel, "list", time.Since(start), true)
	return out, nil
}

// Fetch downloads a blob by its public URL. Public blobs need no token.
func (s *VercelStore) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	start := time.Now()
	if err := s.validateBlobURL(rawURL); err != nil {
		return nil, err
	}

	resp, err := s.client.Send(ctx, "fetch", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	})
	if err != nil {
		metrics.RecordBlobOperation(ProviderVercel, "fetch", time.Since(start), false)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		metrics.RecordBlobOperation(ProviderVercel, "fetch", time.Since(start), false)
		return nil, s.statusError(resp)
	}

	metrics.RecordBlobOperation(ProviderVercel, "fetch", time.Since(start), true)
	return resp.Body, nil
}

// Delete removes a blob by URL.
func (s *VercelStore) Delete(ctx context.Context, rawURL string) error {
	start := time.Now()
	if err := s.validateBlobURL(rawURL); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string][]string{"urls": {rawURL}})
	if err != nil {
		return err
	}

	err = s.doJSON(ctx, "delete", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/delete", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, s.authorize(ctx, req)
	}, nil)

	metrics.RecordBlobOperation(ProviderVercel, "delete", time.Since(start), err == nil)
	return err
}

// Put uploads body under pathname. The body is buffered so that retries can
// replay it.
func (s *VercelStore) Put(ctx context.Context, pathname string, body io.Reader, size int64, contentType string) (*files.BlobObject, error) {
	start := time.Now()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read blob body: %w", err)
	}

	endpoint := s.apiURL + "/" + escapePathname(pathname)
	var created vercelBlob
	err = s.doJSON(ctx, "put", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		if contentType != "" {
			req.Header.Set("x-content-type", contentType)
		}
		req.Header.Set("x-add-random-suffix", "0")
		req.ContentLength = int64(len(data))
		return req, s.authorize(ctx, req)
	}, &created)
	if err != nil {
		metrics.RecordBlobOperation(ProviderVercel, "put", time.Since(start), false)
		return nil, err
	}

	obj := created.object()
	if obj.Pathname == "" {
		obj.Pathname = pathname
	}
	if obj.Size == 0 {
		obj.Size = int64(len(data))
	}
	metrics.RecordBlobOperation(ProviderVercel, "put", time.Since(start), true)
	return &obj, nil
}

func (s *VercelStore) doJSON(ctx context.Context, op string, build common.RequestBuilder, out interface{}) error {
	resp, err := s.client.Send(ctx, op, build)
	if err != nil {
		if errors.Is(err, files.ErrValidation) {
			return err
		}
		return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return s.statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrUpstream, op, err)
	}
	return nil
}

func (s *VercelStore) statusError(resp *http.Response) error {
	if resp.StatusCode == http.StatusNotFound {
		return ErrBlobNotFound
	}

	var apiErr vercelError
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	s.logger.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"message":     msg,
	}).Warn("Blob store request rejected")

	return fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, msg)
}

func (s *VercelStore) validateBlobURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: invalid blob url", files.ErrValidation)
	}
	if !hostAllowed(u, s.hosts) {
		return ErrForeignURL
	}
	return nil
}

func hostAllowed(u *url.URL, allowed []string) bool {
	host := strings.ToLower(u.Hostname())
	for _, pattern := range allowed {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		switch {
		case strings.HasPrefix(pattern, "*."):
			if strings.HasSuffix(host, pattern[1:]) {
				return true
			}
		case strings.Contains(pattern, ":"):
			if strings.ToLower(u.Host) == pattern {
				return true
			}
		case host == pattern:
			return true
		}
	}
	return false
}

func escapePathname(pathname string) string {
	parts := strings.Split(strings.TrimLeft(pathname, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
