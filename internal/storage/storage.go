package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var ErrNotConfigured = errors.New("object storage is not configured")

// ObjectStore uploads and removes files in public buckets.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, name, contentType string, body io.Reader) error
	Remove(ctx context.Context, bucket string, names ...string) error
	PublicURL(bucket, name string) string
}

type Options struct {
	BaseURL      string
	APIKey       string
	CacheControl string
	Timeout      time.Duration
}

// Client talks to the Supabase Storage REST API.
type Client struct {
	baseURL      string
	apiKey       string
	cacheControl string
	http         *http.Client
	log          *zerolog.Logger
}

func NewClient(opts Options, log *zerolog.Logger) (*Client, error) {
	if opts.BaseURL == "" || opts.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid storage base url: %w", err)
	}
	if opts.CacheControl == "" {
		opts.CacheControl = "3600"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		apiKey:       opts.APIKey,
		cacheControl: opts.CacheControl,
		http:         &http.Client{Timeout: opts.Timeout},
		log:          log,
	}, nil
}

func (c *Client) objectURL(bucket, name string) string {
	return c.baseURL + "/storage/v1/object/" + url.PathEscape(bucket) + "/" + url.PathEscape(name)
}

func (c *Client) PublicURL(bucket, name string) string {
	return c.baseURL + "/storage/v1/object/public/" + bucket + "/" + name
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("apikey", c.apiKey)
}

func (c *Client) Upload(ctx context.Context, bucket, name, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.objectURL(bucket, name), body)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "max-age="+c.cacheControl)
	req.Header.Set("x-upsert", "false")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("upload %s/%s: %w", bucket, name, readAPIError(resp))
	}
	c.log.Debug().Str("bucket", bucket).Str("object", name).Msg("object uploaded")
	return nil
}

func (c *Client) Remove(ctx context.Context, bucket string, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	payload, err := json.Marshal(map[string][]string{"prefixes": names})
	if err != nil {
		return fmt.Errorf("encode remove request: %w", err)
	}
	endpoint := c.baseURL + "/storage/v1/object/" + url.PathEscape(bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build remove request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remove from %s: %w", bucket, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("remove from %s: %w", bucket, readAPIError(resp))
	}
	c.log.Debug().Str("bucket", bucket).Strs("objects", names).Msg("objects removed")
	return nil
}

// APIError is a non-2xx answer from the storage API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storage api returned %d: %s", e.StatusCode, e.Message)
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Message != "" {
			msg = parsed.Message
		} else if parsed.Error != "" {
			msg = parsed.Error
		}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

// ObjectNameFromURL returns the object name at the end of a public URL.
func ObjectNameFromURL(publicURL string) string {
	publicURL = strings.TrimSpace(publicURL)
	if publicURL == "" {
		return ""
	}
	if u, err := url.Parse(publicURL); err == nil && u.Path != "" {
		publicURL = u.Path
	}
	name := path.Base(publicURL)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
