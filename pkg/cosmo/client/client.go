package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	CorrelationIDHeader = "X-Correlation-ID"
	defaultUserAgent    = "cosmo"
	defaultTimeout      = 30 * time.Second
	maxErrorMessage     = 512
)

type Client struct {
	endpoint  string
	userAgent string
	timeout   time.Duration
	tokens    oauth2.TokenSource
	log       *zap.SugaredLogger

	api    *resty.Client
	upload *resty.Client
}

type Option func(*Client) error

func New(opts ...Option) (*Client, error) {
	c := &Client{
		userAgent: defaultUserAgent,
		timeout:   defaultTimeout,
		log:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.endpoint == "" {
		return nil, errors.New("upload endpoint is required")
	}

	c.api = c.newResty()
	if c.tokens != nil {
		c.api.SetTransport(&oauth2.Transport{
			Source: c.tokens,
			Base:   http.DefaultTransport.(*http.Transport).Clone(),
		})
	}
	// Pre-signed URLs carry their own credentials and must not see the
	// bearer token.
	c.upload = c.newResty()
	return c, nil
}

func (c *Client) newResty() *resty.Client {
	return resty.New().
		SetTimeout(c.timeout).
		SetHeader("User-Agent", c.userAgent).
		SetLogger(c.log)
}

// WithUploadEndpoint sets the URL of the upload-URL generation endpoint.
func WithUploadEndpoint(endpoint string) Option {
	return func(c *Client) error {
		if endpoint == "" {
			return errors.New("upload endpoint is required")
		}
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return fmt.Errorf("invalid upload endpoint: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid upload endpoint: %s", endpoint)
		}
		c.endpoint = endpoint
		return nil
	}
}

// WithTokenSource attaches a bearer token to every API request.
func WithTokenSource(src oauth2.TokenSource) Option {
	return func(c *Client) error {
		c.tokens = src
		return nil
	}
}

// WithToken is WithTokenSource for a fixed token.
func WithToken(token string) Option {
	return WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) error {
		c.userAgent = userAgent
		return nil
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout <= 0 {
			return errors.New("timeout must be positive")
		}
		c.timeout = timeout
		return nil
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) error {
		if log != nil {
			c.log = log
		}
		return nil
	}
}

type UploadURLParams struct {
	WidgetID    string
	Version     string
	Name        string
	Description string
}

type uploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
}

// RequestUploadURL asks the API for a pre-signed URL the widget archive can
// be PUT to.
func (c *Client) RequestUploadURL(ctx context.Context, params UploadURLParams) (string, error) {
	correlationID := uuid.NewString()
	c.log.Debugw("Requesting upload URL", "endpoint", c.endpoint, "widgetId", params.WidgetID, "version", params.Version, "correlationID", correlationID)

	resp, err := c.api.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeader(CorrelationIDHeader, correlationID).
		SetQueryParams(map[string]string{
			"type":        "widget",
			"widgetId":    params.WidgetID,
			"version":     params.Version,
			"name":        params.Name,
			"description": params.Description,
		}).
		Get(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("upload URL request failed: %w", err)
	}
	c.log.Debugw("Upload URL response", "status", resp.StatusCode(), "correlationID", correlationID)
	if resp.IsError() {
		return "", decodeError(resp)
	}

	var body uploadURLResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", fmt.Errorf("failed to decode upload URL response: %w", err)
	}
	if body.UploadURL == "" {
		return "", errors.New("upload URL response did not include an uploadUrl")
	}
	return body.UploadURL, nil
}

// Upload PUTs the archive at archivePath to a pre-signed URL.
func (c *Client) Upload(ctx context.Context, uploadURL, archivePath string) error {
	if uploadURL == "" {
		return errors.New("upload URL is required")
	}
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}
	c.log.Debugw("Uploading archive", "path", archivePath, "bytes", len(data))

	resp, err := c.upload.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/zip").
		SetBody(data).
		Put(uploadURL)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	if resp.IsError() {
		return decodeError(resp)
	}
	return nil
}

func decodeError(resp *resty.Response) error {
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	body := resp.Body()
	if len(body) > 0 {
		_ = json.Unmarshal(body, &apiErr)
	}
	msg := strings.TrimSpace(apiErr.Error)
	if msg == "" {
		msg = strings.TrimSpace(apiErr.Message)
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		if len(msg) > maxErrorMessage {
			msg = msg[:maxErrorMessage] + "..."
		}
	}
	if msg == "" {
		msg = resp.Status()
	}
	return &HTTPError{StatusCode: resp.StatusCode(), Message: msg}
}

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is an HTTP 401 from the API.
func IsUnauthorized(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized
}
