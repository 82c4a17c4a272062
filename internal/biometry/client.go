package biometry

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"petscan/internal/config"
	"petscan/internal/frame"
	"petscan/internal/logging"
	"petscan/internal/services"
)

const (
	// MinThreshold and MaxResultsLimit mirror the registry's request constraints.
	MinThreshold    = 0.5
	MaxResultsLimit = 20

	maxErrorBody = 64 << 10
)

// Searcher is the subset of the client the scan loop depends on.
type Searcher interface {
	Search(ctx context.Context, img frame.Image, threshold float64, maxResults int) (*SearchResult, error)
	FetchProfile(ctx context.Context, petID int64) (*Profile, error)
}

// Client talks to the pet registry REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validate
	logger     *slog.Logger
	now        func() time.Time
}

var _ Searcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "biometry")
	}
}

// New creates a registry client rooted at baseURL (e.g. http://host/api/v1).
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("registry base url required")
	}
	if parsed, err := url.Parse(baseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("registry base url %q must be absolute", baseURL)
	}
	client := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logging.NewComponentLogger(nil, "biometry"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// NewFromConfig builds a client from the [api] section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	return New(cfg.API.BaseURL,
		WithHTTPClient(&http.Client{Timeout: cfg.APITimeout()}),
		WithLogger(logger),
	)
}

// Search submits one image to the matcher. It makes exactly one request.
func (c *Client) Search(ctx context.Context, img frame.Image, threshold float64, maxResults int) (*SearchResult, error) {
	if img.Empty() {
		return nil, services.Wrap(services.ErrValidation, "biometry", "search", "image is empty", nil)
	}
	req := searchRequest{
		ImageBase64: img.Payload(),
		Threshold:   threshold,
		MaxResults:  maxResults,
	}
	if err := c.validate.Struct(req); err != nil {
		return nil, services.Wrap(services.ErrValidation, "biometry", "search",
			fmt.Sprintf("threshold must be within [%.1f, 1] and max results within [1, %d]", MinThreshold, MaxResultsLimit), err)
	}

	var result SearchResult
	if err := c.do(ctx, "search", http.MethodPost, "/biometry/search", nil, req, &result, http.StatusOK); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(result); err != nil {
		return nil, services.Wrap(services.ErrTransport, "biometry", "search", "malformed response", err)
	}
	slices.SortStableFunc(result.Candidates, func(a, b Candidate) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if len(result.Candidates) == 0 {
		result.Found = false
	}
	return &result, nil
}

// FetchProfile loads the contact-complete profile of an identified pet.
func (c *Client) FetchProfile(ctx context.Context, petID int64) (*Profile, error) {
	if petID <= 0 {
		return nil, services.Wrap(services.ErrValidation, "biometry", "fetch profile", "pet id must be positive", nil)
	}
	var profile Profile
	path := fmt.Sprintf("/public/pet/%d/identified", petID)
	if err := c.do(ctx, "fetch profile", http.MethodGet, path, nil, nil, &profile, http.StatusOK); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(profile); err != nil {
		return nil, services.Wrap(services.ErrTransport, "biometry", "fetch profile", "malformed response", err)
	}
	return &profile, nil
}

// Register enrolls img as the nose-print of the owner's pet.
func (c *Client) Register(ctx context.Context, creds Credentials, petID int64, img frame.Image) (*Enrollment, error) {
	if err := creds.Check(c.now()); err != nil {
		return nil, err
	}
	req := registerRequest{PetID: petID, ImageBase64: img.Payload()}
	if err := c.validate.Struct(req); err != nil {
		return nil, services.Wrap(services.ErrValidation, "biometry", "register", "pet id and image are required", err)
	}
	var enrollment Enrollment
	if err := c.do(ctx, "register", http.MethodPost, "/biometry/register", &creds, req, &enrollment, http.StatusCreated, http.StatusOK); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Status returns the stored nose-print record for a pet.
func (c *Client) Status(ctx context.Context, creds Credentials, petID int64) (*Enrollment, error) {
	if err := creds.Check(c.now()); err != nil {
		return nil, err
	}
	if petID <= 0 {
		return nil, services.Wrap(services.ErrValidation, "biometry", "status", "pet id must be positive", nil)
	}
	var enrollment Enrollment
	if err := c.do(ctx, "status", http.MethodGet, fmt.Sprintf("/biometry/%d", petID), &creds, nil, &enrollment, http.StatusOK); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Delete removes the stored nose-print of a pet.
func (c *Client) Delete(ctx context.Context, creds Credentials, petID int64) error {
	if err := creds.Check(c.now()); err != nil {
		return err
	}
	if petID <= 0 {
		return services.Wrap(services.ErrValidation, "biometry", "delete", "pet id must be positive", nil)
	}
	return c.do(ctx, "delete", http.MethodDelete, fmt.Sprintf("/biometry/%d", petID), &creds, nil, nil, http.StatusNoContent, http.StatusOK)
}

func (c *Client) do(ctx context.Context, op, method, path string, creds *Credentials, body, out any, expect ...int) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return services.Wrap(services.ErrValidation, "biometry", op, "encode request", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "biometry", op, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds != nil {
		req.Header.Set("Authorization", creds.header())
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return services.Wrap(transportMarker(err), "biometry", op, fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	c.logger.Debug("registry request completed",
		logging.String("operation", op),
		logging.String("method", method),
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("latency", latency),
	)

	if !slices.Contains(expect, resp.StatusCode) {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: resp.StatusCode, Reason: reasonFromBody(resp.StatusCode, raw)}
		return services.Wrap(statusMarker(op, resp.StatusCode), "biometry", op, "", apiErr)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTransport, "biometry", op, "decode response", err)
	}
	return nil
}

func statusMarker(op string, status int) error {
	switch {
	case status == http.StatusNotFound:
		return services.ErrNotFound
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return services.ErrTimeout
	case op == "register" && (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity):
		return services.ErrValidation
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.ErrConfiguration
	default:
		return services.ErrTransport
	}
}

func transportMarker(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.ErrTimeout
	}
	return services.ErrTransport
}
