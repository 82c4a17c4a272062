package logs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"petscan/internal/logging"
)

// ErrAPIUnavailable reports that no station answered on the configured bind.
var ErrAPIUnavailable = errors.New("log API unavailable")

// StreamClient fetches log events from a running station.
type StreamClient struct {
	base  *url.URL
	token string
	http  *http.Client
}

// StreamQuery selects a page of events.
type StreamQuery struct {
	Since     uint64
	Limit     int
	Follow    bool
	Component string
	Level     string
}

// Page is one /api/logs response. Next is the cursor for the following call.
type Page struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}

// NewStreamClient returns nil when baseURL is blank.
func NewStreamClient(baseURL, token string) (*StreamClient, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, nil
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse station url: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	// No timeout: follow requests block until an event arrives or the caller cancels.
	return &StreamClient{
		base:  base,
		token: strings.TrimSpace(token),
		http:  &http.Client{},
	}, nil
}

func (c *StreamClient) Fetch(ctx context.Context, q StreamQuery) (Page, error) {
	if c == nil {
		return Page{}, ErrAPIUnavailable
	}

	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if component := strings.TrimSpace(q.Component); component != "" {
		values.Set("component", component)
	}
	if level := strings.TrimSpace(q.Level); level != "" {
		values.Set("level", level)
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: "/api/logs", RawQuery: values.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return Page{}, errors.New("station rejected the API token (check paths.api_token)")
	case resp.StatusCode >= 400:
		return Page{}, fmt.Errorf("station logs returned status %d", resp.StatusCode)
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return Page{}, fmt.Errorf("decode station logs: %w", err)
	}
	return page, nil
}

// IsAPIUnavailable reports whether err means the station could not be reached
// at all, as opposed to answering with an error.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
