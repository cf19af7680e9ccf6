// Package osuapi polls osu! multiplayer rooms through the osu! API v2.
package osuapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"battle-royale-bot/internal/config"
	"battle-royale-bot/internal/model"
)

// ErrMatchNotFound is returned when the multiplayer room does not exist or is private.
var ErrMatchNotFound = errors.New("multiplayer room not found")

// pageSize is the largest event page the API serves.
const pageSize = 100

// Client fetches multiplayer rooms. It is safe for concurrent use; every
// request waits on one shared rate limiter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// New creates a Client authenticated with the client credentials grant.
func New(ctx context.Context, cfg *config.OsuConfig) *Client {
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       []string{"public"},
	}
	httpClient := cc.Client(ctx)
	httpClient.Timeout = cfg.RequestTimeout

	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	return NewWithHTTPClient(httpClient, cfg.BaseURL, limiter, cfg.MaxRetries)
}

// NewWithHTTPClient creates a Client on top of an already authenticated HTTP client.
func NewWithHTTPClient(httpClient *http.Client, baseURL string, limiter *rate.Limiter, maxRetries uint64) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    limiter,
		maxRetries: maxRetries,
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 30 * time.Second
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 2 * time.Minute
	return b
}

// FetchMatch returns every game played so far in a multiplayer room.
func (c *Client) FetchMatch(ctx context.Context, multiplayerID int64) (*model.ApiMultiplayerResult, error) {
	var (
		events []apiEvent
		ended  bool
		after  int64
	)
	for {
		page, err := c.fetchPage(ctx, multiplayerID, after)
		if err != nil {
			return nil, err
		}
		events = append(events, page.Events...)
		ended = page.Match.EndTime != nil

		if len(page.Events) == 0 {
			break
		}
		last := page.Events[len(page.Events)-1].ID
		if last >= page.LatestEventID || len(page.Events) < pageSize {
			break
		}
		after = last
	}

	return toResult(multiplayerID, events, ended), nil
}

func (c *Client) fetchPage(ctx context.Context, multiplayerID, after int64) (*matchResponse, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(pageSize))
	if after > 0 {
		params.Set("after", strconv.FormatInt(after, 10))
	}
	reqURL := fmt.Sprintf("%s/matches/%d?%s", c.baseURL, multiplayerID, params.Encode())

	var page matchResponse
	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limiter wait failed: %w", err))
		}
		err := c.get(ctx, reqURL, &page)
		if err != nil && !isPermanent(err) {
			log.Warn().
				Err(err).
				Int64("multiplayer_id", multiplayerID).
				Int("attempt", attempt).
				Msg("osu! API request failed, retrying")
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, fmt.Errorf("failed to fetch multiplayer room %d: %w", multiplayerID, err)
	}
	return &page, nil
}

// statusError is an unexpected HTTP status.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

func isPermanent(err error) bool {
	var perm *backoff.PermanentError
	return errors.As(err, &perm)
}

func (c *Client) get(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return backoff.Permanent(ErrMatchNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &statusError{Status: resp.StatusCode, Body: truncate(body)}
	case resp.StatusCode >= 400:
		return backoff.Permanent(&statusError{Status: resp.StatusCode, Body: truncate(body)})
	}

	if err := json.Unmarshal(body, out); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func truncate(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
