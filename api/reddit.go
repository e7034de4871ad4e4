package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	baseURL          = "https://oauth.reddit.com"
	authURL          = "https://www.reddit.com/api/v1/access_token"
	permalinkBaseURL = "https://reddit.com"
	maxPageSize      = 100 // max number of items per listing request
)

// AuthenticationError is returned when credentials are missing or rejected by Reddit.
// It is never retried.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reddit authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("reddit authentication failed: %s", e.Reason)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// StatusError is returned for any non-200 response from the Reddit API
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// RedditAPI represents a Reddit API client
type RedditAPI struct {
	clientID     string
	clientSecret string
	userAgent    string
	baseURL      string
	authURL      string
	httpClient   *http.Client
	accessToken  string
	tokenExpiry  time.Time
	mutex        sync.RWMutex
	log          *logrus.Logger
	rateLimiter  *rate.Limiter
}

// NewRedditAPI creates a new Reddit API client. No request is made until Connect
// or the first API call.
func NewRedditAPI(clientID, clientSecret, userAgent string, maxRequestsPerMinute int, log *logrus.Logger) *RedditAPI {
	// default to 100 requests per minute (real Reddit limit)
	if maxRequestsPerMinute <= 0 {
		maxRequestsPerMinute = 100
	}

	// use 95% of the allowed rate, no burst
	requestsPerSecond := float64(maxRequestsPerMinute) / 60.0 * 0.95

	return &RedditAPI{
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
		baseURL:      baseURL,
		authURL:      authURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// reddit answers searches of unknown subreddits with a redirect; surface it as an error
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log:         log,
		rateLimiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// Connect authenticates eagerly so credential problems surface before collection starts
func (r *RedditAPI) Connect(ctx context.Context) error {
	return r.authenticate(ctx)
}

// authenticate obtains an application-only token unless a valid one is cached
func (r *RedditAPI) authenticate(ctx context.Context) error {
	r.mutex.RLock()
	token := r.accessToken
	expiry := r.tokenExpiry
	r.mutex.RUnlock()

	if token != "" && time.Now().Before(expiry) {
		return nil
	}

	if r.clientID == "" || r.clientSecret == "" {
		return &AuthenticationError{Reason: "REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET are required"}
	}

	r.log.Info("Authenticating with Reddit API")

	if err := r.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.authURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create auth request: %w", err)
	}

	req.SetBasicAuth(r.clientID, r.clientSecret)
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return &AuthenticationError{Reason: "token request failed", Err: err}
	}
	defer resp.Body.Close()

	r.updateRateLimits(resp)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &AuthenticationError{
			Reason: "credentials rejected",
			Err:    &StatusError{StatusCode: resp.StatusCode, URL: r.authURL, Body: string(body)},
		}
	}

	var authResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
		Error       string `json:"error"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return &AuthenticationError{Reason: "failed to decode token response", Err: err}
	}

	// reddit reports bad credentials with a 200 and an error field
	if authResp.AccessToken == "" {
		reason := "no access token in response"
		if authResp.Error != "" {
			reason = authResp.Error
		}
		return &AuthenticationError{Reason: reason}
	}

	r.mutex.Lock()
	r.accessToken = authResp.AccessToken
	// refresh a minute early so a token never expires mid-request
	r.tokenExpiry = time.Now().Add(time.Duration(authResp.ExpiresIn)*time.Second - time.Minute)
	r.mutex.Unlock()

	r.log.Info("Successfully authenticated with Reddit API")
	return nil
}

// getJSON performs an authenticated GET against the API and decodes the JSON body into out
func (r *RedditAPI) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := r.authenticate(ctx); err != nil {
		return err
	}

	if err := r.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("raw_json", "1")
	endpoint := r.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	r.mutex.RLock()
	token := r.accessToken
	r.mutex.RUnlock()

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", r.userAgent)

	r.log.WithField("endpoint", endpoint).Debug("Requesting Reddit API")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	r.updateRateLimits(resp)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		r.log.WithFields(logrus.Fields{
			"path":          path,
			"response_body": string(body),
			"status_code":   resp.StatusCode,
		}).Debug("Reddit API error response")
		return &StatusError{StatusCode: resp.StatusCode, URL: r.baseURL + path, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// updateRateLimits logs the rate limit headers Reddit returns.
// Pacing itself is done by the local limiter.
func (r *RedditAPI) updateRateLimits(resp *http.Response) {
	// X-Ratelimit-Used: Approximate number of requests used in this period
	// X-Ratelimit-Remaining: Approximate number of requests left to use
	// X-Ratelimit-Reset: Approximate number of seconds to end of period
	used := getHeaderAsInt(resp.Header, "X-Ratelimit-Used")
	remaining := getHeaderAsInt(resp.Header, "X-Ratelimit-Remaining")
	reset := getHeaderAsInt(resp.Header, "X-Ratelimit-Reset")

	if reset == 0 && used == 0 {
		return
	}

	r.log.WithFields(logrus.Fields{
		"used":      used,
		"remaining": remaining,
		"reset_sec": reset,
		"limit":     float64(r.rateLimiter.Limit()),
	}).Debug("Reddit rate limit status")
}

func getHeaderAsInt(header http.Header, name string) int {
	value := header.Get(name)
	if value == "" {
		return 0
	}

	// reddit sends remaining as a float, e.g. "598.0"
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return int(f)
	}

	return 0
}

// epochToTime converts reddit's created_utc seconds into a UTC time
func epochToTime(epoch float64) time.Time {
	return time.Unix(int64(epoch), 0).UTC()
}
