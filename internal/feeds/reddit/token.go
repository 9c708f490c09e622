package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/abelbrown/vibenews/internal/httpclient"
	"github.com/abelbrown/vibenews/internal/logging"
)

// DefaultTokenURL is Reddit's OAuth2 token endpoint.
const DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"

const (
	// refreshMargin is how long before expiry a cached token is replaced.
	refreshMargin = 60 * time.Second
	// exchangeTimeout bounds one token exchange.
	exchangeTimeout = 15 * time.Second
)

var (
	// ErrMissingCredentials means no client id or secret is configured.
	ErrMissingCredentials = errors.New("reddit: client credentials not configured")
	// ErrAuthFailed wraps every failed token exchange.
	ErrAuthFailed = errors.New("reddit: token exchange failed")
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// TokenSource caches an application-only OAuth token obtained with the
// client-credentials grant. Concurrent refreshes collapse into one request.
type TokenSource struct {
	client       *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	userAgent    string
	now          func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time

	group singleflight.Group
}

// NewTokenSource creates a token cache. An empty tokenURL uses DefaultTokenURL.
func NewTokenSource(client *http.Client, tokenURL, clientID, clientSecret, userAgent string) *TokenSource {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &TokenSource{
		client:       client,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
		now:          time.Now,
	}
}

// AccessToken returns a token valid for at least another minute, fetching a
// new one when needed. The exchange is shared by every caller waiting on it
// and does not inherit any caller's cancellation; each caller still stops
// waiting when its own ctx ends.
func (ts *TokenSource) AccessToken(ctx context.Context) (string, error) {
	if ts.clientID == "" || ts.clientSecret == "" {
		return "", ErrMissingCredentials
	}
	if tok, ok := ts.cached(); ok {
		return tok, nil
	}

	ch := ts.group.DoChan("token", func() (any, error) {
		if tok, ok := ts.cached(); ok {
			return tok, nil
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exchangeTimeout)
		defer cancel()
		return ts.refresh(rctx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token so the next call refreshes it.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.token = ""
	ts.expiry = time.Time{}
}

func (ts *TokenSource) cached() (string, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token != "" && ts.now().Before(ts.expiry.Add(-refreshMargin)) {
		return ts.token, true
	}
	return "", false
}

func (ts *TokenSource) refresh(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	req.SetBasicAuth(ts.clientID, ts.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if ts.userAgent != "" {
		req.Header.Set("User-Agent", ts.userAgent)
	}

	issued := ts.now()
	resp, err := ts.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	if err := httpclient.CheckStatus(resp); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decode: %w", ErrAuthFailed, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access_token", ErrAuthFailed)
	}

	ts.mu.Lock()
	ts.token = tr.AccessToken
	ts.expiry = issued.Add(time.Duration(tr.ExpiresIn) * time.Second)
	ts.mu.Unlock()

	logging.Debug("reddit: token refreshed", "expires_in", tr.ExpiresIn)
	return tr.AccessToken, nil
}
