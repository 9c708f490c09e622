// Package httpclient provides the pooled HTTP client shared by every source
// adapter.
//
// Callers MUST close response bodies, even on non-2xx status:
//
//	resp, err := client.Do(req)
//	if err != nil {
//	    return err
//	}
//	defer resp.Body.Close()
//
// One client is built per process and handed to all adapters, so they share
// one connection pool.
package httpclient

import (
	"fmt"
	"net"
	"net/http"
	"time"
)

// Options tune the shared transport.
type Options struct {
	ConnectTimeout      time.Duration
	RequestTimeout      time.Duration
	MaxConnsPerHost     int
	MaxIdleConnsPerHost int
	UserAgent           string
}

// DefaultOptions match the limits the upstream APIs tolerate.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout:      5 * time.Second,
		RequestTimeout:      15 * time.Second,
		MaxConnsPerHost:     100,
		MaxIdleConnsPerHost: 20,
		UserAgent:           "AI-Vibe-News/1.0",
	}
}

// New builds a client with a pooled transport. Zero fields fall back to
// DefaultOptions.
func New(opts Options) *http.Client {
	def := DefaultOptions()
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = def.ConnectTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = def.RequestTimeout
	}
	if opts.MaxConnsPerHost <= 0 {
		opts.MaxConnsPerHost = def.MaxConnsPerHost
	}
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = def.MaxIdleConnsPerHost
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          opts.MaxIdleConnsPerHost * 5,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		MaxConnsPerHost:       opts.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	var rt http.RoundTripper = transport
	if opts.UserAgent != "" {
		rt = &userAgentTransport{next: transport, ua: opts.UserAgent}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   opts.RequestTimeout,
	}
}

// userAgentTransport sets User-Agent on requests that do not carry one.
type userAgentTransport struct {
	next http.RoundTripper
	ua   string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.ua)
	}
	return t.next.RoundTrip(req)
}

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.StatusCode)
}

// CheckStatus returns a *StatusError when resp is not 2xx.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &StatusError{URL: resp.Request.URL.String(), StatusCode: resp.StatusCode}
}
