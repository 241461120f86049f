// Package transport executes single HTTP exchanges on behalf of the queue
// workers, translating broker responses into a body-or-failure result.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oriys/smq/internal/observability"
)

const maxResponseBody = 1 << 20 // 1MB

// Error wraps a non-2xx response from the broker. A GET that signals "no
// message available" via a client-error status surfaces as this error too;
// callers that only care about success/failure can ignore it and retry.
type Error struct {
	StatusCode int
	Body       []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport: broker returned status %d", e.StatusCode)
}

// Request is the minimal shape Transport needs from a queued request: a
// method, an absolute URL, and an optional body.
type Request struct {
	Method string
	URL    string
	Body   []byte
}

// Transport performs one HTTP exchange synchronously, enforcing a total
// time budget covering connect, send and receive.
type Transport struct {
	// MaxRedirects caps the redirect chain the same way eventbus delivery
	// does, via the CheckRedirect func Perform installs; zero follows no
	// redirect at all.
	MaxRedirects int
}

// New returns a Transport with the same redirect ceiling eventbus delivery
// uses for webhooks.
func New() *Transport {
	return &Transport{MaxRedirects: 5}
}

// Perform issues one HTTP exchange for r and returns the response body on
// success. A non-2xx status, a connection error, or a timeout all return a
// non-nil error; RequestTransport never leaks the response body in that case
// beyond what's needed to build the returned error.
func (t *Transport) Perform(ctx context.Context, r Request, timeout time.Duration) ([]byte, error) {
	var body io.Reader
	var contentLength int64 = -1
	if r.Method == "PUT" {
		// A PUT with no payload still needs to announce a zero content
		// length instead of leaving it as "unknown" (which would make net/http
		// pick chunked transfer encoding).
		body = bytes.NewReader(r.Body)
		contentLength = int64(len(r.Body))
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, string(r.Method), r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	if contentLength >= 0 {
		req.ContentLength = contentLength
	}
	observability.InjectHeaders(ctx, req.Header)

	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= t.MaxRedirects {
				return fmt.Errorf("transport: too many redirects")
			}
			return nil
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{StatusCode: resp.StatusCode, Body: respBody}
	}

	return respBody, nil
}
