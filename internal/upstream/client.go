// Package upstream is the gateway's single-shot HTTP relay to third-party
// providers. It performs no retries: retry policy belongs to the caller.
package upstream

import (
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

// ErrUnreachable classifies network-level failures (connect errors,
// timeouts) as distinct from upstream responses with error status codes,
// which are relayed as-is.
type ErrUnreachable struct {
	cause error
}

func (e *ErrUnreachable) Error() string {
	return fmt.Sprintf("upstream unreachable: %v", e.cause)
}

func (e *ErrUnreachable) Unwrap() error { return e.cause }

// Response carries the relayed upstream result. The status code is
// preserved so callers can apply provider-specific error handling.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Client wraps a fasthttp client with a hard per-call timeout.
type Client struct {
	http    *fasthttp.Client
	timeout time.Duration
}

func New(timeout time.Duration) *Client {
	return &Client{
		http: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		timeout: timeout,
	}
}

// Post forwards body verbatim to url and returns the upstream response.
func (c *Client) Post(url, contentType string, body []byte, headers map[string]string) (*Response, error) {
	return c.do(fasthttp.MethodPost, url, contentType, body, headers)
}

// Get performs a GET relay against url.
func (c *Client) Get(url string, headers map[string]string) (*Response, error) {
	return c.do(fasthttp.MethodGet, url, "", nil, headers)
}

func (c *Client) do(method, url, contentType string, body []byte, headers map[string]string) (*Response, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	if contentType != "" {
		req.Header.SetContentType(contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.SetBody(body)
	}

	if err := c.http.DoTimeout(req, resp, c.timeout); err != nil {
		return nil, &ErrUnreachable{cause: err}
	}

	out := &Response{
		Status:      resp.StatusCode(),
		ContentType: string(resp.Header.ContentType()),
	}
	// Copy out of the pooled response before release.
	out.Body = append([]byte(nil), resp.Body()...)
	return out, nil
}
