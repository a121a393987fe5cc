// Package request is the console's API client. Every call goes through
// two interceptors: one attaches the stored Basic credentials, the other
// turns failures into operator notices and handles expired logins.
package request

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/imroc/req/v3"

	"github.com/goban/core/internal/client/credentials"
	"github.com/goban/core/internal/client/notify"
	"github.com/goban/core/internal/client/router"
	"github.com/goban/core/internal/i18n"
)

// DefaultTimeout bounds every call
const DefaultTimeout = 30 * time.Second

// ErrUnauthorized marks a call the server rejected with 401
var ErrUnauthorized = errors.New("unauthorized")

// ResponseError is a failed call. StatusCode is 0 when no response arrived.
type ResponseError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ResponseError) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s (status %d): %v", e.Message, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err came from a 401 response
func IsUnauthorized(err error) bool {
	var re *ResponseError
	return errors.As(err, &re) && re.StatusCode == http.StatusUnauthorized
}

// Navigator moves the console to another route
type Navigator interface {
	Push(path string) string
}

// Options configure a Client
type Options struct {
	ServerURL string
	Timeout   time.Duration
	Language  string
}

// Client is safe for concurrent use
type Client struct {
	http   *req.Client
	store  credentials.Store
	nav    Navigator
	notify notify.Notifier
	lang   string
}

// New builds a client rooted at <server>/api
func New(opts Options, store credentials.Store, nav Navigator, notifier notify.Notifier) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		store:  store,
		nav:    nav,
		notify: notifier,
		lang:   i18n.Normalize(opts.Language),
	}

	c.http = req.C().
		SetBaseURL(strings.TrimRight(opts.ServerURL, "/") + "/api").
		SetTimeout(timeout).
		SetCommonHeader("Accept", "application/json").
		SetCommonHeader("Accept-Language", c.lang).
		OnBeforeRequest(c.beforeRequest).
		OnAfterResponse(c.afterResponse)

	return c
}

func (c *Client) beforeRequest(_ *req.Client, r *req.Request) error {
	if username, password, ok := credentials.Load(c.store); ok {
		r.SetBasicAuth(username, password)
	}
	return nil
}

func (c *Client) afterResponse(_ *req.Client, resp *req.Response) error {
	if resp.Err != nil {
		var re *ResponseError
		if errors.As(resp.Err, &re) {
			return nil
		}
		return c.broken(resp, resp.Err)
	}
	if resp.Response == nil || resp.IsSuccessState() {
		return nil
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return c.unauthorized()
	}
	return c.failed(resp.StatusCode, serverMessage(resp.Bytes()), nil)
}

func (c *Client) unauthorized() error {
	// A failed Clear still has to navigate away.
	_ = credentials.Clear(c.store)

	msg := i18n.T(c.lang, i18n.Unauthorized)
	c.notify.Error(msg)
	if c.nav != nil {
		c.nav.Push(router.LoginPath)
	}
	return &ResponseError{StatusCode: http.StatusUnauthorized, Message: msg, Err: ErrUnauthorized}
}

func (c *Client) failed(status int, msg string, cause error) error {
	if msg == "" {
		msg = i18n.T(c.lang, i18n.RequestFailed)
	}
	c.notify.Error(msg)
	return &ResponseError{StatusCode: status, Message: msg, Err: cause}
}

// broken handles a call that produced no usable response body. A caller
// that gave up is not notified.
func (c *Client) broken(resp *req.Response, cause error) error {
	if errors.Is(cause, context.Canceled) {
		return cause
	}
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	return c.failed(status, "", cause)
}

func serverMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Error
}

// call sends one request. out receives the decoded 2xx body.
func (c *Client) call(ctx context.Context, method, path string, query map[string]string, body, out interface{}) error {
	r := c.http.R().SetContext(ctx)
	if len(query) > 0 {
		r.SetQueryParams(query)
	}
	if body != nil {
		r.SetBodyJsonMarshal(body)
	}
	if out != nil {
		r.SetSuccessResult(out)
	}

	resp, err := r.Send(method, path)
	if err == nil {
		return nil
	}

	var re *ResponseError
	if errors.As(err, &re) {
		return re
	}
	return c.broken(resp, err)
}
