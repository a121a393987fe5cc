// Package bili talks to the video platform's web and passport APIs.
package bili

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/imroc/req/v3"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/infrastructure/config"
	"github.com/goban/core/internal/infrastructure/logger"
	"github.com/goban/core/internal/ports"
)

const (
	codeOK             = 0
	codeNotLoggedIn    = -101
	codeCommentsClosed = 12002

	qrPending = -4
	qrScanned = -5
	qrExpired = -2

	reportTypeVideo = "1"
)

// envelope is the common platform response shape.
type envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func (e *envelope[T]) err(action string) error {
	if e.Code == codeOK {
		return nil
	}
	return fmt.Errorf("%w: %s: %s (code=%d)", entities.ErrUpstreamFailure, action, e.Message, e.Code)
}

// Gateway serves the account-less endpoints and hands out per-account clients.
type Gateway struct {
	cfg  config.PlatformConfig
	http *req.Client
	log  *logger.Logger
}

var _ ports.PlatformGateway = (*Gateway)(nil)

// NewGateway creates a platform gateway
func NewGateway(cfg config.PlatformConfig, log *logger.Logger) *Gateway {
	log = log.WithComponent("bili")
	return &Gateway{
		cfg:  cfg,
		http: newHTTPClient(cfg, log),
		log:  log,
	}
}

func newHTTPClient(cfg config.PlatformConfig, log *logger.Logger) *req.Client {
	client := req.C().
		SetTimeout(cfg.Timeout).
		EnableKeepAlives().
		ImpersonateChrome().
		SetCommonHeader("Referer", "https://www.bilibili.com/")

	client.OnAfterResponse(func(_ *req.Client, resp *req.Response) error {
		if resp.Err != nil {
			return nil
		}
		log.Debugw("platform response",
			"method", resp.Request.Method,
			"url", resp.Request.RawURL,
			"status_code", resp.StatusCode,
			"duration_ms", resp.TotalTime().Milliseconds(),
		)
		return nil
	})

	return client
}

func (g *Gateway) GenerateQRCode(ctx context.Context) (*entities.QRCode, error) {
	var result envelope[struct {
		URL      string `json:"url"`
		OauthKey string `json:"oauthKey"`
	}]

	resp, err := g.http.R().
		SetContext(ctx).
		SetSuccessResult(&result).
		Get(g.cfg.PassportBaseURL + "/qrcode/getLoginUrl")
	if err := checkResponse(resp, err, "generate qrcode"); err != nil {
		return nil, err
	}
	if err := result.err("generate qrcode"); err != nil {
		return nil, err
	}

	return &entities.QRCode{URL: result.Data.URL, AuthCode: result.Data.OauthKey}, nil
}

// PollQRCode asks the passport service how far a QR login has progressed.
// On failure the platform sends a bare number as data, on success an object
// carrying the redirect URL with the session cookies.
func (g *Gateway) PollQRCode(ctx context.Context, authCode string) (*entities.QRPoll, error) {
	var result struct {
		Status  bool            `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}

	resp, err := g.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"oauthKey": authCode,
			"gourl":    "https://www.bilibili.com/",
		}).
		SetSuccessResult(&result).
		Post(g.cfg.PassportBaseURL + "/qrcode/getLoginInfo")
	if err := checkResponse(resp, err, "poll qrcode"); err != nil {
		return nil, err
	}

	if result.Status {
		var data struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(result.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: decode login result: %v", entities.ErrUpstreamFailure, err)
		}

		cookies := CookiesFromLoginURL(data.URL)
		if cookies == "" {
			return &entities.QRPoll{Status: entities.LoginStatusFailed, Message: "login succeeded but cookies were missing"}, nil
		}
		return &entities.QRPoll{Status: entities.LoginStatusSuccess, Cookies: cookies, Message: "login succeeded"}, nil
	}

	code, err := pollCode(result.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode poll state: %v", entities.ErrUpstreamFailure, err)
	}

	switch code {
	case qrScanned:
		return &entities.QRPoll{Status: entities.LoginStatusScanned, Message: "scanned, waiting for confirmation"}, nil
	case qrExpired:
		return &entities.QRPoll{Status: entities.LoginStatusExpired, Message: "qrcode expired"}, nil
	case qrPending:
		return &entities.QRPoll{Status: entities.LoginStatusPending, Message: "waiting for scan"}, nil
	default:
		g.log.Warnw("unknown qrcode poll state", "code", code, "message", result.Message)
		return &entities.QRPoll{Status: entities.LoginStatusPending, Message: "waiting for scan"}, nil
	}
}

func pollCode(data json.RawMessage) (int, error) {
	var code int
	if err := json.Unmarshal(data, &code); err == nil {
		return code, nil
	}

	var wrapped struct {
		Code int `json:"code"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return 0, err
	}
	return wrapped.Code, nil
}

// Profile resolves the account behind cookies. Rejected cookies yield
// ErrInvalidCookies.
func (g *Gateway) Profile(ctx context.Context, cookies string) (*entities.Profile, error) {
	if cookies == "" {
		return nil, entities.ErrEmptyCookies
	}

	var result envelope[struct {
		Mid   int64  `json:"mid"`
		Name  string `json:"name"`
		Face  string `json:"face"`
		Level int    `json:"level"`
	}]

	resp, err := g.http.R().
		SetContext(ctx).
		SetHeader("Cookie", cookies).
		SetSuccessResult(&result).
		Get(g.cfg.APIBaseURL + "/x/space/myinfo")
	if err := checkResponse(resp, err, "get profile"); err != nil {
		return nil, err
	}
	if result.Code == codeNotLoggedIn {
		return nil, entities.ErrInvalidCookies
	}
	if err := result.err("get profile"); err != nil {
		return nil, err
	}

	return &entities.Profile{
		Mid:   result.Data.Mid,
		Uname: result.Data.Name,
		Face:  result.Data.Face,
		Level: result.Data.Level,
	}, nil
}

// ClientFor builds a client that sends the account's cookies, optionally
// through a proxy.
func (g *Gateway) ClientFor(account *entities.Account, opts ports.ClientOptions) ports.PlatformClient {
	hc := newHTTPClient(g.cfg, g.log)
	if account.Cookies != "" {
		hc.SetCommonHeader("Cookie", account.Cookies)
	}
	if opts.ProxyURL != "" {
		hc.SetProxyURL(opts.ProxyURL)
	}

	return &Client{
		http:          hc,
		apiBase:       g.cfg.APIBaseURL,
		cookies:       account.Cookies,
		maxRetries:    opts.MaxRetries,
		retryInterval: time.Duration(opts.RetryInterval) * time.Second,
		log:           g.log.WithFields("account_uid", account.UID),
	}
}

// Client performs account-scoped calls, retrying each with exponential
// backoff: retryInterval * 2^attempt between attempts.
type Client struct {
	http          *req.Client
	apiBase       string
	cookies       string
	maxRetries    int
	retryInterval time.Duration
	log           *logger.Logger
}

var _ ports.PlatformClient = (*Client)(nil)

func (c *Client) retry(ctx context.Context, action string, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if lastErr = operation(); lastErr == nil {
			return nil
		}
		if attempt == c.maxRetries {
			break
		}

		backoff := c.retryInterval << attempt
		c.log.Warnw("platform call failed, retrying",
			"action", action,
			"attempt", attempt+1,
			"backoff", backoff.String(),
			"error", lastErr,
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("%s failed after %d retries: %w", action, c.maxRetries, lastErr)
}

func (c *Client) UploaderName(ctx context.Context, mid int64) (string, error) {
	var name string

	err := c.retry(ctx, "get uploader", func() error {
		var result envelope[struct {
			Name string `json:"name"`
		}]
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("mid", strconv.FormatInt(mid, 10)).
			SetSuccessResult(&result).
			Get(c.apiBase + "/x/space/acc/info")
		if err := checkResponse(resp, err, "get uploader"); err != nil {
			return err
		}
		if err := result.err("get uploader"); err != nil {
			return err
		}
		name = result.Data.Name
		return nil
	})

	return name, err
}

func (c *Client) Videos(ctx context.Context, mid int64, count int) ([]entities.Video, error) {
	var videos []entities.Video

	err := c.retry(ctx, "list videos", func() error {
		var result envelope[struct {
			List struct {
				Vlist []entities.Video `json:"vlist"`
			} `json:"list"`
		}]
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"mid": strconv.FormatInt(mid, 10),
				"ps":  strconv.Itoa(count),
				"pn":  "1",
			}).
			SetSuccessResult(&result).
			Get(c.apiBase + "/x/space/wbi/arc/search")
		if err := checkResponse(resp, err, "list videos"); err != nil {
			return err
		}
		if err := result.err("list videos"); err != nil {
			return err
		}
		videos = result.Data.List.Vlist
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(videos) > count {
		videos = videos[:count]
	}
	return videos, nil
}

// Comments lists the top-level comments of a video, hottest first. A video
// with comments disabled yields an empty slice.
func (c *Client) Comments(ctx context.Context, aid int64, count int) ([]entities.Comment, error) {
	comments := []entities.Comment{}

	err := c.retry(ctx, "list comments", func() error {
		var result envelope[struct {
			Replies []struct {
				RPID    int64 `json:"rpid"`
				OID     int64 `json:"oid"`
				Mid     int64 `json:"mid"`
				CTime   int64 `json:"ctime"`
				Content struct {
					Message string `json:"message"`
				} `json:"content"`
				Member struct {
					Uname string `json:"uname"`
				} `json:"member"`
			} `json:"replies"`
		}]
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"type": reportTypeVideo,
				"oid":  strconv.FormatInt(aid, 10),
				"ps":   strconv.Itoa(count),
				"pn":   "1",
				"sort": "2",
			}).
			SetSuccessResult(&result).
			Get(c.apiBase + "/x/v2/reply")
		if err := checkResponse(resp, err, "list comments"); err != nil {
			return err
		}
		if result.Code == codeCommentsClosed {
			comments = []entities.Comment{}
			return nil
		}
		if err := result.err("list comments"); err != nil {
			return err
		}

		comments = make([]entities.Comment, 0, len(result.Data.Replies))
		for _, reply := range result.Data.Replies {
			comments = append(comments, entities.Comment{
				RPID:    reply.RPID,
				OID:     reply.OID,
				Mid:     reply.Mid,
				Message: reply.Content.Message,
				Uname:   reply.Member.Uname,
				CTime:   reply.CTime,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return comments, nil
}

func (c *Client) ReportComment(ctx context.Context, aid, rpid int64, reason int) error {
	csrf := CookieValue(c.cookies, "bili_jct")
	if csrf == "" {
		return entities.ErrMissingCSRF
	}

	return c.retry(ctx, "report comment", func() error {
		var result envelope[json.RawMessage]
		resp, err := c.http.R().
			SetContext(ctx).
			SetFormData(map[string]string{
				"type":   reportTypeVideo,
				"oid":    strconv.FormatInt(aid, 10),
				"rpid":   strconv.FormatInt(rpid, 10),
				"reason": strconv.Itoa(reason),
				"csrf":   csrf,
			}).
			SetSuccessResult(&result).
			Post(c.apiBase + "/x/v2/reply/report")
		if err := checkResponse(resp, err, "report comment"); err != nil {
			return err
		}
		return result.err("report comment")
	})
}

func checkResponse(resp *req.Response, err error, action string) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %v", entities.ErrUpstreamFailure, action, err)
	}
	if !resp.IsSuccessState() {
		return fmt.Errorf("%w: %s: HTTP %d", entities.ErrUpstreamFailure, action, resp.StatusCode)
	}
	return nil
}
