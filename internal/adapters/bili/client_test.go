package bili

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/infrastructure/config"
	"github.com/goban/core/internal/infrastructure/logger"
	"github.com/goban/core/internal/ports"
)

func newTestGateway(t *testing.T, mux *http.ServeMux) *Gateway {
	t.Helper()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return NewGateway(config.PlatformConfig{
		APIBaseURL:      server.URL,
		PassportBaseURL: server.URL,
		Timeout:         5 * time.Second,
	}, logger.NewNop())
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

func TestCookiesFromLoginURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "all cookies",
			url:      "https://passport.biligame.com/crossDomain?DedeUserID=1&DedeUserID__ckMd5=ab&Expires=1&SESSDATA=sess&bili_jct=jct&sid=s1&gourl=x",
			expected: "bili_jct=jct; SESSDATA=sess; DedeUserID=1; DedeUserID__ckMd5=ab; sid=s1",
		},
		{
			name:     "required only",
			url:      "https://example.com/?DedeUserID=1&SESSDATA=sess&bili_jct=jct",
			expected: "bili_jct=jct; SESSDATA=sess; DedeUserID=1",
		},
		{"missing csrf", "https://example.com/?DedeUserID=1&SESSDATA=sess", ""},
		{"no query", "https://example.com/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CookiesFromLoginURL(tt.url); got != tt.expected {
				t.Errorf("CookiesFromLoginURL() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestCookieValue(t *testing.T) {
	raw := " SESSDATA=abc ; bili_jct=token;broken; DedeUserID=42"

	tests := []struct {
		name     string
		expected string
	}{
		{"SESSDATA", "abc"},
		{"bili_jct", "token"},
		{"DedeUserID", "42"},
		{"broken", ""},
	}

	for _, tt := range tests {
		if got := CookieValue(raw, tt.name); got != tt.expected {
			t.Errorf("CookieValue(%q) = %q, expected %q", tt.name, got, tt.expected)
		}
	}
}

func TestPollQRCode(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus entities.LoginStatus
		expectCookies  bool
	}{
		{"waiting", `{"status":false,"data":-4,"message":"Can't scan~"}`, entities.LoginStatusPending, false},
		{"scanned", `{"status":false,"data":-5,"message":"Can't confirm~"}`, entities.LoginStatusScanned, false},
		{"expired", `{"status":false,"data":-2,"message":"Can't Match oauthKey~"}`, entities.LoginStatusExpired, false},
		{"wrapped code", `{"status":false,"data":{"code":-5}}`, entities.LoginStatusScanned, false},
		{"unknown code", `{"status":false,"data":-9}`, entities.LoginStatusPending, false},
		{
			"success",
			`{"code":0,"status":true,"data":{"url":"https://passport.biligame.com/crossDomain?DedeUserID=7&SESSDATA=s&bili_jct=j"}}`,
			entities.LoginStatusSuccess, true,
		},
		{"success without cookies", `{"code":0,"status":true,"data":{"url":"https://example.com/"}}`, entities.LoginStatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/qrcode/getLoginInfo", func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method = %s, expected POST", r.Method)
				}
				if got := r.FormValue("oauthKey"); got != "key-1" {
					t.Errorf("oauthKey = %q, expected %q", got, "key-1")
				}
				writeJSON(w, tt.body)
			})

			poll, err := newTestGateway(t, mux).PollQRCode(context.Background(), "key-1")
			if err != nil {
				t.Fatalf("PollQRCode: %v", err)
			}
			if poll.Status != tt.expectedStatus {
				t.Errorf("Status = %q, expected %q", poll.Status, tt.expectedStatus)
			}
			if (poll.Cookies != "") != tt.expectCookies {
				t.Errorf("Cookies = %q, expected present=%v", poll.Cookies, tt.expectCookies)
			}
		})
	}
}

func TestGenerateQRCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/qrcode/getLoginUrl", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"code":0,"status":true,"data":{"url":"https://passport.bilibili.com/qrcode/h5/login?oauthKey=abc","oauthKey":"abc"}}`)
	})

	qr, err := newTestGateway(t, mux).GenerateQRCode(context.Background())
	if err != nil {
		t.Fatalf("GenerateQRCode: %v", err)
	}
	if qr.AuthCode != "abc" {
		t.Errorf("AuthCode = %q, expected %q", qr.AuthCode, "abc")
	}
}

func TestProfile(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectedErr error
	}{
		{"valid", `{"code":0,"data":{"mid":99,"name":"alice","face":"f.png","level":5}}`, nil},
		{"not logged in", `{"code":-101,"message":"账号未登录"}`, entities.ErrInvalidCookies},
		{"other failure", `{"code":-400,"message":"bad request"}`, entities.ErrUpstreamFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/x/space/myinfo", func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Cookie"); got != "SESSDATA=s" {
					t.Errorf("Cookie = %q, expected %q", got, "SESSDATA=s")
				}
				writeJSON(w, tt.body)
			})

			profile, err := newTestGateway(t, mux).Profile(context.Background(), "SESSDATA=s")
			if !errors.Is(err, tt.expectedErr) {
				t.Fatalf("Profile error = %v, expected %v", err, tt.expectedErr)
			}
			if err == nil && (profile.Mid != 99 || profile.Uname != "alice" || profile.Level != 5) {
				t.Errorf("Profile = %+v", profile)
			}
		})
	}

	if _, err := NewGateway(config.PlatformConfig{}, logger.NewNop()).Profile(context.Background(), ""); !errors.Is(err, entities.ErrEmptyCookies) {
		t.Errorf("Profile(\"\") error = %v, expected %v", err, entities.ErrEmptyCookies)
	}
}

func TestClientComments(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectedLen int
	}{
		{
			"replies",
			`{"code":0,"data":{"replies":[{"rpid":1,"oid":10,"mid":5,"ctime":100,"content":{"message":"hello"},"member":{"uname":"bob"}}]}}`,
			1,
		},
		{"comments closed", `{"code":12002,"message":"评论区已关闭"}`, 0},
		{"null replies", `{"code":0,"data":{"replies":null}}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/x/v2/reply", func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("oid"); got != "10" {
					t.Errorf("oid = %q, expected %q", got, "10")
				}
				writeJSON(w, tt.body)
			})

			client := newTestGateway(t, mux).ClientFor(&entities.Account{Cookies: "SESSDATA=s"}, ports.ClientOptions{})
			comments, err := client.Comments(context.Background(), 10, 20)
			if err != nil {
				t.Fatalf("Comments: %v", err)
			}
			if comments == nil {
				t.Fatal("Comments returned nil slice")
			}
			if len(comments) != tt.expectedLen {
				t.Fatalf("len = %d, expected %d", len(comments), tt.expectedLen)
			}
			if tt.expectedLen == 1 && (comments[0].Message != "hello" || comments[0].Uname != "bob") {
				t.Errorf("comment = %+v", comments[0])
			}
		})
	}
}

func TestClientVideosTruncates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/x/space/wbi/arc/search", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"code":0,"data":{"list":{"vlist":[{"aid":1,"bvid":"BV1"},{"aid":2,"bvid":"BV2"},{"aid":3,"bvid":"BV3"}]}}}`)
	})

	client := newTestGateway(t, mux).ClientFor(&entities.Account{}, ports.ClientOptions{})
	videos, err := client.Videos(context.Background(), 7, 2)
	if err != nil {
		t.Fatalf("Videos: %v", err)
	}
	if len(videos) != 2 || videos[1].BVID != "BV2" {
		t.Errorf("Videos = %+v, expected the first two", videos)
	}
}

func TestClientRetries(t *testing.T) {
	tests := []struct {
		name        string
		failures    int32
		maxRetries  int
		expectErr   bool
		expectCalls int32
	}{
		{"succeeds after failures", 2, 3, false, 3},
		{"gives up", 10, 2, true, 3},
		{"no retries", 1, 0, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			mux := http.NewServeMux()
			mux.HandleFunc("/x/space/acc/info", func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&calls, 1) <= tt.failures {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				writeJSON(w, `{"code":0,"data":{"name":"uploader"}}`)
			})

			client := newTestGateway(t, mux).ClientFor(&entities.Account{}, ports.ClientOptions{MaxRetries: tt.maxRetries})
			name, err := client.UploaderName(context.Background(), 1)

			if tt.expectErr {
				if !errors.Is(err, entities.ErrUpstreamFailure) {
					t.Errorf("error = %v, expected %v", err, entities.ErrUpstreamFailure)
				}
			} else if err != nil || name != "uploader" {
				t.Errorf("UploaderName = %q, %v; expected %q", name, err, "uploader")
			}
			if got := atomic.LoadInt32(&calls); got != tt.expectCalls {
				t.Errorf("calls = %d, expected %d", got, tt.expectCalls)
			}
		})
	}
}

func TestClientRetryHonorsContext(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/x/space/acc/info", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	client := newTestGateway(t, mux).ClientFor(&entities.Account{}, ports.ClientOptions{MaxRetries: 3, RetryInterval: 60})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := client.UploaderName(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, expected %v", err, context.DeadlineExceeded)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("retry ignored cancellation, took %v", elapsed)
	}
}

func TestReportComment(t *testing.T) {
	var form map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/x/v2/reply/report", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		writeJSON(w, `{"code":0,"message":"0"}`)
	})
	gateway := newTestGateway(t, mux)

	client := gateway.ClientFor(&entities.Account{Cookies: "SESSDATA=s; bili_jct=csrf-token"}, ports.ClientOptions{})
	if err := client.ReportComment(context.Background(), 170001, 555, entities.ReportReasonRumor); err != nil {
		t.Fatalf("ReportComment: %v", err)
	}

	expected := map[string]string{"type": "1", "oid": "170001", "rpid": "555", "reason": "11", "csrf": "csrf-token"}
	for k, v := range expected {
		if form[k] != v {
			t.Errorf("form[%s] = %q, expected %q", k, form[k], v)
		}
	}

	anonymous := gateway.ClientFor(&entities.Account{Cookies: "SESSDATA=s"}, ports.ClientOptions{})
	if err := anonymous.ReportComment(context.Background(), 1, 2, entities.ReportReasonRumor); !errors.Is(err, entities.ErrMissingCSRF) {
		t.Errorf("ReportComment without csrf error = %v, expected %v", err, entities.ErrMissingCSRF)
	}
}
