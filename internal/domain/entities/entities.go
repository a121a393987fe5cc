package entities

import (
	"errors"
	"strings"
	"time"
)

// Common errors
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountLoggedOut   = errors.New("account is not logged in")
	ErrTaskNotFound       = errors.New("task not found")
	ErrSessionNotFound    = errors.New("login session not found")
	ErrInvalidCookies     = errors.New("cookies are invalid or expired")
	ErrEmptyCookies       = errors.New("cookies must not be empty")
	ErrMissingCSRF        = errors.New("csrf token (bili_jct) not found in cookies")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUpstreamFailure    = errors.New("upstream platform request failed")
	ErrInvalidPageRequest = errors.New("invalid page request")
)

// Task defaults applied when a create request leaves a field unset.
const (
	DefaultVideoCount    = 5
	DefaultCommentCount  = 50
	DefaultInterval      = 300
	DefaultReportDelay   = 6
	DefaultMaxRetries    = 3
	DefaultRetryInterval = 2

	// ReportReasonRumor is the platform's report reason code for rumor spreading.
	ReportReasonRumor = 11

	// AccountLoginLifetime is how long a freshly logged-in account is considered valid.
	AccountLoginLifetime = 30 * 24 * time.Hour
)

type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// LoginStatus is the state reported to clients polling a QR login session.
type LoginStatus string

const (
	LoginStatusPending LoginStatus = "pending"
	LoginStatusScanned LoginStatus = "scanned"
	LoginStatusSuccess LoginStatus = "success"
	LoginStatusExpired LoginStatus = "expired"
	LoginStatusFailed  LoginStatus = "failed"
)

// IsTerminal reports whether no further polling can change the status.
func (s LoginStatus) IsTerminal() bool {
	return s == LoginStatusSuccess || s == LoginStatusExpired || s == LoginStatusFailed
}

// Account is a platform account the console acts on behalf of.
type Account struct {
	ID         int64     `json:"id" db:"id"`
	UID        int64     `json:"uid" db:"uid"`
	Uname      string    `json:"uname" db:"uname"`
	Face       string    `json:"face" db:"face"`
	Cookies    string    `json:"-" db:"cookies"`
	Login      bool      `json:"login" db:"login"`
	Level      int       `json:"level" db:"level"`
	VipType    int       `json:"vip_type" db:"vip_type"`
	VipStatus  int       `json:"vip_status" db:"vip_status"`
	LoginTime  time.Time `json:"login_time" db:"login_time"`
	ExpireTime time.Time `json:"expire_time" db:"expire_time"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// MarkLoggedIn refreshes the login window starting at now.
func (a *Account) MarkLoggedIn(cookies string, now time.Time) {
	a.Cookies = cookies
	a.Login = true
	a.LoginTime = now
	a.ExpireTime = now.Add(AccountLoginLifetime)
}

// MonitorTask watches one uploader's latest videos for keyword matches.
type MonitorTask struct {
	ID            int64     `json:"id" db:"id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	User          *Account  `json:"user,omitempty" db:"-"`
	TargetUID     int64     `json:"target_uid" db:"target_uid"`
	TargetUname   string    `json:"target_uname" db:"target_uname"`
	VideoCount    int       `json:"video_count" db:"video_count"`
	CommentCount  int       `json:"comment_count" db:"comment_count"`
	Keywords      string    `json:"keywords" db:"keywords"`
	Enabled       bool      `json:"enabled" db:"enabled"`
	Interval      int       `json:"interval" db:"interval_seconds"`
	ReportDelay   int       `json:"report_delay" db:"report_delay"`
	MaxRetries    int       `json:"max_retries" db:"max_retries"`
	RetryInterval int       `json:"retry_interval" db:"retry_interval"`
	ProxyURL      string    `json:"proxy_url" db:"proxy_url"`
	LastCheck     time.Time `json:"last_check" db:"last_check"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// ApplyDefaults fills unset numeric settings with their defaults.
func (t *MonitorTask) ApplyDefaults() {
	if t.VideoCount <= 0 {
		t.VideoCount = DefaultVideoCount
	}
	if t.CommentCount <= 0 {
		t.CommentCount = DefaultCommentCount
	}
	if t.Interval <= 0 {
		t.Interval = DefaultInterval
	}
	if t.ReportDelay <= 0 {
		t.ReportDelay = DefaultReportDelay
	}
	if t.MaxRetries <= 0 {
		t.MaxRetries = DefaultMaxRetries
	}
	if t.RetryInterval <= 0 {
		t.RetryInterval = DefaultRetryInterval
	}
}

// Due reports whether the task interval has elapsed since its last check.
func (t *MonitorTask) Due(now time.Time) bool {
	return now.Sub(t.LastCheck) >= time.Duration(t.Interval)*time.Second
}

// KeywordList returns the comma-separated keywords, trimmed, without empties.
func (t *MonitorTask) KeywordList() []string {
	return ParseKeywords(t.Keywords)
}

// ParseKeywords splits a comma-separated keyword list.
func ParseKeywords(raw string) []string {
	var keywords []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			keywords = append(keywords, part)
		}
	}
	return keywords
}

// MatchKeyword returns the first keyword contained in text, compared
// case-insensitively, or "" when nothing matches.
func MatchKeyword(text string, keywords []string) string {
	lower := strings.ToLower(text)
	for _, keyword := range keywords {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return keyword
		}
	}
	return ""
}

// MonitorLog is a progress line written by a monitor run.
type MonitorLog struct {
	ID        int64        `json:"id" db:"id"`
	TaskID    int64        `json:"task_id" db:"task_id"`
	Task      *MonitorTask `json:"task,omitempty" db:"-"`
	Level     LogLevel     `json:"level" db:"level"`
	Message   string       `json:"message" db:"message"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// ReportRecord is the outcome of reporting one matched comment.
type ReportRecord struct {
	ID             int64        `json:"id" db:"id"`
	TaskID         int64        `json:"task_id" db:"task_id"`
	Task           *MonitorTask `json:"task,omitempty" db:"-"`
	AVID           int64        `json:"avid" db:"avid"`
	BVID           string       `json:"bvid" db:"bvid"`
	VideoTitle     string       `json:"video_title" db:"video_title"`
	CommentID      int64        `json:"comment_id" db:"comment_id"`
	CommentContent string       `json:"comment_content" db:"comment_content"`
	CommentUser    string       `json:"comment_user" db:"comment_user"`
	MatchedKeyword string       `json:"matched_keyword" db:"matched_keyword"`
	Reason         int          `json:"reason" db:"reason"`
	Success        bool         `json:"success" db:"success"`
	Message        string       `json:"message" db:"message"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// LoginSession tracks one pending QR-code login.
type LoginSession struct {
	Key       string      `json:"key"`
	AuthCode  string      `json:"auth_code"`
	QRCodeURL string      `json:"qrcode_url"`
	Status    LoginStatus `json:"status"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
}

// Expired reports whether the session outlived ttl at now.
func (s *LoginSession) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) > ttl
}

// Video is an uploader's video as seen by the monitor.
type Video struct {
	AID     int64  `json:"aid"`
	BVID    string `json:"bvid"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	Mid     int64  `json:"mid"`
	Created int64  `json:"created"`
}

// Comment is a top-level video comment.
type Comment struct {
	RPID    int64  `json:"rpid"`
	OID     int64  `json:"oid"`
	Mid     int64  `json:"mid"`
	Message string `json:"message"`
	Uname   string `json:"uname"`
	CTime   int64  `json:"ctime"`
}

// Profile is the platform profile of a logged-in account.
type Profile struct {
	Mid   int64  `json:"mid"`
	Uname string `json:"uname"`
	Face  string `json:"face"`
	Level int    `json:"level"`
}

// QRCode is a freshly issued login QR code.
type QRCode struct {
	URL      string `json:"url"`
	AuthCode string `json:"auth_code"`
}

// QRPoll is the platform's answer to a QR login poll.
type QRPoll struct {
	Status  LoginStatus `json:"status"`
	Cookies string      `json:"-"`
	Message string      `json:"message"`
}
