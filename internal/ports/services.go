package ports

import (
	"context"

	"github.com/goban/core/internal/domain/entities"
)

// PlatformClient talks to the video platform on behalf of one account.
type PlatformClient interface {
	UploaderName(ctx context.Context, mid int64) (string, error)
	Videos(ctx context.Context, mid int64, count int) ([]entities.Video, error)
	Comments(ctx context.Context, aid int64, count int) ([]entities.Comment, error)
	ReportComment(ctx context.Context, aid, rpid int64, reason int) error
}

// PlatformGateway covers the account-less platform endpoints and builds
// per-account clients.
type PlatformGateway interface {
	GenerateQRCode(ctx context.Context) (*entities.QRCode, error)
	PollQRCode(ctx context.Context, authCode string) (*entities.QRPoll, error)
	Profile(ctx context.Context, cookies string) (*entities.Profile, error)
	ClientFor(account *entities.Account, opts ClientOptions) PlatformClient
}

// ClientOptions tunes a per-account platform client.
type ClientOptions struct {
	ProxyURL      string
	MaxRetries    int
	RetryInterval int
}

// Request/Response Types

type CookieLoginRequest struct {
	Cookies string `json:"cookies" validate:"required"`
}

type QRLoginResponse struct {
	Image string `json:"image"`
	Key   string `json:"key"`
}

type LoginCheckResponse struct {
	Status  entities.LoginStatus `json:"status"`
	Message string               `json:"message"`
}

type CookieLoginResponse struct {
	Message string            `json:"message"`
	User    *entities.Account `json:"user"`
}

type CreateTaskRequest struct {
	UserID        int64  `json:"user_id" validate:"required,gt=0"`
	TargetUID     int64  `json:"target_uid" validate:"required,gt=0"`
	VideoCount    int    `json:"video_count" validate:"gte=0,lte=50"`
	CommentCount  int    `json:"comment_count" validate:"gte=0,lte=500"`
	Keywords      string `json:"keywords" validate:"required"`
	Interval      int    `json:"interval" validate:"gte=0"`
	ReportDelay   int    `json:"report_delay" validate:"gte=0"`
	MaxRetries    int    `json:"max_retries" validate:"gte=0,lte=10"`
	RetryInterval int    `json:"retry_interval" validate:"gte=0"`
	ProxyURL      string `json:"proxy_url" validate:"omitempty,url"`
}

type UpdateTaskRequest struct {
	VideoCount    int     `json:"video_count" validate:"gte=0,lte=50"`
	CommentCount  int     `json:"comment_count" validate:"gte=0,lte=500"`
	Keywords      string  `json:"keywords"`
	Enabled       *bool   `json:"enabled"`
	Interval      int     `json:"interval" validate:"gte=0"`
	ReportDelay   int     `json:"report_delay" validate:"gte=0"`
	MaxRetries    int     `json:"max_retries" validate:"gte=0,lte=10"`
	RetryInterval int     `json:"retry_interval" validate:"gte=0"`
	ProxyURL      *string `json:"proxy_url" validate:"omitempty"`
}

type TaskResponse struct {
	Message string                `json:"message"`
	Task    *entities.MonitorTask `json:"task"`
}

// VideoTestResult summarizes a dry run against one video.
type VideoTestResult struct {
	BVID     string   `json:"bvid"`
	Title    string   `json:"title"`
	Comments int      `json:"comments"`
	Matches  []string `json:"matches"`
}

type TaskTestResponse struct {
	Message string            `json:"message"`
	Result  []VideoTestResult `json:"result"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// Page is one page of history with the unpaged total.
type Page[T any] struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Data     []T   `json:"data"`
}
