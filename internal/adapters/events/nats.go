package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/infrastructure/config"
	"github.com/goban/core/internal/infrastructure/logger"
	"github.com/goban/core/internal/ports"
)

const (
	reconnectWait        = 2 * time.Second
	maxReconnectAttempts = 5
	pingInterval         = 30 * time.Second
	maxPingOutstanding   = 2
)

// ReportEvent is the message body published for every report attempt.
type ReportEvent struct {
	TaskID         int64     `json:"task_id"`
	AVID           int64     `json:"avid"`
	BVID           string    `json:"bvid"`
	VideoTitle     string    `json:"video_title"`
	CommentID      int64     `json:"comment_id"`
	CommentUser    string    `json:"comment_user"`
	MatchedKeyword string    `json:"matched_keyword"`
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	ReportedAt     time.Time `json:"reported_at"`
}

// NewReportEvent flattens a record into its published form.
func NewReportEvent(record *entities.ReportRecord) ReportEvent {
	return ReportEvent{
		TaskID:         record.TaskID,
		AVID:           record.AVID,
		BVID:           record.BVID,
		VideoTitle:     record.VideoTitle,
		CommentID:      record.CommentID,
		CommentUser:    record.CommentUser,
		MatchedKeyword: record.MatchedKeyword,
		Success:        record.Success,
		Message:        record.Message,
		ReportedAt:     record.CreatedAt,
	}
}

// NATSPublisher publishes report events on a single subject.
type NATSPublisher struct {
	mu      sync.RWMutex
	conn    *nats.Conn
	subject string
	log     *logger.Logger
}

var _ ports.ReportPublisher = (*NATSPublisher)(nil)

// NewNATSPublisher connects to the configured server.
func NewNATSPublisher(cfg config.NATSConfig, log *logger.Logger) (*NATSPublisher, error) {
	p := &NATSPublisher{subject: cfg.Subject, log: log.WithComponent("nats")}

	opts := []nats.Option{
		nats.Name("goban-api"),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnectAttempts),
		nats.PingInterval(pingInterval),
		nats.MaxPingsOutstanding(maxPingOutstanding),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				p.log.Errorw("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			p.log.Infow("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	p.conn = nc
	p.log.Infow("Connected to NATS", "url", nc.ConnectedUrl(), "subject", p.subject)
	return p, nil
}

func (p *NATSPublisher) PublishReport(ctx context.Context, record *entities.ReportRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(NewReportEvent(record))
	if err != nil {
		return fmt.Errorf("encode report event: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.conn == nil || !p.conn.IsConnected() {
		return fmt.Errorf("NATS connection not available")
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish report event: %w", err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	err := p.conn.Drain()
	p.conn = nil
	return err
}

// NopPublisher drops every event. Used when no NATS URL is configured.
type NopPublisher struct{}

var _ ports.ReportPublisher = NopPublisher{}

func (NopPublisher) PublishReport(context.Context, *entities.ReportRecord) error { return nil }
