package events

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/infrastructure/config"
	"github.com/goban/core/internal/infrastructure/logger"
)

func TestNewReportEvent(t *testing.T) {
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	record := &entities.ReportRecord{
		TaskID:         3,
		AVID:           170001,
		BVID:           "BV1xx411c7mD",
		CommentID:      555,
		CommentUser:    "someone",
		CommentContent: "not published",
		MatchedKeyword: "spam",
		Success:        true,
		CreatedAt:      at,
	}

	data, err := json.Marshal(NewReportEvent(record))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	tests := []struct {
		field    string
		expected interface{}
	}{
		{"task_id", float64(3)},
		{"bvid", "BV1xx411c7mD"},
		{"comment_id", float64(555)},
		{"matched_keyword", "spam"},
		{"success", true},
		{"reported_at", "2026-02-03T04:05:06Z"},
	}

	for _, tt := range tests {
		if got[tt.field] != tt.expected {
			t.Errorf("%s = %v, expected %v", tt.field, got[tt.field], tt.expected)
		}
	}
	if _, ok := got["comment_content"]; ok {
		t.Error("comment content should not be published")
	}
}

func TestNopPublisher(t *testing.T) {
	if err := (NopPublisher{}).PublishReport(context.Background(), &entities.ReportRecord{}); err != nil {
		t.Errorf("PublishReport = %v, expected nil", err)
	}
}

func TestNATSPublisherUnavailable(t *testing.T) {
	if _, err := NewNATSPublisher(config.NATSConfig{URL: "nats://127.0.0.1:1", Subject: "goban.reports"}, logger.NewNop()); err == nil {
		t.Error("NewNATSPublisher() expected an error for an unreachable server")
	}

	p := &NATSPublisher{subject: "goban.reports", log: logger.NewNop()}
	record := &entities.ReportRecord{TaskID: 1}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.PublishReport(ctx, record); !errors.Is(err, context.Canceled) {
		t.Errorf("PublishReport(cancelled) error = %v, expected %v", err, context.Canceled)
	}
	if err := p.PublishReport(context.Background(), record); err == nil {
		t.Error("PublishReport() expected an error without a connection")
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v, expected nil", err)
	}
}

// Runs against a real server when GOBAN_TEST_NATS is set to a nats:// URL.
func TestNATSPublisher(t *testing.T) {
	url := os.Getenv("GOBAN_TEST_NATS")
	if url == "" {
		t.Skip("GOBAN_TEST_NATS not set")
	}

	cfg := config.NATSConfig{URL: url, Subject: "goban.test.reports." + time.Now().Format("150405.000000")}

	sub, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect subscriber: %v", err)
	}
	defer sub.Close()

	msgs := make(chan *nats.Msg, 1)
	s, err := sub.ChanSubscribe(cfg.Subject, msgs)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer s.Unsubscribe()
	if err := sub.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	p, err := NewNATSPublisher(cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("NewNATSPublisher() error = %v", err)
	}

	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	record := &entities.ReportRecord{
		TaskID:         7,
		AVID:           170001,
		BVID:           "BV1xx411c7mD",
		CommentID:      555,
		MatchedKeyword: "spam",
		Success:        true,
		CreatedAt:      at,
	}
	if err := p.PublishReport(context.Background(), record); err != nil {
		t.Fatalf("PublishReport() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	select {
	case msg := <-msgs:
		var got ReportEvent
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		expected := NewReportEvent(record)
		if !got.ReportedAt.Equal(expected.ReportedAt) {
			t.Errorf("ReportedAt = %v, expected %v", got.ReportedAt, expected.ReportedAt)
		}
		got.ReportedAt = expected.ReportedAt
		if got != expected {
			t.Errorf("event = %+v, expected %+v", got, expected)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}

	if err := p.PublishReport(context.Background(), record); err == nil {
		t.Error("PublishReport() after Close expected an error")
	}
}
