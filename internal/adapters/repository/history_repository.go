package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/ports"
)

// LogRepositoryImpl implements the LogRepository interface
type LogRepositoryImpl struct {
	db *sqlx.DB
}

// NewLogRepository creates a new monitor log repository
func NewLogRepository(db *sqlx.DB) ports.LogRepository {
	return &LogRepositoryImpl{db: db}
}

func (r *LogRepositoryImpl) Create(ctx context.Context, entry *entities.MonitorLog) error {
	query := r.db.Rebind(`
		INSERT INTO monitor_logs (task_id, level, message, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`)

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	err := r.db.QueryRowContext(ctx, query, entry.TaskID, entry.Level, entry.Message, entry.CreatedAt.UTC()).
		Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("create monitor log: %w", err)
	}

	return nil
}

func (r *LogRepositoryImpl) List(ctx context.Context, filter ports.PageFilter) ([]*entities.MonitorLog, int64, error) {
	where, args := taskScope(filter)

	var total int64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM monitor_logs`+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count monitor logs: %w", err)
	}

	query := r.db.Rebind(`SELECT id, task_id, level, message, created_at FROM monitor_logs` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)

	logs := []*entities.MonitorLog{}
	if err := r.db.SelectContext(ctx, &logs, query, append(args, filter.PageSize, filter.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("list monitor logs: %w", err)
	}

	return logs, total, nil
}

func (r *LogRepositoryImpl) DeleteByTask(ctx context.Context, taskID int64) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM monitor_logs WHERE task_id = ?`), taskID); err != nil {
		return fmt.Errorf("delete monitor logs: %w", err)
	}
	return nil
}

// ReportRepositoryImpl implements the ReportRepository interface
type ReportRepositoryImpl struct {
	db *sqlx.DB
}

// NewReportRepository creates a new report record repository
func NewReportRepository(db *sqlx.DB) ports.ReportRepository {
	return &ReportRepositoryImpl{db: db}
}

func (r *ReportRepositoryImpl) Create(ctx context.Context, record *entities.ReportRecord) error {
	query := r.db.Rebind(`
		INSERT INTO report_records (task_id, avid, bvid, video_title, comment_id, comment_content,
			comment_user, matched_keyword, reason, success, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, query,
		record.TaskID, record.AVID, record.BVID, record.VideoTitle, record.CommentID,
		record.CommentContent, record.CommentUser, record.MatchedKeyword, record.Reason,
		record.Success, record.Message, record.CreatedAt, record.UpdatedAt,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("create report record: %w", err)
	}

	return nil
}

func (r *ReportRepositoryImpl) Exists(ctx context.Context, taskID, commentID int64) (bool, error) {
	query := r.db.Rebind(`SELECT COUNT(*) FROM report_records WHERE task_id = ? AND comment_id = ?`)

	var count int64
	if err := r.db.GetContext(ctx, &count, query, taskID, commentID); err != nil {
		return false, fmt.Errorf("check report record: %w", err)
	}

	return count > 0, nil
}

func (r *ReportRepositoryImpl) List(ctx context.Context, filter ports.PageFilter) ([]*entities.ReportRecord, int64, error) {
	where, args := taskScope(filter)

	var total int64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM report_records`+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count report records: %w", err)
	}

	query := r.db.Rebind(`
		SELECT id, task_id, avid, bvid, video_title, comment_id, comment_content, comment_user,
			matched_keyword, reason, success, message, created_at, updated_at
		FROM report_records` + where + `
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)

	records := []*entities.ReportRecord{}
	if err := r.db.SelectContext(ctx, &records, query, append(args, filter.PageSize, filter.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("list report records: %w", err)
	}

	return records, total, nil
}

func (r *ReportRepositoryImpl) DeleteByTask(ctx context.Context, taskID int64) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM report_records WHERE task_id = ?`), taskID); err != nil {
		return fmt.Errorf("delete report records: %w", err)
	}
	return nil
}

func taskScope(filter ports.PageFilter) (string, []interface{}) {
	if filter.TaskID == nil {
		return "", nil
	}
	return " WHERE task_id = ?", []interface{}{*filter.TaskID}
}

