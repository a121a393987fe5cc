package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/infrastructure/database"
	"github.com/goban/core/internal/ports"
)

const taskColumns = `id, user_id, target_uid, target_uname, video_count, comment_count, keywords,
	enabled, interval_seconds, report_delay, max_retries, retry_interval, proxy_url,
	last_check, created_at, updated_at`

// TaskRepositoryImpl implements the TaskRepository interface
type TaskRepositoryImpl struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new monitor task repository
func NewTaskRepository(db *sqlx.DB) ports.TaskRepository {
	return &TaskRepositoryImpl{db: db}
}

func (r *TaskRepositoryImpl) Create(ctx context.Context, task *entities.MonitorTask) error {
	query := r.db.Rebind(`
		INSERT INTO monitor_tasks (user_id, target_uid, target_uname, video_count, comment_count,
			keywords, enabled, interval_seconds, report_delay, max_retries, retry_interval, proxy_url,
			last_check, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, query,
		task.UserID, task.TargetUID, task.TargetUname, task.VideoCount, task.CommentCount,
		task.Keywords, task.Enabled, task.Interval, task.ReportDelay, task.MaxRetries,
		task.RetryInterval, task.ProxyURL, task.LastCheck.UTC(), task.CreatedAt, task.UpdatedAt,
	).Scan(&task.ID)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	return nil
}

func (r *TaskRepositoryImpl) GetByID(ctx context.Context, id int64) (*entities.MonitorTask, error) {
	query := r.db.Rebind(`SELECT ` + taskColumns + ` FROM monitor_tasks WHERE id = ?`)

	var task entities.MonitorTask
	err := r.db.GetContext(ctx, &task, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task by id: %w", err)
	}

	return &task, nil
}

func (r *TaskRepositoryImpl) Update(ctx context.Context, task *entities.MonitorTask) error {
	query := r.db.Rebind(`
		UPDATE monitor_tasks
		SET target_uname = ?, video_count = ?, comment_count = ?, keywords = ?, enabled = ?,
			interval_seconds = ?, report_delay = ?, max_retries = ?, retry_interval = ?,
			proxy_url = ?, updated_at = ?
		WHERE id = ?`)

	task.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		task.TargetUname, task.VideoCount, task.CommentCount, task.Keywords, task.Enabled,
		task.Interval, task.ReportDelay, task.MaxRetries, task.RetryInterval,
		task.ProxyURL, task.UpdatedAt, task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	return requireAffected(result, entities.ErrTaskNotFound)
}

// Delete removes the task and every log line and report it produced.
func (r *TaskRepositoryImpl) Delete(ctx context.Context, id int64) error {
	return database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM report_records WHERE task_id = ?`,
			`DELETE FROM monitor_logs WHERE task_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, tx.Rebind(stmt), id); err != nil {
				return fmt.Errorf("delete task history: %w", err)
			}
		}

		result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM monitor_tasks WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return requireAffected(result, entities.ErrTaskNotFound)
	})
}

func (r *TaskRepositoryImpl) List(ctx context.Context, filter ports.TaskFilter) ([]*entities.MonitorTask, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.Enabled != nil {
		conditions = append(conditions, "enabled = ?")
		args = append(args, *filter.Enabled)
	}

	query := `SELECT ` + taskColumns + ` FROM monitor_tasks`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	tasks := []*entities.MonitorTask{}
	if err := r.db.SelectContext(ctx, &tasks, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return tasks, nil
}

func (r *TaskRepositoryImpl) ListByAccount(ctx context.Context, accountID int64) ([]*entities.MonitorTask, error) {
	query := r.db.Rebind(`SELECT ` + taskColumns + ` FROM monitor_tasks
		WHERE user_id = ? ORDER BY created_at DESC, id DESC`)

	tasks := []*entities.MonitorTask{}
	if err := r.db.SelectContext(ctx, &tasks, query, accountID); err != nil {
		return nil, fmt.Errorf("list tasks by account: %w", err)
	}

	return tasks, nil
}

func (r *TaskRepositoryImpl) TouchLastCheck(ctx context.Context, id int64, at time.Time) error {
	query := r.db.Rebind(`UPDATE monitor_tasks SET last_check = ? WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("touch task last check: %w", err)
	}

	return requireAffected(result, entities.ErrTaskNotFound)
}
