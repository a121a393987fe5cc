package ports

import (
	"context"
	"time"

	"github.com/goban/core/internal/domain/entities"
)

// AccountRepository defines the interface for platform account data operations
type AccountRepository interface {
	Create(ctx context.Context, account *entities.Account) error
	GetByID(ctx context.Context, id int64) (*entities.Account, error)
	GetByUID(ctx context.Context, uid int64) (*entities.Account, error)
	Update(ctx context.Context, account *entities.Account) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*entities.Account, error)
}

// TaskRepository defines the interface for monitor task data operations
type TaskRepository interface {
	Create(ctx context.Context, task *entities.MonitorTask) error
	GetByID(ctx context.Context, id int64) (*entities.MonitorTask, error)
	Update(ctx context.Context, task *entities.MonitorTask) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter TaskFilter) ([]*entities.MonitorTask, error)
	ListByAccount(ctx context.Context, accountID int64) ([]*entities.MonitorTask, error)
	TouchLastCheck(ctx context.Context, id int64, at time.Time) error
}

// LogRepository defines the interface for monitor log data operations
type LogRepository interface {
	Create(ctx context.Context, entry *entities.MonitorLog) error
	List(ctx context.Context, filter PageFilter) ([]*entities.MonitorLog, int64, error)
	DeleteByTask(ctx context.Context, taskID int64) error
}

// ReportRepository defines the interface for report record data operations
type ReportRepository interface {
	Create(ctx context.Context, record *entities.ReportRecord) error
	Exists(ctx context.Context, taskID, commentID int64) (bool, error)
	List(ctx context.Context, filter PageFilter) ([]*entities.ReportRecord, int64, error)
	DeleteByTask(ctx context.Context, taskID int64) error
}

// LoginSessionStore keeps pending QR logins. Sessions are short-lived and
// never need to survive a restart.
type LoginSessionStore interface {
	Save(ctx context.Context, session *entities.LoginSession) error
	Get(ctx context.Context, key string) (*entities.LoginSession, error)
	Delete(ctx context.Context, key string) error
}

// ReportPublisher fans report records out to interested consumers.
type ReportPublisher interface {
	PublishReport(ctx context.Context, record *entities.ReportRecord) error
}

// Filter types for repository queries
type TaskFilter struct {
	Enabled *bool
}

// PageFilter selects one page of task-scoped history, newest first.
type PageFilter struct {
	TaskID   *int64
	Page     int
	PageSize int
}

// Offset returns the number of rows preceding the page.
func (f PageFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}
