package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/infrastructure/logger"
	"github.com/goban/core/internal/ports"
)

// Paging bounds for history queries.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// LogService serves monitor logs and report records
type LogService struct {
	logs    ports.LogRepository
	reports ports.ReportRepository
	tasks   ports.TaskRepository
	logger  *logger.Logger
}

// NewLogService creates a new log service
func NewLogService(logs ports.LogRepository, reports ports.ReportRepository, tasks ports.TaskRepository, logger *logger.Logger) *LogService {
	return &LogService{
		logs:    logs,
		reports: reports,
		tasks:   tasks,
		logger:  logger.WithComponent("logs"),
	}
}

// NormalizePage fills in page defaults and clamps the page size.
func NormalizePage(filter ports.PageFilter) ports.PageFilter {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = DefaultPageSize
	}
	if filter.PageSize > MaxPageSize {
		filter.PageSize = MaxPageSize
	}
	return filter
}

// ListMonitorLogs returns one page of monitor logs, newest first
func (s *LogService) ListMonitorLogs(ctx context.Context, filter ports.PageFilter) (*ports.Page[*entities.MonitorLog], error) {
	filter = NormalizePage(filter)

	logs, total, err := s.logs.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitor logs: %w", err)
	}

	tasks := s.taskLookup(ctx)
	for _, entry := range logs {
		entry.Task = tasks(entry.TaskID)
	}

	return &ports.Page[*entities.MonitorLog]{
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
		Data:     logs,
	}, nil
}

// ListReports returns one page of report records, newest first
func (s *LogService) ListReports(ctx context.Context, filter ports.PageFilter) (*ports.Page[*entities.ReportRecord], error) {
	filter = NormalizePage(filter)

	records, total, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list report records: %w", err)
	}

	tasks := s.taskLookup(ctx)
	for _, record := range records {
		record.Task = tasks(record.TaskID)
	}

	return &ports.Page[*entities.ReportRecord]{
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
		Data:     records,
	}, nil
}

// taskLookup memoizes task loads for one page.
func (s *LogService) taskLookup(ctx context.Context) func(id int64) *entities.MonitorTask {
	cache := make(map[int64]*entities.MonitorTask)
	return func(id int64) *entities.MonitorTask {
		if task, ok := cache[id]; ok {
			return task
		}
		task, err := s.tasks.GetByID(ctx, id)
		if err != nil && !errors.Is(err, entities.ErrTaskNotFound) {
			s.logger.WithError(err).Warnw("Failed to load task for history", "task_id", id)
		}
		cache[id] = task
		return task
	}
}
