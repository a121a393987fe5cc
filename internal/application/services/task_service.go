package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/infrastructure/logger"
	"github.com/goban/core/internal/ports"
)

// Dry-run limits used by TestTask.
const (
	DefaultTestVideoLimit  = 3
	DefaultTestCommentSize = 20
)

// TaskService handles monitor task operations
type TaskService struct {
	tasks           ports.TaskRepository
	accounts        ports.AccountRepository
	platform        ports.PlatformGateway
	testVideoLimit  int
	testCommentSize int
	logger          *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(
	tasks ports.TaskRepository,
	accounts ports.AccountRepository,
	platform ports.PlatformGateway,
	logger *logger.Logger,
) *TaskService {
	return &TaskService{
		tasks:           tasks,
		accounts:        accounts,
		platform:        platform,
		testVideoLimit:  DefaultTestVideoLimit,
		testCommentSize: DefaultTestCommentSize,
		logger:          logger.WithComponent("tasks"),
	}
}

// SetTestLimits overrides how many videos and comments a dry run scans
func (s *TaskService) SetTestLimits(videos, comments int) {
	if videos > 0 {
		s.testVideoLimit = videos
	}
	if comments > 0 {
		s.testCommentSize = comments
	}
}

// ListTasks returns every task with its account attached, newest first
func (s *TaskService) ListTasks(ctx context.Context) ([]*entities.MonitorTask, error) {
	tasks, err := s.tasks.List(ctx, ports.TaskFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	byID := make(map[int64]*entities.Account, len(accounts))
	for _, account := range accounts {
		byID[account.ID] = account
	}
	for _, task := range tasks {
		task.User = byID[task.UserID]
	}

	return tasks, nil
}

// GetTask retrieves a task by ID with its account attached
func (s *TaskService) GetTask(ctx context.Context, id int64) (*entities.MonitorTask, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	task.User, err = s.accounts.GetByID(ctx, task.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task account: %w", err)
	}

	return task, nil
}

// CreateTask validates the owning account, resolves the uploader's name and
// stores an enabled task.
func (s *TaskService) CreateTask(ctx context.Context, req ports.CreateTaskRequest) (*entities.MonitorTask, error) {
	account, err := s.accounts.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !account.Login {
		return nil, entities.ErrAccountLoggedOut
	}

	task := &entities.MonitorTask{
		UserID:        req.UserID,
		TargetUID:     req.TargetUID,
		VideoCount:    req.VideoCount,
		CommentCount:  req.CommentCount,
		Keywords:      strings.TrimSpace(req.Keywords),
		Enabled:       true,
		Interval:      req.Interval,
		ReportDelay:   req.ReportDelay,
		MaxRetries:    req.MaxRetries,
		RetryInterval: req.RetryInterval,
		ProxyURL:      strings.TrimSpace(req.ProxyURL),
	}
	task.ApplyDefaults()

	if len(task.KeywordList()) == 0 {
		return nil, fmt.Errorf("%w: keywords must not be empty", ErrInvalidInput)
	}

	client := s.platform.ClientFor(account, clientOptions(task))
	task.TargetUname, err = client.UploaderName(ctx, task.TargetUID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve uploader: %w", err)
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	task.User = account

	s.logger.Infow("Task created", "task_id", task.ID, "target_uid", task.TargetUID, "target_uname", task.TargetUname)

	return task, nil
}

// UpdateTask applies the set fields of req. Zero numbers and blank keywords
// leave the stored values untouched.
func (s *TaskService) UpdateTask(ctx context.Context, id int64, req ports.UpdateTaskRequest) (*entities.MonitorTask, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.VideoCount > 0 {
		task.VideoCount = req.VideoCount
	}
	if req.CommentCount > 0 {
		task.CommentCount = req.CommentCount
	}
	if keywords := strings.TrimSpace(req.Keywords); keywords != "" {
		if len(entities.ParseKeywords(keywords)) == 0 {
			return nil, fmt.Errorf("%w: keywords must not be empty", ErrInvalidInput)
		}
		task.Keywords = keywords
	}
	if req.Enabled != nil {
		task.Enabled = *req.Enabled
	}
	if req.Interval > 0 {
		task.Interval = req.Interval
	}
	if req.ReportDelay > 0 {
		task.ReportDelay = req.ReportDelay
	}
	if req.MaxRetries > 0 {
		task.MaxRetries = req.MaxRetries
	}
	if req.RetryInterval > 0 {
		task.RetryInterval = req.RetryInterval
	}
	if req.ProxyURL != nil {
		task.ProxyURL = strings.TrimSpace(*req.ProxyURL)
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	task.User, err = s.accounts.GetByID(ctx, task.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task account: %w", err)
	}

	s.logger.Infow("Task updated", "task_id", task.ID, "enabled", task.Enabled)

	return task, nil
}

// DeleteTask removes a task with its logs and report records
func (s *TaskService) DeleteTask(ctx context.Context, id int64) error {
	if err := s.tasks.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Infow("Task deleted", "task_id", id)
	return nil
}

// TestTask runs the task once without reporting anything: it scans the
// comments of the first few videos and lists what would match.
func (s *TaskService) TestTask(ctx context.Context, id int64) ([]ports.VideoTestResult, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if !task.User.Login {
		return nil, entities.ErrAccountLoggedOut
	}

	client := s.platform.ClientFor(task.User, clientOptions(task))
	videos, err := client.Videos(ctx, task.TargetUID, task.VideoCount)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch videos: %w", err)
	}

	log := s.logger.WithTask(task.ID)
	log.Infow("Task test started", "videos", len(videos))

	keywords := task.KeywordList()
	results := []ports.VideoTestResult{}
	for i, video := range videos {
		if i >= s.testVideoLimit {
			break
		}

		comments, err := client.Comments(ctx, video.AID, s.testCommentSize)
		if err != nil {
			log.WithError(err).Warnw("Failed to fetch comments", "bvid", video.BVID)
			continue
		}

		result := ports.VideoTestResult{
			BVID:     video.BVID,
			Title:    video.Title,
			Comments: len(comments),
			Matches:  []string{},
		}
		for _, comment := range comments {
			if keyword := entities.MatchKeyword(comment.Message, keywords); keyword != "" {
				result.Matches = append(result.Matches,
					fmt.Sprintf("comment %d [%s]: %s", comment.RPID, keyword, comment.Message))
			}
		}
		results = append(results, result)
	}

	return results, nil
}

func clientOptions(task *entities.MonitorTask) ports.ClientOptions {
	return ports.ClientOptions{
		ProxyURL:      task.ProxyURL,
		MaxRetries:    task.MaxRetries,
		RetryInterval: task.RetryInterval,
	}
}
