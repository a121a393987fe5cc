package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/infrastructure/logger"
	"github.com/goban/core/internal/ports"
)

// MonitorMetrics are the monitor's Prometheus collectors.
type MonitorMetrics struct {
	runs     *prometheus.CounterVec
	matches  prometheus.Counter
	reports  *prometheus.CounterVec
	inflight prometheus.Gauge
}

// NewMonitorMetrics registers the monitor collectors on reg. A nil reg
// leaves them unregistered.
func NewMonitorMetrics(reg prometheus.Registerer) *MonitorMetrics {
	m := &MonitorMetrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goban_monitor_runs_total",
				Help: "Monitor task runs by outcome",
			},
			[]string{"outcome"},
		),
		matches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goban_monitor_keyword_matches_total",
			Help: "Comments that matched a task keyword",
		}),
		reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goban_monitor_reports_total",
				Help: "Comment reports by result",
			},
			[]string{"result"},
		),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goban_monitor_runs_in_flight",
			Help: "Monitor task runs currently executing",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.runs, m.matches, m.reports, m.inflight)
	}
	return m
}

// MonitorService periodically runs enabled tasks: it scans the target
// uploader's latest videos and reports comments matching the keywords.
type MonitorService struct {
	tasks     ports.TaskRepository
	accounts  ports.AccountRepository
	logs      ports.LogRepository
	reports   ports.ReportRepository
	platform  ports.PlatformGateway
	publisher ports.ReportPublisher
	metrics   *MonitorMetrics
	tick      time.Duration
	logger    *logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	running map[int64]struct{}
	wg      sync.WaitGroup
}

// NewMonitorService creates a new monitor service
func NewMonitorService(
	tasks ports.TaskRepository,
	accounts ports.AccountRepository,
	logs ports.LogRepository,
	reports ports.ReportRepository,
	platform ports.PlatformGateway,
	publisher ports.ReportPublisher,
	metrics *MonitorMetrics,
	tick time.Duration,
	logger *logger.Logger,
) *MonitorService {
	if metrics == nil {
		metrics = NewMonitorMetrics(nil)
	}
	return &MonitorService{
		tasks:     tasks,
		accounts:  accounts,
		logs:      logs,
		reports:   reports,
		platform:  platform,
		publisher: publisher,
		metrics:   metrics,
		tick:      tick,
		logger:    logger.WithComponent("monitor"),
		now:       func() time.Time { return time.Now().UTC() },
		sleep:     sleepContext,
		running:   make(map[int64]struct{}),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run checks tasks on every tick until ctx is cancelled, then waits for
// in-flight runs to finish.
func (s *MonitorService) Run(ctx context.Context) {
	s.logger.Infow("Monitor service started", "tick", s.tick.String())

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.logger.Info("Monitor service stopped")
			return
		case <-ticker.C:
			s.CheckTasks(ctx)
		}
	}
}

// CheckTasks starts a run for every enabled task whose interval elapsed.
// A task already running is skipped until its run completes.
func (s *MonitorService) CheckTasks(ctx context.Context) {
	enabled := true
	tasks, err := s.tasks.List(ctx, ports.TaskFilter{Enabled: &enabled})
	if err != nil {
		s.logger.WithError(err).Error("Failed to load tasks")
		return
	}

	now := s.now()
	for _, task := range tasks {
		if !task.Due(now) {
			continue
		}

		account, err := s.accounts.GetByID(ctx, task.UserID)
		if err != nil {
			s.logger.WithTask(task.ID).WithError(err).Warn("Failed to load task account")
			continue
		}
		if !account.Login {
			s.addLog(ctx, task.ID, entities.LogLevelError, "account is not logged in, skipping")
			s.metrics.runs.WithLabelValues("skipped").Inc()
			continue
		}
		task.User = account

		if !s.claim(task.ID) {
			continue
		}

		s.wg.Add(1)
		go func(task *entities.MonitorTask) {
			defer s.wg.Done()
			defer s.release(task.ID)
			s.RunTask(ctx, task)
		}(task)
	}
}

func (s *MonitorService) claim(taskID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.running[taskID]; busy {
		return false
	}
	s.running[taskID] = struct{}{}
	return true
}

func (s *MonitorService) release(taskID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, taskID)
}

// Wait blocks until every started run has returned.
func (s *MonitorService) Wait() {
	s.wg.Wait()
}

// RunTask performs one monitoring pass for a task whose User is loaded.
func (s *MonitorService) RunTask(ctx context.Context, task *entities.MonitorTask) {
	s.metrics.inflight.Inc()
	defer s.metrics.inflight.Dec()

	log := s.logger.WithTask(task.ID)

	if err := s.tasks.TouchLastCheck(ctx, task.ID, s.now()); err != nil {
		log.WithError(err).Warn("Failed to record last check")
	}

	s.addLog(ctx, task.ID, entities.LogLevelInfo, fmt.Sprintf("monitoring uploader %s", task.TargetUname))
	if task.ProxyURL != "" {
		s.addLog(ctx, task.ID, entities.LogLevelInfo, fmt.Sprintf("using proxy %s", task.ProxyURL))
	}

	keywords := task.KeywordList()
	if len(keywords) == 0 {
		s.addLog(ctx, task.ID, entities.LogLevelWarning, "no keywords configured, skipping")
		s.metrics.runs.WithLabelValues("skipped").Inc()
		return
	}

	client := s.platform.ClientFor(task.User, clientOptions(task))

	videos, err := client.Videos(ctx, task.TargetUID, task.VideoCount)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch videos")
		s.addLog(ctx, task.ID, entities.LogLevelError, fmt.Sprintf("failed to fetch videos: %v", err))
		s.metrics.runs.WithLabelValues("failed").Inc()
		return
	}

	log.Debugw("Fetched videos", "count", len(videos))

	for _, video := range videos {
		comments, err := client.Comments(ctx, video.AID, task.CommentCount)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.addLog(ctx, task.ID, entities.LogLevelError, fmt.Sprintf("failed to fetch comments of %s: %v", video.BVID, err))
			continue
		}

		for _, comment := range comments {
			keyword := entities.MatchKeyword(comment.Message, keywords)
			if keyword == "" {
				continue
			}

			s.metrics.matches.Inc()
			s.addLog(ctx, task.ID, entities.LogLevelWarning, fmt.Sprintf("matched comment %d, keyword: %s", comment.RPID, keyword))

			if !s.report(ctx, task, client, video, comment, keyword) {
				continue
			}

			if err := s.sleep(ctx, time.Duration(task.ReportDelay)*time.Second); err != nil {
				s.metrics.runs.WithLabelValues("cancelled").Inc()
				return
			}
		}
	}

	if ctx.Err() != nil {
		s.metrics.runs.WithLabelValues("cancelled").Inc()
		return
	}

	s.addLog(ctx, task.ID, entities.LogLevelInfo, "monitoring finished")
	s.metrics.runs.WithLabelValues("completed").Inc()
}

// report files one comment report unless the comment was reported before
// for this task. It returns whether a report was attempted.
func (s *MonitorService) report(
	ctx context.Context,
	task *entities.MonitorTask,
	client ports.PlatformClient,
	video entities.Video,
	comment entities.Comment,
	keyword string,
) bool {
	log := s.logger.WithTask(task.ID)

	exists, err := s.reports.Exists(ctx, task.ID, comment.RPID)
	if err != nil {
		log.WithError(err).Warn("Failed to check report history")
		return false
	}
	if exists {
		log.Debugw("Comment already reported", "comment_id", comment.RPID)
		return false
	}

	err = client.ReportComment(ctx, video.AID, comment.RPID, entities.ReportReasonRumor)

	record := &entities.ReportRecord{
		TaskID:         task.ID,
		AVID:           video.AID,
		BVID:           video.BVID,
		VideoTitle:     video.Title,
		CommentID:      comment.RPID,
		CommentContent: comment.Message,
		CommentUser:    comment.Uname,
		MatchedKeyword: keyword,
		Reason:         entities.ReportReasonRumor,
		Success:        err == nil,
		Message:        "reported",
	}

	if err != nil {
		record.Message = err.Error()
		s.metrics.reports.WithLabelValues("failed").Inc()
		s.addLog(ctx, task.ID, entities.LogLevelError, fmt.Sprintf("report failed: %v", err))
	} else {
		s.metrics.reports.WithLabelValues("succeeded").Inc()
		s.addLog(ctx, task.ID, entities.LogLevelInfo, fmt.Sprintf("reported comment %d", comment.RPID))
	}

	if err := s.reports.Create(ctx, record); err != nil {
		log.WithError(err).Error("Failed to save report record")
		return true
	}

	if err := s.publisher.PublishReport(ctx, record); err != nil {
		log.WithError(err).Warn("Failed to publish report event")
	}

	return true
}

func (s *MonitorService) addLog(ctx context.Context, taskID int64, level entities.LogLevel, message string) {
	entry := &entities.MonitorLog{TaskID: taskID, Level: level, Message: message, CreatedAt: s.now()}
	if err := s.logs.Create(ctx, entry); err != nil {
		s.logger.WithTask(taskID).WithError(err).Warn("Failed to write monitor log")
	}
}
