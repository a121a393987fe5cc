package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/goban/core/internal/adapters/repository"
	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/infrastructure/config"
	"github.com/goban/core/internal/infrastructure/database"
	"github.com/goban/core/internal/ports"
)

type testRepos struct {
	accounts ports.AccountRepository
	tasks    ports.TaskRepository
	logs     ports.LogRepository
	reports  ports.ReportRepository
}

func newTestRepos(t *testing.T) testRepos {
	t.Helper()

	db, err := database.New(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "services.db"),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return reposFor(db.DB)
}

func reposFor(db *sqlx.DB) testRepos {
	return testRepos{
		accounts: repository.NewAccountRepository(db),
		tasks:    repository.NewTaskRepository(db),
		logs:     repository.NewLogRepository(db),
		reports:  repository.NewReportRepository(db),
	}
}

type fakeGateway struct {
	mu         sync.Mutex
	qr         *entities.QRCode
	qrErr      error
	polls      []*entities.QRPoll
	pollErr    error
	profile    *entities.Profile
	profileErr error
	client     *fakeClient
	options    []ports.ClientOptions
}

func (g *fakeGateway) GenerateQRCode(context.Context) (*entities.QRCode, error) {
	return g.qr, g.qrErr
}

func (g *fakeGateway) PollQRCode(context.Context, string) (*entities.QRPoll, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pollErr != nil {
		return nil, g.pollErr
	}
	if len(g.polls) == 0 {
		return &entities.QRPoll{Status: entities.LoginStatusPending}, nil
	}
	poll := g.polls[0]
	if len(g.polls) > 1 {
		g.polls = g.polls[1:]
	}
	return poll, nil
}

func (g *fakeGateway) Profile(context.Context, string) (*entities.Profile, error) {
	return g.profile, g.profileErr
}

func (g *fakeGateway) ClientFor(_ *entities.Account, opts ports.ClientOptions) ports.PlatformClient {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.options = append(g.options, opts)
	return g.client
}

type fakeClient struct {
	mu            sync.Mutex
	uploader      string
	uploaderErr   error
	videos        []entities.Video
	videosErr     error
	comments      map[int64][]entities.Comment
	commentCounts []int
	reportErr     error
	reported      []int64
}

func (c *fakeClient) UploaderName(context.Context, int64) (string, error) {
	return c.uploader, c.uploaderErr
}

func (c *fakeClient) Videos(_ context.Context, _ int64, count int) ([]entities.Video, error) {
	if c.videosErr != nil {
		return nil, c.videosErr
	}
	if len(c.videos) > count {
		return c.videos[:count], nil
	}
	return c.videos, nil
}

func (c *fakeClient) Comments(_ context.Context, aid int64, count int) ([]entities.Comment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.commentCounts = append(c.commentCounts, count)
	comments := c.comments[aid]
	if len(comments) > count {
		comments = comments[:count]
	}
	return comments, nil
}

func (c *fakeClient) ReportComment(_ context.Context, _, rpid int64, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reported = append(c.reported, rpid)
	return c.reportErr
}

func (c *fakeClient) reportedIDs() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.reported...)
}

type fakePublisher struct {
	mu      sync.Mutex
	records []*entities.ReportRecord
}

func (p *fakePublisher) PublishReport(_ context.Context, record *entities.ReportRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, record)
	return nil
}

func createAccount(t *testing.T, repo ports.AccountRepository, uid int64, loggedIn bool) *entities.Account {
	t.Helper()

	account := &entities.Account{UID: uid, Uname: "operator"}
	account.MarkLoggedIn("SESSDATA=s; bili_jct=j", testNow)
	account.Login = loggedIn
	if err := repo.Create(context.Background(), account); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}
