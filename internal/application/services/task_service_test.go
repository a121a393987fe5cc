package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/infrastructure/logger"
	"github.com/goban/core/internal/ports"
)

func newTaskService(t *testing.T, client *fakeClient) (*TaskService, testRepos, *fakeGateway) {
	t.Helper()

	repos := newTestRepos(t)
	gateway := &fakeGateway{client: client}
	return NewTaskService(repos.tasks, repos.accounts, gateway, logger.NewNop()), repos, gateway
}

func TestCreateTask(t *testing.T) {
	ctx := context.Background()
	svc, repos, gateway := newTaskService(t, &fakeClient{uploader: "uploader"})
	active := createAccount(t, repos.accounts, 100, true)
	inactive := createAccount(t, repos.accounts, 200, false)

	tests := []struct {
		name        string
		req         ports.CreateTaskRequest
		expectedErr error
	}{
		{"defaults applied", ports.CreateTaskRequest{UserID: active.ID, TargetUID: 1, Keywords: "a, b"}, nil},
		{"unknown account", ports.CreateTaskRequest{UserID: 9999, TargetUID: 1, Keywords: "a"}, entities.ErrAccountNotFound},
		{"logged out account", ports.CreateTaskRequest{UserID: inactive.ID, TargetUID: 1, Keywords: "a"}, entities.ErrAccountLoggedOut},
		{"only separators", ports.CreateTaskRequest{UserID: active.ID, TargetUID: 1, Keywords: " , ,"}, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := svc.CreateTask(ctx, tt.req)
			if !errors.Is(err, tt.expectedErr) {
				t.Fatalf("CreateTask error = %v, expected %v", err, tt.expectedErr)
			}
			if err != nil {
				return
			}

			if task.ID == 0 || !task.Enabled || task.TargetUname != "uploader" {
				t.Errorf("task = %+v", task)
			}
			defaults := []struct {
				field    string
				got      int
				expected int
			}{
				{"VideoCount", task.VideoCount, entities.DefaultVideoCount},
				{"CommentCount", task.CommentCount, entities.DefaultCommentCount},
				{"Interval", task.Interval, entities.DefaultInterval},
				{"ReportDelay", task.ReportDelay, entities.DefaultReportDelay},
				{"MaxRetries", task.MaxRetries, entities.DefaultMaxRetries},
				{"RetryInterval", task.RetryInterval, entities.DefaultRetryInterval},
			}
			for _, d := range defaults {
				if d.got != d.expected {
					t.Errorf("%s = %d, expected %d", d.field, d.got, d.expected)
				}
			}
		})
	}

	if len(gateway.options) == 0 || gateway.options[0].MaxRetries != entities.DefaultMaxRetries {
		t.Errorf("client options = %+v, expected task retry policy", gateway.options)
	}
}

func TestCreateTaskUploaderFailure(t *testing.T) {
	svc, repos, _ := newTaskService(t, &fakeClient{uploaderErr: entities.ErrUpstreamFailure})
	account := createAccount(t, repos.accounts, 100, true)

	_, err := svc.CreateTask(context.Background(), ports.CreateTaskRequest{UserID: account.ID, TargetUID: 1, Keywords: "a"})
	if !errors.Is(err, entities.ErrUpstreamFailure) {
		t.Errorf("error = %v, expected %v", err, entities.ErrUpstreamFailure)
	}
}

func TestUpdateTask(t *testing.T) {
	ctx := context.Background()
	svc, repos, _ := newTaskService(t, &fakeClient{uploader: "u"})
	account := createAccount(t, repos.accounts, 100, true)

	task, err := svc.CreateTask(ctx, ports.CreateTaskRequest{UserID: account.ID, TargetUID: 1, Keywords: "old", VideoCount: 8})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	disabled := false
	proxy := " http://127.0.0.1:8080 "
	updated, err := svc.UpdateTask(ctx, task.ID, ports.UpdateTaskRequest{
		CommentCount: 99,
		Keywords:     "new",
		Enabled:      &disabled,
		ProxyURL:     &proxy,
	})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	if updated.VideoCount != 8 {
		t.Errorf("VideoCount = %d, expected untouched 8", updated.VideoCount)
	}
	if updated.CommentCount != 99 || updated.Keywords != "new" || updated.Enabled {
		t.Errorf("updated = %+v", updated)
	}
	if updated.ProxyURL != "http://127.0.0.1:8080" {
		t.Errorf("ProxyURL = %q", updated.ProxyURL)
	}
	if updated.User == nil || updated.User.ID != account.ID {
		t.Errorf("User = %+v, expected account %d", updated.User, account.ID)
	}

	if _, err := svc.UpdateTask(ctx, 9999, ports.UpdateTaskRequest{}); !errors.Is(err, entities.ErrTaskNotFound) {
		t.Errorf("UpdateTask(missing) error = %v, expected %v", err, entities.ErrTaskNotFound)
	}
}

func TestListAndDeleteTasks(t *testing.T) {
	ctx := context.Background()
	svc, repos, _ := newTaskService(t, &fakeClient{uploader: "u"})
	account := createAccount(t, repos.accounts, 100, true)

	task, err := svc.CreateTask(ctx, ports.CreateTaskRequest{UserID: account.ID, TargetUID: 1, Keywords: "k"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	tasks, err := svc.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].User == nil || tasks[0].User.UID != 100 {
		t.Fatalf("ListTasks = %+v", tasks)
	}

	if err := svc.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if err := svc.DeleteTask(ctx, task.ID); !errors.Is(err, entities.ErrTaskNotFound) {
		t.Errorf("second DeleteTask error = %v, expected %v", err, entities.ErrTaskNotFound)
	}
}

func TestTestTask(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{
		uploader: "u",
		videos: []entities.Video{
			{AID: 1, BVID: "BV1"}, {AID: 2, BVID: "BV2"}, {AID: 3, BVID: "BV3"}, {AID: 4, BVID: "BV4"},
		},
		comments: map[int64][]entities.Comment{
			1: {{RPID: 11, Message: "This is SPAM"}, {RPID: 12, Message: "fine"}},
			2: {{RPID: 21, Message: "nothing"}},
			4: {{RPID: 41, Message: "spam"}},
		},
	}
	svc, repos, _ := newTaskService(t, client)
	account := createAccount(t, repos.accounts, 100, true)

	task, err := svc.CreateTask(ctx, ports.CreateTaskRequest{UserID: account.ID, TargetUID: 1, Keywords: "spam"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	results, err := svc.TestTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("TestTask: %v", err)
	}

	if len(results) != DefaultTestVideoLimit {
		t.Fatalf("results = %d videos, expected %d", len(results), DefaultTestVideoLimit)
	}
	if results[0].Comments != 2 || len(results[0].Matches) != 1 || !strings.Contains(results[0].Matches[0], "11") {
		t.Errorf("first video result = %+v", results[0])
	}
	if results[2].Matches == nil || len(results[2].Matches) != 0 {
		t.Errorf("third video matches = %#v, expected empty", results[2].Matches)
	}
	for _, count := range client.commentCounts {
		if count != DefaultTestCommentSize {
			t.Errorf("comments requested = %d, expected %d", count, DefaultTestCommentSize)
		}
	}
	if len(client.reportedIDs()) != 0 {
		t.Errorf("dry run reported %v", client.reportedIDs())
	}
}

func TestTestTaskLoggedOut(t *testing.T) {
	ctx := context.Background()
	svc, repos, _ := newTaskService(t, &fakeClient{uploader: "u"})
	account := createAccount(t, repos.accounts, 100, true)

	task, err := svc.CreateTask(ctx, ports.CreateTaskRequest{UserID: account.ID, TargetUID: 1, Keywords: "k"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	account.Login = false
	if err := repos.accounts.Update(ctx, account); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := svc.TestTask(ctx, task.ID); !errors.Is(err, entities.ErrAccountLoggedOut) {
		t.Errorf("TestTask error = %v, expected %v", err, entities.ErrAccountLoggedOut)
	}
}
