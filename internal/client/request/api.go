package request

import (
	"context"
	"net/http"
	"strconv"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/ports"
)

// UserAPI covers /users
type UserAPI struct{ c *Client }

// TaskAPI covers /tasks
type TaskAPI struct{ c *Client }

// LogAPI covers /logs
type LogAPI struct{ c *Client }

func (c *Client) Users() *UserAPI { return &UserAPI{c: c} }
func (c *Client) Tasks() *TaskAPI { return &TaskAPI{c: c} }
func (c *Client) Logs() *LogAPI   { return &LogAPI{c: c} }

func idPath(prefix string, id int64) string {
	return prefix + "/" + strconv.FormatInt(id, 10)
}

func (a *UserAPI) List(ctx context.Context) ([]entities.Account, error) {
	var out []entities.Account
	err := a.c.call(ctx, http.MethodGet, "/users/list", nil, nil, &out)
	return out, err
}

// QRLogin starts a QR login; Image is a base64 PNG
func (a *UserAPI) QRLogin(ctx context.Context) (*ports.QRLoginResponse, error) {
	var out ports.QRLoginResponse
	if err := a.c.call(ctx, http.MethodGet, "/users/login", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *UserAPI) LoginCheck(ctx context.Context, key string) (*ports.LoginCheckResponse, error) {
	var out ports.LoginCheckResponse
	if err := a.c.call(ctx, http.MethodGet, "/users/loginCheck", map[string]string{"key": key}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *UserAPI) LoginCancel(ctx context.Context, key string) (*ports.MessageResponse, error) {
	var out ports.MessageResponse
	if err := a.c.call(ctx, http.MethodGet, "/users/loginCancel", map[string]string{"key": key}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *UserAPI) LoginByCookie(ctx context.Context, cookies string) (*ports.CookieLoginResponse, error) {
	var out ports.CookieLoginResponse
	body := ports.CookieLoginRequest{Cookies: cookies}
	if err := a.c.call(ctx, http.MethodPost, "/users/loginByCookie", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *UserAPI) Delete(ctx context.Context, id int64) (*ports.MessageResponse, error) {
	var out ports.MessageResponse
	if err := a.c.call(ctx, http.MethodDelete, idPath("/users", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *TaskAPI) List(ctx context.Context) ([]entities.MonitorTask, error) {
	var out []entities.MonitorTask
	err := a.c.call(ctx, http.MethodGet, "/tasks/list", nil, nil, &out)
	return out, err
}

func (a *TaskAPI) Create(ctx context.Context, task ports.CreateTaskRequest) (*ports.TaskResponse, error) {
	var out ports.TaskResponse
	if err := a.c.call(ctx, http.MethodPost, "/tasks/create", nil, task, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *TaskAPI) Update(ctx context.Context, id int64, task ports.UpdateTaskRequest) (*ports.TaskResponse, error) {
	var out ports.TaskResponse
	if err := a.c.call(ctx, http.MethodPut, idPath("/tasks", id), nil, task, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *TaskAPI) Delete(ctx context.Context, id int64) (*ports.MessageResponse, error) {
	var out ports.MessageResponse
	if err := a.c.call(ctx, http.MethodDelete, idPath("/tasks", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Test dry-runs a task without reporting anything
func (a *TaskAPI) Test(ctx context.Context, id int64) (*ports.TaskTestResponse, error) {
	var out ports.TaskTestResponse
	if err := a.c.call(ctx, http.MethodGet, idPath("/tasks", id)+"/test", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LogQuery filters history pages. Zero values are omitted.
type LogQuery struct {
	TaskID   int64
	Page     int
	PageSize int
}

func (q LogQuery) params() map[string]string {
	params := make(map[string]string)
	if q.TaskID > 0 {
		params["task_id"] = strconv.FormatInt(q.TaskID, 10)
	}
	if q.Page > 0 {
		params["page"] = strconv.Itoa(q.Page)
	}
	if q.PageSize > 0 {
		params["page_size"] = strconv.Itoa(q.PageSize)
	}
	return params
}

func (a *LogAPI) Monitor(ctx context.Context, q LogQuery) (*ports.Page[entities.MonitorLog], error) {
	var out ports.Page[entities.MonitorLog]
	if err := a.c.call(ctx, http.MethodGet, "/logs/monitor", q.params(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *LogAPI) Report(ctx context.Context, q LogQuery) (*ports.Page[entities.ReportRecord], error) {
	var out ports.Page[entities.ReportRecord]
	if err := a.c.call(ctx, http.MethodGet, "/logs/report", q.params(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
