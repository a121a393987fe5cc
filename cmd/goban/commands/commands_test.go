package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goban/core/internal/client/credentials"
	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/i18n"
	"github.com/goban/core/internal/ports"
)

type fakeServer struct {
	*httptest.Server
	seenAuth []bool
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		fs.seenAuth = append(fs.seenAuth, ok)
		w.Header().Set("Content-Type", "application/json")
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid username or password"}`))
			return
		}
		switch r.URL.Path {
		case "/api/users/list":
			json.NewEncoder(w).Encode([]entities.Account{{ID: 1, UID: 42, Uname: "alice", Login: true}})
		case "/api/tasks/list":
			json.NewEncoder(w).Encode([]entities.MonitorTask{{ID: 3, UserID: 1, TargetUID: 99, Keywords: "spam", Enabled: true, Interval: 300}})
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func run(t *testing.T, store credentials.Store, server string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var out, errOut bytes.Buffer
	app := &App{Store: store, Out: &out, Err: &errOut}
	root := NewRootCommand(app)
	root.SetArgs(append([]string{"--server", server, "--lang", "en"}, args...))
	err := root.ExecuteContext(context.Background())
	app.Close()
	return out.String(), errOut.String(), err
}

func TestDashboardCommandsNeedLogin(t *testing.T) {
	srv := newFakeServer(t)
	store := credentials.NewMemoryStore()

	_, stderr, err := run(t, store, srv.URL, "tasks", "list")
	if err == nil || !IsReported(err) {
		t.Fatalf("err = %v, expected the login-required error", err)
	}
	if !strings.Contains(stderr, i18n.T(i18n.LangEN, i18n.LoginRequired)) {
		t.Errorf("stderr = %q, expected the login hint", stderr)
	}
	if len(srv.seenAuth) != 0 {
		t.Errorf("server saw %d requests, expected none", len(srv.seenAuth))
	}
}

func TestLoginFlow(t *testing.T) {
	srv := newFakeServer(t)
	store := credentials.NewMemoryStore()

	stdout, _, err := run(t, store, srv.URL, "login", "-u", "admin", "-p", "secret")
	if err != nil {
		t.Fatalf("login error = %v", err)
	}
	if !strings.Contains(stdout, i18n.T(i18n.LangEN, i18n.LoggedIn)) {
		t.Errorf("stdout = %q, expected the logged-in message", stdout)
	}
	if !credentials.Present(store) {
		t.Fatal("credentials not stored after login")
	}

	stdout, _, err = run(t, store, srv.URL, "login", "-u", "admin", "-p", "secret")
	if err != nil {
		t.Fatalf("second login error = %v", err)
	}
	if !strings.Contains(stdout, i18n.T(i18n.LangEN, i18n.AlreadyLogged)) {
		t.Errorf("stdout = %q, expected the already-logged-in message", stdout)
	}

	stdout, _, err = run(t, store, srv.URL, "tasks", "list")
	if err != nil {
		t.Fatalf("tasks list error = %v", err)
	}
	if !strings.Contains(stdout, "spam") || !strings.Contains(stdout, "KEYWORDS") {
		t.Errorf("stdout = %q, expected a task table", stdout)
	}

	stdout, _, err = run(t, store, srv.URL, "--json", "users", "list")
	if err != nil {
		t.Fatalf("users list error = %v", err)
	}
	var accounts []entities.Account
	if err := json.Unmarshal([]byte(stdout), &accounts); err != nil {
		t.Fatalf("decode --json output: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Uname != "alice" {
		t.Errorf("accounts = %+v", accounts)
	}

	if _, _, err := run(t, store, srv.URL, "logout"); err != nil {
		t.Fatalf("logout error = %v", err)
	}
	if credentials.Present(store) {
		t.Error("credentials still stored after logout")
	}
}

func TestLoginRejected(t *testing.T) {
	srv := newFakeServer(t)
	store := credentials.NewMemoryStore()

	_, stderr, err := run(t, store, srv.URL, "login", "-u", "admin", "-p", "wrong")
	if err == nil || !IsReported(err) {
		t.Fatalf("err = %v, expected a reported failure", err)
	}
	if !strings.Contains(stderr, i18n.T(i18n.LangEN, i18n.Unauthorized)) {
		t.Errorf("stderr = %q, expected the unauthorized notice", stderr)
	}
	for _, key := range []string{credentials.KeyUsername, credentials.KeyPassword} {
		if _, ok := store.Get(key); ok {
			t.Errorf("%s kept after a rejected login", key)
		}
	}
}

func TestRequestErrorsGoToLogFile(t *testing.T) {
	srv := newFakeServer(t)
	store := credentials.NewMemoryStore()
	if err := credentials.Save(store, "admin", "secret"); err != nil {
		t.Fatal(err)
	}
	logFile := filepath.Join(t.TempDir(), "goban.log")

	_, stderr, err := run(t, store, srv.URL, "--log-file", logFile, "tasks", "delete", "5")
	if err == nil || !IsReported(err) {
		t.Fatalf("err = %v, expected a reported failure", err)
	}
	if !strings.Contains(stderr, "not found") {
		t.Errorf("stderr = %q, expected the server message", stderr)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", data, err)
	}
	if entry["message"] != "not found" || entry["component"] != "notify" {
		t.Errorf("log entry = %v, expected the notify record of the server message", entry)
	}
}

type qrServer struct {
	*httptest.Server
	mu       sync.Mutex
	checks   int
	canceled []string
}

// newQRServer answers login checks with statuses in order, repeating the
// last one. A nil block makes every check wait until the caller goes away.
func newQRServer(t *testing.T, statuses []entities.LoginStatus, block chan struct{}) *qrServer {
	t.Helper()
	qs := &qrServer{}
	qs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/users/login":
			json.NewEncoder(w).Encode(ports.QRLoginResponse{Image: "cG5n", Key: "k1"})
		case "/api/users/loginCheck":
			qs.mu.Lock()
			n := qs.checks
			qs.checks++
			qs.mu.Unlock()
			if block != nil {
				if n == 0 {
					close(block)
				}
				<-r.Context().Done()
				return
			}
			status := statuses[len(statuses)-1]
			if n < len(statuses) {
				status = statuses[n]
			}
			json.NewEncoder(w).Encode(ports.LoginCheckResponse{Status: status, Message: string(status)})
		case "/api/users/loginCancel":
			qs.mu.Lock()
			qs.canceled = append(qs.canceled, r.URL.Query().Get("key"))
			qs.mu.Unlock()
			json.NewEncoder(w).Encode(ports.MessageResponse{Message: "cancelled"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(qs.Close)
	return qs
}

func fastPolling(t *testing.T) {
	t.Helper()
	prev := qrPollInterval
	qrPollInterval = 10 * time.Millisecond
	t.Cleanup(func() { qrPollInterval = prev })
}

func TestQRLoginPollsUntilTerminal(t *testing.T) {
	fastPolling(t)

	tests := []struct {
		name     string
		statuses []entities.LoginStatus
		wantErr  bool
	}{
		{"success", []entities.LoginStatus{entities.LoginStatusPending, entities.LoginStatusScanned, entities.LoginStatusSuccess}, false},
		{"expired", []entities.LoginStatus{entities.LoginStatusPending, entities.LoginStatusExpired}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs := newQRServer(t, tt.statuses, nil)
			store := credentials.NewMemoryStore()
			credentials.Save(store, "admin", "secret")
			out := filepath.Join(t.TempDir(), "qr.png")

			stdout, _, err := run(t, store, qs.URL, "users", "qr-login", "--out", out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, expected error %t", err, tt.wantErr)
			}
			qs.mu.Lock()
			checks, canceled := qs.checks, qs.canceled
			qs.mu.Unlock()
			if checks != len(tt.statuses) {
				t.Errorf("checks = %d, expected %d", checks, len(tt.statuses))
			}
			for _, status := range tt.statuses {
				if !strings.Contains(stdout, string(status)) {
					t.Errorf("stdout = %q, expected status %s", stdout, status)
				}
			}
			if data, err := os.ReadFile(out); err != nil || string(data) != "png" {
				t.Errorf("qr image = %q, %v", data, err)
			}
			if len(canceled) != 0 {
				t.Errorf("canceled = %v, expected none", canceled)
			}
		})
	}
}

func TestQRLoginInterruptedDuringCheck(t *testing.T) {
	fastPolling(t)

	inFlight := make(chan struct{})
	qs := newQRServer(t, nil, inFlight)
	store := credentials.NewMemoryStore()
	credentials.Save(store, "admin", "secret")
	t.Setenv("HOME", t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-inFlight
		cancel()
	}()

	var out, errOut bytes.Buffer
	app := &App{Store: store, Out: &out, Err: &errOut}
	root := NewRootCommand(app)
	root.SetArgs([]string{"--server", qs.URL, "--lang", "en", "users", "qr-login", "--out", filepath.Join(t.TempDir(), "qr.png")})
	err := root.ExecuteContext(ctx)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, expected %v", err, context.Canceled)
	}
	qs.mu.Lock()
	canceled := qs.canceled
	qs.mu.Unlock()
	if len(canceled) != 1 || canceled[0] != "k1" {
		t.Errorf("canceled = %v, expected [k1]", canceled)
	}
	if failed := i18n.T(i18n.LangEN, i18n.RequestFailed); strings.Contains(errOut.String(), failed) {
		t.Errorf("stderr = %q, expected no %q notice", errOut.String(), failed)
	}
}
