package preflight

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vinscan/internal/api"
	"vinscan/internal/config"
	"vinscan/internal/session"
	"vinscan/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckHistory_Disabled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutHistory())
	result := CheckHistory(context.Background(), cfg)
	if !result.Passed || result.Detail != "Disabled" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckHistory_NotCreated(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	result := CheckHistory(context.Background(), cfg)
	if !result.Passed || !strings.Contains(result.Detail, "not created yet") {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := os.Stat(cfg.History.Path); !os.IsNotExist(err) {
		t.Fatal("check must not create the database")
	}
}

func TestCheckHistory_CountsDecisions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.RecordDecision(t, store, "s-1", "1HGCM82633A004352", time.Now())

	result := CheckHistory(context.Background(), cfg)
	if !result.Passed || !strings.Contains(result.Detail, "(1 decisions)") {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckHistory_NotADatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(filepath.Dir(cfg.History.Path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.History.Path, []byte("plain text, not sqlite"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckHistory(context.Background(), cfg)
	if result.Passed {
		t.Fatalf("expected failure for corrupt database, got %+v", result)
	}
}

func daemonStub(t *testing.T, token string) *config.Config {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/api/status" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(api.DaemonStatus{
			Running:  true,
			PID:      4242,
			Sessions: session.Stats{Active: 3},
		})
	}))
	t.Cleanup(srv.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(token))
	cfg.Paths.APIBind = strings.TrimPrefix(srv.URL, "http://")
	return cfg
}

func TestCheckDaemon_Running(t *testing.T) {
	cfg := daemonStub(t, "good-key")
	result := CheckDaemon(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result.Detail != "running (pid 4242, 3 active sessions)" {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDaemon_BadToken(t *testing.T) {
	cfg := daemonStub(t, "good-key")
	cfg.Paths.APIToken = "bad-key"
	result := CheckDaemon(context.Background(), cfg)
	if result.Passed || !strings.Contains(result.Detail, "auth failed") {
		t.Fatalf("expected auth failure, got %+v", result)
	}
}

func TestCheckDaemon_NotRunning(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := listener.Addr().String()
	listener.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = addr
	result := CheckDaemon(context.Background(), cfg)
	if result.Passed || result.Detail != "not running" {
		t.Fatalf("expected not running, got %+v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil, true)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg, false)
	// State + log directories and history
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures %+v", failed)
	}
}

func TestRunAll_IncludesDaemonWhenRequested(t *testing.T) {
	cfg := daemonStub(t, "")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg, true)
	found := false
	for _, r := range results {
		if r.Name == "Daemon" {
			found = true
			if !r.Passed {
				t.Errorf("Daemon check failed: %s", r.Detail)
			}
		}
	}
	if !found {
		t.Fatal("expected Daemon check in results")
	}
}
