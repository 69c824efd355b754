package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/warpdl/warpsched/common"
	"github.com/warpdl/warpsched/internal/config"
	"github.com/warpdl/warpsched/pkg/logger"
	"github.com/warpdl/warpsched/pkg/sched"
)

// captureOutput returns what fn printed to stdout.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	done := make(chan string)
	go func() {
		b, _ := io.ReadAll(r)
		done <- string(b)
	}()
	defer func() { os.Stdout = orig }()
	fn()
	w.Close()
	os.Stdout = orig
	return <-done
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var err error
	out := captureOutput(t, func() {
		err = Execute(append([]string{"warpsched"}, args...), BuildArgs{Version: "1.2.3", BuildType: "test"})
	})
	return out, err
}

func withRunFs(t *testing.T, files map[string]string) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, src := range files {
		if err := afero.WriteFile(fs, name, []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	orig := runFs
	runFs = fs
	t.Cleanup(func() { runFs = orig })
}

func TestExecute_Version(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "warpsched 1.2.3-test") {
		t.Errorf("expected version string, got %q", out)
	}
}

func TestRun_Scripts(t *testing.T) {
	withRunFs(t, map[string]string{
		"/jobs/a.js": `var n = 0; for (var i = 0; i < 10; i++) { n += i; }`,
		"/jobs/b.js": `scheduler.scheduleCallback(scheduler.LowPriority, function () {});`,
	})
	_, err := execute(t, "run", "--host", "timer", "--deadline", "5s", "/jobs/a.js", "/jobs/b.js")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRun_ReportsFailures(t *testing.T) {
	withRunFs(t, map[string]string{
		"/ok.js":  `1 + 1`,
		"/bad.js": `throw new Error("boom")`,
	})
	out, err := execute(t, "run", "--host", "timer", "--deadline", "5s", "/ok.js", "/bad.js", "/missing.js")
	if err == nil {
		t.Fatal("expected error for failing scripts")
	}
	if !strings.Contains(err.Error(), "2 of 3") {
		t.Errorf("expected 2 of 3 failures, got %v", err)
	}
	if !strings.Contains(out, "bad.js") || !strings.Contains(out, "boom") {
		t.Errorf("expected failure details, got %q", out)
	}
}

func TestRun_Progress(t *testing.T) {
	withRunFs(t, map[string]string{"/a.js": `1`, "/b.js": `2`})
	if _, err := execute(t, "run", "--host", "timer", "--progress", "--deadline", "5s", "/a.js", "/b.js"); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no script", []string{"run"}, "no script provided"},
		{"bad priority", []string{"run", "--priority", "urgent", "/a.js"}, "urgent"},
		{"bad host", []string{"run", "--host", "gpu", "/a.js"}, `unknown host "gpu"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if err != nil {
				t.Fatalf("expected printed usage error, got %v", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("expected output to contain %q, got %q", tt.want, out)
			}
		})
	}
}

func TestRenderStats(t *testing.T) {
	out := renderStats(&common.StatusResult{
		Stats:  sched.Stats{Executed: 12345, Pending: 2},
		Host:   "frame",
		Paused: true,
		Budget: 5 * time.Millisecond,
		Frames: 1200,
	})
	for _, want := range []string{"frame host, paused", "5ms over 1,200 frames", "executed       12,345", "pending        2"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}

	out = renderStats(&common.StatusResult{Host: "timer"})
	if strings.Contains(out, "frame budget") {
		t.Errorf("expected no frame budget for the timer host, got:\n%s", out)
	}
}

func TestRenderTrace(t *testing.T) {
	if out := renderTrace(nil, time.Now()); !strings.Contains(out, "no task events") {
		t.Errorf("expected empty message, got %q", out)
	}

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	out := renderTrace([]common.TraceEntry{
		{TaskID: 7, Name: "report", Kind: "failed", Priority: "low", At: now.Add(-3 * time.Second), Error: "boom"},
		{TaskID: 7, Name: "report", Kind: "started", Priority: "low", At: now.Add(-4 * time.Second), DidTimeout: true},
	}, now)
	for _, want := range []string{"report", "failed", "started*", "3 seconds ago", "`-> boom", "ran after its timeout"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
}

func TestLoadDaemonConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "warpsched.hcl")
	src := "listen = \"127.0.0.1:5000\"\nrpc_secret = \"from-file\"\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	daemonConfig, daemonListen, daemonTraceDB = path, "127.0.0.1:6000", "/tmp/t.db"
	defer func() { daemonConfig, daemonListen, daemonTraceDB = "", "", "" }()

	cfg, err := loadDaemonConfig()
	if err != nil {
		t.Fatalf("loadDaemonConfig: %v", err)
	}
	if cfg.Listen != "127.0.0.1:6000" || cfg.TraceDB != "/tmp/t.db" {
		t.Errorf("expected flag overrides, got listen=%s trace=%s", cfg.Listen, cfg.TraceDB)
	}
	if cfg.RPCSecret != "from-file" {
		t.Errorf("expected secret from file, got %q", cfg.RPCSecret)
	}
}

func TestDaemon_ClientCommands(t *testing.T) {
	const secret = "cmd-test-secret"
	scripts := t.TempDir()
	if err := os.WriteFile(filepath.Join(scripts, "remote.js"), []byte(`1`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	cfg.RPCSecret = secret
	cfg.TraceDB = filepath.Join(t.TempDir(), "trace.db")
	cfg.ScriptDir = scripts
	cfg.Host.Kind = config.HostTimer

	dc, err := initDaemonComponents(cfg, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("initDaemonComponents: %v", err)
	}
	defer dc.Close()
	go dc.Runner.Start(context.Background())
	defer dc.Runner.Shutdown()

	deadline := time.Now().Add(3 * time.Second)
	for dc.Runner.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("daemon did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	flags := []string{"--addr", dc.Runner.Addr().String(), "--secret", secret}

	out, err := execute(t, append([]string{"submit", "--eval", "1 + 1", "--name", "sum"}, flags...)...)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(strings.TrimSpace(out)) == 0 || strings.Contains(out, "[call]") {
		t.Fatalf("expected a task id, got %q", out)
	}

	out, _ = execute(t, append([]string{"submit", "--remote", "remote.js"}, flags...)...)
	if strings.Contains(out, "[call]") {
		t.Fatalf("expected remote submit to succeed, got %q", out)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := dc.Engine.Idle(ctx, 5*time.Millisecond); err != nil {
		t.Fatalf("Idle: %v", err)
	}
	if err := dc.Trace.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	out, _ = execute(t, append([]string{"stats"}, flags...)...)
	if !strings.Contains(out, "timer host, running") || !strings.Contains(out, "executed       2") {
		t.Errorf("unexpected stats output:\n%s", out)
	}

	out, _ = execute(t, append([]string{"trace"}, flags...)...)
	if !strings.Contains(out, "sum") || !strings.Contains(out, "completed") {
		t.Errorf("unexpected trace output:\n%s", out)
	}

	out, _ = execute(t, append([]string{"pause"}, flags...)...)
	if !strings.Contains(out, "paused") {
		t.Errorf("unexpected pause output: %q", out)
	}
	out, _ = execute(t, append([]string{"resume"}, flags...)...)
	if !strings.Contains(out, "resumed") {
		t.Errorf("unexpected resume output: %q", out)
	}

	out, _ = execute(t, append([]string{"cancel", "nope"}, flags...)...)
	if !strings.Contains(out, "task not found") {
		t.Errorf("expected task not found, got %q", out)
	}

	out, _ = execute(t, "stats", "--addr", dc.Runner.Addr().String(), "--secret", "wrong")
	if !strings.Contains(out, "unauthorized") {
		t.Errorf("expected unauthorized, got %q", out)
	}
}
