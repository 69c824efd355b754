package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/warpdl/warpsched/internal/engine"
	"github.com/warpdl/warpsched/internal/trace"
	"github.com/warpdl/warpsched/pkg/sched"
)

const testSecret = "test-rpc-secret"

type fakeScheduler struct {
	mu        sync.Mutex
	submitted []engine.Submission
	canceled  []string
	paused    bool
	err       error
}

func (f *fakeScheduler) Submit(_ context.Context, sub engine.Submission) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.submitted = append(f.submitted, sub)
	return "task-1", nil
}

func (f *fakeScheduler) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != "task-1" {
		return engine.ErrTaskNotFound
	}
	f.canceled = append(f.canceled, id)
	return nil
}

func (f *fakeScheduler) Status(context.Context) (engine.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return engine.Status{}, f.err
	}
	return engine.Status{
		Stats:  sched.Stats{Scheduled: 3, Executed: 2, Pending: 1},
		Paused: f.paused,
		Host:   "frame",
		Budget: 5 * time.Millisecond,
		Frames: 7,
	}, nil
}

func (f *fakeScheduler) Pause(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
	return nil
}

func (f *fakeScheduler) Resume(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = false
	return nil
}

type fakeTrace struct {
	events []trace.Event
	limit  int
}

func (f *fakeTrace) Recent(_ context.Context, limit int) ([]trace.Event, error) {
	f.limit = limit
	if limit < len(f.events) {
		return f.events[:limit], nil
	}
	return f.events, nil
}

func newTestRPC(t *testing.T, tr TraceSource) (*RPCServer, *fakeScheduler) {
	t.Helper()
	fs := &fakeScheduler{}
	rs := NewRPCServer(&RPCConfig{
		Secret:    testSecret,
		Version:   "1.0.0",
		Commit:    "abc123",
		BuildType: "release",
	}, fs, tr, nil)
	t.Cleanup(func() { rs.Close() })
	return rs, fs
}

// rpcCall posts a JSON-RPC request to h and returns the parsed response.
func rpcCall(t *testing.T, h http.Handler, method string, params any) (int, map[string]any) {
	t.Helper()
	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"id":      1,
	}
	if params != nil {
		reqBody["params"] = params
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/jsonrpc", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testSecret)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	resp := rr.Result()
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var result map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			t.Fatalf("unmarshal response: %v (body: %s)", err, string(body))
		}
	}
	return rr.Code, result
}

func resultOf(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected result object, got %v", resp)
	}
	return result
}

func errorCode(t *testing.T, resp map[string]any) float64 {
	t.Helper()
	errObj, ok := resp["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error object, got %v", resp)
	}
	return errObj["code"].(float64)
}
