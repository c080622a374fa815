package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockPurger はPurgerのモック実装。
type mockPurger struct {
	mu       sync.Mutex
	calls    int
	before   time.Time
	deadline bool
	deleted  int64
	err      error
}

func (m *mockPurger) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.before = before
	_, m.deadline = ctx.Deadline()
	return m.deleted, m.err
}

func (m *mockPurger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockRecorder struct {
	total int64
}

func (m *mockRecorder) RecordRevocationsPurged(count int64) {
	m.total += count
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewCleanupJob_Defaults(t *testing.T) {
	job := NewCleanupJob(&mockPurger{}, nil, nil, 0)

	if job == nil {
		t.Fatal("NewCleanupJob は nil を返してはならない")
	}
	if job.timeout != 30*time.Second {
		t.Errorf("timeout = %v, want %v", job.timeout, 30*time.Second)
	}
	if job.logger == nil {
		t.Error("logger should default to slog.Default()")
	}
}

func TestCleanupJob_Run_DeletesBeforeNow(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{deleted: 4}
	recorder := &mockRecorder{}
	job := NewCleanupJob(purger, recorder, newTestLogger(&buf), time.Second)

	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if !purger.before.Equal(now) {
		t.Errorf("before = %v, want %v", purger.before, now)
	}
	if !purger.deadline {
		t.Error("DeleteExpired should be called with a deadline")
	}
	if recorder.total != 4 {
		t.Errorf("recorded = %d, want 4", recorder.total)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v\nraw: %s", err, buf.String())
	}
	if entry["deleted_count"] != float64(4) {
		t.Errorf("deleted_count = %v, want 4", entry["deleted_count"])
	}
}

func TestCleanupJob_Run_NothingToDelete(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockPurger{deleted: 0}, &mockRecorder{}, newTestLogger(&buf), time.Second)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run should be idempotent with no expired entries, got %v", err)
	}
}

func TestCleanupJob_Run_PurgeError(t *testing.T) {
	var buf bytes.Buffer
	recorder := &mockRecorder{}
	job := NewCleanupJob(&mockPurger{err: errors.New("store down")}, recorder, newTestLogger(&buf), time.Second)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "store down") {
		t.Errorf("error %q should wrap the cause", err.Error())
	}
	if recorder.total != 0 {
		t.Errorf("recorded = %d, want 0 on failure", recorder.total)
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("expected error log, got %s", buf.String())
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{}
	job := NewCleanupJob(purger, nil, newTestLogger(&buf), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for purger.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 2 runs, got %d", purger.callCount())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}

func TestCleanupJob_Start_LogsFailureAndKeepsRunning(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{err: errors.New("store down")}
	job := NewCleanupJob(purger, nil, newTestLogger(&buf), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for purger.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 2 runs, got %d", purger.callCount())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}

	logs := buf.String()
	if !strings.Contains(logs, "クリーンアップジョブが失敗しました") {
		t.Errorf("expected retry log from Start, got %s", logs)
	}
	if strings.Contains(logs, "cleanup job failed") {
		t.Errorf("log messages should use one language, got %s", logs)
	}
}
