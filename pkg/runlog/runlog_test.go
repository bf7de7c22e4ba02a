package runlog

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	mu       sync.Mutex
	started  []Run
	results  []VesselResult
	done     []Run
	deleted  time.Time
}

func (f *fakeStore) StartRun(_ context.Context, r Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, r)
	return nil
}

func (f *fakeStore) RecordVesselResult(_ context.Context, r VesselResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, r)
	return nil
}

func (f *fakeStore) CompleteRun(_ context.Context, r Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done = append(f.done, r)
	return nil
}

func (f *fakeStore) RecentRuns(_ context.Context, _ int) ([]Run, error) { return nil, nil }

func (f *fakeStore) RunDetails(_ context.Context, _ uuid.UUID) (*Details, error) { return nil, nil }

func (f *fakeStore) Statistics(_ context.Context, _ int) (Statistics, error) { return Statistics{}, nil }

func (f *fakeStore) DeleteRunsBefore(_ context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = cutoff
	return 3, nil
}

func (f *fakeStore) snapshot() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.started), len(f.results), len(f.done)
}

func noopLogger() *slog.Logger { return slog.New(slog.NewTextHandler(discard{}, nil)) }

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestLogger_FlushesOnBatchSize(t *testing.T) {
	store := &fakeStore{}
	l := NewLogger(store, noopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)

	runID := uuid.New()
	for i := 0; i < flushBatch; i++ {
		l.LogVesselResult(VesselResult{RunID: runID, VesselID: "V1", AttemptNumber: 1, Success: true})
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, n, _ := store.snapshot(); n == flushBatch {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for batch flush")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	l.Close()
}

func TestLogger_FlushesOnClose(t *testing.T) {
	store := &fakeStore{}
	l := NewLogger(store, noopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)

	run := Run{ID: uuid.New(), Start: time.Now(), TotalVessels: 5, Status: StatusRunning}
	l.LogRunStart(run)
	run.Status = StatusCompleted
	l.LogRunCompletion(run)

	cancel()
	l.Close()

	started, _, done := store.snapshot()
	if started != 1 || done != 1 {
		t.Errorf("expected 1 start and 1 completion flushed on close, got started=%d done=%d", started, done)
	}
}

func TestRetention_DeletesBeforeCutoff(t *testing.T) {
	store := &fakeStore{}
	n, err := Retention(context.Background(), store, 90)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected 3 deleted, got %d", n)
	}
	wantBefore := time.Now().UTC().AddDate(0, 0, -89)
	if store.deleted.After(wantBefore) {
		t.Errorf("cutoff %v should be more than 89 days back", store.deleted)
	}
}

func TestRetention_DefaultsWhenNonPositive(t *testing.T) {
	store := &fakeStore{}
	if _, err := Retention(context.Background(), store, 0); err != nil {
		t.Fatal(err)
	}
	wantBefore := time.Now().UTC().AddDate(0, 0, -89)
	if store.deleted.After(wantBefore) {
		t.Errorf("expected default 90-day retention, got cutoff %v", store.deleted)
	}
}
