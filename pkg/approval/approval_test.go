package approval

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

type recordingNotifier struct {
	notified []Request
}

func (r *recordingNotifier) Notify(_ context.Context, req Request) error {
	r.notified = append(r.notified, req)
	return nil
}

type fakeStore struct {
	saved   []Request
	updated []Request
	pending []Request
}

func (f *fakeStore) SaveRequest(_ context.Context, req Request) error {
	f.saved = append(f.saved, req)
	return nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, req Request) error {
	f.updated = append(f.updated, req)
	return nil
}

func (f *fakeStore) PendingRequests(_ context.Context) ([]Request, error) {
	return f.pending, nil
}

func TestSubmitAndDecide_Approved(t *testing.T) {
	notifier := &recordingNotifier{}
	w := New(DefaultConfig, nil, notifier, nil, nil)

	req, err := w.Submit(context.Background(), "vessel V1 server down 3d", "V1")
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != StatusPending {
		t.Fatalf("Status = %v, want PENDING", req.Status)
	}
	if len(notifier.notified) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.notified))
	}

	decided, err := w.Decide(context.Background(), req.ID, true, "alice", "looks real")
	if err != nil {
		t.Fatal(err)
	}
	if decided.Status != StatusApproved {
		t.Errorf("Status = %v, want APPROVED", decided.Status)
	}
}

func TestDecide_DoubleResponseFails(t *testing.T) {
	w := New(DefaultConfig, nil, nil, nil, nil)
	req, _ := w.Submit(context.Background(), "s", "V1")

	if _, err := w.Decide(context.Background(), req.ID, true, "alice", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Decide(context.Background(), req.ID, false, "bob", ""); err != ErrAlreadyDecided {
		t.Errorf("expected ErrAlreadyDecided, got %v", err)
	}
}

func TestDecide_UnknownRequest(t *testing.T) {
	w := New(DefaultConfig, nil, nil, nil, nil)
	if _, err := w.Decide(context.Background(), uuid.New(), true, "alice", ""); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCheckTimeouts_MarksExpiredPending(t *testing.T) {
	w := New(Config{DefaultTimeout: time.Millisecond, MaxPending: 10}, nil, nil, nil, nil)
	req, _ := w.Submit(context.Background(), "s", "V1")

	time.Sleep(5 * time.Millisecond)
	timedOut := w.CheckTimeouts(context.Background())

	if len(timedOut) != 1 || timedOut[0].ID != req.ID {
		t.Fatalf("expected %v to time out, got %+v", req.ID, timedOut)
	}

	if _, err := w.Decide(context.Background(), req.ID, true, "alice", ""); err != ErrAlreadyDecided {
		t.Errorf("expected a timed-out request to reject a late decision, got %v", err)
	}
}

func TestSubmit_TooManyPending(t *testing.T) {
	w := New(Config{DefaultTimeout: time.Hour, MaxPending: 1}, nil, nil, nil, nil)
	if _, err := w.Submit(context.Background(), "a", "V1"); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Submit(context.Background(), "b", "V2"); err != ErrTooManyPending {
		t.Errorf("expected ErrTooManyPending, got %v", err)
	}
}

func TestAwait_ReturnsOnDecision(t *testing.T) {
	w := New(DefaultConfig, nil, nil, nil, nil)
	req, _ := w.Submit(context.Background(), "s", "V1")

	go func() {
		time.Sleep(5 * time.Millisecond)
		w.Decide(context.Background(), req.ID, true, "alice", "")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := w.Await(ctx, req.ID, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != StatusApproved {
		t.Errorf("Status = %v, want APPROVED", result.Status)
	}
}

func TestAwait_TimesOutViaCheckTimeouts(t *testing.T) {
	w := New(Config{DefaultTimeout: 2 * time.Millisecond, MaxPending: 10}, nil, nil, nil, nil)
	req, _ := w.Submit(context.Background(), "s", "V1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := w.Await(ctx, req.ID, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != StatusTimeout {
		t.Errorf("Status = %v, want TIMEOUT", result.Status)
	}
}

func TestSubmitAndDecide_PersistToStore(t *testing.T) {
	store := &fakeStore{}
	w := New(DefaultConfig, store, nil, nil, nil)

	req, err := w.Submit(context.Background(), "s", "V1")
	if err != nil {
		t.Fatal(err)
	}
	if len(store.saved) != 1 || store.saved[0].ID != req.ID {
		t.Fatalf("expected the new request saved, got %+v", store.saved)
	}

	if _, err := w.Decide(context.Background(), req.ID, true, "alice", ""); err != nil {
		t.Fatal(err)
	}
	if len(store.updated) != 1 || store.updated[0].Status != StatusApproved {
		t.Fatalf("expected approval status persisted, got %+v", store.updated)
	}
}

func TestLoadPending_ReconstructsFromStore(t *testing.T) {
	id := uuid.New()
	store := &fakeStore{pending: []Request{{ID: id, Summary: "s", VesselID: "V1", Status: StatusPending, RequestedAt: time.Now().UTC()}}}
	w := New(DefaultConfig, store, nil, nil, nil)

	if err := w.LoadPending(context.Background()); err != nil {
		t.Fatal(err)
	}

	req, err := w.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != StatusPending {
		t.Errorf("Status = %v, want PENDING", req.Status)
	}
}

func TestStats(t *testing.T) {
	w := New(Config{DefaultTimeout: time.Hour, MaxPending: 10}, nil, nil, nil, nil)
	a, _ := w.Submit(context.Background(), "a", "V1")
	b, _ := w.Submit(context.Background(), "b", "V2")
	w.Decide(context.Background(), a.ID, true, "alice", "")
	w.Decide(context.Background(), b.ID, false, "bob", "")

	s := w.Stats()
	if s.Approved != 1 || s.Rejected != 1 || s.Pending != 0 {
		t.Errorf("unexpected stats: %+v", s)
	}
}
