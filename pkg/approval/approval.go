// Package approval implements the human approval protocol for ticket
// creation: a pending-request state machine, timeout, and idempotent
// terminal transitions (spec.md §4.6). Await is event-driven, woken by a
// Redis pub/sub message Decide publishes, with polling as a fallback for
// the case a publish is missed — the same pub/sub-primary,
// poll-as-fallback shape as the teacher's pkg/escalation.Engine.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// decisionChannel is the Redis pub/sub channel Decide publishes a decided
// request's ID to, waking any Await call blocked on it.
const decisionChannel = "fleetwatch:approval:decided"

// Status is the lifecycle state of an ApprovalRequest (spec.md §3).
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusTimeout  Status = "timeout"
)

func (s Status) terminal() bool { return s != StatusPending }

// Request mirrors the ApprovalRequest entity.
type Request struct {
	ID          uuid.UUID
	Summary     string
	VesselID    string
	Status      Status
	RequestedAt time.Time
	RespondedAt *time.Time
	Approver    string
	Comments    string
}

// ErrNotFound is returned when a request ID has no pending or completed record.
var ErrNotFound = fmt.Errorf("approval request not found")

// ErrAlreadyDecided is returned when a decision is submitted against a
// request that has already left PENDING (spec.md §4.6's idempotence rule:
// "double responses fail").
var ErrAlreadyDecided = fmt.Errorf("approval request already decided")

// ErrTooManyPending is returned when Submit would exceed MaxPending.
var ErrTooManyPending = fmt.Errorf("too many pending approval requests")

// Store is the persistence boundary for approval requests (spec.md §3:
// "The Durable Store owns all persistent entities", including
// ApprovalRequest). The in-memory pending/completed maps remain the fast
// path for Decide/Await; Store makes that state survive a restart.
type Store interface {
	SaveRequest(ctx context.Context, req Request) error
	UpdateStatus(ctx context.Context, req Request) error
	PendingRequests(ctx context.Context) ([]Request, error)
}

// Notifier pushes a newly submitted request to the configured channels
// (spec.md §4.6 step 1: "notify the configured channels"). Implementations
// (pkg/chatops) must not block the workflow on notification failure.
type Notifier interface {
	Notify(ctx context.Context, req Request) error
}

// Config bounds the approval workflow, mirroring
// original_source's ApprovalWorkflowConfig.
type Config struct {
	DefaultTimeout time.Duration
	MaxPending     int
}

// DefaultConfig matches spec.md's defaults.
var DefaultConfig = Config{DefaultTimeout: 60 * time.Minute, MaxPending: 100}

// Stats mirrors original_source's get_approval_statistics.
type Stats struct {
	TotalRequests            int
	Approved                 int
	Rejected                 int
	TimedOut                 int
	Pending                  int
	AverageResponseTime      time.Duration
	OldestPendingRequestAge  time.Duration
}

// Workflow owns the pending-request map (spec.md §3: "the Ticket Workflow
// exclusively owns pending ApprovalRequest state until it transitions to
// terminal"). All mutation goes through the mutex so chat webhook callbacks
// serialize per request id (spec.md §5).
type Workflow struct {
	cfg      Config
	store    Store
	notifier Notifier
	rdb      *redis.Client
	logger   *slog.Logger

	mu        sync.Mutex
	pending   map[uuid.UUID]*Request
	completed map[uuid.UUID]*Request
}

// New creates a Workflow. store may be nil in tests that don't exercise
// durability. rdb may be nil, in which case Await falls back to pure
// polling.
func New(cfg Config, store Store, notifier Notifier, rdb *redis.Client, logger *slog.Logger) *Workflow {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultConfig.DefaultTimeout
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultConfig.MaxPending
	}
	return &Workflow{
		cfg:       cfg,
		store:     store,
		notifier:  notifier,
		rdb:       rdb,
		logger:    logger,
		pending:   make(map[uuid.UUID]*Request),
		completed: make(map[uuid.UUID]*Request),
	}
}

// LoadPending reconstructs the in-memory pending set from the store at
// startup, matching the reconstruction pattern used by sla.Analyzer and
// alertmgr.Manager (spec.md §7: in-memory caches are rebuilt from durable
// records, never the source of truth themselves).
func (w *Workflow) LoadPending(ctx context.Context) error {
	reqs, err := w.store.PendingRequests(ctx)
	if err != nil {
		return fmt.Errorf("loading pending approval requests: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range reqs {
		r := reqs[i]
		w.pending[r.ID] = &r
	}
	return nil
}

// Submit opens a new PENDING request and notifies configured channels.
func (w *Workflow) Submit(ctx context.Context, summary, vesselID string) (Request, error) {
	w.mu.Lock()
	if len(w.pending) >= w.cfg.MaxPending {
		w.mu.Unlock()
		return Request{}, ErrTooManyPending
	}
	req := &Request{
		ID:          uuid.New(),
		Summary:     summary,
		VesselID:    vesselID,
		Status:      StatusPending,
		RequestedAt: time.Now().UTC(),
	}
	w.pending[req.ID] = req
	w.mu.Unlock()

	if w.store != nil {
		if err := w.store.SaveRequest(ctx, *req); err != nil && w.logger != nil {
			w.logger.Error("persisting approval request", "request_id", req.ID, "error", err)
		}
	}

	if w.notifier != nil {
		if err := w.notifier.Notify(ctx, *req); err != nil && w.logger != nil {
			w.logger.Error("approval notification failed", "request_id", req.ID, "error", err)
		}
	}

	return *req, nil
}

// Decide submits a human decision for a pending request. Returns
// ErrAlreadyDecided if the request has already left PENDING, satisfying the
// "accepted only in PENDING" idempotence rule.
func (w *Workflow) Decide(ctx context.Context, id uuid.UUID, approved bool, approver, comments string) (Request, error) {
	w.mu.Lock()

	req, ok := w.pending[id]
	if !ok {
		_, done := w.completed[id]
		w.mu.Unlock()
		if done {
			return Request{}, ErrAlreadyDecided
		}
		return Request{}, ErrNotFound
	}

	now := time.Now().UTC()
	if approved {
		req.Status = StatusApproved
	} else {
		req.Status = StatusRejected
	}
	req.RespondedAt = &now
	req.Approver = approver
	req.Comments = comments

	delete(w.pending, id)
	w.completed[id] = req
	result := *req
	w.mu.Unlock()

	w.persistStatus(ctx, result)
	w.publishDecision(ctx, id)

	return result, nil
}

// persistStatus writes a terminal status transition to the store, logging
// rather than failing the caller on error — the in-memory state is already
// authoritative for the running process (spec.md §7).
func (w *Workflow) persistStatus(ctx context.Context, req Request) {
	if w.store == nil {
		return
	}
	if err := w.store.UpdateStatus(ctx, req); err != nil && w.logger != nil {
		w.logger.Error("persisting approval status", "request_id", req.ID, "error", err)
	}
}

// publishDecision wakes any Await call blocked on id by publishing its
// terminal transition over Redis pub/sub. Polling remains Await's fallback,
// so a missed or failed publish only costs the caller a poll interval, not
// correctness.
func (w *Workflow) publishDecision(ctx context.Context, id uuid.UUID) {
	if w.rdb == nil {
		return
	}
	if err := w.rdb.Publish(ctx, decisionChannel, id.String()).Err(); err != nil && w.logger != nil {
		w.logger.Warn("publishing approval decision", "request_id", id, "error", err)
	}
}

// CheckTimeouts scans pending requests and marks any whose deadline has
// passed as TIMEOUT, returning the ones it transitioned.
func (w *Workflow) CheckTimeouts(ctx context.Context) []Request {
	w.mu.Lock()
	now := time.Now().UTC()
	var timedOut []Request
	for id, req := range w.pending {
		if now.Sub(req.RequestedAt) < w.cfg.DefaultTimeout {
			continue
		}
		req.Status = StatusTimeout
		req.RespondedAt = &now
		delete(w.pending, id)
		w.completed[id] = req
		timedOut = append(timedOut, *req)
	}
	w.mu.Unlock()

	for _, req := range timedOut {
		w.persistStatus(ctx, req)
		w.publishDecision(ctx, req.ID)
	}
	return timedOut
}

// Get returns a request by ID from either the pending or completed set.
func (w *Workflow) Get(_ context.Context, id uuid.UUID) (Request, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if req, ok := w.pending[id]; ok {
		return *req, nil
	}
	if req, ok := w.completed[id]; ok {
		return *req, nil
	}
	return Request{}, ErrNotFound
}

// Await waits for the request to reach a terminal state, the context to be
// cancelled, or the workflow's timeout to elapse, whichever comes first
// (spec.md §4.6 step 2). The Redis pub/sub message Decide/CheckTimeouts
// publish wakes it immediately; pollInterval only bounds how long it can
// take to notice a decision if that publish is missed, and how often it
// re-checks for its own timeout (spec.md §9's event-driven-with-polling-
// fallback design note). With no Redis client configured, it falls back to
// pure polling.
func (w *Workflow) Await(ctx context.Context, id uuid.UUID, pollInterval time.Duration) (Request, error) {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	req, err := w.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.Status.terminal() {
		return req, nil
	}

	var decided <-chan *redis.Message
	if w.rdb != nil {
		sub := w.rdb.Subscribe(ctx, decisionChannel)
		defer sub.Close()
		decided = sub.Channel()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Request{}, ctx.Err()
		case msg := <-decided:
			if msg.Payload != id.String() {
				continue
			}
		case <-ticker.C:
			w.CheckTimeouts(ctx)
		}

		req, err := w.Get(ctx, id)
		if err != nil {
			return Request{}, err
		}
		if req.Status.terminal() {
			return req, nil
		}
	}
}

// Stats computes workflow statistics, grounded on original_source's
// get_approval_statistics.
func (w *Workflow) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Stats{Pending: len(w.pending), TotalRequests: len(w.pending) + len(w.completed)}
	var totalResponse time.Duration
	var responded int
	now := time.Now().UTC()

	for _, req := range w.pending {
		age := now.Sub(req.RequestedAt)
		if age > s.OldestPendingRequestAge {
			s.OldestPendingRequestAge = age
		}
	}

	for _, req := range w.completed {
		switch req.Status {
		case StatusApproved:
			s.Approved++
		case StatusRejected:
			s.Rejected++
		case StatusTimeout:
			s.TimedOut++
		}
		if req.Status != StatusTimeout && req.RespondedAt != nil {
			totalResponse += req.RespondedAt.Sub(req.RequestedAt)
			responded++
		}
	}
	if responded > 0 {
		s.AverageResponseTime = totalResponse / time.Duration(responded)
	}
	return s
}
