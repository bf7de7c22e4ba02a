package approval

import (
	"context"
	"fmt"

	"github.com/wisbric/fleetwatch/internal/db"
)

// PGStore is a Store backed by the Durable Store.
type PGStore struct {
	q *db.Queries
}

// NewPGStore creates a PGStore bound to the given connection or transaction.
func NewPGStore(dbtx db.DBTX) *PGStore {
	return &PGStore{q: db.New(dbtx)}
}

// SaveRequest persists a newly submitted PENDING request.
func (s *PGStore) SaveRequest(ctx context.Context, req Request) error {
	err := s.q.SaveApprovalRequest(ctx, db.SaveApprovalRequestParams{
		ID:          req.ID,
		Summary:     req.Summary,
		VesselID:    req.VesselID,
		Status:      string(req.Status),
		RequestedAt: req.RequestedAt,
	})
	if err != nil {
		return fmt.Errorf("saving approval request %s: %w", req.ID, err)
	}
	return nil
}

// UpdateStatus records a request's terminal transition.
func (s *PGStore) UpdateStatus(ctx context.Context, req Request) error {
	p := db.UpdateApprovalStatusParams{
		ID:       req.ID,
		Status:   string(req.Status),
		Approver: req.Approver,
		Comments: req.Comments,
	}
	if req.RespondedAt != nil {
		p.RespondedAt = *req.RespondedAt
	}
	if err := s.q.UpdateApprovalStatus(ctx, p); err != nil {
		return fmt.Errorf("updating approval request %s: %w", req.ID, err)
	}
	return nil
}

// PendingRequests returns every request still in PENDING.
func (s *PGStore) PendingRequests(ctx context.Context) ([]Request, error) {
	rows, err := s.q.PendingApprovalRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading pending approval requests: %w", err)
	}
	out := make([]Request, 0, len(rows))
	for _, r := range rows {
		req := Request{
			ID:          r.ID,
			Summary:     r.Summary,
			VesselID:    r.VesselID,
			Status:      Status(r.Status),
			RequestedAt: r.RequestedAt,
			Approver:    r.Approver,
			Comments:    r.Comments,
		}
		if r.RespondedAt.Valid {
			t := r.RespondedAt.Time
			req.RespondedAt = &t
		}
		out = append(out, req)
	}
	return out, nil
}
