package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// ApprovalRequest mirrors a row of the approval_requests table.
type ApprovalRequest struct {
	ID          uuid.UUID
	Summary     string
	VesselID    string
	Status      string
	RequestedAt time.Time
	RespondedAt pgtype.Timestamptz
	Approver    string
	Comments    string
}

// SaveApprovalRequestParams binds SaveApprovalRequest's insert.
type SaveApprovalRequestParams struct {
	ID          uuid.UUID
	Summary     string
	VesselID    string
	Status      string
	RequestedAt time.Time
}

// SaveApprovalRequest persists a newly submitted PENDING request.
func (q *Queries) SaveApprovalRequest(ctx context.Context, p SaveApprovalRequestParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO approval_requests (id, summary, vessel_id, status, requested_at)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.Summary, p.VesselID, p.Status, p.RequestedAt)
	return err
}

// UpdateApprovalStatusParams binds UpdateApprovalStatus's update.
type UpdateApprovalStatusParams struct {
	ID          uuid.UUID
	Status      string
	RespondedAt time.Time
	Approver    string
	Comments    string
}

// UpdateApprovalStatus records a request's terminal transition.
func (q *Queries) UpdateApprovalStatus(ctx context.Context, p UpdateApprovalStatusParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE approval_requests SET status = $2, responded_at = $3, approver = $4, comments = $5
		WHERE id = $1
	`, p.ID, p.Status, p.RespondedAt, p.Approver, p.Comments)
	return err
}

// PendingApprovalRequests returns every request still in PENDING, used to
// reconstruct approval.Workflow's in-memory set at startup.
func (q *Queries) PendingApprovalRequests(ctx context.Context) ([]ApprovalRequest, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, summary, vessel_id, status, requested_at, responded_at, approver, comments
		FROM approval_requests WHERE status = 'pending'
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ApprovalRequest
	for rows.Next() {
		var r ApprovalRequest
		if err := scanApprovalRow(rows, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanApprovalRow(rows pgx.Rows, r *ApprovalRequest) error {
	return rows.Scan(&r.ID, &r.Summary, &r.VesselID, &r.Status, &r.RequestedAt, &r.RespondedAt, &r.Approver, &r.Comments)
}
