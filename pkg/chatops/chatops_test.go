package chatops

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/wisbric/fleetwatch/pkg/approval"
)

func TestSlackNotifier_NoopWithoutToken(t *testing.T) {
	n := NewSlackNotifier("", "#alerts", nil)
	if n.enabled() {
		t.Error("expected notifier to be disabled without a bot token")
	}
	req := approval.Request{ID: uuid.New(), Summary: "vessel V1 server down 3d", VesselID: "V1"}
	if err := n.Notify(context.Background(), req); err != nil {
		t.Errorf("Notify on a disabled notifier should not error, got %v", err)
	}
}

func TestApprovalRequestBlocks(t *testing.T) {
	blocks := approvalRequestBlocks(Request{ID: "abc-123", Summary: "down 3d", VesselID: "V1"})
	if len(blocks) != 3 {
		t.Fatalf("expected header+summary+actions blocks, got %d", len(blocks))
	}
}

func TestMattermostNotifier_NoopWithoutConfig(t *testing.T) {
	n := NewMattermostNotifier("", "", "town-square", "https://example.com/interactions", nil)
	if n.enabled() {
		t.Error("expected notifier to be disabled without a base URL and bot token")
	}
	req := approval.Request{ID: uuid.New(), Summary: "vessel V1 server down 3d", VesselID: "V1"}
	if err := n.Notify(context.Background(), req); err != nil {
		t.Errorf("Notify on a disabled notifier should not error, got %v", err)
	}
}

func TestMultiNotifier_FansOutToAllChannels(t *testing.T) {
	slack := NewSlackNotifier("", "#alerts", nil)
	mattermost := NewMattermostNotifier("", "", "town-square", "", nil)
	multi := NewMultiNotifier(slack, mattermost, nil)

	req := approval.Request{ID: uuid.New(), Summary: "vessel V1 server down 3d", VesselID: "V1"}
	if err := multi.Notify(context.Background(), req); err != nil {
		t.Errorf("Notify across disabled channels should not error, got %v", err)
	}
}
