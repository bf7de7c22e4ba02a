// Package chatops implements the approval-notification channel(s) the
// Ticket Workflow's human approval protocol notifies: Slack block-kit
// messages with Approve/Reject buttons, and the webhook handler that
// dispatches a button click back into the approval.Workflow.
//
// This adapts the teacher's pkg/slack (Notifier/Provider/Handler split,
// signing-secret verification middleware) from its SRE-alert domain to
// ticket-approval notifications.
package chatops

import (
	"context"
	"fmt"
	"log/slog"

	goslack "github.com/slack-go/slack"

	"github.com/wisbric/fleetwatch/pkg/approval"
)

// Request is the subset of approval.Request a chat message needs to render,
// kept separate so this package does not import approval's internal types.
type Request struct {
	ID       string
	Summary  string
	VesselID string
}

// SlackNotifier posts approval requests to a Slack channel with
// Approve/Reject buttons, mirroring pkg/slack.Notifier's
// enabled-if-configured pattern.
type SlackNotifier struct {
	client  *goslack.Client
	channel string
	logger  *slog.Logger
}

// NewSlackNotifier creates a SlackNotifier. If botToken is empty the
// notifier is a no-op (log only), matching the teacher's dev-mode fallback.
func NewSlackNotifier(botToken, channel string, logger *slog.Logger) *SlackNotifier {
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &SlackNotifier{client: client, channel: channel, logger: logger}
}

func (n *SlackNotifier) enabled() bool { return n.client != nil && n.channel != "" }

// Notify implements approval.Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, req approval.Request) error {
	if !n.enabled() {
		if n.logger != nil {
			n.logger.Info("approval requested (chatops disabled)",
				"request_id", req.ID, "vessel_id", req.VesselID, "summary", req.Summary)
		}
		return nil
	}

	blocks := approvalRequestBlocks(Request{ID: req.ID.String(), Summary: req.Summary, VesselID: req.VesselID})
	_, _, err := n.client.PostMessageContext(ctx, n.channel,
		goslack.MsgOptionBlocks(blocks...),
		goslack.MsgOptionText(fmt.Sprintf("Approval requested: %s", req.Summary), false),
	)
	if err != nil {
		return fmt.Errorf("posting approval request to slack: %w", err)
	}
	return nil
}

// approvalRequestBlocks renders a ticket approval request as Slack
// block-kit, mirroring pkg/slack/messages.go's AlertNotificationBlocks
// shape (section + context + actions).
func approvalRequestBlocks(req Request) []goslack.Block {
	header := goslack.NewHeaderBlock(goslack.NewTextBlockObject(goslack.PlainTextType, "Ticket Approval Requested", false, false))

	summary := goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Vessel:* %s\n%s", req.VesselID, req.Summary), false, false),
		nil, nil,
	)

	approve := goslack.NewButtonBlockElement("approve_ticket", req.ID,
		goslack.NewTextBlockObject(goslack.PlainTextType, "Approve", false, false))
	approve.Style = goslack.StylePrimary

	reject := goslack.NewButtonBlockElement("reject_ticket", req.ID,
		goslack.NewTextBlockObject(goslack.PlainTextType, "Reject", false, false))
	reject.Style = goslack.StyleDanger

	actions := goslack.NewActionBlock("approval_actions", approve, reject)

	return []goslack.Block{header, summary, actions}
}
