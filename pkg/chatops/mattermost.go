package chatops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wisbric/fleetwatch/pkg/approval"
)

// MattermostVerifyMiddleware verifies the Mattermost webhook token on
// incoming interaction requests, adapted from the teacher's
// pkg/mattermost/verify.go. If webhookSecret is empty, verification is
// skipped (dev mode). Interactive-message callbacks carry the token as a
// JSON field rather than a form value, so only the JSON field is checked.
func MattermostVerifyMiddleware(webhookSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if webhookSecret == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "failed to read body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var tokenPayload struct {
				Token string `json:"token"`
			}
			if err := json.Unmarshal(body, &tokenPayload); err != nil || tokenPayload.Token != webhookSecret {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// mattermostClient wraps the subset of the Mattermost REST API v4 the
// approval notifier needs, adapted from the teacher's pkg/mattermost/client.go.
type mattermostClient struct {
	baseURL    string
	botToken   string
	httpClient *http.Client
}

func newMattermostClient(baseURL, botToken string) *mattermostClient {
	return &mattermostClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		botToken:   botToken,
		httpClient: &http.Client{},
	}
}

type mattermostPost struct {
	ChannelID string         `json:"channel_id"`
	Message   string         `json:"message"`
	Props     map[string]any `json:"props,omitempty"`
}

func (c *mattermostClient) createPost(ctx context.Context, post mattermostPost) error {
	body, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("marshalling post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v4/posts", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.botToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting to mattermost: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mattermost API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// MattermostNotifier posts approval requests to a Mattermost channel using
// message attachments with Approve/Reject actions, mirroring
// pkg/mattermost's interactive-post pattern for the ticket-approval domain.
type MattermostNotifier struct {
	client    *mattermostClient
	channelID string
	actionURL string
	logger    *slog.Logger
}

// NewMattermostNotifier creates a MattermostNotifier. If baseURL or
// botToken is empty the notifier is a no-op (log only). actionURL is the
// fully qualified URL Mattermost should POST interactive actions back to
// (chatops.Handler's /mattermost/interactions route).
func NewMattermostNotifier(baseURL, botToken, channelID, actionURL string, logger *slog.Logger) *MattermostNotifier {
	var client *mattermostClient
	if baseURL != "" && botToken != "" {
		client = newMattermostClient(baseURL, botToken)
	}
	return &MattermostNotifier{client: client, channelID: channelID, actionURL: actionURL, logger: logger}
}

func (n *MattermostNotifier) enabled() bool { return n.client != nil && n.channelID != "" }

// Notify implements approval.Notifier.
func (n *MattermostNotifier) Notify(ctx context.Context, req approval.Request) error {
	if !n.enabled() {
		if n.logger != nil {
			n.logger.Info("approval requested (mattermost disabled)",
				"request_id", req.ID, "vessel_id", req.VesselID, "summary", req.Summary)
		}
		return nil
	}

	id := req.ID.String()
	post := mattermostPost{
		ChannelID: n.channelID,
		Message:   fmt.Sprintf("**Ticket Approval Requested**\nVessel: %s\n%s", req.VesselID, req.Summary),
		Props: map[string]any{
			"attachments": []map[string]any{{
				"actions": []map[string]any{
					{
						"id":   "approve_ticket",
						"name": "Approve",
						"integration": map[string]any{
							"url":     n.actionURL,
							"context": map[string]any{"request_id": id, "decision": "approve"},
						},
					},
					{
						"id":   "reject_ticket",
						"name": "Reject",
						"integration": map[string]any{
							"url":     n.actionURL,
							"context": map[string]any{"request_id": id, "decision": "reject"},
						},
					},
				},
			}},
		},
	}

	if err := n.client.createPost(ctx, post); err != nil {
		return fmt.Errorf("posting approval request to mattermost: %w", err)
	}
	return nil
}
