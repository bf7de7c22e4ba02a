package chatops

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	goslack "github.com/slack-go/slack"

	"github.com/wisbric/fleetwatch/pkg/approval"
)

// Handler exposes the Slack and Mattermost interactions webhooks that
// dispatch Approve/Reject button clicks into an approval.Workflow.
type Handler struct {
	workflow                *approval.Workflow
	logger                  *slog.Logger
	slackSigningSecret      string
	mattermostWebhookSecret string
}

// NewHandler creates a chatops Handler.
func NewHandler(workflow *approval.Workflow, logger *slog.Logger, slackSigningSecret, mattermostWebhookSecret string) *Handler {
	return &Handler{
		workflow:                workflow,
		logger:                  logger,
		slackSigningSecret:      slackSigningSecret,
		mattermostWebhookSecret: mattermostWebhookSecret,
	}
}

// Routes returns the chi.Router serving both providers' interaction endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(VerifyMiddleware(h.slackSigningSecret)).Post("/interactions", h.handleSlackInteractions)
	r.With(MattermostVerifyMiddleware(h.mattermostWebhookSecret)).Post("/mattermost/interactions", h.handleMattermostInteractions)
	return r
}

func (h *Handler) handleSlackInteractions(w http.ResponseWriter, r *http.Request) {
	payload := r.FormValue("payload")
	if payload == "" {
		http.Error(w, "missing payload", http.StatusBadRequest)
		return
	}

	var ic goslack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &ic); err != nil {
		h.logger.Error("parsing slack interaction callback", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if ic.Type != goslack.InteractionTypeBlockActions {
		w.WriteHeader(http.StatusOK)
		return
	}

	for _, action := range ic.ActionCallback.BlockActions {
		switch action.ActionID {
		case "approve_ticket":
			h.decide(r, action.Value, true, ic.User.Name)
		case "reject_ticket":
			h.decide(r, action.Value, false, ic.User.Name)
		}
	}

	w.WriteHeader(http.StatusOK)
}

// mattermostInteractionPayload is the subset of a Mattermost interactive
// message's callback body the approve/reject dispatch needs.
type mattermostInteractionPayload struct {
	UserName string `json:"user_name"`
	Context  struct {
		RequestID string `json:"request_id"`
		Decision  string `json:"decision"`
	} `json:"context"`
}

func (h *Handler) handleMattermostInteractions(w http.ResponseWriter, r *http.Request) {
	var payload mattermostInteractionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Error("parsing mattermost interaction payload", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	switch payload.Context.Decision {
	case "approve":
		h.decide(r, payload.Context.RequestID, true, payload.UserName)
	case "reject":
		h.decide(r, payload.Context.RequestID, false, payload.UserName)
	}

	w.WriteHeader(http.StatusOK)
}

// decide maps a button click to the (idempotent) approval.Workflow
// decision. A double click on an already-decided request is logged, not
// surfaced as an HTTP error, since neither provider waits on the response
// body for correctness.
func (h *Handler) decide(r *http.Request, requestIDStr string, approved bool, approver string) {
	id, err := uuid.Parse(requestIDStr)
	if err != nil {
		h.logger.Error("invalid approval request id in chat action", "value", requestIDStr)
		return
	}

	if _, err := h.workflow.Decide(r.Context(), id, approved, approver, ""); err != nil {
		h.logger.Warn("approval decision from chat failed", "request_id", id, "error", err)
	}
}
