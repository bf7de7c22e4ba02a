package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// JiraConfig holds connection parameters for the JIRA tracker, mirroring
// original_source's JIRAConnection.
type JiraConfig struct {
	URL        string
	Username   string
	APIToken   string
	ProjectKey string
	IssueType  string
}

// JiraTracker implements Tracker against a real JIRA REST API v2 instance,
// grounded on original_source/src/services/jira_service.py's JIRAService
// and the teacher's pkg/bookowl.Client REST-client idiom (basic auth
// instead of an API key header, JSON in/out, status-code-to-error
// mapping).
type JiraTracker struct {
	cfg        JiraConfig
	httpClient *http.Client
}

// NewJiraTracker creates a JiraTracker with a 10-second timeout, matching
// the teacher's outbound HTTP client convention.
func NewJiraTracker(cfg JiraConfig) *JiraTracker {
	return &JiraTracker{cfg: cfg, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

type jiraCreateRequest struct {
	Fields jiraFields `json:"fields"`
}

type jiraFields struct {
	Project   jiraRef  `json:"project"`
	Summary   string   `json:"summary"`
	Description string `json:"description"`
	IssueType jiraRef  `json:"issuetype"`
	Priority  jiraRef  `json:"priority"`
	Labels    []string `json:"labels"`
}

type jiraRef struct {
	Key  string `json:"key,omitempty"`
	Name string `json:"name,omitempty"`
}

type jiraCreateResponse struct {
	Key string `json:"key"`
	ID  string `json:"id"`
}

// jiraPriority maps ticket.Severity to a JIRA priority name, mirroring
// original_source's _get_jira_priority.
func jiraPriority(s Severity) string {
	switch s {
	case SeverityCritical:
		return "Highest"
	case SeverityHigh:
		return "High"
	default:
		return "Medium"
	}
}

// CreateTicket submits a new JIRA issue for the approved summary.
func (t *JiraTracker) CreateTicket(ctx context.Context, summary IssueSummary) (key, id string, err error) {
	body := jiraCreateRequest{Fields: jiraFields{
		Project:     jiraRef{Key: t.cfg.ProjectKey},
		Summary:     summary.Title(),
		Description: summary.Description(),
		IssueType:   jiraRef{Name: t.cfg.IssueType},
		Priority:    jiraRef{Name: jiraPriority(summary.Severity)},
		Labels: []string{
			fmt.Sprintf("vessel-%s", summary.VesselID),
			fmt.Sprintf("component-%s", summary.Role),
			"infrastructure-monitoring",
			"automated",
		},
	}}

	raw, err := json.Marshal(body)
	if err != nil {
		return "", "", fmt.Errorf("marshaling JIRA create request: %w", err)
	}

	req, err := t.newRequest(ctx, http.MethodPost, "/rest/api/2/issue", bytes.NewReader(raw))
	if err != nil {
		return "", "", err
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("calling JIRA: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("JIRA create ticket returned HTTP %d", resp.StatusCode)
	}

	var created jiraCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", "", fmt.Errorf("decoding JIRA create response: %w", err)
	}
	return created.Key, created.ID, nil
}

// UpdateStatus transitions a JIRA issue's status via the transitions API.
func (t *JiraTracker) UpdateStatus(ctx context.Context, key, status string) error {
	payload, err := json.Marshal(map[string]any{"transition": map[string]string{"id": status}})
	if err != nil {
		return fmt.Errorf("marshaling JIRA transition request: %w", err)
	}

	req, err := t.newRequest(ctx, http.MethodPost, fmt.Sprintf("/rest/api/2/issue/%s/transitions", key), bytes.NewReader(payload))
	if err != nil {
		return err
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling JIRA: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("JIRA transition returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// GetTicket fetches an issue's current status field.
func (t *JiraTracker) GetTicket(ctx context.Context, key string) (string, error) {
	req, err := t.newRequest(ctx, http.MethodGet, fmt.Sprintf("/rest/api/2/issue/%s?fields=status", key), nil)
	if err != nil {
		return "", err
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling JIRA: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("JIRA ticket %s not found", key)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("JIRA get ticket returned HTTP %d", resp.StatusCode)
	}

	var result struct {
		Fields struct {
			Status struct {
				Name string `json:"name"`
			} `json:"status"`
		} `json:"fields"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding JIRA get response: %w", err)
	}
	return result.Fields.Status.Name, nil
}

// TestConnection verifies credentials against /rest/api/2/myself,
// mirroring original_source's test_connection.
func (t *JiraTracker) TestConnection(ctx context.Context) error {
	req, err := t.newRequest(ctx, http.MethodGet, "/rest/api/2/myself", nil)
	if err != nil {
		return err
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling JIRA: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("JIRA authentication failed")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JIRA connection test returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (t *JiraTracker) newRequest(ctx context.Context, method, path string, body *bytes.Reader) (*http.Request, error) {
	var reader *bytes.Reader = body
	if reader == nil {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.cfg.URL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building JIRA request: %w", err)
	}
	req.SetBasicAuth(t.cfg.Username, t.cfg.APIToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
