package ticket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestJiraTracker_CreateTicket(t *testing.T) {
	var gotBody jiraCreateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "bot" || pass != "token" {
			t.Fatalf("missing or wrong basic auth: %s %s %v", user, pass, ok)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(jiraCreateResponse{Key: "FLEET-42", ID: "10042"})
	}))
	defer srv.Close()

	tracker := NewJiraTracker(JiraConfig{
		URL: srv.URL, Username: "bot", APIToken: "token",
		ProjectKey: "FLEET", IssueType: "Incident",
	})

	summary := IssueSummary{
		VesselID: "vessel-1", Role: "access_point",
		DowntimeDuration: 8 * 24 * time.Hour, Severity: SeverityCritical,
	}

	key, id, err := tracker.CreateTicket(context.Background(), summary)
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if key != "FLEET-42" || id != "10042" {
		t.Fatalf("got key=%s id=%s", key, id)
	}
	if gotBody.Fields.Project.Key != "FLEET" {
		t.Fatalf("project key not sent: %+v", gotBody)
	}
	if gotBody.Fields.Priority.Name != "Highest" {
		t.Fatalf("expected Highest priority for critical severity, got %s", gotBody.Fields.Priority.Name)
	}
}

func TestJiraTracker_CreateTicket_NonCreatedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	tracker := NewJiraTracker(JiraConfig{URL: srv.URL, ProjectKey: "FLEET", IssueType: "Incident"})
	_, _, err := tracker.CreateTicket(context.Background(), IssueSummary{VesselID: "v1", Role: "dashboard"})
	if err == nil {
		t.Fatal("expected error on non-201 response")
	}
}

func TestJiraTracker_GetTicket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue/FLEET-1" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"fields": map[string]any{"status": map[string]any{"name": "In Progress"}},
		})
	}))
	defer srv.Close()

	tracker := NewJiraTracker(JiraConfig{URL: srv.URL})
	status, err := tracker.GetTicket(context.Background(), "FLEET-1")
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if status != "In Progress" {
		t.Fatalf("got status %q", status)
	}
}

func TestJiraTracker_GetTicket_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tracker := NewJiraTracker(JiraConfig{URL: srv.URL})
	if _, err := tracker.GetTicket(context.Background(), "FLEET-404"); err == nil {
		t.Fatal("expected error for missing ticket")
	}
}

func TestJiraTracker_UpdateStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue/FLEET-1/transitions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tracker := NewJiraTracker(JiraConfig{URL: srv.URL})
	if err := tracker.UpdateStatus(context.Background(), "FLEET-1", "31"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
}

func TestJiraTracker_TestConnection_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tracker := NewJiraTracker(JiraConfig{URL: srv.URL})
	if err := tracker.TestConnection(context.Background()); err == nil {
		t.Fatal("expected error for unauthorized connection test")
	}
}

func TestJiraTracker_TestConnection_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tracker := NewJiraTracker(JiraConfig{URL: srv.URL})
	if err := tracker.TestConnection(context.Background()); err != nil {
		t.Fatalf("TestConnection: %v", err)
	}
}
