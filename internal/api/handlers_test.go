package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"example.com/reporting/internal/auth"
	"example.com/reporting/internal/domain"
	"example.com/reporting/internal/queue"
	"example.com/reporting/internal/report"
)

type mockRepo struct {
	project  *domain.Project
	reports  []domain.WeeklyReport
	checkErr error

	lastCheckIn  *domain.CheckIn
	lastActivity *domain.ActivityRecord
}

func (m *mockRepo) Resolve(_ context.Context, _, ref string) (*domain.Project, error) {
	if m.project != nil && (ref == m.project.ID || ref == m.project.PublicID) {
		return m.project, nil
	}
	return nil, nil
}

func (m *mockRepo) Create(_ context.Context, record domain.ActivityRecord) error {
	m.lastActivity = &record
	return nil
}

func (m *mockRepo) FindByCommitHash(context.Context, string, string, string) (*domain.ActivityRecord, error) {
	return nil, nil
}

func (m *mockRepo) ListByProjectWindow(context.Context, string, string, time.Time, time.Time) ([]domain.ActivityRecord, error) {
	return nil, nil
}

func (m *mockRepo) CreateWithActivity(_ context.Context, checkIn domain.CheckIn, activity domain.ActivityRecord) error {
	if m.checkErr != nil {
		return m.checkErr
	}
	m.lastCheckIn = &checkIn
	m.lastActivity = &activity
	return nil
}

func (m *mockRepo) CreateReport(context.Context, domain.WeeklyReport) error { return nil }

func (m *mockRepo) ListRecent(_ context.Context, _, projectID string, _ int) ([]domain.WeeklyReport, error) {
	if projectID == "" {
		return m.reports, nil
	}
	out := make([]domain.WeeklyReport, 0)
	for _, rep := range m.reports {
		if rep.ProjectID == projectID {
			out = append(out, rep)
		}
	}
	return out, nil
}

type mockEnqueuer struct {
	lastQueue   string
	lastName    string
	lastPayload []byte
	calls       int
}

func (m *mockEnqueuer) Enqueue(_ context.Context, queueName, jobName string, payload any) (*queue.Job, error) {
	m.calls++
	m.lastQueue = queueName
	m.lastName = jobName
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	m.lastPayload = body
	return &queue.Job{ID: "queued-1", Name: jobName, Payload: body}, nil
}

func testProject() *domain.Project {
	return &domain.Project{
		ID:          "f3b9a2de-6f41-4b38-9f6e-111111111111",
		TenantID:    "tenant-1",
		PublicID:    "f3b9a2de-6f41-4b38-9f6e-222222222222",
		Name:        "Acme Website",
		ClientName:  "Acme Corp",
		ClientEmail: "client@acme.test",
		Slug:        "acme-website",
	}
}

func authedRequest(method, target, body string, scopes ...string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	scopeSet := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		scopeSet[s] = struct{}{}
	}
	claims := &auth.Claims{
		Subject:   "user-1",
		TenantID:  "tenant-1",
		Scopes:    scopeSet,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func newTestHandler(repo *mockRepo, enq *mockEnqueuer) *Handler {
	service := domain.NewService(repo, repo, repo)
	return NewHandler(service, repo, repo, enq, nil)
}

func TestGenerateReportAccepted(t *testing.T) {
	repo := &mockRepo{project: testProject()}
	enq := &mockEnqueuer{}
	handler := newTestHandler(repo, enq)

	body := `{"project_id":"f3b9a2de-6f41-4b38-9f6e-222222222222","email":"boss@acme.test"}`
	req := authedRequest(http.MethodPost, "/v1/reports/generate", body, auth.ScopeReportsWrite)

	rr := httptest.NewRecorder()
	handler.generateReport(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp GenerateReportResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.JobID != "queued-1" {
		t.Fatalf("expected job id queued-1 got %q", resp.JobID)
	}

	if enq.lastQueue != report.QueueName || enq.lastName != report.JobGenerateWeekly {
		t.Fatalf("unexpected enqueue target: %s/%s", enq.lastQueue, enq.lastName)
	}

	var payload report.Payload
	if err := json.Unmarshal(enq.lastPayload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.ProjectID != repo.project.ID {
		t.Fatalf("payload must carry the internal project id, got %q", payload.ProjectID)
	}
	if payload.TenantID != "tenant-1" || payload.Email != "boss@acme.test" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestGenerateReportUnknownProject(t *testing.T) {
	handler := newTestHandler(&mockRepo{}, &mockEnqueuer{})

	body := `{"project_id":"f3b9a2de-6f41-4b38-9f6e-333333333333"}`
	req := authedRequest(http.MethodPost, "/v1/reports/generate", body, auth.ScopeReportsWrite)

	rr := httptest.NewRecorder()
	handler.generateReport(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestGenerateReportMissingScope(t *testing.T) {
	enq := &mockEnqueuer{}
	handler := newTestHandler(&mockRepo{project: testProject()}, enq)

	body := `{"project_id":"f3b9a2de-6f41-4b38-9f6e-111111111111"}`
	req := authedRequest(http.MethodPost, "/v1/reports/generate", body, auth.ScopeReportsRead)

	rr := httptest.NewRecorder()
	handler.generateReport(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
	if enq.calls != 0 {
		t.Fatalf("forbidden request must not enqueue")
	}
}

func TestGenerateReportMissingProjectID(t *testing.T) {
	handler := newTestHandler(&mockRepo{project: testProject()}, &mockEnqueuer{})

	req := authedRequest(http.MethodPost, "/v1/reports/generate", `{}`, auth.ScopeReportsWrite)

	rr := httptest.NewRecorder()
	handler.generateReport(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestListReportsFiltersByProject(t *testing.T) {
	project := testProject()
	now := time.Now().UTC()
	repo := &mockRepo{
		project: project,
		reports: []domain.WeeklyReport{
			{ID: "rep-1", ProjectID: project.ID, WeekStartDate: now.Add(-7 * 24 * time.Hour), WeekEndDate: now, GeneratedAt: now},
			{ID: "rep-2", ProjectID: "other", WeekStartDate: now.Add(-14 * 24 * time.Hour), WeekEndDate: now.Add(-7 * 24 * time.Hour), GeneratedAt: now},
		},
	}
	handler := newTestHandler(repo, &mockEnqueuer{})

	req := authedRequest(http.MethodGet, "/v1/reports?project_id="+project.PublicID, "", auth.ScopeReportsRead)

	rr := httptest.NewRecorder()
	handler.listReports(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ListReportsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ReportID != "rep-1" {
		t.Fatalf("expected only rep-1, got %+v", resp.Items)
	}
}

func TestSubmitCheckInCreatesActivity(t *testing.T) {
	repo := &mockRepo{project: testProject()}
	handler := newTestHandler(repo, &mockEnqueuer{})

	body := `{"project_id":"f3b9a2de-6f41-4b38-9f6e-111111111111","user_name":"Dana","worked_on":"Shipped OAuth","planning_to_do":"Write docs","hours_worked":4}`
	req := authedRequest(http.MethodPost, "/v1/checkins", body, auth.ScopeCheckInsWrite)

	rr := httptest.NewRecorder()
	handler.submitCheckIn(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	if repo.lastCheckIn == nil || repo.lastActivity == nil {
		t.Fatal("expected both check-in and fan-out activity to be stored")
	}
	if repo.lastActivity.Type != domain.ActivityTypeCheckIn {
		t.Fatalf("expected check_in activity, got %q", repo.lastActivity.Type)
	}
	if hours := repo.lastActivity.Hours(); hours != 4 {
		t.Fatalf("expected 4 hours in activity metadata, got %v", hours)
	}
}

func TestSubmitCheckInConflict(t *testing.T) {
	repo := &mockRepo{project: testProject(), checkErr: domain.ErrDuplicateCheckIn}
	handler := newTestHandler(repo, &mockEnqueuer{})

	body := `{"project_id":"f3b9a2de-6f41-4b38-9f6e-111111111111","user_name":"Dana","worked_on":"Same as before","planning_to_do":"More of it"}`
	req := authedRequest(http.MethodPost, "/v1/checkins", body, auth.ScopeCheckInsWrite)

	rr := httptest.NewRecorder()
	handler.submitCheckIn(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rr.Code)
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	handler := newTestHandler(&mockRepo{project: testProject()}, &mockEnqueuer{})

	req := httptest.NewRequest(http.MethodGet, "/v1/reports", nil)
	rr := httptest.NewRecorder()
	handler.listReports(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}
