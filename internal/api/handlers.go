// Package api exposes HTTP handlers for the reporting service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/reporting/internal/auth"
	"example.com/reporting/internal/domain"
	"example.com/reporting/internal/queue"
	"example.com/reporting/internal/report"
)

// Handler coordinates HTTP requests with the domain service and job queue.
type Handler struct {
	service  *domain.Service
	projects domain.ProjectRepository
	reports  domain.ReportRepository
	enqueuer queue.Enqueuer

	// inline is set only in fallback mode; after acknowledging the request
	// the handler fires the job in a background goroutine.
	inline *queue.InlineQueue

	logger *log.Logger
}

// NewHandler builds a Handler. inline may be nil when a durable broker
// executes jobs instead.
func NewHandler(service *domain.Service, projects domain.ProjectRepository, reports domain.ReportRepository, enqueuer queue.Enqueuer, inline *queue.InlineQueue) *Handler {
	return &Handler{
		service:  service,
		projects: projects,
		reports:  reports,
		enqueuer: enqueuer,
		inline:   inline,
		logger:   log.New(log.Writer(), "[api] ", log.LstdFlags),
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/reports/generate", h.generateReport)
	mux.HandleFunc("/v1/reports", h.listReports)
	mux.HandleFunc("/v1/checkins", h.submitCheckIn)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) generateReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeReportsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope reports:write required")
		return
	}

	var req GenerateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	project, err := h.projects.Resolve(r.Context(), claims.TenantID, req.ProjectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "not_found", "project not found")
		return
	}

	payload := report.Payload{
		TenantID:  claims.TenantID,
		ProjectID: project.ID,
		Email:     req.Email,
	}

	job, err := h.enqueuer.Enqueue(r.Context(), report.QueueName, report.JobGenerateWeekly, payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "unable to enqueue report job")
		return
	}

	// Fallback mode has no worker process: kick the job off here and return
	// immediately. ExecuteNow swallows failures, so a crashed job can never
	// take the request path down with it.
	if h.inline != nil {
		go h.inline.ExecuteNow(context.Background(), report.QueueName, payload)
	}

	writeJSON(w, http.StatusAccepted, GenerateReportResponse{
		JobID:   job.ID,
		Message: "Report generation started",
	})
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeReportsRead) && !claims.HasScope(auth.ScopeReportsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope reports:read required")
		return
	}

	projectID := ""
	if ref := r.URL.Query().Get("project_id"); ref != "" {
		project, err := h.projects.Resolve(r.Context(), claims.TenantID, ref)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		if project == nil {
			writeError(w, http.StatusNotFound, "not_found", "project not found")
			return
		}
		projectID = project.ID
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > 100 {
				parsed = 100
			}
			limit = parsed
		}
	}

	reports, err := h.reports.ListRecent(r.Context(), claims.TenantID, projectID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]ReportView, 0, len(reports))
	for _, rep := range reports {
		items = append(items, toReportView(rep))
	}
	writeJSON(w, http.StatusOK, ListReportsResponse{Items: items})
}

func (h *Handler) submitCheckIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeCheckInsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope checkins:write required")
		return
	}

	var req SubmitCheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	checkIn, err := h.service.SubmitCheckIn(r.Context(), domain.SubmitCheckInInput{
		TenantID:     claims.TenantID,
		ProjectRef:   req.ProjectID,
		UserID:       claims.Subject,
		UserName:     req.UserName,
		UserAvatar:   req.UserAvatar,
		WorkedOn:     req.WorkedOn,
		PlanningToDo: req.PlanningToDo,
		Blockers:     req.Blockers,
		HoursWorked:  req.HoursWorked,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrProjectNotFound):
			writeError(w, http.StatusNotFound, "not_found", "project not found")
		case errors.Is(err, domain.ErrDuplicateCheckIn):
			writeError(w, http.StatusConflict, "conflict", "check-in already submitted for today")
		default:
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, SubmitCheckInResponse{
		CheckInID:   checkIn.ID,
		CheckInDate: checkIn.CheckInDate,
		SubmittedAt: checkIn.SubmittedAt,
	})
}

// GenerateReportRequest is the payload for POST /v1/reports/generate.
type GenerateReportRequest struct {
	ProjectID string `json:"project_id"`
	Email     string `json:"email,omitempty"`
}

// Validate ensures request correctness.
func (r GenerateReportRequest) Validate() error {
	if strings.TrimSpace(r.ProjectID) == "" {
		return errors.New("project_id is required")
	}
	return nil
}

// GenerateReportResponse acknowledges an accepted report job.
type GenerateReportResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// SubmitCheckInRequest is the payload for POST /v1/checkins.
type SubmitCheckInRequest struct {
	ProjectID    string   `json:"project_id"`
	UserName     string   `json:"user_name"`
	UserAvatar   string   `json:"user_avatar,omitempty"`
	WorkedOn     string   `json:"worked_on"`
	PlanningToDo string   `json:"planning_to_do"`
	Blockers     string   `json:"blockers,omitempty"`
	HoursWorked  *float64 `json:"hours_worked,omitempty"`
}

// Validate ensures request correctness.
func (r SubmitCheckInRequest) Validate() error {
	if strings.TrimSpace(r.ProjectID) == "" {
		return errors.New("project_id is required")
	}
	if strings.TrimSpace(r.WorkedOn) == "" {
		return errors.New("worked_on is required")
	}
	if strings.TrimSpace(r.PlanningToDo) == "" {
		return errors.New("planning_to_do is required")
	}
	if r.HoursWorked != nil && (*r.HoursWorked < 0 || *r.HoursWorked > 24) {
		return errors.New("hours_worked must be between 0 and 24")
	}
	return nil
}

// SubmitCheckInResponse confirms a stored check-in.
type SubmitCheckInResponse struct {
	CheckInID   string    `json:"check_in_id"`
	CheckInDate time.Time `json:"check_in_date"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ReportView exposes a stored weekly report.
type ReportView struct {
	ReportID      string     `json:"report_id"`
	ProjectID     string     `json:"project_id"`
	WeekStartDate time.Time  `json:"week_start_date"`
	WeekEndDate   time.Time  `json:"week_end_date"`
	DocumentURL   string     `json:"document_url,omitempty"`
	TotalHours    float64    `json:"total_hours"`
	TotalCommits  int        `json:"total_commits"`
	TotalCheckIns int        `json:"total_check_ins"`
	ActiveMembers int        `json:"active_members"`
	SentToClient  bool       `json:"sent_to_client"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	GeneratedAt   time.Time  `json:"generated_at"`
}

// ListReportsResponse packages list results.
type ListReportsResponse struct {
	Items []ReportView `json:"items"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toReportView(rep domain.WeeklyReport) ReportView {
	return ReportView{
		ReportID:      rep.ID,
		ProjectID:     rep.ProjectID,
		WeekStartDate: rep.WeekStartDate,
		WeekEndDate:   rep.WeekEndDate,
		DocumentURL:   rep.DocumentURL,
		TotalHours:    rep.Stats.TotalHours,
		TotalCommits:  rep.Stats.TotalCommits,
		TotalCheckIns: rep.Stats.TotalCheckIns,
		ActiveMembers: rep.Stats.ActiveMembers,
		SentToClient:  rep.SentToClient,
		SentAt:        rep.SentAt,
		GeneratedAt:   rep.GeneratedAt,
	}
}
