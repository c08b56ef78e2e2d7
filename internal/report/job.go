package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"example.com/reporting/internal/delivery"
	"example.com/reporting/internal/domain"
	"example.com/reporting/internal/observability"
	"example.com/reporting/internal/queue"
)

// Queue and job names used by the report pipeline.
const (
	QueueName         = "reports"
	JobGenerateWeekly = "generate-weekly-report"
)

// Payload is the data carried by a generate-weekly-report job.
type Payload struct {
	TenantID  string `json:"tenant_id"`
	ProjectID string `json:"project_id"`
	Email     string `json:"email,omitempty"`
}

// Mailer delivers the rendered document to the client.
type Mailer interface {
	SendWeeklyReport(ctx context.Context, to, projectName string, doc delivery.Document, dateRange string) (*delivery.Receipt, error)
}

// Uploader archives the rendered document and returns its hosted URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Handler runs the full report pipeline for one job: aggregate, render,
// upload (best effort), persist, deliver — strictly in that order, with no
// partial retry of sub-steps. A retried job re-runs the whole pipeline and
// is rejected at the store by the per-week uniqueness constraint.
type Handler struct {
	aggregator *Aggregator
	renderer   *Renderer
	reports    domain.ReportRepository
	mailer     Mailer

	// uploader nil disables the archival step.
	uploader Uploader

	defaultRecipient string
	renderTimeout    time.Duration
	logger           *log.Logger
	nowFn            func() time.Time
}

// HandlerOption configures optional behaviour for the Handler.
type HandlerOption func(*Handler)

// WithUploader enables the best-effort document upload step.
func WithUploader(uploader Uploader) HandlerOption {
	return func(h *Handler) { h.uploader = uploader }
}

// WithRenderTimeout bounds the rendering step.
func WithRenderTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.renderTimeout = d
		}
	}
}

// WithJobLogger overrides the pipeline logger.
func WithJobLogger(logger *log.Logger) HandlerOption {
	return func(h *Handler) { h.logger = logger }
}

// WithClock overrides the pipeline clock. Used in tests to pin the window.
func WithClock(nowFn func() time.Time) HandlerOption {
	return func(h *Handler) { h.nowFn = nowFn }
}

// NewHandler wires the pipeline dependencies.
func NewHandler(aggregator *Aggregator, renderer *Renderer, reports domain.ReportRepository, mailer Mailer, defaultRecipient string, opts ...HandlerOption) *Handler {
	h := &Handler{
		aggregator:       aggregator,
		renderer:         renderer,
		reports:          reports,
		mailer:           mailer,
		defaultRecipient: defaultRecipient,
		renderTimeout:    30 * time.Second,
		logger:           log.New(log.Writer(), "[report] ", log.LstdFlags),
		nowFn:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle executes the pipeline for one job.
func (h *Handler) Handle(ctx context.Context, job queue.Job) error {
	start := time.Now()

	var payload Payload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode report job payload: %w (%w)", err, queue.ErrSkipRetry)
	}
	if payload.ProjectID == "" {
		return fmt.Errorf("report job missing project id (%w)", queue.ErrSkipRetry)
	}

	h.logger.Printf("processing report job %s (project=%s)", job.ID, payload.ProjectID)

	result, err := h.aggregator.Aggregate(ctx, payload.TenantID, payload.ProjectID, h.nowFn())
	if err != nil {
		recordJobFailed("aggregate")
		if errors.Is(err, domain.ErrProjectNotFound) {
			return fmt.Errorf("%w (%w)", err, queue.ErrSkipRetry)
		}
		return err
	}

	result.Data.GeneratedAt = h.nowFn()

	renderCtx, cancel := context.WithTimeout(ctx, h.renderTimeout)
	pdfBytes, err := h.renderer.Render(renderCtx, result.Data)
	cancel()
	if err != nil {
		recordJobFailed("render")
		return fmt.Errorf("%w (%w)", err, queue.ErrSkipRetry)
	}

	// Archival upload is best effort: a generated and emailed report must
	// not be lost because blob storage is down.
	documentURL := ""
	if h.uploader != nil {
		key := fmt.Sprintf("weekly-reports/report-%s-%s-%s.pdf",
			result.Project.Slug,
			result.WindowEnd.Format("2006-01-02"),
			uuid.NewString())
		url, uploadErr := h.uploader.Upload(ctx, key, "application/pdf", pdfBytes)
		if uploadErr != nil {
			h.logger.Printf("document upload failed, continuing without URL (project=%s): %v", result.Project.ID, uploadErr)
			recordUploadFailed()
		} else {
			documentURL = url
		}
	}

	now := h.nowFn()
	weekly := domain.WeeklyReport{
		ID:            uuid.NewString(),
		TenantID:      result.Project.TenantID,
		ProjectID:     result.Project.ID,
		WeekStartDate: result.WindowStart,
		WeekEndDate:   result.WindowEnd,
		Stats:         computeStats(result.Data.TotalHours, result.Records),
		DocumentURL:   documentURL,
		GeneratedAt:   now,
		SentToClient:  true,
		SentAt:        &now,
		CreatedAt:     now,
	}

	// The record must exist before delivery: email can be re-sent, but a
	// second pipeline run for the same week has to be rejected even if the
	// send below fails.
	if err := h.reports.CreateReport(ctx, weekly); err != nil {
		recordJobFailed("store")
		if errors.Is(err, domain.ErrDuplicateReport) {
			return fmt.Errorf("project %s week %s: %w (%w)",
				result.Project.ID, result.WindowStart.Format("2006-01-02"), err, queue.ErrSkipRetry)
		}
		return err
	}
	observability.RecordReportPersisted(now)

	recipient := payload.Email
	if recipient == "" {
		recipient = result.Project.ClientEmail
	}
	if recipient == "" {
		recipient = h.defaultRecipient
	}

	doc := delivery.Document{PDF: pdfBytes}
	if documentURL != "" {
		doc = delivery.Document{URL: documentURL}
	}
	dateRange := fmt.Sprintf("%s - %s",
		result.WindowStart.Format(dateLabelFormat),
		result.WindowEnd.Format(dateLabelFormat))

	receipt, err := h.mailer.SendWeeklyReport(ctx, recipient, result.Project.Name, doc, dateRange)
	if err != nil {
		recordJobFailed("deliver")
		return fmt.Errorf("report %s persisted but delivery failed: %w", weekly.ID, err)
	}
	observability.RecordReportDelivered(receipt.SentAt)

	recordReportGenerated(time.Since(start))
	h.logger.Printf("report sent and saved for %s (report=%s, recipient=%s)", result.Project.Name, weekly.ID, recipient)
	return nil
}

func computeStats(totalHours float64, records []domain.ActivityRecord) domain.ReportStats {
	stats := domain.ReportStats{TotalHours: totalHours}
	members := make(map[string]struct{})
	for _, record := range records {
		switch record.Type {
		case domain.ActivityTypeCommit:
			stats.TotalCommits++
		case domain.ActivityTypeCheckIn:
			stats.TotalCheckIns++
		}
		if record.UserID != "" {
			members[record.UserID] = struct{}{}
		}
	}
	stats.ActiveMembers = len(members)
	return stats
}
