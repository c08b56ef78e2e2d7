package report

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

// RenderError wraps a document generation fault with enough context for
// operator diagnosis.
type RenderError struct {
	ProjectName string
	WindowStart time.Time
	WindowEnd   time.Time
	Err         error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render report for %q (%s - %s): %v",
		e.ProjectName,
		e.WindowStart.Format("2006-01-02"),
		e.WindowEnd.Format("2006-01-02"),
		e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer turns aggregated report data into a PDF document. Output is
// deterministic for identical input when Data.GeneratedAt is pinned; the
// input is never mutated.
type Renderer struct {
	productName string
}

// NewRenderer constructs a Renderer branded with the given product name.
func NewRenderer(productName string) *Renderer {
	if productName == "" {
		productName = "WorkLoop"
	}
	return &Renderer{productName: productName}
}

// Render produces the PDF bytes for one reporting window. A zero-activity
// window yields a valid document with an empty activity log.
func (r *Renderer) Render(ctx context.Context, data Data) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &RenderError{ProjectName: data.ProjectName, WindowStart: data.StartDate, WindowEnd: data.EndDate, Err: err}
	}

	generatedAt := data.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(generatedAt)
	pdf.SetModificationDate(generatedAt)
	pdf.SetTitle(fmt.Sprintf("Weekly Report - %s", data.ProjectName), false)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AddPage()

	r.header(pdf, data)
	r.statsBand(pdf, data)
	r.activityLog(pdf, data)
	r.footer(pdf, generatedAt)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &RenderError{ProjectName: data.ProjectName, WindowStart: data.StartDate, WindowEnd: data.EndDate, Err: err}
	}
	return buf.Bytes(), nil
}

func (r *Renderer) header(pdf *fpdf.Fpdf, data Data) {
	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetTextColor(17, 24, 39)
	pdf.CellFormat(100, 10, r.productName, "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 10, data.ProjectName, "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(107, 114, 128)
	pdf.CellFormat(100, 6, "Weekly Progress Report", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, data.ClientName, "", 1, "R", false, 0, "")

	pdf.Ln(3)
	pdf.SetDrawColor(229, 231, 235)
	pdf.Line(10, pdf.GetY(), 200, pdf.GetY())
	pdf.Ln(5)
}

func (r *Renderer) statsBand(pdf *fpdf.Fpdf, data Data) {
	period := fmt.Sprintf("%s - %s",
		data.StartDate.Format(dateLabelFormat),
		data.EndDate.Format(dateLabelFormat))

	pdf.SetFillColor(239, 246, 255)
	pdf.SetTextColor(37, 99, 235)
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(92, 6, "REPORTING PERIOD", "", 0, "L", true, 0, "")
	pdf.SetX(107)
	pdf.SetFillColor(240, 253, 244)
	pdf.SetTextColor(22, 163, 74)
	pdf.CellFormat(46, 6, "TOTAL HOURS", "", 0, "L", true, 0, "")
	pdf.CellFormat(47, 6, "ACTIVITIES", "", 1, "L", true, 0, "")

	pdf.SetTextColor(17, 24, 39)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetFillColor(239, 246, 255)
	pdf.CellFormat(92, 9, period, "", 0, "L", true, 0, "")
	pdf.SetX(107)
	pdf.SetFillColor(240, 253, 244)
	pdf.CellFormat(46, 9, fmt.Sprintf("%gh", data.TotalHours), "", 0, "L", true, 0, "")
	pdf.CellFormat(47, 9, fmt.Sprintf("%d", data.ActivityCount), "", 1, "L", true, 0, "")

	pdf.Ln(6)
}

func (r *Renderer) activityLog(pdf *fpdf.Fpdf, data Data) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(17, 24, 39)
	pdf.CellFormat(0, 7, "Activity Log", "B", 1, "L", false, 0, "")
	pdf.Ln(3)

	if len(data.Days) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(107, 114, 128)
		pdf.CellFormat(0, 7, "No activity recorded in this period.", "", 1, "L", false, 0, "")
		return
	}

	for _, day := range data.Days {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetTextColor(107, 114, 128)
		pdf.SetFillColor(249, 250, 251)
		pdf.CellFormat(42, 6, day.Date, "", 1, "L", true, 0, "")
		pdf.Ln(2)

		for _, item := range day.Items {
			r.activityItem(pdf, item)
		}
		pdf.Ln(3)
	}
}

func (r *Renderer) activityItem(pdf *fpdf.Fpdf, item Item) {
	y := pdf.GetY()

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(156, 163, 175)
	pdf.CellFormat(18, 5, item.Time, "", 0, "R", false, 0, "")

	red, green, blue := markerColor(item.Type)
	pdf.SetFillColor(red, green, blue)
	pdf.Circle(32, y+2.5, 1.2, "F")

	pdf.SetX(36)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(17, 24, 39)
	pdf.MultiCell(0, 5, item.Title, "", "L", false)

	if item.Description != "" {
		pdf.SetX(36)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(75, 85, 99)
		pdf.MultiCell(0, 4, item.Description, "", "L", false)
	}

	pdf.SetX(36)
	pdf.SetFont("Helvetica", "", 7)
	pdf.SetTextColor(156, 163, 175)
	pdf.CellFormat(0, 4, item.User, "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

// markerColor maps the activity type to its visual category: check-in
// (green), commit (blue), everything else (gray).
func markerColor(activityType string) (int, int, int) {
	switch activityType {
	case "check_in":
		return 34, 197, 94
	case "commit":
		return 59, 130, 246
	default:
		return 156, 163, 175
	}
}

func (r *Renderer) footer(pdf *fpdf.Fpdf, generatedAt time.Time) {
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 7)
	pdf.SetTextColor(156, 163, 175)
	pdf.CellFormat(0, 5,
		fmt.Sprintf("Generated automatically by %s on %s", r.productName, generatedAt.Format(dateLabelFormat)),
		"T", 1, "C", false, 0, "")
}
