package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ReportType classifies a user-submitted issue report.
type ReportType string

const (
	ReportBookIssue            ReportType = "book_issue"
	ReportCopyrightComplaint   ReportType = "copyright_complaint"
	ReportInappropriateContent ReportType = "inappropriate_content"
	ReportBrokenLink           ReportType = "broken_link"
	ReportOther                ReportType = "other"
)

// ReportTypes lists the accepted report types in display order.
var ReportTypes = []ReportType{
	ReportBookIssue,
	ReportCopyrightComplaint,
	ReportInappropriateContent,
	ReportBrokenLink,
	ReportOther,
}

// ErrInvalidReport is returned for reports missing required fields.
var ErrInvalidReport = errors.New("invalid report")

// Report is a row of the reports table. Optional fields are stored as
// NULL when empty.
type Report struct {
	Type          ReportType `json:"report_type"`
	Description   string     `json:"description"`
	ReporterName  string     `json:"reporter_name,omitempty"`
	ReporterEmail string     `json:"reporter_email,omitempty"`
	BookID        string     `json:"book_id,omitempty"`
}

// Validate requires a known type and a non-blank description.
func (r Report) Validate() error {
	if r.Type == "" {
		return fmt.Errorf("%w: report_type is required", ErrInvalidReport)
	}
	if !slices.Contains(ReportTypes, r.Type) {
		return fmt.Errorf("%w: unknown report_type %q", ErrInvalidReport, r.Type)
	}
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidReport)
	}
	return nil
}

// insertRow renders the report as the backend expects it, with JSON null
// for every empty optional column.
func (r Report) insertRow() map[string]any {
	nullable := func(s string) any {
		if s = strings.TrimSpace(s); s == "" {
			return nil
		}
		return s
	}
	return map[string]any{
		"report_type":    string(r.Type),
		"description":    r.Description,
		"reporter_name":  nullable(r.ReporterName),
		"reporter_email": nullable(r.ReporterEmail),
		"book_id":        nullable(r.BookID),
	}
}
