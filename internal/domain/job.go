package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a document generation job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// IsTerminal returns true if the status represents a final state.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsValid checks if the status is one of the known lifecycle states.
func (s JobStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// TemplateName identifies a supported document template.
type TemplateName string

const (
	TemplateContract    TemplateName = "contract"
	TemplateInvoice     TemplateName = "invoice"
	TemplateCertificate TemplateName = "certificate"
)

// OutputFormat is the byte format of the generated document.
type OutputFormat string

const (
	FormatPDF  OutputFormat = "pdf"
	FormatJSON OutputFormat = "json"
)

// IsValid checks if the output format is supported.
func (f OutputFormat) IsValid() bool {
	return f == FormatPDF || f == FormatJSON
}

// ContentType returns the MIME type served on download.
func (f OutputFormat) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "application/pdf"
}

// Ext returns the file extension without the dot.
func (f OutputFormat) Ext() string {
	return string(f)
}

// Job represents one document generation request throughout its lifecycle.
//
// InputData is immutable after creation: retries re-render from the original
// payload, never from partially mutated state. OutputRef is set iff the job
// completed; ErrorMessage is set iff it failed.
type Job struct {
	ID           uuid.UUID      `json:"id"`
	TemplateName TemplateName   `json:"template_name"`
	OutputFormat OutputFormat   `json:"output_format"`
	Status       JobStatus      `json:"status"`
	InputData    map[string]any `json:"input_data,omitempty"`
	OutputRef    *string        `json:"output_ref,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	Attempts     int            `json:"attempts"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// JobView is the read-only status projection returned by the API.
type JobView struct {
	ID           uuid.UUID    `json:"id"`
	Status       JobStatus    `json:"status"`
	TemplateName TemplateName `json:"template_name"`
	OutputFormat OutputFormat `json:"output_format"`
	CreatedAt    time.Time    `json:"created_at"`
	StartedAt    *time.Time   `json:"started_at"`
	CompletedAt  *time.Time   `json:"completed_at"`
	ErrorMessage *string      `json:"error_message"`
	OutputURL    *string      `json:"output_url"`
}

// View builds the status projection. The download URL is only exposed once
// the output bytes exist.
func (j *Job) View() JobView {
	v := JobView{
		ID:           j.ID,
		Status:       j.Status,
		TemplateName: j.TemplateName,
		OutputFormat: j.OutputFormat,
		CreatedAt:    j.CreatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
		ErrorMessage: j.ErrorMessage,
	}
	if j.Status == StatusCompleted && j.OutputRef != nil {
		url := "/api/v1/download/" + j.ID.String()
		v.OutputURL = &url
	}
	return v
}

// SubmitResponse is returned after a successful submission.
type SubmitResponse struct {
	Success bool      `json:"success"`
	JobID   uuid.UUID `json:"job_id"`
	Status  JobStatus `json:"status"`
}

// TemplateInfo describes a registry entry for the template listing endpoint.
type TemplateInfo struct {
	Name           TemplateName `json:"name"`
	DisplayName    string       `json:"display_name"`
	RequiredFields []string     `json:"required_fields,omitempty"`
}

// TaskMessage wraps a dequeued render task with its broker ACK callbacks.
// The worker pool calls Ack or Nack after execution completes.
type TaskMessage struct {
	JobID uuid.UUID
	Ack   func() error
	Nack  func(requeue bool) error
}
