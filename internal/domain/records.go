package domain

import (
	"encoding/json"
	"time"
)

// Patient is a record-store row. ExternalRef is the opaque token handed to
// downstream systems in place of identity data.
type Patient struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	ExternalRef string    `json:"external_ref"`
	FullName    string    `json:"full_name"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AppointmentStatus values for the appointments table.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentCompleted AppointmentStatus = "completed"
)

// Appointment is a record-store row.
type Appointment struct {
	ID                 string            `json:"id"`
	WorkspaceID        string            `json:"workspace_id"`
	PatientID          string            `json:"patient_id,omitempty"`
	Title              string            `json:"title"`
	AppointmentType    string            `json:"appointment_type"`
	StartTime          time.Time         `json:"start_time"`
	EndTime            time.Time         `json:"end_time"`
	DurationMinutes    int               `json:"duration_minutes"`
	Status             AppointmentStatus `json:"status"`
	Notes              string            `json:"notes,omitempty"`
	Source             string            `json:"source,omitempty"`
	CancellationReason string            `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

// AuditEvent is one append-only audit log entry.
type AuditEvent struct {
	ID           string          `json:"id"`
	WorkspaceID  string          `json:"workspace_id"`
	ActorType    string          `json:"actor_type"` // "user" | "agent" | "system"
	ActorID      string          `json:"actor_id"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type,omitempty"`
	ResourceID   string          `json:"resource_id,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
