// Package repository implements the record store behind scheduling,
// identity resolution and the audit log.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/carelane/orchestrator/internal/domain"
)

// ErrSlotUnavailable is returned when a write-time availability check finds
// the requested slot taken. Retryable with an alternative slot.
var ErrSlotUnavailable = errors.New("slot unavailable")

// SQLiteStore implements the record store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS patients (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			external_ref TEXT NOT NULL,
			full_name TEXT NOT NULL,
			first_name TEXT,
			last_name TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_patients_ref ON patients(workspace_id, external_ref)`,
		`CREATE INDEX IF NOT EXISTS idx_patients_workspace ON patients(workspace_id)`,
		`CREATE TABLE IF NOT EXISTS appointments (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			patient_id TEXT,
			title TEXT NOT NULL,
			appointment_type TEXT NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			duration_minutes INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'scheduled',
			notes TEXT,
			source TEXT,
			cancellation_reason TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_workspace_start ON appointments(workspace_id, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_patient ON appointments(workspace_id, patient_id, start_time)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			actor_type TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			action TEXT NOT NULL,
			resource_type TEXT,
			resource_id TEXT,
			metadata TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_workspace_created ON audit_log(workspace_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the store is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreatePatient inserts a patient record.
func (s *SQLiteStore) CreatePatient(ctx context.Context, p *domain.Patient) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO patients (id, workspace_id, external_ref, full_name, first_name, last_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.WorkspaceID, p.ExternalRef, p.FullName, p.FirstName, p.LastName, p.CreatedAt)
	return err
}

// ListPatients returns all patients in a workspace.
func (s *SQLiteStore) ListPatients(ctx context.Context, workspaceID string) ([]domain.Patient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_id, external_ref, full_name, first_name, last_name, created_at
		 FROM patients WHERE workspace_id = ? ORDER BY full_name ASC`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []domain.Patient
	for rows.Next() {
		var p domain.Patient
		var first, last sql.NullString
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.ExternalRef, &p.FullName, &first, &last, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.FirstName = first.String
		p.LastName = last.String
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// GetPatientByRef retrieves a patient by its opaque external reference.
func (s *SQLiteStore) GetPatientByRef(ctx context.Context, workspaceID, externalRef string) (*domain.Patient, error) {
	var p domain.Patient
	var first, last sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, external_ref, full_name, first_name, last_name, created_at
		 FROM patients WHERE workspace_id = ? AND external_ref = ?`,
		workspaceID, externalRef).Scan(&p.ID, &p.WorkspaceID, &p.ExternalRef, &p.FullName, &first, &last, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.FirstName = first.String
	p.LastName = last.String
	return &p, nil
}

// GetAppointmentsBetween returns non-cancelled appointments overlapping the
// window, ordered by start time.
func (s *SQLiteStore) GetAppointmentsBetween(ctx context.Context, workspaceID string, from, to time.Time) ([]domain.Appointment, error) {
	rows, err := s.db.QueryContext(ctx,
		appointmentSelect+` WHERE workspace_id = ? AND status != 'cancelled' AND start_time >= ? AND start_time <= ? ORDER BY start_time ASC`,
		workspaceID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// GetPatientAppointments returns a patient's non-cancelled appointments
// starting at or after the given time, ordered by start time.
func (s *SQLiteStore) GetPatientAppointments(ctx context.Context, workspaceID, patientID string, from time.Time) ([]domain.Appointment, error) {
	rows, err := s.db.QueryContext(ctx,
		appointmentSelect+` WHERE workspace_id = ? AND patient_id = ? AND status != 'cancelled' AND start_time >= ? ORDER BY start_time ASC`,
		workspaceID, patientID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// GetAppointment retrieves one appointment by id, workspace-scoped.
func (s *SQLiteStore) GetAppointment(ctx context.Context, workspaceID, id string) (*domain.Appointment, error) {
	rows, err := s.db.QueryContext(ctx,
		appointmentSelect+` WHERE workspace_id = ? AND id = ?`, workspaceID, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	appts, err := scanAppointments(rows)
	if err != nil {
		return nil, err
	}
	if len(appts) == 0 {
		return nil, nil
	}
	return &appts[0], nil
}

// InsertAppointmentIfFree inserts the appointment only if no non-cancelled
// appointment overlaps its window. The overlap check and the insert run in
// one transaction so two concurrent bookers cannot take the same slot.
func (s *SQLiteStore) InsertAppointmentIfFree(ctx context.Context, a *domain.Appointment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	free, err := slotFree(ctx, tx, a.WorkspaceID, a.StartTime, a.EndTime, "")
	if err != nil {
		return err
	}
	if !free {
		return ErrSlotUnavailable
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO appointments (id, workspace_id, patient_id, title, appointment_type, start_time, end_time, duration_minutes, status, notes, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.WorkspaceID, nullable(a.PatientID), a.Title, a.AppointmentType,
		a.StartTime, a.EndTime, a.DurationMinutes, a.Status, nullable(a.Notes), nullable(a.Source), a.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// RescheduleAppointmentIfFree moves an appointment to a new window with the
// same write-time revalidation as InsertAppointmentIfFree.
func (s *SQLiteStore) RescheduleAppointmentIfFree(ctx context.Context, workspaceID, id string, start, end time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	free, err := slotFree(ctx, tx, workspaceID, start, end, id)
	if err != nil {
		return err
	}
	if !free {
		return ErrSlotUnavailable
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE appointments SET start_time = ?, end_time = ?, status = 'scheduled' WHERE workspace_id = ? AND id = ?`,
		start, end, workspaceID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// CancelAppointment marks an appointment cancelled with a reason.
func (s *SQLiteStore) CancelAppointment(ctx context.Context, workspaceID, id, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE appointments SET status = 'cancelled', cancellation_reason = ? WHERE workspace_id = ? AND id = ?`,
		reason, workspaceID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AppendAuditEvent appends one audit log entry.
func (s *SQLiteStore) AppendAuditEvent(ctx context.Context, e *domain.AuditEvent) error {
	metadata := ""
	if e.Metadata != nil {
		metadata = string(e.Metadata)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, workspace_id, actor_type, actor_id, action, resource_type, resource_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.WorkspaceID, e.ActorType, e.ActorID, e.Action,
		nullable(e.ResourceType), nullable(e.ResourceID), metadata, e.CreatedAt)
	return err
}

// ListAuditEvents returns the most recent audit entries for a workspace.
func (s *SQLiteStore) ListAuditEvents(ctx context.Context, workspaceID string, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_id, actor_type, actor_id, action, resource_type, resource_id, metadata, created_at
		 FROM audit_log WHERE workspace_id = ? ORDER BY created_at DESC LIMIT ?`,
		workspaceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var e domain.AuditEvent
		var rtype, rid, metadata sql.NullString
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.ActorType, &e.ActorID, &e.Action, &rtype, &rid, &metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ResourceType = rtype.String
		e.ResourceID = rid.String
		if metadata.Valid {
			e.Metadata = []byte(metadata.String)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

const appointmentSelect = `SELECT id, workspace_id, patient_id, title, appointment_type, start_time, end_time, duration_minutes, status, notes, source, cancellation_reason, created_at FROM appointments`

func scanAppointments(rows *sql.Rows) ([]domain.Appointment, error) {
	var appts []domain.Appointment
	for rows.Next() {
		var a domain.Appointment
		var patientID, notes, source, reason sql.NullString
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &patientID, &a.Title, &a.AppointmentType,
			&a.StartTime, &a.EndTime, &a.DurationMinutes, &a.Status, &notes, &source, &reason, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.PatientID = patientID.String
		a.Notes = notes.String
		a.Source = source.String
		a.CancellationReason = reason.String
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func slotFree(ctx context.Context, tx *sql.Tx, workspaceID string, start, end time.Time, excludeID string) (bool, error) {
	query := `SELECT COUNT(1) FROM appointments WHERE workspace_id = ? AND status != 'cancelled' AND start_time < ? AND end_time > ?`
	args := []interface{}{workspaceID, end, start}
	if excludeID != "" {
		query += ` AND id != ?`
		args = append(args, excludeID)
	}
	var n int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n == 0, nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
