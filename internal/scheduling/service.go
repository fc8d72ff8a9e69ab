// Package scheduling provides the availability and booking primitives the
// Intake capability consumes as tool calls.
//
// Slots are a fixed 30-minute grid inside fixed business hours on business
// days. Availability is advisory: every write re-validates the slot inside a
// store transaction, so a slot that disappeared between read and write
// surfaces as a retryable conflict with alternatives, never an overwrite.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelane/orchestrator/internal/audit"
	"github.com/carelane/orchestrator/internal/domain"
	"github.com/carelane/orchestrator/internal/repository"
)

// Appointment durations by type, in minutes. Duration is a lookup, never
// user-supplied.
var appointmentDurations = map[string]int{
	"cleaning":     60,
	"exam":         30,
	"filling":      45,
	"crown":        90,
	"root_canal":   90,
	"extraction":   60,
	"whitening":    60,
	"consultation": 30,
	"emergency":    30,
	"follow_up":    15,
	"general":      30,
}

// Business hours: Mon-Fri 08:00-17:00 on a 30-minute grid.
const (
	businessStartHour = 8
	businessEndHour   = 17
	slotMinutes       = 30
)

func isBusinessDay(d time.Weekday) bool {
	return d >= time.Monday && d <= time.Friday
}

// DurationFor returns the standard duration for an appointment type.
func DurationFor(appointmentType string) int {
	if d, ok := appointmentDurations[appointmentType]; ok {
		return d
	}
	return slotMinutes
}

// Slot is one free window, times as "HH:MM".
type Slot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DaySlots buckets free slots by day.
type DaySlots struct {
	Date    string `json:"date"`
	DayName string `json:"day_name"`
	Slots   []Slot `json:"slots"`
}

// BookedAppointment summarizes a created or affected appointment.
type BookedAppointment struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Type     string `json:"type"`
	Duration int    `json:"duration"`
	Status   string `json:"status"`
}

// BookResult reports a booking attempt. On conflict Success is false and
// Alternatives is populated; no record is created.
type BookResult struct {
	Success      bool               `json:"success"`
	Error        string             `json:"error,omitempty"`
	Appointment  *BookedAppointment `json:"appointment,omitempty"`
	Alternatives []Slot             `json:"available_slots,omitempty"`
}

// CancelResult reports a cancellation with suggested reschedule slots.
type CancelResult struct {
	Success             bool               `json:"success"`
	Error               string             `json:"error,omitempty"`
	Cancelled           *BookedAppointment `json:"cancelled_appointment,omitempty"`
	SuggestedReschedule []DaySlots         `json:"suggested_reschedule,omitempty"`
}

// RescheduleResult reports a reschedule attempt.
type RescheduleResult struct {
	Success      bool               `json:"success"`
	Error        string             `json:"error,omitempty"`
	Old          *BookedAppointment `json:"old,omitempty"`
	New          *BookedAppointment `json:"new,omitempty"`
	Alternatives []Slot             `json:"available_slots,omitempty"`
}

// Store is the slice of the record store the service needs.
type Store interface {
	GetAppointmentsBetween(ctx context.Context, workspaceID string, from, to time.Time) ([]domain.Appointment, error)
	GetPatientAppointments(ctx context.Context, workspaceID, patientID string, from time.Time) ([]domain.Appointment, error)
	GetAppointment(ctx context.Context, workspaceID, id string) (*domain.Appointment, error)
	InsertAppointmentIfFree(ctx context.Context, a *domain.Appointment) error
	RescheduleAppointmentIfFree(ctx context.Context, workspaceID, id string, start, end time.Time) error
	CancelAppointment(ctx context.Context, workspaceID, id, reason string) error
}

// Service implements the scheduling collaborator contract.
type Service struct {
	store Store
	sink  audit.Sink
	log   zerolog.Logger
	now   func() time.Time
}

// New creates a scheduling service. A nil now defaults to time.Now.
func New(store Store, sink audit.Sink, log zerolog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store: store,
		sink:  sink,
		log:   log.With().Str("component", "scheduling").Logger(),
		now:   now,
	}
}

// CheckAvailability returns the free slots of the given duration for a date
// ("2006-01-02"). Non-business days have no slots.
func (s *Service) CheckAvailability(ctx context.Context, workspaceID, date string, durationMinutes int) ([]Slot, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	if !isBusinessDay(day.Weekday()) {
		return nil, nil
	}
	if durationMinutes <= 0 {
		durationMinutes = slotMinutes
	}

	existing, err := s.store.GetAppointmentsBetween(ctx, workspaceID, day, day.Add(24*time.Hour-time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to load appointments: %w", err)
	}

	type window struct{ start, end int } // minutes since midnight
	var busy []window
	for _, a := range existing {
		busy = append(busy, window{
			start: a.StartTime.Hour()*60 + a.StartTime.Minute(),
			end:   a.EndTime.Hour()*60 + a.EndTime.Minute(),
		})
	}

	var slots []Slot
	for start := businessStartHour * 60; start+durationMinutes <= businessEndHour*60; start += slotMinutes {
		end := start + durationMinutes
		free := true
		for _, b := range busy {
			if start < b.end && end > b.start {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, Slot{Start: clock(start), End: clock(end)})
		}
	}
	return slots, nil
}

// FindNextAvailable scans up to daysAhead days for free slots, returning at
// most maxResults day buckets with up to three slots each. Past slots on the
// current day are excluded.
func (s *Service) FindNextAvailable(ctx context.Context, workspaceID string, durationMinutes, daysAhead, maxResults int) ([]DaySlots, error) {
	if daysAhead <= 0 {
		daysAhead = 14
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	now := s.now().UTC()
	today := now.Truncate(24 * time.Hour)

	var results []DaySlots
	for offset := 0; offset < daysAhead; offset++ {
		day := today.AddDate(0, 0, offset)
		if !isBusinessDay(day.Weekday()) {
			continue
		}
		if offset == 0 && now.Hour() >= businessEndHour {
			continue
		}

		slots, err := s.CheckAvailability(ctx, workspaceID, day.Format("2006-01-02"), durationMinutes)
		if err != nil {
			return nil, err
		}
		if offset == 0 {
			current := now.Hour()*60 + now.Minute()
			slots = filterSlots(slots, func(sl Slot) bool { return parseClock(sl.Start) > current })
		}
		if len(slots) == 0 {
			continue
		}
		if len(slots) > 3 {
			slots = slots[:3]
		}
		results = append(results, DaySlots{
			Date:    day.Format("2006-01-02"),
			DayName: day.Weekday().String(),
			Slots:   slots,
		})
		if len(results) >= maxResults {
			break
		}
	}
	return results, nil
}

// BookRequest describes a booking.
type BookRequest struct {
	WorkspaceID     string
	Date            string // "2006-01-02"
	Time            string // "15:04"
	AppointmentType string
	PatientID       string
	Title           string
	Notes           string
	Source          string
}

// Book creates an appointment. Availability is re-validated at write time;
// a lost race returns Success=false with alternatives and no record.
func (s *Service) Book(ctx context.Context, req BookRequest) (*BookResult, error) {
	if req.AppointmentType == "" {
		req.AppointmentType = "general"
	}
	duration := DurationFor(req.AppointmentType)

	start, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.Time, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid date/time %q %q: %w", req.Date, req.Time, err)
	}
	end := start.Add(time.Duration(duration) * time.Minute)

	title := req.Title
	if title == "" {
		title = titleize(req.AppointmentType)
	}
	appt := &domain.Appointment{
		ID:              "apt_" + uuid.New().String()[:8],
		WorkspaceID:     req.WorkspaceID,
		PatientID:       req.PatientID,
		Title:           title,
		AppointmentType: req.AppointmentType,
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: duration,
		Status:          domain.AppointmentScheduled,
		Notes:           req.Notes,
		Source:          req.Source,
		CreatedAt:       s.now().UTC(),
	}

	err = s.store.InsertAppointmentIfFree(ctx, appt)
	if errors.Is(err, repository.ErrSlotUnavailable) {
		slots, aerr := s.CheckAvailability(ctx, req.WorkspaceID, req.Date, duration)
		if aerr != nil {
			s.log.Warn().Err(aerr).Msg("failed to load alternatives after booking conflict")
		}
		if len(slots) > 5 {
			slots = slots[:5]
		}
		return &BookResult{
			Success:      false,
			Error:        "This time slot is not available",
			Alternatives: slots,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to book appointment: %w", err)
	}

	s.writeAudit(ctx, req.WorkspaceID, "appointment_booked", "appointment", appt.ID, map[string]any{
		"date":       req.Date,
		"time":       req.Time,
		"type":       req.AppointmentType,
		"patient_id": req.PatientID,
		"source":     req.Source,
	})

	return &BookResult{
		Success: true,
		Appointment: &BookedAppointment{
			ID:       appt.ID,
			Date:     req.Date,
			Time:     req.Time,
			Type:     req.AppointmentType,
			Duration: duration,
			Status:   string(domain.AppointmentScheduled),
		},
	}, nil
}

// Cancel cancels by appointment id, or the patient's next upcoming
// appointment when only a patient id is given. The result carries suggested
// reschedule slots.
func (s *Service) Cancel(ctx context.Context, workspaceID, appointmentID, patientID, reason string) (*CancelResult, error) {
	var appt *domain.Appointment
	var err error

	switch {
	case appointmentID != "":
		appt, err = s.store.GetAppointment(ctx, workspaceID, appointmentID)
	case patientID != "":
		var upcoming []domain.Appointment
		upcoming, err = s.store.GetPatientAppointments(ctx, workspaceID, patientID, s.now().UTC())
		if err == nil && len(upcoming) > 0 {
			appt = &upcoming[0]
		}
	default:
		return &CancelResult{Success: false, Error: "Need appointment_id or patient_id"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}
	if appt == nil {
		return &CancelResult{Success: false, Error: "Appointment not found"}, nil
	}

	if reason == "" {
		reason = "Patient requested cancellation"
	}
	if err := s.store.CancelAppointment(ctx, workspaceID, appt.ID, reason); err != nil {
		return nil, fmt.Errorf("failed to cancel appointment: %w", err)
	}

	s.writeAudit(ctx, workspaceID, "appointment_cancelled", "appointment", appt.ID, map[string]any{
		"reason":        reason,
		"original_date": appt.StartTime.Format(time.RFC3339),
		"type":          appt.AppointmentType,
	})

	suggested, err := s.FindNextAvailable(ctx, workspaceID, appt.DurationMinutes, 14, 3)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to load reschedule suggestions")
	}

	return &CancelResult{
		Success: true,
		Cancelled: &BookedAppointment{
			ID:       appt.ID,
			Date:     appt.StartTime.Format("2006-01-02"),
			Time:     appt.StartTime.Format("15:04"),
			Type:     appt.AppointmentType,
			Duration: appt.DurationMinutes,
			Status:   string(domain.AppointmentCancelled),
		},
		SuggestedReschedule: suggested,
	}, nil
}

// Reschedule moves an appointment to a new date/time, revalidating the new
// slot at write time.
func (s *Service) Reschedule(ctx context.Context, workspaceID, appointmentID, newDate, newTime string) (*RescheduleResult, error) {
	appt, err := s.store.GetAppointment(ctx, workspaceID, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}
	if appt == nil {
		return &RescheduleResult{Success: false, Error: "Appointment not found"}, nil
	}

	start, err := time.ParseInLocation("2006-01-02 15:04", newDate+" "+newTime, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid date/time %q %q: %w", newDate, newTime, err)
	}
	end := start.Add(time.Duration(appt.DurationMinutes) * time.Minute)

	err = s.store.RescheduleAppointmentIfFree(ctx, workspaceID, appointmentID, start, end)
	if errors.Is(err, repository.ErrSlotUnavailable) {
		slots, aerr := s.CheckAvailability(ctx, workspaceID, newDate, appt.DurationMinutes)
		if aerr != nil {
			s.log.Warn().Err(aerr).Msg("failed to load alternatives after reschedule conflict")
		}
		if len(slots) > 5 {
			slots = slots[:5]
		}
		return &RescheduleResult{
			Success:      false,
			Error:        "The requested time is not available",
			Alternatives: slots,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reschedule appointment: %w", err)
	}

	s.writeAudit(ctx, workspaceID, "appointment_rescheduled", "appointment", appointmentID, map[string]any{
		"old_date": appt.StartTime.Format("2006-01-02"),
		"old_time": appt.StartTime.Format("15:04"),
		"new_date": newDate,
		"new_time": newTime,
	})

	return &RescheduleResult{
		Success: true,
		Old: &BookedAppointment{
			ID:       appointmentID,
			Date:     appt.StartTime.Format("2006-01-02"),
			Time:     appt.StartTime.Format("15:04"),
			Type:     appt.AppointmentType,
			Duration: appt.DurationMinutes,
		},
		New: &BookedAppointment{
			ID:       appointmentID,
			Date:     newDate,
			Time:     newTime,
			Type:     appt.AppointmentType,
			Duration: appt.DurationMinutes,
			Status:   string(domain.AppointmentScheduled),
		},
	}, nil
}

// ListPatientAppointments returns a patient's upcoming appointments.
func (s *Service) ListPatientAppointments(ctx context.Context, workspaceID, patientID string) ([]domain.Appointment, error) {
	return s.store.GetPatientAppointments(ctx, workspaceID, patientID, s.now().UTC())
}

// HoursUntilNext returns the hours until a patient's next appointment, or
// -1 when there is none. Used as policy input.
func (s *Service) HoursUntilNext(ctx context.Context, workspaceID, patientID string) (float64, error) {
	upcoming, err := s.store.GetPatientAppointments(ctx, workspaceID, patientID, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if len(upcoming) == 0 {
		return -1, nil
	}
	return upcoming[0].StartTime.Sub(s.now().UTC()).Hours(), nil
}

func (s *Service) writeAudit(ctx context.Context, workspaceID, action, resourceType, resourceID string, meta map[string]any) {
	if s.sink == nil {
		return
	}
	e := domain.AuditEvent{
		WorkspaceID:  workspaceID,
		ActorType:    "agent",
		ActorID:      string(domain.CapabilityIntake),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     audit.Metadata(meta),
	}
	if err := s.sink.Write(ctx, e); err != nil {
		s.log.Error().Err(err).Str("action", action).Msg("audit trail gap")
	}
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func parseClock(hhmm string) int {
	var h, m int
	fmt.Sscanf(hhmm, "%d:%d", &h, &m)
	return h*60 + m
}

func filterSlots(slots []Slot, keep func(Slot) bool) []Slot {
	var out []Slot
	for _, sl := range slots {
		if keep(sl) {
			out = append(out, sl)
		}
	}
	return out
}

func titleize(appointmentType string) string {
	parts := strings.Split(appointmentType, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
