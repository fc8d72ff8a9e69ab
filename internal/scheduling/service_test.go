package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/carelane/orchestrator/internal/repository"
)

// fixedNow is a Monday, 09:00 UTC.
var fixedNow = time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *repository.SQLiteStore) {
	t.Helper()
	store, err := repository.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	svc := New(store, nil, zerolog.Nop(), func() time.Time { return fixedNow })
	return svc, store
}

func TestDurationFor(t *testing.T) {
	cases := map[string]int{
		"cleaning":   60,
		"exam":       30,
		"crown":      90,
		"root_canal": 90,
		"follow_up":  15,
		"general":    30,
		"unknown":    30,
	}
	for typ, want := range cases {
		if got := DurationFor(typ); got != want {
			t.Fatalf("DurationFor(%q) = %d, want %d", typ, got, want)
		}
	}
}

func TestCheckAvailabilityEmptyDay(t *testing.T) {
	svc, _ := newTestService(t)

	slots, err := svc.CheckAvailability(context.Background(), "ws1", "2026-09-08", 30)
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	// 08:00-17:00 on a 30-minute grid gives 18 starts for 30-minute visits.
	if len(slots) != 18 {
		t.Fatalf("expected 18 slots, got %d", len(slots))
	}
	if slots[0].Start != "08:00" || slots[len(slots)-1].Start != "16:30" {
		t.Fatalf("unexpected slot boundaries: %+v", slots)
	}
}

func TestCheckAvailabilityLongVisitsGetFewerSlots(t *testing.T) {
	svc, _ := newTestService(t)

	slots, err := svc.CheckAvailability(context.Background(), "ws1", "2026-09-08", 90)
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	// The last 90-minute visit must start by 15:30.
	if slots[len(slots)-1].Start != "15:30" {
		t.Fatalf("unexpected last slot: %+v", slots[len(slots)-1])
	}
}

func TestCheckAvailabilityWeekend(t *testing.T) {
	svc, _ := newTestService(t)

	slots, err := svc.CheckAvailability(context.Background(), "ws1", "2026-09-12", 30) // Saturday
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no weekend slots, got %d", len(slots))
	}
}

func TestCheckAvailabilityExcludesBookedWindows(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Book(ctx, BookRequest{
		WorkspaceID: "ws1", Date: "2026-09-08", Time: "10:00",
		AppointmentType: "cleaning", PatientID: "p1",
	})
	if err != nil || !res.Success {
		t.Fatalf("Book failed: %v %+v", err, res)
	}

	slots, err := svc.CheckAvailability(ctx, "ws1", "2026-09-08", 30)
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	for _, sl := range slots {
		if sl.Start == "10:00" || sl.Start == "10:30" {
			t.Fatalf("booked window still offered: %+v", sl)
		}
	}
}

func TestBookConflictReturnsAlternativesWithoutRecord(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	first, err := svc.Book(ctx, BookRequest{
		WorkspaceID: "ws1", Date: "2026-09-08", Time: "10:00",
		AppointmentType: "cleaning", PatientID: "p1",
	})
	if err != nil || !first.Success {
		t.Fatalf("Book failed: %v %+v", err, first)
	}

	second, err := svc.Book(ctx, BookRequest{
		WorkspaceID: "ws1", Date: "2026-09-08", Time: "10:30",
		AppointmentType: "cleaning", PatientID: "p2",
	})
	if err != nil {
		t.Fatalf("Book returned error: %v", err)
	}
	if second.Success {
		t.Fatalf("overlapping booking must not succeed")
	}
	if len(second.Alternatives) == 0 {
		t.Fatalf("conflict response must carry alternatives")
	}
	if second.Appointment != nil {
		t.Fatalf("conflict response must not carry an appointment")
	}

	day := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
	appts, err := store.GetAppointmentsBetween(ctx, "ws1", day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("GetAppointmentsBetween failed: %v", err)
	}
	if len(appts) != 1 {
		t.Fatalf("conflict must not create a record, found %d", len(appts))
	}
}

func TestBookUsesTypeDuration(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Book(context.Background(), BookRequest{
		WorkspaceID: "ws1", Date: "2026-09-08", Time: "09:00",
		AppointmentType: "root_canal", PatientID: "p1",
	})
	if err != nil || !res.Success {
		t.Fatalf("Book failed: %v %+v", err, res)
	}
	if res.Appointment.Duration != 90 {
		t.Fatalf("expected 90 minute booking, got %d", res.Appointment.Duration)
	}
}

func TestFindNextAvailableSkipsWeekends(t *testing.T) {
	svc, _ := newTestService(t)

	days, err := svc.FindNextAvailable(context.Background(), "ws1", 30, 14, 14)
	if err != nil {
		t.Fatalf("FindNextAvailable failed: %v", err)
	}
	if len(days) == 0 {
		t.Fatalf("expected results")
	}
	for _, d := range days {
		if d.DayName == "Saturday" || d.DayName == "Sunday" {
			t.Fatalf("weekend day offered: %+v", d)
		}
		if len(d.Slots) > 3 {
			t.Fatalf("expected at most 3 slots per day, got %d", len(d.Slots))
		}
	}
}

func TestFindNextAvailableExcludesPastSlotsToday(t *testing.T) {
	svc, _ := newTestService(t)

	days, err := svc.FindNextAvailable(context.Background(), "ws1", 30, 1, 1)
	if err != nil {
		t.Fatalf("FindNextAvailable failed: %v", err)
	}
	// fixedNow is 09:00 Monday; today's offers must start after that.
	if len(days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(days))
	}
	for _, sl := range days[0].Slots {
		if sl.Start <= "09:00" {
			t.Fatalf("past slot offered: %+v", sl)
		}
	}
}

func TestCancelByPatientSuggestsReschedule(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	booked, err := svc.Book(ctx, BookRequest{
		WorkspaceID: "ws1", Date: "2026-09-10", Time: "10:00",
		AppointmentType: "exam", PatientID: "p1",
	})
	if err != nil || !booked.Success {
		t.Fatalf("Book failed: %v %+v", err, booked)
	}

	res, err := svc.Cancel(ctx, "ws1", "", "p1", "patient moved")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !res.Success || res.Cancelled == nil {
		t.Fatalf("unexpected cancel result: %+v", res)
	}
	if res.Cancelled.ID != booked.Appointment.ID {
		t.Fatalf("cancelled the wrong appointment: %+v", res.Cancelled)
	}
	if len(res.SuggestedReschedule) == 0 {
		t.Fatalf("expected reschedule suggestions")
	}
}

func TestCancelNothingToCancel(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Cancel(context.Background(), "ws1", "", "p1", "")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if res.Success {
		t.Fatalf("cancel with no appointment must not succeed: %+v", res)
	}
}

func TestRescheduleConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Book(ctx, BookRequest{WorkspaceID: "ws1", Date: "2026-09-08", Time: "10:00", AppointmentType: "exam", PatientID: "p1"})
	if err != nil || !a.Success {
		t.Fatalf("Book failed: %v %+v", err, a)
	}
	b, err := svc.Book(ctx, BookRequest{WorkspaceID: "ws1", Date: "2026-09-08", Time: "11:00", AppointmentType: "exam", PatientID: "p2"})
	if err != nil || !b.Success {
		t.Fatalf("Book failed: %v %+v", err, b)
	}

	res, err := svc.Reschedule(ctx, "ws1", a.Appointment.ID, "2026-09-08", "11:00")
	if err != nil {
		t.Fatalf("Reschedule failed: %v", err)
	}
	if res.Success {
		t.Fatalf("reschedule into a taken slot must not succeed")
	}
	if len(res.Alternatives) == 0 {
		t.Fatalf("conflict response must carry alternatives")
	}

	ok, err := svc.Reschedule(ctx, "ws1", a.Appointment.ID, "2026-09-08", "14:00")
	if err != nil {
		t.Fatalf("Reschedule failed: %v", err)
	}
	if !ok.Success || ok.New.Time != "14:00" {
		t.Fatalf("unexpected reschedule result: %+v", ok)
	}
}

func TestHoursUntilNext(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	hours, err := svc.HoursUntilNext(ctx, "ws1", "p1")
	if err != nil {
		t.Fatalf("HoursUntilNext failed: %v", err)
	}
	if hours != -1 {
		t.Fatalf("expected -1 with no appointments, got %f", hours)
	}

	// Tomorrow at 09:00 is 24 hours out from fixedNow.
	res, err := svc.Book(ctx, BookRequest{WorkspaceID: "ws1", Date: "2026-09-08", Time: "09:00", AppointmentType: "exam", PatientID: "p1"})
	if err != nil || !res.Success {
		t.Fatalf("Book failed: %v %+v", err, res)
	}

	hours, err = svc.HoursUntilNext(ctx, "ws1", "p1")
	if err != nil {
		t.Fatalf("HoursUntilNext failed: %v", err)
	}
	if hours < 23.9 || hours > 24.1 {
		t.Fatalf("expected ~24 hours, got %f", hours)
	}
}

func TestBookedAppointmentVisibleToPatientListing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Book(ctx, BookRequest{WorkspaceID: "ws1", Date: "2026-09-09", Time: "10:00", AppointmentType: "filling", PatientID: "p1"})
	if err != nil || !res.Success {
		t.Fatalf("Book failed: %v %+v", err, res)
	}

	appts, err := svc.ListPatientAppointments(ctx, "ws1", "p1")
	if err != nil {
		t.Fatalf("ListPatientAppointments failed: %v", err)
	}
	if len(appts) != 1 || appts[0].AppointmentType != "filling" || appts[0].DurationMinutes != 45 {
		t.Fatalf("unexpected appointments: %+v", appts)
	}
}
