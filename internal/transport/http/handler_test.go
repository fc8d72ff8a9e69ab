package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelane/orchestrator/internal/adapter/llm"
	"github.com/carelane/orchestrator/internal/audit"
	"github.com/carelane/orchestrator/internal/capability"
	"github.com/carelane/orchestrator/internal/domain"
	"github.com/carelane/orchestrator/internal/identity"
	"github.com/carelane/orchestrator/internal/orchestrator"
	"github.com/carelane/orchestrator/internal/policy"
	"github.com/carelane/orchestrator/internal/repository"
	"github.com/carelane/orchestrator/internal/scheduling"
)

func newTestHandler(t *testing.T) (*Handler, *repository.SQLiteStore) {
	t.Helper()

	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := zerolog.Nop()
	sink := audit.NewStoreSink(store, log)
	client := llm.NewMockClient()

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	resolver := identity.NewResolver(store, nil, 0)
	scheduler := scheduling.New(store, sink, log, nil)

	registry := capability.NewRegistry(
		capability.NewIntake(client, "test-model", resolver, scheduler, engine, sink, log),
		capability.NewBriefing(client, "test-model", scheduler, sink, log),
		capability.NewComms(client, "test-model", sink, log),
		capability.NewComplianceAudit(client, "test-model", sink, log),
	)
	orch := orchestrator.New(registry, sink, log, orchestrator.Options{})

	return NewHandler(orch, scheduler, store, registry, "ws1", log), store
}

func doJSON(t *testing.T, h func(echo.Context) error, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h(c))
	return rec
}

func TestTriggerValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h.Trigger, http.MethodPost, "/v1/interactions/trigger",
		`{"event_type":"carrier_pigeon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerSMSInteraction(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h.Trigger, http.MethodPost, "/v1/interactions/trigger",
		`{"event_type":"inbound_sms","payload":{"text":"what are your hours?"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary domain.InteractionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.NotEmpty(t, summary.InteractionID)
	assert.Equal(t, domain.TriggerInboundSMS, summary.TriggerType)
	require.NotEmpty(t, summary.CapabilitiesUsed)
	assert.Equal(t, domain.CapabilityIntake, summary.CapabilitiesUsed[0])
	assert.False(t, summary.Escalated)
}

func TestTriggerWritesAuditTrail(t *testing.T) {
	h, store := newTestHandler(t)

	rec := doJSON(t, h.Trigger, http.MethodPost, "/v1/interactions/trigger",
		`{"event_type":"inbound_sms","payload":{"text":"hello"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	events, err := store.ListAuditEvents(context.Background(), "ws1", 10)
	require.NoError(t, err)
	var terminal bool
	for _, e := range events {
		if e.Action == "interaction_completed" {
			terminal = true
		}
	}
	assert.True(t, terminal, "terminal audit record missing: %+v", events)
}

func TestRunAgentValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h.RunAgent, http.MethodPost, "/v1/agents/run", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h.RunAgent, http.MethodPost, "/v1/agents/run", `{"agent":"nonexistent"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunAgentDirect(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h.RunAgent, http.MethodPost, "/v1/agents/run",
		`{"agent":"clinical_briefing","patient_ref":"p1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary domain.InteractionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Len(t, summary.CapabilitiesUsed, 1)
	assert.Equal(t, domain.CapabilityClinicalBriefing, summary.CapabilitiesUsed[0])
}

func TestAgentStatus(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h.AgentStatus, http.MethodGet, "/v1/agents/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Agents []struct {
			Agent      string `json:"agent"`
			Registered bool   `json:"registered"`
		} `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Agents, 4)
	for _, a := range body.Agents {
		assert.True(t, a.Registered, "agent %s not registered", a.Agent)
	}
}

func TestAvailabilityForDate(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h.Availability, http.MethodGet, "/v1/availability?date=2026-09-08&type=cleaning", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Date  string            `json:"date"`
		Slots []scheduling.Slot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2026-09-08", body.Date)
	assert.NotEmpty(t, body.Slots)
}

func TestAvailabilityBadDate(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h.Availability, http.MethodGet, "/v1/availability?date=tomorrow", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatientAppointmentsNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/patients/p404/appointments", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("ref")
	c.SetParamValues("p404")

	require.NoError(t, h.PatientAppointments(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatientAppointments(t *testing.T) {
	h, store := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, store.CreatePatient(ctx, &domain.Patient{
		ID: "pat_p1", WorkspaceID: "ws1", ExternalRef: "p1",
		FullName: "John Smith", FirstName: "John", LastName: "Smith",
		CreatedAt: time.Now().UTC(),
	}))
	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
	require.NoError(t, store.InsertAppointmentIfFree(ctx, &domain.Appointment{
		ID: "apt_1", WorkspaceID: "ws1", PatientID: "p1",
		Title: "Cleaning", AppointmentType: "cleaning",
		StartTime: start, EndTime: start.Add(time.Hour),
		DurationMinutes: 60, Status: domain.AppointmentScheduled,
		CreatedAt: time.Now().UTC(),
	}))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/patients/p1/appointments", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("ref")
	c.SetParamValues("p1")

	require.NoError(t, h.PatientAppointments(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		PatientRef   string               `json:"patient_ref"`
		Appointments []domain.Appointment `json:"appointments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "p1", body.PatientRef)
	require.Len(t, body.Appointments, 1)
	assert.Equal(t, "apt_1", body.Appointments[0].ID)
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h.Health, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
