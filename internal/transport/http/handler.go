// Package http provides the HTTP boundary of the orchestrator.
package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelane/orchestrator/internal/capability"
	"github.com/carelane/orchestrator/internal/domain"
	"github.com/carelane/orchestrator/internal/orchestrator"
	"github.com/carelane/orchestrator/internal/repository"
	"github.com/carelane/orchestrator/internal/scheduling"
)

// Handler handles HTTP requests.
type Handler struct {
	orch               *orchestrator.Orchestrator
	scheduler          *scheduling.Service
	store              *repository.SQLiteStore
	registry           *capability.Registry
	defaultWorkspaceID string
	log                zerolog.Logger
}

// NewHandler creates a new handler.
func NewHandler(orch *orchestrator.Orchestrator, scheduler *scheduling.Service, store *repository.SQLiteStore, registry *capability.Registry, defaultWorkspaceID string, log zerolog.Logger) *Handler {
	return &Handler{
		orch:               orch,
		scheduler:          scheduler,
		store:              store,
		registry:           registry,
		defaultWorkspaceID: defaultWorkspaceID,
		log:                log.With().Str("component", "http").Logger(),
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/interactions/trigger", h.Trigger)

	e.POST("/v1/agents/run", h.RunAgent)
	e.GET("/v1/agents/status", h.AgentStatus)

	e.GET("/v1/availability", h.Availability)
	e.GET("/v1/patients/:ref/appointments", h.PatientAppointments)

	e.GET("/health", h.Health)
}

// TriggerRequest is the request to start an interaction.
type TriggerRequest struct {
	EventType   string                `json:"event_type"`
	WorkspaceID string                `json:"workspace_id"`
	PatientRef  string                `json:"patient_ref,omitempty"`
	ProviderRef string                `json:"provider_ref,omitempty"`
	Payload     domain.TriggerPayload `json:"payload"`
}

// Trigger starts an interaction and returns its terminal summary.
// POST /v1/interactions/trigger
func (h *Handler) Trigger(c echo.Context) error {
	ctx := c.Request().Context()

	var req TriggerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.WorkspaceID == "" {
		req.WorkspaceID = h.defaultWorkspaceID
	}

	summary, err := h.orch.Handle(ctx, domain.TriggerEvent{
		EventType:   domain.TriggerType(req.EventType),
		WorkspaceID: req.WorkspaceID,
		PatientRef:  req.PatientRef,
		ProviderRef: req.ProviderRef,
		Payload:     req.Payload,
	})
	if errors.Is(err, orchestrator.ErrInvalidTrigger) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err != nil {
		h.log.Error().Err(err).Msg("trigger handling failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to process trigger"})
	}

	return c.JSON(http.StatusOK, summary)
}

// RunAgentRequest is the request to run a single capability directly.
type RunAgentRequest struct {
	Agent       string                `json:"agent"`
	WorkspaceID string                `json:"workspace_id"`
	PatientRef  string                `json:"patient_ref,omitempty"`
	Payload     domain.TriggerPayload `json:"payload"`
}

// RunAgent runs one capability outside the routing loop.
// POST /v1/agents/run
func (h *Handler) RunAgent(c echo.Context) error {
	ctx := c.Request().Context()

	var req RunAgentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Agent == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "agent is required"})
	}
	if req.WorkspaceID == "" {
		req.WorkspaceID = h.defaultWorkspaceID
	}

	summary, err := h.orch.RunCapability(ctx, domain.TriggerEvent{
		EventType:   domain.TriggerManual,
		WorkspaceID: req.WorkspaceID,
		PatientRef:  req.PatientRef,
		Payload:     req.Payload,
	}, domain.Capability(req.Agent))
	if errors.Is(err, orchestrator.ErrInvalidTrigger) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err != nil {
		h.log.Error().Err(err).Msg("direct run failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to run agent"})
	}

	return c.JSON(http.StatusOK, summary)
}

// AgentStatus reports which capabilities are registered.
// GET /v1/agents/status
func (h *Handler) AgentStatus(c echo.Context) error {
	agents := make([]map[string]interface{}, 0, 4)
	for _, name := range domain.Capabilities() {
		agents = append(agents, map[string]interface{}{
			"agent":      name,
			"registered": h.registry.Get(name) != nil,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"agents": agents})
}

// Availability returns free slots. With a date it checks that day; without,
// it scans forward for the next openings.
// GET /v1/availability?date=2006-01-02&type=cleaning
func (h *Handler) Availability(c echo.Context) error {
	ctx := c.Request().Context()

	workspaceID := c.QueryParam("workspace_id")
	if workspaceID == "" {
		workspaceID = h.defaultWorkspaceID
	}
	duration := scheduling.DurationFor(c.QueryParam("type"))

	if date := c.QueryParam("date"); date != "" {
		slots, err := h.scheduler.CheckAvailability(ctx, workspaceID, date, duration)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		if slots == nil {
			slots = []scheduling.Slot{}
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"date": date, "slots": slots})
	}

	days, err := h.scheduler.FindNextAvailable(ctx, workspaceID, duration, 14, 5)
	if err != nil {
		h.log.Error().Err(err).Msg("availability scan failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to check availability"})
	}
	if days == nil {
		days = []scheduling.DaySlots{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"days": days})
}

// PatientAppointments lists a patient's upcoming appointments.
// GET /v1/patients/:ref/appointments
func (h *Handler) PatientAppointments(c echo.Context) error {
	ctx := c.Request().Context()
	ref := c.Param("ref")

	workspaceID := c.QueryParam("workspace_id")
	if workspaceID == "" {
		workspaceID = h.defaultWorkspaceID
	}

	patient, err := h.store.GetPatientByRef(ctx, workspaceID, ref)
	if err != nil {
		h.log.Error().Err(err).Msg("patient lookup failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to look up patient"})
	}
	if patient == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "patient not found"})
	}

	appts, err := h.scheduler.ListPatientAppointments(ctx, workspaceID, patient.ExternalRef)
	if err != nil {
		h.log.Error().Err(err).Msg("appointment listing failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list appointments"})
	}
	if appts == nil {
		appts = []domain.Appointment{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patient_ref":  patient.ExternalRef,
		"appointments": appts,
	})
}

// Health returns health status.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	if err := h.store.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  "store unreachable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
