package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blackroad/power-manager/internal/power"
	"github.com/blackroad/power-manager/internal/repository"
	"github.com/blackroad/power-manager/internal/service"
	"github.com/blackroad/power-manager/internal/validator"
)

type api struct {
	svc    *service.PowerService
	logger *zap.Logger
}

// NewRouter builds the HTTP surface over the power engine.
func NewRouter(svc *service.PowerService, logger *zap.Logger) *chi.Mux {
	a := &api{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/devices", a.registerDevice)
		r.Get("/devices/{deviceID}", a.getDevice)
		r.Post("/devices/{deviceID}/meters", a.addMeter)
		r.Get("/devices/{deviceID}/meters", a.listMeters)
		r.Post("/devices/{deviceID}/events", a.triggerEvent)
		r.Get("/devices/{deviceID}/events", a.deviceEvents)
		r.Get("/devices/{deviceID}/runtime", a.estimateRuntime)
		r.Get("/devices/{deviceID}/report", a.exportReport)
		r.Post("/meters/{meterID}/readings", a.logPower)
		r.Get("/meters/{meterID}/history", a.meterHistory)
		r.Get("/budget", a.budgetCheck)
	})

	return r
}

type registerDeviceRequest struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	ShutdownThreshold float64  `json:"shutdown_threshold"`
	TargetWh          *float64 `json:"target_wh,omitempty"`
}

func (a *api) registerDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	device, err := a.svc.RegisterDevice(r.Context(), service.RegisterDeviceInput{
		ID:                req.ID,
		Name:              req.Name,
		ShutdownThreshold: req.ShutdownThreshold,
		TargetWh:          req.TargetWh,
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	a.writeJSON(w, http.StatusCreated, device)
}

func (a *api) getDevice(w http.ResponseWriter, r *http.Request) {
	device, err := a.svc.GetDevice(r.Context(), chi.URLParam(r, "deviceID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, device)
}

type addMeterRequest struct {
	Type       string            `json:"type"`
	CapacityWh float64           `json:"capacity_wh"`
	Name       *string           `json:"name,omitempty"`
	Thresholds *power.Thresholds `json:"thresholds,omitempty"`
}

func (a *api) addMeter(w http.ResponseWriter, r *http.Request) {
	var req addMeterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	meter, err := a.svc.AddMeter(r.Context(), service.AddMeterInput{
		DeviceID:   chi.URLParam(r, "deviceID"),
		Type:       req.Type,
		CapacityWh: req.CapacityWh,
		Name:       req.Name,
		Thresholds: req.Thresholds,
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	a.writeJSON(w, http.StatusCreated, meter)
}

func (a *api) listMeters(w http.ResponseWriter, r *http.Request) {
	meters, err := a.svc.ListMeters(r.Context(), chi.URLParam(r, "deviceID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, meters)
}

type triggerEventRequest struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
	Note  *string `json:"note,omitempty"`
}

func (a *api) triggerEvent(w http.ResponseWriter, r *http.Request) {
	var req triggerEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := a.svc.TriggerEvent(r.Context(), chi.URLParam(r, "deviceID"), req.Type, req.Value, req.Note)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	a.writeJSON(w, http.StatusCreated, event)
}

func (a *api) deviceEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	events, err := a.svc.DeviceEvents(r.Context(), chi.URLParam(r, "deviceID"), limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, events)
}

type runtimeResponse struct {
	DeviceID string   `json:"device_id"`
	Hours    *float64 `json:"estimated_runtime_hours,omitempty"`
}

func (a *api) estimateRuntime(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	hours, ok, err := a.svc.EstimateRuntime(r.Context(), deviceID)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	resp := runtimeResponse{DeviceID: deviceID}
	if ok {
		resp.Hours = &hours
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *api) exportReport(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	report, err := a.svc.ExportReport(r.Context(), chi.URLParam(r, "deviceID"), days)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, report)
}

type logPowerRequest struct {
	Voltage   float64  `json:"voltage"`
	Current   float64  `json:"current"`
	ChargePct *float64 `json:"charge_pct,omitempty"`
}

func (a *api) logPower(w http.ResponseWriter, r *http.Request) {
	meterID, err := uuid.Parse(chi.URLParam(r, "meterID"))
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid meter id")
		return
	}

	var req logPowerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reading, err := a.svc.LogPower(r.Context(), meterID, req.Voltage, req.Current, req.ChargePct)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	a.writeJSON(w, http.StatusCreated, reading)
}

func (a *api) meterHistory(w http.ResponseWriter, r *http.Request) {
	meterID, err := uuid.Parse(chi.URLParam(r, "meterID"))
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid meter id")
		return
	}

	hours := queryInt(r, "hours", 24)
	readings, err := a.svc.MeterHistory(r.Context(), meterID, hours)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, readings)
}

func (a *api) budgetCheck(w http.ResponseWriter, r *http.Request) {
	deviceIDs := r.URL.Query()["device"]
	if len(deviceIDs) == 0 {
		a.writeError(w, http.StatusBadRequest, "at least one device query parameter is required")
		return
	}

	summary, err := a.svc.PowerBudgetCheck(r.Context(), deviceIDs)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, summary)
}

func (a *api) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		a.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, validator.ErrInvalidInput):
		a.writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error("request failed", zap.Error(err))
		a.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (a *api) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (a *api) writeError(w http.ResponseWriter, status int, msg string) {
	a.writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}
