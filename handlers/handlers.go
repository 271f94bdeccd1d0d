package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"buildbank/logger"
	"buildbank/models"
	"buildbank/repository"
	"buildbank/scheduler"
)

// Runs is the run control surface, implemented by *scheduler.RunManager.
type Runs interface {
	Start() error
	RunNow(ctx context.Context) (*models.RunSummary, error)
	Cancel() bool
	Status() models.RunStatus
}

// Prices is the read side of the price history.
type Prices interface {
	PriceHistory(ctx context.Context, materialID, vendorID int64, days int) ([]models.PriceRecord, error)
	LatestForMaterial(ctx context.Context, materialID int64) ([]models.PriceRecord, error)
}

// Settings is implemented by *repository.SettingsRepository.
type Settings interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	LastPriceUpdate(ctx context.Context) (*time.Time, error)
}

type Handlers struct {
	runs     Runs
	prices   Prices
	settings Settings
	log      *logger.Logger
}

func NewHandlers(runs Runs, prices Prices, settings Settings, log *logger.Logger) *Handlers {
	return &Handlers{
		runs:     runs,
		prices:   prices,
		settings: settings,
		log:      logger.OrNop(log),
	}
}

// HealthCheck returns a simple health check response
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"service":     "buildbank",
		"timestamp":   time.Now(),
		"api_version": "v1",
		"running":     h.runs.Status().Running,
	})
}

// StartRun starts a batch price update. With ?wait=true it blocks and
// returns the summary; otherwise it answers 202 immediately.
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		if err := h.runs.Start(); err != nil {
			h.writeRunError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
		return
	}

	summary, err := h.runs.RunNow(r.Context())
	if err != nil {
		h.writeRunError(w, err, summary)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handlers) writeRunError(w http.ResponseWriter, err error, summary *models.RunSummary) {
	if errors.Is(err, scheduler.ErrRunInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	h.log.Error().Err(err).Msg("price update failed")
	writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"error":   err.Error(),
		"summary": summary,
	})
}

// RunStatus reports whether a run is in flight and the last summary.
func (h *Handlers) RunStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.runs.Status())
}

// CancelRun cancels the running batch.
func (h *Handlers) CancelRun(w http.ResponseWriter, r *http.Request) {
	if !h.runs.Cancel() {
		writeError(w, http.StatusNotFound, "no price update is running")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func parseMaterialID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

// GetPriceHistory returns a material's prices, optionally for one vendor.
func (h *Handlers) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	materialID, ok := parseMaterialID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid material ID")
		return
	}
	var err error

	query := r.URL.Query()
	var vendorID int64
	if raw := query.Get("vendor_id"); raw != "" {
		vendorID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || vendorID <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid vendor_id")
			return
		}
	}
	days := 30
	if raw := query.Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days <= 0 || days > 3650 {
			writeError(w, http.StatusBadRequest, "Invalid days")
			return
		}
	}

	records, err := h.prices.PriceHistory(r.Context(), materialID, vendorID, days)
	if err != nil {
		h.log.Error().Err(err).Int64("material_id", materialID).Msg("failed to get price history")
		writeError(w, http.StatusInternalServerError, "Failed to get price history")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// GetLatestPrices returns the newest price from each vendor for a material.
func (h *Handlers) GetLatestPrices(w http.ResponseWriter, r *http.Request) {
	materialID, ok := parseMaterialID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid material ID")
		return
	}
	records, err := h.prices.LatestForMaterial(r.Context(), materialID)
	if err != nil {
		h.log.Error().Err(err).Int64("material_id", materialID).Msg("failed to get latest prices")
		writeError(w, http.StatusInternalServerError, "Failed to get latest prices")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

type settingBody struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

// GetSetting returns one stored setting; value is null when it is unset.
func (h *Handlers) GetSetting(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	value, ok, err := h.settings.GetSetting(r.Context(), key)
	if err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("failed to get setting")
		writeError(w, http.StatusInternalServerError, "Failed to get setting")
		return
	}
	body := settingBody{Key: key}
	if ok {
		body.Value = &value
	}
	writeJSON(w, http.StatusOK, body)
}

// PutSetting stores one setting. last_price_update belongs to the batch
// runner and cannot be written here.
func (h *Handlers) PutSetting(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == repository.SettingLastPriceUpdate {
		writeError(w, http.StatusBadRequest, "last_price_update is set by price updates")
		return
	}

	var body settingBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Value == nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	value := *body.Value
	if key == repository.SettingPostalCode {
		value = strings.TrimSpace(value)
	}

	if err := h.settings.SetSetting(r.Context(), key, value); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("failed to set setting")
		writeError(w, http.StatusInternalServerError, "Failed to set setting")
		return
	}
	h.log.Info().Str("key", key).Msg("setting updated")
	writeJSON(w, http.StatusOK, settingBody{Key: key, Value: &value})
}

// GetLastPriceUpdate returns the timestamp of the last completed batch.
func (h *Handlers) GetLastPriceUpdate(w http.ResponseWriter, r *http.Request) {
	last, err := h.settings.LastPriceUpdate(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to get last price update")
		writeError(w, http.StatusInternalServerError, "Failed to get last price update")
		return
	}
	writeJSON(w, http.StatusOK, map[string]*time.Time{"last_price_update": last})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
