package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/AndreRH09/download_valet/internal/artifact"
	"github.com/AndreRH09/download_valet/internal/logctx"
	"github.com/AndreRH09/download_valet/internal/pathutil"
	"github.com/AndreRH09/download_valet/internal/storage"
)

// DeliveryRepository is the slice of the deliveries store the API needs.
type DeliveryRepository interface {
	storage.DeliveryReadRepository
	storage.DeliveryWriteRepository
}

// DeliveryCanceller interrupts deliveries that are already in flight.
type DeliveryCanceller interface {
	Cancel(id string) bool
}

// CreateExpectationRequest is the payload for registering an expectation.
// Durations are Go duration strings; empty means the configured default.
type CreateExpectationRequest struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	Destination  string `json:"destination"`
	MaxWait      string `json:"max_wait"`
	PollInterval string `json:"poll_interval"`
}

// ExpectationResponse is the API view of a tracked delivery.
type ExpectationResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Path          string `json:"path"`
	Destination   string `json:"destination"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	MaxWait       string `json:"max_wait,omitempty"`
	PollInterval  string `json:"poll_interval,omitempty"`
	Elapsed       string `json:"elapsed,omitempty"`
	Polls         int    `json:"polls"`
	RequestedAt   string `json:"requested_at,omitempty"`
	DeliveredAt   string `json:"delivered_at,omitempty"`
}

func newExpectationResponse(record *storage.DeliveryRecord) ExpectationResponse {
	resp := ExpectationResponse{
		ID:            record.ID,
		Name:          record.Name,
		Path:          record.SourcePath,
		Destination:   record.DestinationPath,
		Status:        record.Status,
		FailureReason: record.FailureReason,
		Polls:         record.Polls,
		RequestedAt:   record.RequestedAt,
		DeliveredAt:   record.DeliveredAt,
	}

	if record.MaxWait > 0 {
		resp.MaxWait = record.MaxWait.String()
	}

	if record.PollInterval > 0 {
		resp.PollInterval = record.PollInterval.String()
	}

	if record.Elapsed > 0 {
		resp.Elapsed = record.Elapsed.String()
	}

	return resp
}

type ExpectationHandler struct {
	username   string
	password   string
	repo       DeliveryRepository
	canceller  DeliveryCanceller
	watchDir   string
	archiveDir string
}

// NewExpectationHandler creates a new expectation handler.
func NewExpectationHandler(username, password string, repo DeliveryRepository, canceller DeliveryCanceller, watchDir, archiveDir string) *ExpectationHandler {
	return &ExpectationHandler{
		username:   username,
		password:   password,
		repo:       repo,
		canceller:  canceller,
		watchDir:   watchDir,
		archiveDir: archiveDir,
	}
}

func (h *ExpectationHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", h.HandleHealth)

	r.Group(func(r chi.Router) {
		r.Use(h.basicAuthMiddleware)

		r.Post("/expectations", h.HandleCreate)
		r.Get("/expectations", h.HandleList)
		r.Get("/expectations/{id}", h.HandleGet)
		r.Delete("/expectations/{id}", h.HandleCancel)
	})

	return r
}

// HandleCreate registers a new artifact expectation and returns the tracked
// record. Invalid arguments are rejected before anything touches disk.
func (h *ExpectationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())
	logger.Debug("received create expectation request")

	var req CreateExpectationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("failed to decode request", "err", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)

		return
	}

	exp, err := h.buildExpectation(&req)
	if err != nil {
		logger.Error("rejected expectation", "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	record := storage.NewDeliveryRecord(exp)
	if err := h.repo.TrackDelivery(r.Context(), record); err != nil {
		logger.Error("failed to track delivery", "err", err)
		http.Error(w, "failed to track expectation", http.StatusInternalServerError)

		return
	}

	logger.Info("expectation accepted", "expectation_id", exp.ID, "artifact_name", exp.Name)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(newExpectationResponse(record)); err != nil {
		logger.Error("failed to encode response", "err", err)
	}
}

// HandleList returns tracked deliveries, optionally filtered by status.
func (h *ExpectationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	var (
		records []storage.DeliveryRecord
		err     error
	)

	if status := r.URL.Query().Get("status"); status != "" {
		records, err = h.repo.GetDeliveriesByStatus(r.Context(), status)
	} else {
		records, err = h.repo.GetDeliveries(r.Context())
	}

	if err != nil {
		logger.Error("failed to fetch deliveries", "err", err)
		http.Error(w, "failed to fetch expectations", http.StatusInternalServerError)

		return
	}

	responses := make([]ExpectationResponse, len(records))
	for i := range records {
		responses[i] = newExpectationResponse(&records[i])
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(responses); err != nil {
		logger.Error("failed to encode response", "err", err)
	}
}

// HandleGet returns a single tracked delivery by id.
func (h *ExpectationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	record, err := h.repo.GetDelivery(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "expectation not found", http.StatusNotFound)

			return
		}

		logger.Error("failed to fetch delivery", "err", err)
		http.Error(w, "failed to fetch expectation", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(newExpectationResponse(record)); err != nil {
		logger.Error("failed to encode response", "err", err)
	}
}

// HandleCancel stops a delivery. In-flight waits are interrupted; queued ones
// are marked cancelled so no instance picks them up.
func (h *ExpectationHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if h.canceller != nil && h.canceller.Cancel(id) {
		logger.Info("cancelled in-flight delivery", "expectation_id", id)
		w.WriteHeader(http.StatusNoContent)

		return
	}

	if _, err := h.repo.GetDelivery(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "expectation not found", http.StatusNotFound)

			return
		}

		logger.Error("failed to fetch delivery", "err", err)
		http.Error(w, "failed to fetch expectation", http.StatusInternalServerError)

		return
	}

	cancelled, err := h.repo.CancelDelivery(r.Context(), id)
	if err != nil {
		logger.Error("failed to cancel delivery", "err", err)
		http.Error(w, "failed to cancel expectation", http.StatusInternalServerError)

		return
	}

	if !cancelled {
		http.Error(w, "expectation already finished", http.StatusConflict)

		return
	}

	logger.Info("cancelled queued delivery", "expectation_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// HandleHealth reports process liveness.
func (h *ExpectationHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *ExpectationHandler) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.username == "" && h.password == "" {
			next.ServeHTTP(w, r)

			return
		}

		username, password, ok := r.BasicAuth()
		if !ok {
			http.Error(w, "invalid authorization format", http.StatusUnauthorized)

			return
		}

		if username != h.username || password != h.password {
			http.Error(w, "invalid username or password", http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *ExpectationHandler) buildExpectation(req *CreateExpectationRequest) (artifact.Expectation, error) {
	name := strings.TrimSpace(req.Name)
	path := pathutil.Normalize(req.Path)

	if name == "" && path == "" {
		return artifact.Expectation{}, &artifact.InvalidArgumentError{Argument: "name", Reason: "either name or path must be provided"}
	}

	if name == "" {
		name = filepath.Base(path)
	}

	exp := artifact.WithinDir(uuid.NewString(), name, h.watchDir, h.archiveDir)
	if path != "" {
		exp.Path = path
	}

	if dest := pathutil.Normalize(req.Destination); dest != "" {
		exp.Destination = dest
	}

	maxWait, err := parseOptionalDuration("max_wait", req.MaxWait)
	if err != nil {
		return artifact.Expectation{}, err
	}

	pollInterval, err := parseOptionalDuration("poll_interval", req.PollInterval)
	if err != nil {
		return artifact.Expectation{}, err
	}

	if maxWait > 0 && pollInterval > maxWait {
		return artifact.Expectation{}, &artifact.InvalidArgumentError{Argument: "poll_interval", Reason: "must not exceed max_wait"}
	}

	exp.MaxWait = maxWait
	exp.PollInterval = pollInterval
	exp.RequestedAt = time.Now()

	return exp, nil
}

func parseOptionalDuration(argument, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &artifact.InvalidArgumentError{Argument: argument, Reason: "must be a duration such as 30s or 500ms"}
	}

	if d <= 0 {
		return 0, &artifact.InvalidArgumentError{Argument: argument, Reason: "must be positive"}
	}

	return d, nil
}
