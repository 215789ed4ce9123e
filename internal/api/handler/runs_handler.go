package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cbp-establishments/internal/config"
	"cbp-establishments/internal/model"
	"cbp-establishments/internal/pipeline"
	"cbp-establishments/internal/store"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const runsPrefix = "/api/v1/runs/"

// RunFunc executes one collection run.
type RunFunc func(ctx context.Context, runID string, cfg *config.PipelineConfig) error

// RunsHandler serves run history and starts new runs.
type RunsHandler struct {
	Config *config.PipelineConfig
	Run    RunFunc
}

func NewRunsHandler(cfg *config.PipelineConfig) *RunsHandler {
	return &RunsHandler{Config: cfg, Run: runPipeline}
}

func runPipeline(ctx context.Context, runID string, cfg *config.PipelineConfig) error {
	_, err := pipeline.New(runID, cfg).Run(ctx)
	return err
}

// CreateRun starts a collection run in the background
// @Summary Start a run
// @Description Fetch every CBP year from the configured start year and build the wide artifact
// @Tags runs
// @Produce json
// @Success 202 {object} map[string]interface{} "Run started"
// @Router /runs [post]
func (h *RunsHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	runID := uuid.New().String()

	timeout := h.Config.Server.RunTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	go func() {
		defer cancel()
		if err := h.Run(ctx, runID, h.Config); err != nil && !errors.Is(err, pipeline.ErrInsufficientData) {
			log.WithField("run_id", runID).WithError(err).Error("background run failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":    "Run started",
		"run_id":     runID,
		"status":     model.RunStatusRunning,
		"start_year": h.Config.Years.Start,
		"created_at": time.Now().UTC(),
	})
}

// ListRuns retrieves all runs
// @Summary List runs
// @Tags runs
// @Produce json
// @Success 200 {array} model.RunInfo
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [get]
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := store.ListRuns()
	if err != nil {
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun retrieves a run with its stage progress
// @Summary Get run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run details"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [get]
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "")
	if !ok {
		return
	}
	run, ok := lookupRun(w, runID)
	if !ok {
		return
	}
	stages, err := store.GetStageProgress(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve progress", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run":    run,
		"stages": stages,
	})
}

// GetRunYears retrieves per-year fetch outcomes
// @Summary Get run years
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Year outcomes"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id}/years [get]
func (h *RunsHandler) GetRunYears(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "/years")
	if !ok {
		return
	}
	if _, ok := lookupRun(w, runID); !ok {
		return
	}
	years, err := store.GetRunYears(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve years", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"years":  years,
		"count":  len(years),
	})
}

// GetRunErrors retrieves the fatal errors of a run
// @Summary Get run errors
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run errors"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id}/errors [get]
func (h *RunsHandler) GetRunErrors(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "/errors")
	if !ok {
		return
	}
	if _, ok := lookupRun(w, runID); !ok {
		return
	}
	runErrors, err := store.GetRunErrors(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve errors", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"errors": runErrors,
		"count":  len(runErrors),
	})
}

// GetRunRecords retrieves the long-form records persisted for a run
// @Summary Get run records
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Param year query int false "Only this year"
// @Success 200 {object} map[string]interface{} "Records"
// @Failure 400 {object} map[string]interface{} "Invalid year"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id}/records [get]
func (h *RunsHandler) GetRunRecords(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "/records")
	if !ok {
		return
	}

	year := 0
	if s := r.URL.Query().Get("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil {
			http.Error(w, "Invalid year", http.StatusBadRequest)
			return
		}
		year = y
	}

	if _, ok := lookupRun(w, runID); !ok {
		return
	}
	records, err := store.GetEstablishments(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve records", http.StatusInternalServerError)
		return
	}
	if year != 0 {
		filtered := records[:0]
		for _, rec := range records {
			if rec.Year == year {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  runID,
		"records": records,
		"count":   len(records),
	})
}

// GetRunArtifact serves the JSON artifact written by a run
// @Summary Download run artifact
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {file} file "Wide JSON artifact"
// @Failure 404 {object} map[string]interface{} "Run or artifact not found"
// @Router /runs/{id}/artifact [get]
func (h *RunsHandler) GetRunArtifact(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "/artifact")
	if !ok {
		return
	}
	run, ok := lookupRun(w, runID)
	if !ok {
		return
	}
	if run.ArtifactPath == "" {
		http.Error(w, "Run has no artifact", http.StatusNotFound)
		return
	}
	if _, err := os.Stat(run.ArtifactPath); err != nil {
		http.Error(w, "Artifact file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(run.ArtifactPath)+`"`)
	http.ServeFile(w, r, run.ArtifactPath)
}

// runIDFromPath extracts the run ID between runsPrefix and suffix.
func runIDFromPath(w http.ResponseWriter, r *http.Request, suffix string) (string, bool) {
	path := r.URL.Path
	if !strings.HasPrefix(path, runsPrefix) || !strings.HasSuffix(path, suffix) {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return "", false
	}
	runID := path[len(runsPrefix) : len(path)-len(suffix)]
	if runID == "" || strings.Contains(runID, "/") {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return "", false
	}
	return runID, true
}

func lookupRun(w http.ResponseWriter, runID string) (*model.RunInfo, bool) {
	run, err := store.GetRun(runID)
	switch {
	case errors.Is(err, store.ErrRunNotFound):
		http.Error(w, "Run not found", http.StatusNotFound)
		return nil, false
	case err != nil:
		http.Error(w, "Failed to fetch run", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("encoding response")
	}
}
