package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cbp-establishments/internal/config"
	"cbp-establishments/internal/model"
	"cbp-establishments/internal/store"
)

func setupStore(t *testing.T) {
	t.Helper()
	if err := store.InitDB(filepath.Join(t.TempDir(), "api.db")); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
}

func seedRun(t *testing.T, id, artifact string) {
	t.Helper()
	n := 42
	steps := []error{
		store.SaveRun(id, 2010),
		store.SaveYearOutcome(id, model.YearOutcome{Year: 2010, Status: model.YearStatusOK, RecordCount: 1}),
		store.SaveYearOutcome(id, model.YearOutcome{Year: 2011, Status: model.YearStatusSkipped, StatusCode: 404}),
		store.SaveEstablishments(id, []model.YearlyRecord{
			{Year: 2010, Municipality: "Ponce", Establishments: &n},
			{Year: 2012, Municipality: "Ponce", Establishments: &n},
		}),
		store.SetRunArtifact(id, artifact),
		store.UpdateRunStatus(id, model.RunStatusCompleted),
	}
	for _, err := range steps {
		if err != nil {
			t.Fatal(err)
		}
	}
}

func serve(h http.HandlerFunc, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestRunHandlers(t *testing.T) {
	setupStore(t)
	artifact := filepath.Join(t.TempDir(), "municipios_cbp_establishments_2010_2012_wide.json")
	if err := os.WriteFile(artifact, []byte(`[{"Municipio":"Ponce"}]`), 0644); err != nil {
		t.Fatal(err)
	}
	seedRun(t, "run-1", artifact)
	h := NewRunsHandler(config.Default())

	rec := serve(h.ListRuns, http.MethodGet, "/api/v1/runs")
	var runs []model.RunInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil || len(runs) != 1 {
		t.Fatalf("list runs: %v %s", err, rec.Body.String())
	}

	rec = serve(h.GetRun, http.MethodGet, "/api/v1/runs/run-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("get run code %d", rec.Code)
	}
	if run := decode(t, rec)["run"].(map[string]interface{}); run["status"] != model.RunStatusCompleted {
		t.Errorf("run = %v", run)
	}

	rec = serve(h.GetRunYears, http.MethodGet, "/api/v1/runs/run-1/years")
	if body := decode(t, rec); body["count"] != float64(2) {
		t.Errorf("years = %v", body)
	}

	rec = serve(h.GetRunErrors, http.MethodGet, "/api/v1/runs/run-1/errors")
	if body := decode(t, rec); body["count"] != float64(0) {
		t.Errorf("errors = %v", body)
	}

	rec = serve(h.GetRunRecords, http.MethodGet, "/api/v1/runs/run-1/records?year=2012")
	if body := decode(t, rec); body["count"] != float64(1) {
		t.Errorf("records = %v", body)
	}
	rec = serve(h.GetRunRecords, http.MethodGet, "/api/v1/runs/run-1/records?year=abc")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad year code %d", rec.Code)
	}

	rec = serve(h.GetRunArtifact, http.MethodGet, "/api/v1/runs/run-1/artifact")
	if rec.Code != http.StatusOK || rec.Body.String() != `[{"Municipio":"Ponce"}]` {
		t.Errorf("artifact: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRunHandlersNotFound(t *testing.T) {
	setupStore(t)
	if err := store.SaveRun("no-artifact", 2010); err != nil {
		t.Fatal(err)
	}
	h := NewRunsHandler(config.Default())

	tests := []struct {
		name string
		h    http.HandlerFunc
		path string
		code int
	}{
		{"unknown run", h.GetRun, "/api/v1/runs/missing", http.StatusNotFound},
		{"unknown run years", h.GetRunYears, "/api/v1/runs/missing/years", http.StatusNotFound},
		{"no artifact", h.GetRunArtifact, "/api/v1/runs/no-artifact/artifact", http.StatusNotFound},
		{"empty id", h.GetRunErrors, "/api/v1/runs//errors", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := serve(tt.h, http.MethodGet, tt.path); rec.Code != tt.code {
			t.Errorf("%s: code %d, want %d", tt.name, rec.Code, tt.code)
		}
	}
}

func TestCreateRun(t *testing.T) {
	cfg := config.Default()
	started := make(chan string, 1)
	h := &RunsHandler{
		Config: cfg,
		Run: func(ctx context.Context, runID string, got *config.PipelineConfig) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("background run has no deadline")
			}
			started <- runID
			return nil
		},
	}

	rec := serve(h.CreateRun, http.MethodPost, "/api/v1/runs")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("code %d", rec.Code)
	}
	runID, _ := decode(t, rec)["run_id"].(string)
	if runID == "" {
		t.Fatal("no run_id in response")
	}

	select {
	case got := <-started:
		if got != runID {
			t.Errorf("background run id %s, want %s", got, runID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("background run not started")
	}
}
