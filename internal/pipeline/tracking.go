package pipeline

import (
	"sync"
	"time"

	"cbp-establishments/internal/model"
	"cbp-establishments/internal/store"

	log "github.com/sirupsen/logrus"
)

// Stage names.
const (
	StageIngestion   = "ingestion"
	StageAggregation = "aggregation"
	StageTransform   = "transformation"
	StageExport      = "export"
)

// PipelineTracker records run progress to the log and, when the store is
// open, to SQLite. Store failures are logged and never stop the run.
type PipelineTracker struct {
	RunID  string
	mu     sync.Mutex
	stages map[string]*model.StageMetrics
	order  []string
	log    *log.Entry
}

func NewPipelineTracker(runID string) *PipelineTracker {
	return &PipelineTracker{
		RunID:  runID,
		stages: make(map[string]*model.StageMetrics),
		log:    log.WithField("run_id", runID),
	}
}

// Begin registers the run.
func (pt *PipelineTracker) Begin(startYear int) {
	pt.log.Infof("🚀 Starting pipeline (start year %d)", startYear)
	pt.persist("save run", store.SaveRun(pt.RunID, startYear))
}

func (pt *PipelineTracker) StartStage(stage string) {
	pt.mu.Lock()
	m := &model.StageMetrics{Stage: stage, Status: "started", StartTime: time.Now()}
	pt.stages[stage] = m
	pt.order = append(pt.order, stage)
	snapshot := *m
	pt.mu.Unlock()

	pt.log.WithField("stage", stage).Debug("stage started")
	pt.persist("save stage", store.SaveStageProgress(pt.RunID, snapshot))
}

func (pt *PipelineTracker) EndStage(stage string, records int) {
	pt.finishStage(stage, "completed", records)
}

func (pt *PipelineTracker) FailStage(stage string) {
	pt.finishStage(stage, "failed", 0)
}

func (pt *PipelineTracker) finishStage(stage, status string, records int) {
	pt.mu.Lock()
	m, ok := pt.stages[stage]
	if !ok {
		pt.mu.Unlock()
		return
	}
	now := time.Now()
	m.EndTime = &now
	m.Status = status
	m.RecordsProcessed = records
	snapshot := *m
	pt.mu.Unlock()

	pt.log.WithFields(log.Fields{
		"stage":       stage,
		"status":      status,
		"records":     records,
		"duration_ms": now.Sub(snapshot.StartTime).Milliseconds(),
	}).Info("stage finished")
	pt.persist("save stage", store.SaveStageProgress(pt.RunID, snapshot))
}

// RecordYears persists every per-year outcome.
func (pt *PipelineTracker) RecordYears(outcomes []model.YearOutcome) {
	for _, o := range outcomes {
		pt.persist("save year outcome", store.SaveYearOutcome(pt.RunID, o))
	}
}

func (pt *PipelineTracker) SetArtifact(path string) {
	pt.persist("save artifact path", store.SetRunArtifact(pt.RunID, path))
}

func (pt *PipelineTracker) Complete() {
	pt.log.Info("🏁 Pipeline completed")
	pt.persist("update status", store.UpdateRunStatus(pt.RunID, model.RunStatusCompleted))
}

// Abort marks a run that stopped cleanly without producing an artifact.
func (pt *PipelineTracker) Abort(reason error) {
	pt.log.Warnf("🛑 %v", reason)
	pt.persist("update status", store.UpdateRunStatus(pt.RunID, model.RunStatusInsufficientData))
	pt.persist("save run error", store.SaveRunError(pt.RunID, reason))
}

func (pt *PipelineTracker) Fail(err error) {
	pt.log.WithError(err).Error("pipeline failed")
	pt.persist("update status", store.UpdateRunStatus(pt.RunID, model.RunStatusFailed))
	pt.persist("save run error", store.SaveRunError(pt.RunID, err))
}

// Stages returns a copy of the stage metrics in start order.
func (pt *PipelineTracker) Stages() []model.StageMetrics {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	out := make([]model.StageMetrics, 0, len(pt.order))
	for _, s := range pt.order {
		out = append(out, *pt.stages[s])
	}
	return out
}

func (pt *PipelineTracker) persist(what string, err error) {
	if err == nil || err == store.ErrNotInitialized {
		return
	}
	pt.log.WithError(err).Warnf("store: %s", what)
}
