package pipeline

import (
	"context"
	"strconv"
	"time"

	"cbp-establishments/internal/config"
	"cbp-establishments/internal/model"

	"github.com/pkg/errors"
)

const (
	metadataSource = "U.S. Census Bureau, County Business Patterns (CBP), NAICS 00 (All Industries)"
	metadataUnits  = "Number of Employer Establishments (as of March 12)"
	metadataNotes  = "Establishment counts use year keys (e.g., '2023') to maintain structural parity " +
		"with the income JSON. RealIncome_* and Real_* fields are null placeholders."
)

// Pipeline runs one collection from year selection to export.
type Pipeline struct {
	RunID   string
	Config  *config.PipelineConfig
	Fetcher *Fetcher
	Tracker *PipelineTracker
	Now     func() time.Time
}

func New(runID string, cfg *config.PipelineConfig) *Pipeline {
	return &Pipeline{
		RunID:   runID,
		Config:  cfg,
		Fetcher: NewFetcher(cfg.API.BaseURL, cfg.APIKey, cfg.API.Timeout),
		Tracker: NewPipelineTracker(runID),
		Now:     time.Now,
	}
}

// Run executes the pipeline. ErrInsufficientData means fewer than two years
// returned data; the summary is still returned and nothing was written.
func (p *Pipeline) Run(ctx context.Context) (summary *model.RunSummary, err error) {
	start := p.Now()
	startYear := p.Config.Years.Start
	summary = &model.RunSummary{RunID: p.RunID, StartYear: startYear, StartedAt: start}

	p.Tracker.Begin(startYear)
	defer func() {
		summary.FinishedAt = p.Now()
		switch {
		case err == nil:
			p.Tracker.Complete()
		case errors.Is(err, ErrInsufficientData):
			p.Tracker.Abort(err)
		default:
			p.Tracker.Fail(err)
		}
	}()

	years, err := YearRange(startYear, p.Config.Years.Lag, start)
	if err != nil {
		return summary, err
	}
	summary.RequestedYears = years

	// --- INGESTION STAGE ---
	p.Tracker.StartStage(StageIngestion)
	ingested, err := p.Fetcher.IngestYears(ctx, years)
	p.Tracker.RecordYears(ingested.Outcomes)
	summary.SuccessfulYears = ingested.SuccessfulYears
	summary.Skipped = ingested.Skipped()
	if err != nil {
		p.Tracker.FailStage(StageIngestion)
		return summary, err
	}
	p.Tracker.EndStage(StageIngestion, len(ingested.Records))

	window, err := NewChangeWindow(ingested.SuccessfulYears)
	if err != nil {
		return summary, err
	}

	// --- AGGREGATION STAGE ---
	p.Tracker.StartStage(StageAggregation)
	records, err := WithIslandTotals(ingested.Records)
	if err != nil {
		p.Tracker.FailStage(StageAggregation)
		return summary, errors.Wrap(err, "aggregating island totals")
	}
	p.Tracker.EndStage(StageAggregation, len(records)-len(ingested.Records))

	// --- TRANSFORMATION STAGE ---
	p.Tracker.StartStage(StageTransform)
	rows, err := Pivot(records, ingested.SuccessfulYears)
	if err != nil {
		p.Tracker.FailStage(StageTransform)
		return summary, errors.Wrap(err, "pivoting records")
	}
	AddChangeColumns(rows, window)
	AddIncomeParityColumns(rows, ingested.SuccessfulYears, window)
	summary.Municipalities = len(rows)
	p.Tracker.EndStage(StageTransform, len(rows))

	// --- EXPORT STAGE ---
	p.Tracker.StartStage(StageExport)
	em := NewExportManager(p.RunID, p.Config.Output)
	results, err := em.Export(ctx, Artifact{
		StartYear: startYear,
		Years:     ingested.SuccessfulYears,
		Rows:      rows,
		Records:   records,
		Metadata:  BuildMetadata(ingested.SuccessfulYears, p.Now()),
	})
	summary.Exports = results
	if len(results) > 0 && results[0].Success {
		summary.ArtifactPath = results[0].Path
		p.Tracker.SetArtifact(results[0].Path)
	}
	if err != nil {
		p.Tracker.FailStage(StageExport)
		return summary, err
	}
	p.Tracker.EndStage(StageExport, len(results))
	return summary, nil
}

// BuildMetadata describes the artifact for its trailing record.
func BuildMetadata(years []int, now time.Time) model.Metadata {
	dataYears := make([]string, len(years))
	for i, y := range years {
		dataYears[i] = strconv.Itoa(y)
	}
	return model.Metadata{
		Source:                metadataSource,
		Units:                 metadataUnits,
		IslandwideAggregation: true,
		DataYears:             dataYears,
		Updated:               now.Format("2006-01-02"),
		Notes:                 metadataNotes,
	}
}
