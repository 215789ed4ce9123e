package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"cbp-establishments/internal/config"
	"cbp-establishments/internal/model"
	"cbp-establishments/internal/store"
	"cbp-establishments/pkg/utils"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const (
	sheetEstablishments = "Establishments"
	sheetMetadata       = "Metadata"
)

// Artifact is everything the exporters need from a finished transform.
type Artifact struct {
	StartYear int
	Years     []int
	Rows      []*model.WideRow
	Records   []model.YearlyRecord
	Metadata  model.Metadata
}

// ExportManager handles data export operations
type ExportManager struct {
	RunID   string
	Options config.OutputConfig
	Output  *utils.OutputManager
}

func NewExportManager(runID string, opts config.OutputConfig) *ExportManager {
	return &ExportManager{
		RunID:   runID,
		Options: opts,
		Output:  utils.NewOutputManager(opts.Dir),
	}
}

// Export writes the JSON artifact and then any optional exports. Only a
// failure of the JSON artifact is returned as an error.
func (em *ExportManager) Export(ctx context.Context, a Artifact) ([]model.ExportResult, error) {
	lastYear := a.Years[len(a.Years)-1]

	jsonResult := em.exportToJSON(a, lastYear)
	results := []model.ExportResult{jsonResult}
	if !jsonResult.Success {
		return results, errors.Errorf("writing JSON artifact: %s", jsonResult.Error)
	}

	if em.Options.Excel {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, em.exportToExcel(a, lastYear))
	}
	if em.Options.Chart {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, em.exportChart(a, lastYear))
	}
	if store.Enabled() {
		results = append(results, em.exportToDatabase(a))
	}
	return results, nil
}

func (em *ExportManager) newResult(kind, path string, count int, err error) model.ExportResult {
	result := model.ExportResult{
		Type:        kind,
		Path:        path,
		RecordCount: count,
		Success:     err == nil,
		ExportedAt:  time.Now(),
	}
	logger := log.WithFields(log.Fields{"run_id": em.RunID, "type": kind, "path": path})
	if err != nil {
		result.Error = err.Error()
		logger.WithError(err).Error("❌ Export failed")
		return result
	}
	if kind != "database" {
		if size, err := em.Output.GetFileSize(path); err == nil {
			result.SizeBytes = size
		}
	}
	logger.Infof("✅ Export successful: %d records", count)
	return result
}

func (em *ExportManager) exportToJSON(a Artifact, lastYear int) model.ExportResult {
	path, err := em.Output.ArtifactPath(a.StartYear, lastYear, "json")
	if err != nil {
		return em.newResult("json", path, 0, err)
	}
	err = WriteJSON(path, a.Rows, a.Metadata)
	return em.newResult("json", path, len(a.Rows), err)
}

// WriteJSON writes the wide rows followed by the metadata record as an
// indented JSON array. Non-ASCII characters are written as-is.
func WriteJSON(path string, rows []*model.WideRow, meta model.Metadata) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := EncodeArtifact(w, rows, meta); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "failed to flush file")
	}
	return f.Close()
}

// EncodeArtifact encodes the artifact array to w.
func EncodeArtifact(w io.Writer, rows []*model.WideRow, meta model.Metadata) error {
	out := make([]interface{}, 0, len(rows)+1)
	for _, r := range rows {
		out = append(out, r)
	}
	out = append(out, model.MetadataRecord{Metadata: meta})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(out), "failed to encode JSON")
}

func (em *ExportManager) exportToExcel(a Artifact, lastYear int) model.ExportResult {
	path, err := em.Output.ArtifactPath(a.StartYear, lastYear, "xlsx")
	if err != nil {
		return em.newResult("excel", path, 0, err)
	}
	err = writeExcel(path, a)
	return em.newResult("excel", path, len(a.Rows), err)
}

func writeExcel(path string, a Artifact) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetEstablishments); err != nil {
		return errors.Wrap(err, "renaming sheet")
	}
	if len(a.Rows) > 0 {
		headers := append([]string{model.MunicipalityColumn}, a.Rows[0].Columns()...)
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			if err := f.SetCellValue(sheetEstablishments, cell, h); err != nil {
				return errors.Wrapf(err, "writing header %s", h)
			}
		}
		for i, row := range a.Rows {
			r := i + 2
			cell, _ := excelize.CoordinatesToCellName(1, r)
			if err := f.SetCellValue(sheetEstablishments, cell, row.Municipality); err != nil {
				return errors.Wrapf(err, "writing %s", row.Municipality)
			}
			for j, col := range headers[1:] {
				v := excelValue(row, col)
				if v == nil {
					continue
				}
				cell, _ := excelize.CoordinatesToCellName(j+2, r)
				if err := f.SetCellValue(sheetEstablishments, cell, v); err != nil {
					return errors.Wrapf(err, "writing %s %s", row.Municipality, col)
				}
			}
		}
	}

	if _, err := f.NewSheet(sheetMetadata); err != nil {
		return errors.Wrap(err, "creating metadata sheet")
	}
	meta := [][2]interface{}{
		{"source", a.Metadata.Source},
		{"units", a.Metadata.Units},
		{"islandwide_aggregation", a.Metadata.IslandwideAggregation},
		{"data_years", strings.Join(a.Metadata.DataYears, ", ")},
		{"updated", a.Metadata.Updated},
		{"notes", a.Metadata.Notes},
	}
	for i, kv := range meta {
		row := strconv.Itoa(i + 1)
		if err := f.SetCellValue(sheetMetadata, "A"+row, kv[0]); err != nil {
			return errors.Wrap(err, "writing metadata")
		}
		if err := f.SetCellValue(sheetMetadata, "B"+row, kv[1]); err != nil {
			return errors.Wrap(err, "writing metadata")
		}
	}

	return errors.Wrap(f.SaveAs(path), "saving workbook")
}

func excelValue(row *model.WideRow, col string) interface{} {
	if v := row.Int(col); v != nil {
		return *v
	}
	if v := row.Float(col); v != nil {
		return *v
	}
	return nil
}

func (em *ExportManager) exportChart(a Artifact, lastYear int) model.ExportResult {
	path, err := em.Output.ArtifactPath(a.StartYear, lastYear, "png")
	if err != nil {
		return em.newResult("chart", path, 0, err)
	}
	err = renderTrendChart(path, a.Rows, a.Years)
	return em.newResult("chart", path, len(a.Years), err)
}

func (em *ExportManager) exportToDatabase(a Artifact) model.ExportResult {
	err := store.SaveEstablishments(em.RunID, a.Records)
	return em.newResult("database", "establishments", len(a.Records), err)
}
