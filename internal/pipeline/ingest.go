package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cbp-establishments/internal/model"
	"cbp-establishments/pkg/utils"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	puertoRicoFIPS   = "72"
	allIndustries    = "00"
	municipioSuffix  = " Municipio, Puerto Rico"
	defaultTimeout   = 60 * time.Second
	maxResponseBytes = 16 << 20
)

// Fetcher issues one CBP request per year.
type Fetcher struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewFetcher creates a fetcher with a bounded per-request timeout
func NewFetcher(baseURL, apiKey string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// IngestResult is the fold of all per-year fetches.
type IngestResult struct {
	Records         []model.YearlyRecord
	SuccessfulYears []int
	Outcomes        []model.YearOutcome
}

// Skipped returns the outcomes of years that were dropped.
func (r IngestResult) Skipped() []model.YearOutcome {
	var out []model.YearOutcome
	for _, o := range r.Outcomes {
		if o.Status == model.YearStatusSkipped {
			out = append(out, o)
		}
	}
	return out
}

// yearURL builds the CBP query for one year: county-level establishment
// counts for Puerto Rico, all industries.
func (f *Fetcher) yearURL(year int) string {
	q := url.Values{}
	q.Set("get", fieldName+","+fieldEstablishments)
	q.Set("for", "county:*")
	q.Set("in", "state:"+puertoRicoFIPS)
	q.Set(NAICSVariable(year), allIndustries)
	q.Set("key", f.apiKey)
	return f.baseURL + "/" + strconv.Itoa(year) + "/cbp?" + q.Encode()
}

// FetchYear fetches and normalizes a single year. Any error means the year
// should be skipped; no partial results are returned.
func (f *Fetcher) FetchYear(ctx context.Context, year int) ([]model.YearlyRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.yearURL(year), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to GET JSON")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Year: year, StatusCode: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read JSON body")
	}

	var data [][]interface{}
	if err := json.Unmarshal(bodyBytes, &data); err != nil {
		return nil, errors.Wrap(err, "failed to decode JSON")
	}
	return parseRows(year, data)
}

// parseRows turns a header row plus data rows into yearly records.
func parseRows(year int, data [][]interface{}) ([]model.YearlyRecord, error) {
	if len(data) == 0 {
		return nil, ErrEmptyResponse
	}
	header, rows := data[0], data[1:]
	idx, err := headerIndex(header)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	records := make([]model.YearlyRecord, 0, len(rows))
	for i, row := range rows {
		if err := validateRow(row, idx, i+1); err != nil {
			return nil, err
		}
		name := strings.ReplaceAll(row[idx[fieldName]].(string), municipioSuffix, "")
		if name == model.IslandwideName {
			continue
		}
		records = append(records, model.YearlyRecord{
			Year:           year,
			Municipality:   name,
			Establishments: utils.SafeInt(row[idx[fieldEstablishments]]),
		})
	}
	return records, nil
}

// IngestYears fetches every year sequentially, skipping years that fail.
func (f *Fetcher) IngestYears(ctx context.Context, years []int) (IngestResult, error) {
	var result IngestResult
	for i, year := range years {
		if err := ctx.Err(); err != nil {
			return result, errors.Wrap(err, "ingestion cancelled")
		}
		logger := log.WithField("year", year)
		logger.Infof("🌐 Fetching %d (%d/%d)", year, i+1, len(years))

		records, err := f.FetchYear(ctx, year)
		if err != nil {
			if ctx.Err() != nil {
				return result, errors.Wrap(ctx.Err(), "ingestion cancelled")
			}
			outcome := model.YearOutcome{Year: year, Status: model.YearStatusSkipped, Reason: err.Error()}
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				outcome.StatusCode = statusErr.StatusCode
				logger.Warnf("⚠️ Error %d for %d", statusErr.StatusCode, year)
			} else {
				logger.WithError(err).Warnf("❌ %d failed", year)
			}
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		result.Records = append(result.Records, records...)
		result.SuccessfulYears = append(result.SuccessfulYears, year)
		result.Outcomes = append(result.Outcomes, model.YearOutcome{
			Year:        year,
			Status:      model.YearStatusOK,
			RecordCount: len(records),
		})
	}
	return result, nil
}
