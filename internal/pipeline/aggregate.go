package pipeline

import (
	"math"
	"sort"
	"strconv"

	"cbp-establishments/internal/model"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

const (
	colYear           = "year"
	colEstablishments = "establishments"
)

// IslandTotals sums establishment counts per year across all municipalities,
// ignoring null values, and returns one "Puerto Rico" record per year that
// had at least one non-null value.
func IslandTotals(records []model.YearlyRecord) ([]model.YearlyRecord, error) {
	rows := [][]string{{colYear, colEstablishments}}
	for _, r := range records {
		if r.Establishments == nil {
			continue
		}
		rows = append(rows, []string{strconv.Itoa(r.Year), strconv.Itoa(*r.Establishments)})
	}
	if len(rows) == 1 {
		return nil, nil
	}

	df := dataframe.LoadRecords(rows,
		dataframe.DetectTypes(false),
		dataframe.WithTypes(map[string]series.Type{
			colYear:           series.Int,
			colEstablishments: series.Int,
		}),
	)
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "loading records into dataframe")
	}

	groups := df.GroupBy(colYear)
	if groups.Err != nil {
		return nil, errors.Wrap(groups.Err, "grouping by year")
	}
	agg := groups.Aggregation(
		[]dataframe.AggregationType{dataframe.Aggregation_SUM},
		[]string{colEstablishments},
	)
	if agg.Err != nil {
		return nil, errors.Wrap(agg.Err, "summing establishments")
	}

	years, err := agg.Col(colYear).Int()
	if err != nil {
		return nil, errors.Wrap(err, "reading aggregated years")
	}
	sumCol := agg.Col(colEstablishments + "_" + dataframe.Aggregation_SUM.String())
	if sumCol.Err != nil {
		return nil, errors.Wrap(sumCol.Err, "reading aggregated sums")
	}
	sums := sumCol.Float()

	totals := make([]model.YearlyRecord, 0, len(years))
	for i, year := range years {
		total := int(math.Round(sums[i]))
		totals = append(totals, model.YearlyRecord{
			Year:           year,
			Municipality:   model.IslandwideName,
			Establishments: &total,
		})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Year < totals[j].Year })
	return totals, nil
}

// WithIslandTotals appends the island-wide rows to the municipality records.
func WithIslandTotals(records []model.YearlyRecord) ([]model.YearlyRecord, error) {
	totals, err := IslandTotals(records)
	if err != nil {
		return nil, err
	}
	out := make([]model.YearlyRecord, 0, len(records)+len(totals))
	out = append(out, records...)
	return append(out, totals...), nil
}
