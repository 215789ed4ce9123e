package pipeline

import (
	"fmt"
	"sort"
	"strconv"

	"cbp-establishments/internal/model"
	"cbp-establishments/pkg/utils"

	"github.com/pkg/errors"
)

// Pivot turns long-form records into one wide row per municipality with a
// column per year (keyed by the year string). Null records are dropped first,
// so a municipality with no values at all has no row. Missing years are null.
func Pivot(records []model.YearlyRecord, years []int) ([]*model.WideRow, error) {
	type key struct {
		municipality string
		year         int
	}
	values := make(map[key]int)
	municipalities := make(map[string]bool)

	for _, r := range records {
		if r.Establishments == nil {
			continue
		}
		k := key{r.Municipality, r.Year}
		if _, dup := values[k]; dup {
			return nil, errors.Wrapf(ErrDuplicateRecord, "%s %d", r.Municipality, r.Year)
		}
		values[k] = *r.Establishments
		municipalities[r.Municipality] = true
	}

	names := make([]string, 0, len(municipalities))
	for m := range municipalities {
		names = append(names, m)
	}
	sort.Strings(names)

	rows := make([]*model.WideRow, 0, len(names))
	for _, name := range names {
		row := model.NewWideRow(name)
		for _, y := range years {
			if v, ok := values[key{name, y}]; ok {
				row.Set(strconv.Itoa(y), utils.IntPtr(v))
			} else {
				row.Set(strconv.Itoa(y), (*int)(nil))
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ChangeWindow holds the first, second-to-last and last years with data.
type ChangeWindow struct {
	First, Prev, Last int
}

func NewChangeWindow(years []int) (ChangeWindow, error) {
	if len(years) < 2 {
		return ChangeWindow{}, errors.Wrapf(ErrInsufficientData, "got %d year(s)", len(years))
	}
	return ChangeWindow{
		First: years[0],
		Prev:  years[len(years)-2],
		Last:  years[len(years)-1],
	}, nil
}

func (w ChangeWindow) ChangeColumn() string {
	return fmt.Sprintf("Change_%d_%d", w.Prev, w.Last)
}

func (w ChangeWindow) PctChangeColumn() string {
	return fmt.Sprintf("Pct_Change_%d_%d", w.Prev, w.Last)
}

func (w ChangeWindow) CumChangeColumn() string {
	return fmt.Sprintf("Cum_Change_%d_%d", w.First, w.Last)
}

func (w ChangeWindow) CumPctChangeColumn() string {
	return fmt.Sprintf("Cum_Pct_Change_%d_%d", w.First, w.Last)
}

// AddChangeColumns appends the period and cumulative change columns.
// A null operand or a zero base yields null.
func AddChangeColumns(rows []*model.WideRow, w ChangeWindow) {
	first, prev, last := strconv.Itoa(w.First), strconv.Itoa(w.Prev), strconv.Itoa(w.Last)
	for _, row := range rows {
		change := difference(row.Int(last), row.Int(prev))
		cumChange := difference(row.Int(last), row.Int(first))

		row.Set(w.ChangeColumn(), change)
		row.Set(w.PctChangeColumn(), percentOf(change, row.Int(prev)))
		row.Set(w.CumChangeColumn(), cumChange)
		row.Set(w.CumPctChangeColumn(), percentOf(cumChange, row.Int(first)))
	}
}

func difference(a, b *int) *float64 {
	if a == nil || b == nil {
		return nil
	}
	return utils.FloatPtr(float64(*a - *b))
}

func percentOf(change *float64, base *int) *float64 {
	if change == nil || base == nil || *base == 0 {
		return nil
	}
	return utils.FloatPtr(*change / float64(*base) * 100)
}

// AddIncomeParityColumns adds null placeholders so the artifact has the same
// shape as the municipal median-income dataset it is displayed alongside.
// Nothing is computed here.
func AddIncomeParityColumns(rows []*model.WideRow, years []int, w ChangeWindow) {
	cols := make([]string, 0, len(years)+4)
	for _, y := range years {
		cols = append(cols, fmt.Sprintf("RealIncome_%d", y))
	}
	cols = append(cols,
		"Real_"+w.ChangeColumn(),
		"Real_"+w.PctChangeColumn(),
		"Real_"+w.CumChangeColumn(),
		"Real_"+w.CumPctChangeColumn(),
	)
	for _, row := range rows {
		for _, c := range cols {
			row.Set(c, nil)
		}
	}
}
