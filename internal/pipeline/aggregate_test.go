package pipeline

import (
	"testing"

	"cbp-establishments/internal/model"
)

func TestIslandTotals(t *testing.T) {
	records := []model.YearlyRecord{
		{Year: 2020, Municipality: "Adjuntas", Establishments: intp(100)},
		{Year: 2020, Municipality: "Ponce", Establishments: intp(50)},
		{Year: 2010, Municipality: "Adjuntas", Establishments: intp(70)},
		{Year: 2010, Municipality: "Ponce", Establishments: nil},
		{Year: 2015, Municipality: "Adjuntas", Establishments: intp(90)},
		{Year: 2015, Municipality: "Ponce", Establishments: intp(10)},
		{Year: 2016, Municipality: "Ponce", Establishments: nil},
	}

	totals, err := IslandTotals(records)
	if err != nil {
		t.Fatal(err)
	}

	want := map[int]int{2010: 70, 2015: 100, 2020: 150}
	if len(totals) != len(want) {
		t.Fatalf("got %d totals, want %d: %+v", len(totals), len(want), totals)
	}
	prev := 0
	for _, tot := range totals {
		if tot.Municipality != model.IslandwideName {
			t.Errorf("municipality = %q", tot.Municipality)
		}
		if tot.Year <= prev {
			t.Errorf("totals not sorted by year: %d after %d", tot.Year, prev)
		}
		prev = tot.Year
		if tot.Establishments == nil || *tot.Establishments != want[tot.Year] {
			t.Errorf("%d total = %v, want %d", tot.Year, tot.Establishments, want[tot.Year])
		}
	}
}

func TestIslandTotalsAllNull(t *testing.T) {
	totals, err := IslandTotals([]model.YearlyRecord{{Year: 2020, Municipality: "Ponce"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(totals) != 0 {
		t.Fatalf("got %+v, want no totals", totals)
	}
}

func TestWithIslandTotals(t *testing.T) {
	records := []model.YearlyRecord{
		{Year: 2020, Municipality: "Ponce", Establishments: intp(5)},
		{Year: 2021, Municipality: "Ponce", Establishments: intp(6)},
	}
	out, err := WithIslandTotals(records)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 4 {
		t.Fatalf("got %d records, want 4", len(out))
	}
	if out[0].Municipality != "Ponce" || out[3].Municipality != model.IslandwideName {
		t.Fatalf("unexpected order: %+v", out)
	}
}
