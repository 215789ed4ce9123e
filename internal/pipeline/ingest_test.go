package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"cbp-establishments/internal/model"

	"github.com/pkg/errors"
)

type fakeYear struct {
	status int
	body   string
}

// newCensusServer answers /{year}/cbp from the given table; unknown years 404.
func newCensusServer(t *testing.T, years map[string]fakeYear) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		year := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), "/cbp")
		fy, ok := years[year]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if fy.status != 0 && fy.status != http.StatusOK {
			w.WriteHeader(fy.status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(fy.body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestYearURL(t *testing.T) {
	f := NewFetcher("https://api.census.gov/data/", "secret", 0)
	got := f.yearURL(2015)

	if !strings.HasPrefix(got, "https://api.census.gov/data/2015/cbp?") {
		t.Fatalf("unexpected URL %s", got)
	}
	for _, part := range []string{"get=NAME%2CESTAB", "for=county%3A%2A", "in=state%3A72", "NAICS2012=00", "key=secret"} {
		if !strings.Contains(got, part) {
			t.Errorf("URL %s missing %s", got, part)
		}
	}
}

func TestFetchYear(t *testing.T) {
	srv := newCensusServer(t, map[string]fakeYear{
		"2020": {body: `[["NAME","ESTAB","state","county"],
			["Adjuntas Municipio, Puerto Rico","120","72","001"],
			["Añasco Municipio, Puerto Rico","N","72","011"],
			["Puerto Rico","999","72","000"]]`},
		"2021": {status: http.StatusInternalServerError},
		"2022": {body: `not json`},
		"2023": {body: `[["NAME","ESTAB"]]`},
		"2024": {body: `[]`},
		"2025": {body: `[["NAME","COUNT"],["Adjuntas Municipio, Puerto Rico","1"]]`},
		"2026": {body: `[["NAME","ESTAB"],["Adjuntas Municipio, Puerto Rico"]]`},
	})
	f := NewFetcher(srv.URL, "k", time.Second)
	ctx := context.Background()

	records, err := f.FetchYear(ctx, 2020)
	if err != nil {
		t.Fatal(err)
	}
	want := []model.YearlyRecord{
		{Year: 2020, Municipality: "Adjuntas", Establishments: intp(120)},
		{Year: 2020, Municipality: "Añasco", Establishments: intp(0)},
	}
	if !reflect.DeepEqual(records, want) {
		t.Fatalf("records = %+v, want %+v", records, want)
	}

	var statusErr *StatusError
	if _, err := f.FetchYear(ctx, 2021); !errors.As(err, &statusErr) || statusErr.StatusCode != 500 {
		t.Errorf("2021: err = %v, want StatusError 500", err)
	}
	if _, err := f.FetchYear(ctx, 2022); err == nil {
		t.Error("2022: expected decode error")
	}

	sentinels := map[int]error{
		2023: ErrNoRows,
		2024: ErrEmptyResponse,
		2025: ErrMissingColumn,
		2026: ErrMalformedRow,
	}
	for year, want := range sentinels {
		if _, err := f.FetchYear(ctx, year); !errors.Is(err, want) {
			t.Errorf("%d: err = %v, want %v", year, err, want)
		}
	}
}

func TestIngestYearsSkipsFailedYears(t *testing.T) {
	srv := newCensusServer(t, map[string]fakeYear{
		"2018": {body: `[["NAME","ESTAB"],["Ponce Municipio, Puerto Rico","300"]]`},
		"2019": {status: http.StatusNoContent},
		"2020": {body: `[["NAME","ESTAB"],["Ponce Municipio, Puerto Rico","310"]]`},
	})
	f := NewFetcher(srv.URL, "k", time.Second)

	res, err := f.IngestYears(context.Background(), []int{2018, 2019, 2020, 2021})
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{2018, 2020}; !reflect.DeepEqual(res.SuccessfulYears, want) {
		t.Fatalf("successful years = %v, want %v", res.SuccessfulYears, want)
	}
	if len(res.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(res.Records))
	}
	if len(res.Outcomes) != 4 {
		t.Fatalf("got %d outcomes, want 4", len(res.Outcomes))
	}

	skipped := res.Skipped()
	if len(skipped) != 2 {
		t.Fatalf("got %d skipped, want 2", len(skipped))
	}
	if skipped[0].Year != 2019 || skipped[0].StatusCode != http.StatusNoContent {
		t.Errorf("skipped[0] = %+v", skipped[0])
	}
	if skipped[1].Year != 2021 || skipped[1].StatusCode != http.StatusNotFound {
		t.Errorf("skipped[1] = %+v", skipped[1])
	}
}

func TestIngestYearsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher("http://127.0.0.1:1", "k", time.Second)
	if _, err := f.IngestYears(ctx, []int{2020, 2021}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func intp(i int) *int { return &i }
