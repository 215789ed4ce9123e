package pipeline

import (
	"reflect"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestNAICSVariable(t *testing.T) {
	tests := []struct {
		year int
		want string
	}{
		{2002, "NAICS2002"},
		{2006, "NAICS2002"},
		{2007, "NAICS2007"},
		{2011, "NAICS2007"},
		{2012, "NAICS2012"},
		{2016, "NAICS2012"},
		{2017, "NAICS2017"},
		{2023, "NAICS2017"},
	}
	for _, tt := range tests {
		if got := NAICSVariable(tt.year); got != tt.want {
			t.Errorf("NAICSVariable(%d) = %s, want %s", tt.year, got, tt.want)
		}
	}
}

func TestYearRange(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	got, err := YearRange(2019, 2, now)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{2019, 2020, 2021, 2022, 2023}; !reflect.DeepEqual(got, want) {
		t.Fatalf("YearRange = %v, want %v", got, want)
	}

	for _, start := range []int{2023, 2024} {
		if _, err := YearRange(start, 2, now); !errors.Is(err, ErrInsufficientYears) {
			t.Errorf("start %d: err = %v, want ErrInsufficientYears", start, err)
		}
	}
}
