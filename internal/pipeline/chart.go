package pipeline

import (
	"fmt"
	"image/color"
	"strconv"

	"cbp-establishments/internal/model"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var chartBlue = color.RGBA{R: 31, G: 119, B: 180, A: 255}

// islandSeries extracts the island-wide row's yearly values, skipping nulls.
func islandSeries(rows []*model.WideRow, years []int) plotter.XYs {
	var island *model.WideRow
	for _, r := range rows {
		if r.Municipality == model.IslandwideName {
			island = r
			break
		}
	}
	if island == nil {
		return nil
	}
	var pts plotter.XYs
	for i, y := range years {
		if v := island.Int(strconv.Itoa(y)); v != nil {
			pts = append(pts, plotter.XY{X: float64(i), Y: float64(*v)})
		}
	}
	return pts
}

// renderTrendChart draws the island-wide establishment count per year.
func renderTrendChart(path string, rows []*model.WideRow, years []int) error {
	pts := islandSeries(rows, years)
	if len(pts) == 0 {
		return errors.New("no island-wide values to chart")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Employer Establishments, Puerto Rico %d-%d", years[0], years[len(years)-1])
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Establishments"

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return errors.Wrap(err, "building line")
	}
	line.Color = chartBlue
	line.Width = vg.Points(2)
	points.Color = chartBlue

	p.Add(plotter.NewGrid(), line, points)

	labels := make([]string, len(years))
	for i, y := range years {
		labels[i] = strconv.Itoa(y)
	}
	p.NominalX(labels...)

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "saving chart %s", path)
	}
	return nil
}
