package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"voxthresh/pkg/threshold"
)

var seriesColors = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
}

var markerColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}

// PlotFileName is the file a trace table is plotted to: <name>_<table>.png.
func PlotFileName(name, table string) string {
	return fmt.Sprintf("%s_%s.png", sanitize(name), table)
}

// PlotTrace draws every plottable table of tr against its threshold column
// and marks the chosen threshold. Tables without a threshold column or
// without finite values are skipped.
func PlotTrace(dir, name string, tr threshold.Trace, chosen float64) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create plot directory: %w", err)
	}

	var paths []string
	for _, t := range tr.Tables {
		p, ok, err := plotTable(t, name, chosen)
		if err != nil {
			return paths, fmt.Errorf("failed to plot %s: %w", t.Name, err)
		}
		if !ok {
			continue
		}

		path := filepath.Join(dir, PlotFileName(name, t.Name))
		if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
			return paths, fmt.Errorf("failed to save plot %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// plotColumns picks the series of a table: its score, or the relative drops
// of the first stability phase.
func plotColumns(t *threshold.Table) []string {
	var cols []string
	for _, c := range t.Columns {
		if c == "score" {
			return []string{c}
		}
		if strings.HasSuffix(c, "Drop") {
			cols = append(cols, c)
		}
	}
	return cols
}

func plotTable(t *threshold.Table, name string, chosen float64) (*plot.Plot, bool, error) {
	xs := t.Column("threshold")
	cols := plotColumns(t)
	if xs == nil || len(cols) == 0 {
		return nil, false, nil
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: %s", name, t.Name)
	p.X.Label.Text = "threshold"
	p.Y.Label.Text = strings.Join(cols, ", ")

	lo, hi := math.Inf(1), math.Inf(-1)
	drawn := 0
	for i, col := range cols {
		ys := t.Column(col)
		pts := make(plotter.XYs, 0, len(ys))
		for j, y := range ys {
			if math.IsNaN(y) || math.IsInf(y, 0) || math.IsNaN(xs[j]) {
				continue
			}
			pts = append(pts, plotter.XY{X: xs[j], Y: y})
			lo, hi = math.Min(lo, y), math.Max(hi, y)
		}
		if len(pts) == 0 {
			continue
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, false, err
		}
		line.Color = seriesColors[i%len(seriesColors)]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(col, line)
		drawn++
	}
	if drawn == 0 {
		return nil, false, nil
	}

	if !math.IsNaN(chosen) {
		if lo == hi {
			lo, hi = lo-1, hi+1
		}
		marker, err := plotter.NewLine(plotter.XYs{{X: chosen, Y: lo}, {X: chosen, Y: hi}})
		if err != nil {
			return nil, false, err
		}
		marker.Color = markerColor
		marker.Width = vg.Points(1)
		marker.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(marker)
		p.Legend.Add(fmt.Sprintf("threshold %g", chosen), marker)
	}

	p.Add(plotter.NewGrid())
	return p, true, nil
}
