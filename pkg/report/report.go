// Package report renders dataset and training charts as image files.
// The format follows the file extension (png, svg, pdf, jpg).
package report

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"mochi/pkg/data"
	"mochi/pkg/model"
	"mochi/pkg/synth"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("report: no data")

var (
	barColor  = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	histColor = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	bestColor = color.RGBA{R: 220, G: 20, B: 60, A: 255}
)

// ActivityCounts draws one bar per activity, in the given order.
func ActivityCounts(counts []data.ActivityCount, path string) error {
	if len(counts) == 0 {
		return ErrNoData
	}
	values := make(plotter.Values, len(counts))
	names := make([]string, len(counts))
	for i, c := range counts {
		values[i] = float64(c.Count)
		names[i] = c.Activity
	}

	p := plot.New()
	p.Title.Text = "Records per activity"
	p.Y.Label.Text = "Records"
	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return fmt.Errorf("report: activity bars: %w", err)
	}
	bars.Color = barColor
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(names...)
	rotateX(p)

	return save(p, 8*vg.Inch, 5*vg.Inch, path)
}

// HourHistogram draws the distribution of record times over 24 hourly bins,
// optionally restricted to one activity.
func HourHistogram(records []synth.Record, activity, path string) error {
	var values plotter.Values
	for _, r := range records {
		if activity == "" || r.Activity == activity {
			values = append(values, r.Time)
		}
	}
	if len(values) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = "Time of day"
	if activity != "" {
		p.Title.Text += ": " + activity
	}
	p.X.Label.Text = "Hour"
	p.Y.Label.Text = "Records"
	// pin the range so bins fall on whole hours
	values = append(values, 0, 24-1e-9)
	h, err := plotter.NewHist(values, 24)
	if err != nil {
		return fmt.Errorf("report: hour histogram: %w", err)
	}
	h.Bins[0].Weight--
	h.Bins[len(h.Bins)-1].Weight--
	h.FillColor = histColor
	p.Add(h)
	p.X.Min, p.X.Max = 0, 24

	return save(p, 6*vg.Inch, 4*vg.Inch, path)
}

// SearchScores draws the mean cross-validation score of the top n
// combinations (all when n <= 0), best first, with the winner highlighted.
func SearchScores(results []model.CVResult, n int, path string) error {
	if len(results) == 0 {
		return ErrNoData
	}
	sorted := append([]model.CVResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MeanScore > sorted[j].MeanScore })
	if n > 0 && n < len(sorted) {
		sorted = sorted[:n]
	}

	values := make(plotter.Values, len(sorted))
	names := make([]string, len(sorted))
	for i, r := range sorted {
		values[i] = r.MeanScore
		names[i] = r.Params.String()
	}

	p := plot.New()
	p.Title.Text = "Grid search (weighted F1)"
	p.Y.Label.Text = "Mean CV score"

	width := vg.Points(10)
	best, err := plotter.NewBarChart(values[:1], width)
	if err != nil {
		return fmt.Errorf("report: score bars: %w", err)
	}
	best.Color = bestColor
	best.LineStyle.Width = 0
	p.Add(best)
	if len(values) > 1 {
		// pad with a zero so the remaining bars keep their x positions
		rest, err := plotter.NewBarChart(append(plotter.Values{0}, values[1:]...), width)
		if err != nil {
			return fmt.Errorf("report: score bars: %w", err)
		}
		rest.Color = barColor
		rest.LineStyle.Width = 0
		p.Add(rest)
	}
	p.NominalX(names...)
	rotateX(p)
	p.Y.Min, p.Y.Max = 0, 1

	return save(p, vg.Length(max(6, len(values)/3))*vg.Inch, 6*vg.Inch, path)
}

func rotateX(p *plot.Plot) {
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
}

func save(p *plot.Plot, w, h vg.Length, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: %w", err)
		}
	}
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("report: save %s: %w", path, err)
	}
	return nil
}
