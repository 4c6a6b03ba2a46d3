package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/dermnet/dataset"
	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"github.com/YuminosukeSato/dermnet/pkg/log"
	"github.com/YuminosukeSato/dermnet/training"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	chartWidth  = 8 * vg.Inch
	chartHeight = 5 * vg.Inch
	barColor    = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
)

// BarChart plots one bar per count in the given order.
func BarChart(title, yLabel string, counts []Count) (*plot.Plot, error) {
	if len(counts) == 0 {
		return nil, errors.NewValueError("BarChart", "nothing to plot for "+title)
	}
	values := make(plotter.Values, len(counts))
	names := make([]string, len(counts))
	for i, c := range counts {
		values[i] = float64(c.N)
		names[i] = c.Value
	}
	return barPlot(title, yLabel, values, names)
}

// AccuracyChart plots the holdout accuracy of every compared model.
func AccuracyChart(c *training.Comparison) (*plot.Plot, error) {
	values := make(plotter.Values, len(c.Ranked))
	names := make([]string, len(c.Ranked))
	for i, r := range c.Ranked {
		values[i] = r.TestAccuracy
		names[i] = r.Name
	}
	p, err := barPlot("Accuracy Comparison", "Accuracy", values, names)
	if err != nil {
		return nil, err
	}
	p.Y.Min, p.Y.Max = 0, 1
	return p, nil
}

func barPlot(title, yLabel string, values plotter.Values, names []string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, errors.Wrapf(err, "bar chart %s", title)
	}
	bars.Color = barColor
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(names...)
	return p, nil
}

// SavePlot renders p to path; the image format follows the extension.
func SavePlot(p *plot.Plot, path string) error {
	if err := p.Save(chartWidth, chartHeight, path); err != nil {
		return errors.Wrapf(err, "save chart %s", path)
	}
	log.Component("report").Debug("chart written", log.PathKey, path)
	return nil
}

// WriteDistributions charts the dx, sex and localization value counts of the
// metadata into dir as <column>.png and returns the written paths.
func WriteDistributions(dir string, records []dataset.Record) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create report dir %s", dir)
	}
	titles := map[string]string{
		ColumnDx:           "Cell Type",
		ColumnSex:          "Sex",
		ColumnLocalization: "Localization",
	}
	logger := log.Component("report")
	paths := make([]string, 0, len(DistributionColumns))
	for _, col := range DistributionColumns {
		counts, err := ValueCounts(records, col)
		if err != nil {
			return nil, err
		}
		logger.Info("value counts", log.ColumnKey, col, log.CountKey, len(counts), "values", pairs(counts))
		p, err := BarChart(titles[col], "Count", counts)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, col+".png")
		if err := SavePlot(p, path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteAccuracy charts c into path.
func WriteAccuracy(path string, c *training.Comparison) error {
	p, err := AccuracyChart(c)
	if err != nil {
		return err
	}
	return SavePlot(p, path)
}

func pairs(counts []Count) []string {
	out := make([]string, len(counts))
	for i, c := range counts {
		out[i] = fmt.Sprintf("%s=%d", c.Value, c.N)
	}
	return out
}
