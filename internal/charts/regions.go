package charts

import (
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/montanaflynn/stats"

	"github.com/kjstillabower/worldbank-dashboard/internal/dataset"
)

// regions draws one box per World Bank region summarizing how the indicator
// distributes across that region's economies. Needs country metadata; without
// it every region is blank and the placeholder shows instead.
func (r *Renderer) regions(ds *dataset.Dataset, req Request) (document, bool) {
	label := indicatorLabel(ds, req.Indicator)
	year, ok := chartYear(ds, req)
	if !ok {
		return r.placeholder(label+" by Region", "No data loaded"), false
	}
	dists := ds.RegionDistributions(req.Indicator, year)

	names := make([]string, 0, len(dists))
	data := make([]opts.BoxPlotData, 0, len(dists))
	for _, d := range dists {
		five, haveBox := fiveNumber(d.Values)
		if !haveBox {
			continue
		}
		names = append(names, d.Region)
		data = append(data, opts.BoxPlotData{Value: five})
	}
	if len(names) == 0 {
		return r.placeholder(label+" by Region",
			"Region metadata unavailable for this selection"), false
	}

	bp := charts.NewBoxPlot()
	globals := append(baseOptions(
		fmt.Sprintf("%s by Region (%d)", label, year),
		fmt.Sprintf("%d regions reporting", len(names))),
		darkXAxis("", "category"),
		darkYAxis(label, "value"),
		charts.WithGridOpts(opts.Grid{Left: "3%", Right: "4%", ContainLabel: opts.Bool(true)}),
	)
	bp.SetGlobalOptions(globals...)
	bp.SetXAxis(names)
	bp.AddSeries(label, data,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorAccent, BorderColor: colorAccentAlt}))
	return bp, true
}

// fiveNumber computes the box plot summary [min, Q1, median, Q3, max] from
// ascending values. Fewer than four observations collapse the quartiles onto
// the extremes.
func fiveNumber(sorted []float64) ([]float64, bool) {
	n := len(sorted)
	if n == 0 {
		return nil, false
	}
	lo, hi := sorted[0], sorted[n-1]
	if n < 4 {
		med := sorted[n/2]
		if n%2 == 0 {
			med = (sorted[n/2-1] + sorted[n/2]) / 2
		}
		return []float64{lo, lo, med, hi, hi}, true
	}
	q, err := stats.Quartile(stats.Float64Data(sorted))
	if err != nil {
		return nil, false
	}
	return []float64{lo, q.Q1, q.Q2, q.Q3, hi}, true
}
