package charts

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kjstillabower/worldbank-dashboard/internal/dataset"
)

const topCountriesN = 20

// topCountries draws a horizontal bar ranking of the top economies for the
// indicator-year. Bars are loaded in ascending order: the axis reversal puts
// the last category at the top, so the leader renders first.
func (r *Renderer) topCountries(ds *dataset.Dataset, req Request) (document, bool) {
	label := indicatorLabel(ds, req.Indicator)
	year, ok := chartYear(ds, req)
	if !ok {
		return r.placeholder("Top Countries: "+label, "No data loaded"), false
	}
	values := ds.TopN(req.Indicator, year, topCountriesN)
	if len(values) == 0 {
		return r.placeholder("Top Countries: "+label,
			fmt.Sprintf("No data for %s in %d", label, year)), false
	}

	names := make([]string, len(values))
	data := make([]opts.BarData, len(values))
	for i, cv := range values {
		j := len(values) - 1 - i
		names[j] = cv.Name
		data[j] = opts.BarData{Value: cv.Value}
	}

	bar := charts.NewBar()
	globals := append(baseOptions(
		fmt.Sprintf("Top %d Countries: %s (%d)", len(values), label, year),
		fmt.Sprintf("%s leads at %s", values[0].Name, humanize.CommafWithDigits(values[0].Value, 1))),
		darkXAxis("", ""),
		darkYAxis("", ""),
		charts.WithGridOpts(opts.Grid{Left: "3%", Right: "8%", ContainLabel: opts.Bool(true)}),
	)
	bar.SetGlobalOptions(globals...)
	bar.SetXAxis(names)
	bar.AddSeries(label, data,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorAccent}))
	bar.XYReversal()
	return bar, true
}
