package charts

import (
	"fmt"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kjstillabower/worldbank-dashboard/internal/dataset"
)

// trendTopN is how many economies the trend chart plots when the request
// names none.
const trendTopN = 10

// trend draws one line per economy across every year in the dataset. With no
// countries selected it falls back to the top performers at the chart year.
func (r *Renderer) trend(ds *dataset.Dataset, req Request) (document, bool) {
	label := indicatorLabel(ds, req.Indicator)
	years := ds.Years()
	if len(years) == 0 {
		return r.placeholder(label+" Over Time", "No data loaded"), false
	}

	codes := req.Countries
	subtitle := fmt.Sprintf("%d selected economies", len(codes))
	if len(codes) == 0 {
		year, _ := chartYear(ds, req)
		for _, cv := range ds.TopN(req.Indicator, year, trendTopN) {
			codes = append(codes, cv.Code)
		}
		subtitle = fmt.Sprintf("Top %d economies in %d", len(codes), year)
	}

	xAxis := make([]string, len(years))
	for i, y := range years {
		xAxis[i] = strconv.Itoa(y)
	}

	line := charts.NewLine()
	globals := append(baseOptions(label+" Over Time", subtitle),
		darkXAxis("Year", "category"),
		darkYAxis(label, "value"),
		legendBottom(),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	line.SetGlobalOptions(globals...)
	line.SetXAxis(xAxis)

	drawn := 0
	for _, code := range codes {
		series := ds.Series(req.Indicator, code)
		if len(series) == 0 {
			continue
		}
		byYear := make(map[int]float64, len(series))
		for _, pt := range series {
			byYear[pt.Year] = pt.Value
		}
		// Align to the shared year axis; absent years stay nil so echarts
		// draws a gap rather than interpolating across it.
		data := make([]opts.LineData, len(years))
		for i, y := range years {
			if v, present := byYear[y]; present {
				data[i] = opts.LineData{Value: v}
			}
		}
		color := seriesPalette[drawn%len(seriesPalette)]
		line.AddSeries(ds.CountryName(code), data,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true), ShowSymbol: opts.Bool(true)}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: color, Width: 2}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: color}),
		)
		drawn++
	}
	if drawn == 0 {
		return r.placeholder(label+" Over Time",
			"No data for the selected economies"), false
	}
	return line, true
}
