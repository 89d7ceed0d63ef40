package charts

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kjstillabower/worldbank-dashboard/internal/dataset"
	"github.com/kjstillabower/worldbank-dashboard/internal/models"
)

// bandColors assigns each income band a fixed legend color, warm to cool in
// ascending wealth order.
var bandColors = map[string]string{
	dataset.BandLowIncome:      "#ef4444",
	dataset.BandLowerMiddle:    "#f59e0b",
	dataset.BandUpperMiddle:    "#10b981",
	dataset.BandHighIncome:     colorAccent,
	dataset.BandVeryHighIncome: colorAccentAlt,
}

// bubble draws GDP per capita against life expectancy on a log x axis, one
// series per income band, bubbles sized by population. Its axes are fixed, so
// the request's indicator is ignored; only the year applies.
func (r *Renderer) bubble(ds *dataset.Dataset, req Request) (document, bool) {
	const title = "GDP per Capita vs Life Expectancy"
	if !ds.HasIndicator(models.IndicatorGDPPerCapita) || !ds.HasIndicator(models.IndicatorLifeExpectancy) {
		return r.placeholder(title, "Needs GDP per capita and life expectancy in the indicator set"), false
	}
	year, ok := chartYear(ds, req)
	if !ok {
		return r.placeholder(title, "No data loaded"), false
	}

	type point struct {
		name           string
		gdp, life, pop float64
	}
	byBand := make(map[string][]point, 5)
	var maxPop float64
	total := 0
	for _, cv := range ds.YearValues(models.IndicatorGDPPerCapita, year) {
		life, haveLife := ds.Value(cv.Code, models.IndicatorLifeExpectancy, year)
		if !haveLife {
			continue
		}
		band := dataset.IncomeBand(cv.Value)
		if band == "" {
			continue
		}
		pop, _ := ds.Value(cv.Code, models.IndicatorPopulation, year)
		if pop > maxPop {
			maxPop = pop
		}
		byBand[band] = append(byBand[band], point{name: cv.Name, gdp: cv.Value, life: life, pop: pop})
		total++
	}
	if total == 0 {
		return r.placeholder(title, fmt.Sprintf("No overlapping data in %d", year)), false
	}

	sc := charts.NewScatter()
	globals := append(baseOptions(
		fmt.Sprintf("%s (%d)", title, year),
		fmt.Sprintf("%s economies, bubble size by population", humanize.Comma(int64(total)))),
		darkXAxis("GDP per Capita (USD, log scale)", "log"),
		darkYAxis("Life Expectancy (years)", "value"),
		legendBottom(),
	)
	sc.SetGlobalOptions(globals...)

	for _, band := range dataset.IncomeBands() {
		pts := byBand[band]
		if len(pts) == 0 {
			continue
		}
		data := make([]opts.ScatterData, 0, len(pts))
		for _, p := range pts {
			data = append(data, opts.ScatterData{
				Name:       p.name,
				Value:      []interface{}{p.gdp, p.life},
				SymbolSize: bubbleSize(p.pop, maxPop),
			})
		}
		sc.AddSeries(band, data,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: bandColors[band], Opacity: 0.75}))
	}
	return sc, true
}

// bubbleSize scales symbol diameter by the square root of population share so
// bubble area tracks population. Economies with no population figure get a
// small fixed dot.
func bubbleSize(pop, maxPop float64) int {
	if pop <= 0 || maxPop <= 0 {
		return 8
	}
	return 6 + int(44*math.Sqrt(pop/maxPop))
}
