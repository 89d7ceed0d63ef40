package charts

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kjstillabower/worldbank-dashboard/internal/dataset"
)

// worldMapNames maps ISO3 codes to the region names the echarts world map is
// keyed by, which follow Natural Earth conventions. World Bank display names
// differ for these economies ("Russian Federation" vs "Russia"); unlisted
// codes pass their World Bank name through and simply render no fill when the
// map does not know it.
var worldMapNames = map[string]string{
	"BHS": "Bahamas",
	"BIH": "Bosnia and Herz.",
	"BOL": "Bolivia",
	"BRN": "Brunei",
	"CAF": "Central African Rep.",
	"CIV": "Ivory Coast",
	"COD": "Dem. Rep. Congo",
	"COG": "Congo",
	"CZE": "Czech Rep.",
	"DOM": "Dominican Rep.",
	"EGY": "Egypt",
	"FSM": "Micronesia",
	"GBR": "United Kingdom",
	"GMB": "Gambia",
	"GNQ": "Eq. Guinea",
	"IRN": "Iran",
	"KGZ": "Kyrgyzstan",
	"KOR": "South Korea",
	"LAO": "Laos",
	"MDA": "Moldova",
	"MKD": "Macedonia",
	"PRK": "North Korea",
	"RUS": "Russia",
	"SLB": "Solomon Is.",
	"SSD": "S. Sudan",
	"STP": "Sao Tome and Principe",
	"SVK": "Slovakia",
	"SYR": "Syria",
	"TZA": "Tanzania",
	"USA": "United States",
	"VCT": "St. Vin. and Gren.",
	"VEN": "Venezuela",
	"VNM": "Vietnam",
	"YEM": "Yemen",
}

func worldMapName(code, fallback string) string {
	if name, ok := worldMapNames[code]; ok {
		return name
	}
	return fallback
}

// worldMap draws the choropleth: one filled region per reporting economy,
// shaded by indicator value on a continuous blue-to-violet scale.
func (r *Renderer) worldMap(ds *dataset.Dataset, req Request) (document, bool) {
	label := indicatorLabel(ds, req.Indicator)
	year, ok := chartYear(ds, req)
	if !ok {
		return r.placeholder(label+" by Country", "No data loaded"), false
	}
	values := ds.YearValues(req.Indicator, year)
	if len(values) == 0 {
		return r.placeholder(label+" by Country",
			fmt.Sprintf("No data for %s in %d", label, year)), false
	}

	low, high := values[0].Value, values[0].Value
	data := make([]opts.MapData, 0, len(values))
	for _, cv := range values {
		low = math.Min(low, cv.Value)
		high = math.Max(high, cv.Value)
		data = append(data, opts.MapData{Name: worldMapName(cv.Code, cv.Name), Value: cv.Value})
	}

	m := charts.NewMap()
	m.RegisterMapType("world")
	globals := baseOptions(
		fmt.Sprintf("%s by Country (%d)", label, year),
		fmt.Sprintf("%s economies reporting", humanize.Comma(int64(len(values)))),
	)
	globals = append(globals, charts.WithVisualMapOpts(opts.VisualMap{
		Calculable: opts.Bool(true),
		Min:        float32(low),
		Max:        float32(high),
		InRange:    &opts.VisualMapInRange{Color: []string{"#1e3a8a", colorAccent, colorAccentAlt}},
	}))
	m.SetGlobalOptions(globals...)
	m.AddSeries(label, data)
	return m, true
}
