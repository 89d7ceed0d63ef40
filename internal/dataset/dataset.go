// Package dataset holds the immutable in-memory observation table that
// charts and data APIs query. A refresh builds a whole new Dataset; existing
// readers keep the one they hold.
package dataset

import (
	"sort"

	"github.com/kjstillabower/worldbank-dashboard/internal/models"
)

// Point is one year of a country series.
type Point struct {
	Year  int
	Value float64
}

// CountryValue is one country's value for an indicator-year, enriched with
// display metadata.
type CountryValue struct {
	Code   string
	Name   string
	Region string
	Value  float64
}

// RegionDistribution collects one region's country values for an
// indicator-year, sorted ascending.
type RegionDistribution struct {
	Region string
	Values []float64
}

// Filter selects observations for the raw data API. Zero fields mean
// unbounded; Countries empty means all countries and aggregates.
type Filter struct {
	Indicator string
	Countries []string
	FromYear  int
	ToYear    int
}

type Dataset struct {
	observations []models.Observation
	countries    map[string]models.Country
	indicators   []models.Indicator
	names        map[string]string

	// values indexes indicator -> country -> year.
	values map[string]map[string]map[int]float64

	// countryView is false when aggregate filtering would discard every row,
	// in which case the charts fall back to the unfiltered table.
	countryView bool
	countryLen  int

	years []int
}

// New builds a Dataset from observations, country metadata and the
// configured indicator set. All inputs are copied or re-indexed; callers may
// reuse their slices afterwards.
func New(obs []models.Observation, countries []models.Country, indicators []models.Indicator) *Dataset {
	d := &Dataset{
		observations: append([]models.Observation(nil), obs...),
		countries:    make(map[string]models.Country, len(countries)),
		indicators:   append([]models.Indicator(nil), indicators...),
		names:        make(map[string]string, len(indicators)),
		values:       make(map[string]map[string]map[int]float64),
	}

	for _, c := range countries {
		d.countries[c.Code] = c
	}
	for _, ind := range indicators {
		d.names[ind.Code] = ind.Name
	}

	yearSet := make(map[int]bool)
	for _, o := range d.observations {
		byCountry := d.values[o.Indicator]
		if byCountry == nil {
			byCountry = make(map[string]map[int]float64)
			d.values[o.Indicator] = byCountry
		}
		byYear := byCountry[o.Country]
		if byYear == nil {
			byYear = make(map[int]float64)
			byCountry[o.Country] = byYear
		}
		byYear[o.Year] = o.Value

		if !d.isAggregate(o.Country) {
			d.countryLen++
			yearSet[o.Year] = true
		}
	}

	d.countryView = d.countryLen > 0
	if !d.countryView {
		// Metadata flagged everything as aggregate (or matched nothing).
		// Serve the unfiltered table rather than an empty dashboard.
		d.countryLen = len(d.observations)
		for _, o := range d.observations {
			yearSet[o.Year] = true
		}
	}

	d.years = make([]int, 0, len(yearSet))
	for y := range yearSet {
		d.years = append(d.years, y)
	}
	sort.Ints(d.years)

	return d
}

// Len reports the number of country-level observations the charts serve.
func (d *Dataset) Len() int {
	return d.countryLen
}

// Years returns the distinct years present, ascending.
func (d *Dataset) Years() []int {
	return append([]int(nil), d.years...)
}

// LatestYear returns the most recent year with data. ok is false for an
// empty dataset.
func (d *Dataset) LatestYear() (int, bool) {
	if len(d.years) == 0 {
		return 0, false
	}
	return d.years[len(d.years)-1], true
}

// FirstYear returns the earliest year with data. ok is false for an empty
// dataset.
func (d *Dataset) FirstYear() (int, bool) {
	if len(d.years) == 0 {
		return 0, false
	}
	return d.years[0], true
}

// Indicators returns the configured indicator set in display order.
func (d *Dataset) Indicators() []models.Indicator {
	return append([]models.Indicator(nil), d.indicators...)
}

// IndicatorName resolves an indicator code to its display name.
func (d *Dataset) IndicatorName(code string) (string, bool) {
	name, ok := d.names[code]
	return name, ok
}

// HasIndicator reports whether code is part of the configured indicator set.
func (d *Dataset) HasIndicator(code string) bool {
	_, ok := d.names[code]
	return ok
}

// Countries returns metadata for every country that appears in the served
// table, sorted by display name. Aggregates are excluded.
func (d *Dataset) Countries() []models.Country {
	seen := make(map[string]bool)
	var out []models.Country
	for _, byCountry := range d.values {
		for code := range byCountry {
			if seen[code] || d.skip(code) {
				continue
			}
			seen[code] = true
			out = append(out, d.countryMeta(code))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CountryName resolves a country code to its display name, falling back to
// the code itself when metadata is missing.
func (d *Dataset) CountryName(code string) string {
	if c, ok := d.countries[code]; ok && c.Name != "" {
		return c.Name
	}
	return code
}

// HasCountry reports whether code appears in the served table.
func (d *Dataset) HasCountry(code string) bool {
	for _, byCountry := range d.values {
		if _, ok := byCountry[code]; ok && !d.skip(code) {
			return true
		}
	}
	return false
}

// Value returns one observation value.
func (d *Dataset) Value(country, indicator string, year int) (float64, bool) {
	byCountry, ok := d.values[indicator]
	if !ok {
		return 0, false
	}
	byYear, ok := byCountry[country]
	if !ok {
		return 0, false
	}
	v, ok := byYear[year]
	return v, ok
}

// Series returns one country's values for an indicator across all years,
// ascending. Missing years are absent, not zero.
func (d *Dataset) Series(indicator, country string) []Point {
	byCountry, ok := d.values[indicator]
	if !ok {
		return nil
	}
	byYear, ok := byCountry[country]
	if !ok {
		return nil
	}
	points := make([]Point, 0, len(byYear))
	for y, v := range byYear {
		points = append(points, Point{Year: y, Value: v})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Year < points[j].Year })
	return points
}

// YearValues returns every country's value for an indicator-year, sorted by
// country code. Aggregates are excluded.
func (d *Dataset) YearValues(indicator string, year int) []CountryValue {
	byCountry, ok := d.values[indicator]
	if !ok {
		return nil
	}
	var out []CountryValue
	for code, byYear := range byCountry {
		if d.skip(code) {
			continue
		}
		v, ok := byYear[year]
		if !ok {
			continue
		}
		meta := d.countryMeta(code)
		out = append(out, CountryValue{Code: code, Name: meta.Name, Region: meta.Region, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// TopN returns the n highest-valued countries for an indicator-year,
// descending. Ties break on country code for stable output.
func (d *Dataset) TopN(indicator string, year, n int) []CountryValue {
	vals := d.YearValues(indicator, year)
	sort.Slice(vals, func(i, j int) bool {
		if vals[i].Value != vals[j].Value {
			return vals[i].Value > vals[j].Value
		}
		return vals[i].Code < vals[j].Code
	})
	if n > 0 && len(vals) > n {
		vals = vals[:n]
	}
	return vals
}

// RegionDistributions groups an indicator-year's country values by region,
// regions sorted by name, values ascending. Countries without region
// metadata are omitted.
func (d *Dataset) RegionDistributions(indicator string, year int) []RegionDistribution {
	byRegion := make(map[string][]float64)
	for _, cv := range d.YearValues(indicator, year) {
		if cv.Region == "" {
			continue
		}
		byRegion[cv.Region] = append(byRegion[cv.Region], cv.Value)
	}

	out := make([]RegionDistribution, 0, len(byRegion))
	for region, values := range byRegion {
		sort.Float64s(values)
		out = append(out, RegionDistribution{Region: region, Values: values})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out
}

// Query returns observations matching the filter, sorted by country then
// year. Unlike the chart accessors it spans every stored row, so aggregate
// series (WLD, EUU) are reachable by asking for their codes.
func (d *Dataset) Query(f Filter) []models.Observation {
	wanted := make(map[string]bool, len(f.Countries))
	for _, c := range f.Countries {
		wanted[c] = true
	}

	out := []models.Observation{}
	for _, o := range d.observations {
		if f.Indicator != "" && o.Indicator != f.Indicator {
			continue
		}
		if len(wanted) > 0 && !wanted[o.Country] {
			continue
		}
		if f.FromYear > 0 && o.Year < f.FromYear {
			continue
		}
		if f.ToYear > 0 && o.Year > f.ToYear {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Country != out[j].Country {
			return out[i].Country < out[j].Country
		}
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Indicator < out[j].Indicator
	})
	return out
}

func (d *Dataset) isAggregate(code string) bool {
	c, ok := d.countries[code]
	return ok && c.Aggregate
}

// skip reports whether a country code is hidden from the charts.
func (d *Dataset) skip(code string) bool {
	return d.countryView && d.isAggregate(code)
}

func (d *Dataset) countryMeta(code string) models.Country {
	if c, ok := d.countries[code]; ok {
		if c.Name == "" {
			c.Name = code
		}
		return c
	}
	return models.Country{Code: code, Name: code}
}
