package models

// Observation is one indicator reading: a country, an indicator code, a year
// and a numeric value. Missing readings are represented by absence; there is
// no row for a (country, indicator, year) the World Bank has no value for.
type Observation struct {
	Country   string  `json:"country"`   // ISO3 code, e.g. "USA"
	Indicator string  `json:"indicator"` // World Bank indicator code, e.g. "NY.GDP.PCAP.CD"
	Year      int     `json:"year"`
	Value     float64 `json:"value"`
}

// Country is World Bank economy metadata. It is fetched best-effort at startup
// and never persisted; when the metadata fetch fails the dashboard falls back
// to stub entries whose Name is the ISO3 code.
type Country struct {
	Code        string `json:"code"` // ISO3
	Name        string `json:"name"`
	Region      string `json:"region,omitempty"`
	IncomeLevel string `json:"incomeLevel,omitempty"`
	Aggregate   bool   `json:"aggregate,omitempty"` // regional/income groupings, not real economies
}

// Indicator pairs a World Bank indicator code with the label shown in the UI.
type Indicator struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Indicator codes the charts give special roles to. The bubble chart and the
// income bands only activate when these are present in the dataset.
const (
	IndicatorGDPPerCapita   = "NY.GDP.PCAP.CD"
	IndicatorPopulation     = "SP.POP.TOTL"
	IndicatorLifeExpectancy = "SP.DYN.LE00.IN"
)

// DefaultIndicators is the indicator set tracked when config names none.
func DefaultIndicators() []Indicator {
	return []Indicator{
		{Code: IndicatorGDPPerCapita, Name: "GDP per Capita"},
		{Code: IndicatorPopulation, Name: "Population"},
		{Code: IndicatorLifeExpectancy, Name: "Life Expectancy"},
		{Code: "SE.XPD.TOTL.GD.ZS", Name: "Education Expenditure (% GDP)"},
		{Code: "SH.XPD.CHEX.GD.ZS", Name: "Health Expenditure (% GDP)"},
		{Code: "NY.GDP.MKTP.KD.ZG", Name: "GDP Growth Rate"},
	}
}
