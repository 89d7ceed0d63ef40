package dataset

// Income bands bucket countries by GDP per capita for the bubble chart
// legend. Boundaries are right-closed: exactly 1000 is still Low Income.
const (
	BandLowIncome      = "Low Income"
	BandLowerMiddle    = "Lower Middle"
	BandUpperMiddle    = "Upper Middle"
	BandHighIncome     = "High Income"
	BandVeryHighIncome = "Very High Income"
)

var incomeBands = []string{
	BandLowIncome,
	BandLowerMiddle,
	BandUpperMiddle,
	BandHighIncome,
	BandVeryHighIncome,
}

// IncomeBands returns the band labels in ascending wealth order.
func IncomeBands() []string {
	return append([]string(nil), incomeBands...)
}

// IncomeBand classifies a GDP per capita value into a band. Values of zero
// or below fall outside every band and return the empty string.
func IncomeBand(gdpPerCapita float64) string {
	switch {
	case gdpPerCapita <= 0:
		return ""
	case gdpPerCapita <= 1000:
		return BandLowIncome
	case gdpPerCapita <= 5000:
		return BandLowerMiddle
	case gdpPerCapita <= 15000:
		return BandUpperMiddle
	case gdpPerCapita <= 50000:
		return BandHighIncome
	default:
		return BandVeryHighIncome
	}
}
