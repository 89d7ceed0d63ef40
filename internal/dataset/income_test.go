package dataset

import "testing"

func TestIncomeBand(t *testing.T) {
	tests := []struct {
		name string
		gdp  float64
		want string
	}{
		{"negative", -100, ""},
		{"zero", 0, ""},
		{"low", 500, BandLowIncome},
		{"low upper boundary", 1000, BandLowIncome},
		{"lower middle", 1000.01, BandLowerMiddle},
		{"lower middle boundary", 5000, BandLowerMiddle},
		{"upper middle", 12617.5, BandUpperMiddle},
		{"upper middle boundary", 15000, BandUpperMiddle},
		{"high", 30000, BandHighIncome},
		{"high boundary", 50000, BandHighIncome},
		{"very high", 70219.5, BandVeryHighIncome},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IncomeBand(tc.gdp); got != tc.want {
				t.Errorf("IncomeBand(%f) = %q, want %q", tc.gdp, got, tc.want)
			}
		})
	}
}

func TestIncomeBands_Order(t *testing.T) {
	bands := IncomeBands()
	if len(bands) != 5 {
		t.Fatalf("got %d bands, want 5", len(bands))
	}
	if bands[0] != BandLowIncome || bands[4] != BandVeryHighIncome {
		t.Errorf("bands = %v, want ascending wealth order", bands)
	}
}
