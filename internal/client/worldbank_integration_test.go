//go:build integration
// +build integration

package client

import (
	"context"
	"os"
	"testing"
	"time"
)

const liveBaseURL = "https://api.worldbank.org/v2"

func TestRestClient_FetchIndicator_Integration(t *testing.T) {
	if os.Getenv("WORLDBANK_INTEGRATION") == "" {
		t.Skip("WORLDBANK_INTEGRATION not set, skipping integration test")
	}

	c := NewRestClient(liveBaseURL, 15*time.Second)
	ctx := context.Background()

	obs, err := c.FetchIndicator(ctx, "SP.POP.TOTL", 2020, 2021)
	if err != nil {
		t.Fatalf("FetchIndicator() error = %v", err)
	}
	if len(obs) < 200 {
		t.Errorf("got %d observations, expected at least 200 country-years", len(obs))
	}

	foundUSA := false
	for _, o := range obs {
		if o.Country == "USA" && o.Year == 2020 {
			foundUSA = true
			if o.Value < 300e6 {
				t.Errorf("USA 2020 population = %f, expected > 300M", o.Value)
			}
		}
	}
	if !foundUSA {
		t.Error("no USA 2020 observation in response")
	}
}

func TestRestClient_FetchCountries_Integration(t *testing.T) {
	if os.Getenv("WORLDBANK_INTEGRATION") == "" {
		t.Skip("WORLDBANK_INTEGRATION not set, skipping integration test")
	}

	c := NewRestClient(liveBaseURL, 15*time.Second)
	countries, err := c.FetchCountries(context.Background())
	if err != nil {
		t.Fatalf("FetchCountries() error = %v", err)
	}
	if len(countries) < 250 {
		t.Errorf("got %d entries, expected at least 250 countries and aggregates", len(countries))
	}

	byCode := make(map[string]int)
	for i, c := range countries {
		byCode[c.Code] = i
	}
	if i, ok := byCode["USA"]; !ok {
		t.Error("USA missing from countries")
	} else if countries[i].Aggregate {
		t.Error("USA flagged as aggregate")
	}
	if i, ok := byCode["WLD"]; !ok {
		t.Error("WLD missing from countries")
	} else if !countries[i].Aggregate {
		t.Error("World not flagged as aggregate")
	}
}
