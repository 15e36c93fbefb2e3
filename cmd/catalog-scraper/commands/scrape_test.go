package commands

import (
	"testing"

	"catalog-scraper/lib/scrapers/banner"

	"github.com/stretchr/testify/require"
)

func TestMarshalCatalogs(t *testing.T) {
	one := []schoolCatalog{
		{
			School: "Example College",
			Calendars: []banner.Calendar{
				{ID: "202590", Name: "Fall 2025", Courses: []banner.Course{}},
			},
		},
	}

	// a single school dumps the bare calendar list the frontend reads
	contents, err := marshalCatalogs(one)
	require.NoError(t, err)
	require.Contains(t, string(contents), `"Calendar ID": "202590"`)
	require.NotContains(t, string(contents), `"School"`)

	two := append(one, schoolCatalog{
		School:    "Zeta University",
		Calendars: []banner.Calendar{},
	})
	contents, err = marshalCatalogs(two)
	require.NoError(t, err)
	require.Contains(t, string(contents), `"School": "Example College"`)
	require.Contains(t, string(contents), `"School": "Zeta University"`)
}
