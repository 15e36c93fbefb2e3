package banner

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"catalog-scraper/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func TestScrape(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/banner")
	defer cleanup()

	var searchBodies []string
	server := newFlowServer(t, &searchBodies)
	mux := server.Config.Handler.(*http.ServeMux)
	mux.HandleFunc("/bwckctlg.p_display_courses", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, catalogEntryFixture)
	})
	mux.HandleFunc("/bwckschd.p_disp_detail_sched", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, detailFixture)
	})
	defer server.Close()

	client, err := NewClient(ClientOptions{
		Profile:  Profile{School: "Example College", BaseHost: "selfservice.example.edu"},
		Subjects: newTestStore(t),
		BaseUrl:  server.URL,
	})
	require.NoError(t, err)

	scraper := NewScraper(client, ScraperOptions{
		FetchDescriptions: true,
		FetchDetails:      true,
	})
	calendars := scraper.Scrape(context.Background(), []Calendar{
		{ID: "202590", Name: "Fall 2025"},
	})

	require.Len(t, calendars, 1)
	require.Len(t, calendars[0].Courses, 2)

	course := calendars[0].Courses[0]
	require.Equal(t, "12345", course.CRN)
	require.Equal(t, "An introduction to computation and problem solving.", course.Description)
	require.Equal(t, 30, course.Capacity)
	require.Equal(t, 28, course.Registered)
	require.Equal(t, 2, course.Remaining)
	require.Equal(t, 5, course.Waitlisted)
	require.Equal(t,
		[]string{"CS 100 Minimum Grade of D or (MATH 110 Minimum Grade of C)"},
		course.Prerequisites,
	)
	require.Len(t, course.Restrictions, 2)
}

func TestScrapeSkipsDetailPasses(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/banner")
	defer cleanup()

	var searchBodies []string
	detailRequests := 0
	server := newFlowServer(t, &searchBodies)
	mux := server.Config.Handler.(*http.ServeMux)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		detailRequests++
		http.NotFound(w, r)
	})
	defer server.Close()

	client, err := NewClient(ClientOptions{
		Profile:  Profile{School: "Example College", BaseHost: "selfservice.example.edu"},
		Subjects: newTestStore(t),
		BaseUrl:  server.URL,
	})
	require.NoError(t, err)

	scraper := NewScraper(client, ScraperOptions{})
	calendars := scraper.Scrape(context.Background(), []Calendar{
		{ID: "202590", Name: "Fall 2025"},
	})

	require.Len(t, calendars[0].Courses, 2)
	require.Empty(t, calendars[0].Courses[0].Description)
	require.Zero(t, calendars[0].Courses[0].Capacity)
	require.Zero(t, detailRequests)
}

func TestScrapeKeepsLaterCalendars(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/banner")
	defer cleanup()

	// the flow only answers for one term, the other calendar fails at
	// term selection and stays empty
	var searchBodies []string
	server := newFlowServer(t, &searchBodies)
	defer server.Close()

	store := newTestStore(t)
	client, err := NewClient(ClientOptions{
		Profile:  Profile{School: "Example College", BaseHost: "selfservice.example.edu"},
		Subjects: store,
		BaseUrl:  server.URL,
	})
	require.NoError(t, err)

	scraper := NewScraper(client, ScraperOptions{})
	calendars := scraper.Scrape(context.Background(), []Calendar{
		{ID: "190000", Name: "Ancient Term"},
		{ID: "202590", Name: "Fall 2025"},
	})

	require.Len(t, calendars, 2)
	require.Empty(t, calendars[0].Courses)
	require.Len(t, calendars[1].Courses, 2)

	// the failed calendar still dumps an empty course list, never null
	raw, err := json.Marshal(calendars[0])
	require.NoError(t, err)
	require.Contains(t, string(raw), `"Courses":[]`)
}

func TestScrapeMalformedSeatCell(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/banner")
	defer cleanup()

	var searchBodies []string
	server := newFlowServer(t, &searchBodies)
	mux := server.Config.Handler.(*http.ServeMux)
	mux.HandleFunc("/bwckctlg.p_display_courses", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, catalogEntryFixture)
	})
	mux.HandleFunc("/bwckschd.p_disp_detail_sched", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Replace(
			detailFixture, `<td class="dddefault">30</td>`, `<td class="dddefault">full</td>`, 1,
		))
	})
	defer server.Close()

	client, err := NewClient(ClientOptions{
		Profile:  Profile{School: "Example College", BaseHost: "selfservice.example.edu"},
		Subjects: newTestStore(t),
		BaseUrl:  server.URL,
	})
	require.NoError(t, err)

	scraper := NewScraper(client, ScraperOptions{
		FetchDescriptions: true,
		FetchDetails:      true,
	})
	calendars := scraper.Scrape(context.Background(), []Calendar{
		{ID: "202590", Name: "Fall 2025"},
	})

	// an unreadable seating table degrades the whole detail record to
	// its zero value, the description pass is unaffected
	course := calendars[0].Courses[0]
	require.Equal(t, "An introduction to computation and problem solving.", course.Description)
	require.Zero(t, course.Capacity)
	require.Zero(t, course.Registered)
	require.Zero(t, course.Remaining)
	require.Zero(t, course.Waitlisted)
	require.Nil(t, course.Prerequisites)
	require.Nil(t, course.Restrictions)
}
