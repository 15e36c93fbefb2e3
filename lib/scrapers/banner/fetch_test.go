package banner

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"catalog-scraper/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestGatherPagesPreservesOrder(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/banner")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// jitter so responses come back out of request order
		time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
		fmt.Fprintf(w,
			`<html><head><title>Catalog Entries</title></head><body>`+
				`<table class="datadisplaytable"><tr><td class="ntdefault">`+
				`course %s`+
				`<br /><br />3.000 Credit hours</td></tr></table></body></html>`,
			r.URL.Query().Get("crse_in"),
		)
	}))
	defer server.Close()

	session, err := newSession(server.URL, server.URL)
	require.NoError(t, err)

	paths := make([]string, 40)
	for i := range paths {
		paths[i] = fmt.Sprintf("/bwckctlg.p_display_courses?term_in=202590&crse_in=%d", i)
	}

	descriptions := gatherPages(
		context.Background(), session, server.URL, paths, catalogEntryMarker,
		func(_ []byte, doc *goquery.Document) (string, error) {
			return parseDescription(doc)
		},
	)

	require.Len(t, descriptions, len(paths))
	for i, description := range descriptions {
		require.Equal(t, fmt.Sprintf("course %d", i), description)
	}
}

func TestGatherPagesAbsorbsFailures(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/banner")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("crse_in") {
		case "1":
			// a page without the expected marker
			fmt.Fprint(w, `<html><head><title>Sign In</title></head><body></body></html>`)
		default:
			fmt.Fprint(w,
				`<html><head><title>Catalog Entries</title></head><body>`+
					`<table class="datadisplaytable"><tr><td class="ntdefault">`+
					`A fine course.`+
					`<br /></td></tr></table></body></html>`,
			)
		}
	}))
	defer server.Close()

	session, err := newSession(server.URL, server.URL)
	require.NoError(t, err)

	paths := []string{
		"/bwckctlg.p_display_courses?crse_in=0",
		"/bwckctlg.p_display_courses?crse_in=1",
		"/bwckctlg.p_display_courses?crse_in=2",
	}
	descriptions := gatherPages(
		context.Background(), session, server.URL, paths, catalogEntryMarker,
		func(_ []byte, doc *goquery.Document) (string, error) {
			return parseDescription(doc)
		},
	)

	// the bad page degrades to the zero value in place
	require.Equal(t, []string{"A fine course.", "", "A fine course."}, descriptions)
}

func TestNewFetchSessionChunkTimeout(t *testing.T) {
	store := newTestStore(t)
	client, err := NewClient(ClientOptions{
		Profile: Profile{
			School:    "Example College",
			BaseHost:  "selfservice.example.edu",
			ChunkLoad: true,
		},
		Subjects: store,
	})
	require.NoError(t, err)

	// ceil(60 * 30 / 20) seconds
	session, err := client.newFetchSession(30)
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, session.GetClient().Timeout)
}
