package banner

import (
	"context"
	"strings"
	"testing"

	"catalog-scraper/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestParseTitle(t *testing.T) {
	testCases := []struct {
		text    string
		name    string
		crn     string
		subj    string
		section string
	}{
		{
			text:    "Intro to CS - 12345 - CS 101 - 01",
			name:    "Intro to CS",
			crn:     "12345",
			subj:    "CS 101",
			section: "01",
		},
		{
			text:    "Topics - Rings - Modules - 54321 - MATH 420 - 02",
			name:    "Topics - Rings - Modules",
			crn:     "54321",
			subj:    "MATH 420",
			section: "02",
		},
	}

	for _, test := range testCases {
		name, crn, subj, section, err := parseTitle(test.text)
		require.NoError(t, err)
		require.Equal(t, test.name, name)
		require.Equal(t, test.crn, crn)
		require.Equal(t, test.subj, subj)
		require.Equal(t, test.section, section)
	}

	_, _, _, _, err := parseTitle("Too Few - Fields")
	require.Error(t, err)
}

func TestFormatDays(t *testing.T) {
	testCases := []struct {
		days     string
		expected []string
	}{
		{days: "MWF", expected: []string{"Monday", "Wednesday", "Friday"}},
		{days: "TR", expected: []string{"Tuesday", "Thursday"}},
		{days: "S", expected: []string{"Saturday"}},
		{days: "", expected: []string{"TBA"}},
		{days: "   ", expected: []string{"TBA"}},
		// only M/T/W/R/F/S are mapped, anything else passes through
		// verbatim instead of being dropped
		{days: "MX", expected: []string{"Monday", "X"}},
		{days: "U", expected: []string{"U"}},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, formatDays(test.days), "days=%q", test.days)
	}
}

func TestFormatTime(t *testing.T) {
	require.Equal(t, "10:00 AM - 11:15 AM", formatTime("10:00 am – 11:15 am"))
	require.Equal(t, "10:00 AM - 11:15 AM", formatTime("10:00 am - 11:15 am"))
	require.Equal(t, "TBA", formatTime("   "))
}

func TestFormatInstructors(t *testing.T) {
	require.Equal(t,
		[]string{"Jane Doe", "John Smith"},
		formatInstructors("Jane   Doe (P), John   Smith"),
	)
	require.Equal(t, []string{"TBA"}, formatInstructors("  "))
}

func TestPathAfterProd(t *testing.T) {
	require.Equal(t,
		"/bwckschd.p_disp_detail_sched?term_in=202590&crn_in=12345",
		pathAfterProd("/prod/bwckschd.p_disp_detail_sched?term_in=202590&crn_in=12345"),
	)
	require.Equal(t,
		"/bwckschd.p_disp_detail_sched?term_in=202590&crn_in=12345",
		pathAfterProd("/bprod/bwckschd.p_disp_detail_sched?term_in=202590&crn_in=12345"),
	)
}

const listingFixture = `<html><head><title>Class Schedule Listing</title></head><body>
<table class="datadisplaytable" summary="This layout table is used to present the sections found">
<tr>
<th class="ddtitle" scope="colgroup"><a href="/prod/bwckschd.p_disp_detail_sched?term_in=202590&amp;crn_in=12345">Intro to CS - 12345 - CS 101 - 01</a></th>
</tr>
<tr>
<td class="dddefault">
Associated Term: Fall 2025
<a href="/prod/bwckctlg.p_display_courses?term_in=202590&amp;subj_in=CS&amp;crse_in=101">View Catalog Entry</a>
3.000 Credits
Attributes: Humanities, Writing Intensive 
<table class="datadisplaytable" summary="This table lists the scheduled meeting times">
<tr>
<th class="ddheader">Type</th><th class="ddheader">Time</th><th class="ddheader">Days</th><th class="ddheader">Where</th><th class="ddheader">Date Range</th><th class="ddheader">Schedule Type</th><th class="ddheader">Instructors</th>
</tr>
<tr>
<td class="dddefault">Class</td><td class="dddefault">10:00 am - 11:15 am</td><td class="dddefault">MW</td><td class="dddefault">Science Hall 101</td><td class="dddefault">Aug 25, 2025 - Dec 12, 2025</td><td class="dddefault">Lecture</td><td class="dddefault">Jane   Doe (P)</td>
</tr>
<tr>
<td class="dddefault">Class</td><td class="dddefault">2:00 pm - 3:15 pm</td><td class="dddefault">F</td><td class="dddefault">Science Hall 102</td><td class="dddefault">Aug 25, 2025 - Dec 12, 2025</td><td class="dddefault">Lab</td><td class="dddefault">John Smith</td>
</tr>
</table>
</td>
</tr>
<tr>
<th class="ddtitle" scope="colgroup"><a href="/prod/bwckschd.p_disp_detail_sched?term_in=202590&amp;crn_in=67890">Independent Study - 67890 - CS 490 - 01</a></th>
</tr>
<tr>
<td class="dddefault">
Associated Term: Fall 2025
<a href="/prod/bwckctlg.p_display_courses?term_in=202590&amp;subj_in=CS&amp;crse_in=490">View Catalog Entry</a>
1.000 TO        3.000 Credits
<table class="datadisplaytable" summary="This table lists the scheduled meeting times">
</table>
</td>
</tr>
</table>
</body></html>`

var listingSubjects = map[string]string{"CS": "Computer Science"}

func TestParseListing(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/banner")
	defer cleanup()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingFixture))
	require.NoError(t, err)

	courses, targets := parseListing(context.Background(), doc, listingSubjects)
	require.Len(t, courses, 2)
	require.Len(t, targets.infoPaths, 2)
	require.Len(t, targets.descPaths, 2)

	first := courses[0]
	require.Equal(t, "12345", first.CRN)
	require.Equal(t, "01", first.Section)
	require.Equal(t, "CS", first.Abbreviation)
	require.Equal(t, "Computer Science", first.Subject)
	require.Equal(t, "101", first.Level)
	require.Equal(t, "Intro to CS", first.Name)
	require.Equal(t, "3.000", first.Credits)
	require.Equal(t, []string{"Humanities", "Writing Intensive"}, first.Attributes)
	require.Empty(t, first.Description, "description is filled by the detail fetch phase")

	require.Len(t, first.Properties, 2)
	require.Equal(t, "10:00 AM - 11:15 AM", first.Properties[0].Time)
	require.Equal(t, []string{"Monday", "Wednesday"}, first.Properties[0].Days)
	require.Equal(t, []string{"Jane Doe"}, first.Properties[0].Instructors)
	require.Equal(t, "Science Hall 102", first.Properties[1].Location)

	require.Equal(t,
		"/bwckschd.p_disp_detail_sched?term_in=202590&crn_in=12345",
		targets.infoPaths[0],
	)
	require.Equal(t,
		"/bwckctlg.p_display_courses?term_in=202590&subj_in=CS&crse_in=101",
		targets.descPaths[0],
	)

	second := courses[1]
	require.Equal(t, "67890", second.CRN)
	require.Equal(t, "1.000 - 3.000", second.Credits)
	require.Empty(t, second.Attributes)

	// no meeting rows reported yet, the placeholder still guarantees
	// at least one meeting entry
	require.Len(t, second.Properties, 1)
	require.Equal(t, MeetingProperty{
		Type:        "TBA",
		Time:        "TBA",
		Days:        []string{"TBA"},
		Location:    "TBA",
		Period:      "TBA",
		Nature:      "TBA",
		Instructors: []string{"TBA"},
	}, second.Properties[0])
}

func TestParseListingSkipsBadPairs(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/banner")
	defer cleanup()

	// the second pair's title row cannot be decomposed, only that
	// pair is dropped
	fixture := strings.Replace(
		listingFixture,
		"Independent Study - 67890 - CS 490 - 01",
		"Garbage Title Row",
		1,
	)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fixture))
	require.NoError(t, err)

	courses, targets := parseListing(context.Background(), doc, listingSubjects)
	require.Len(t, courses, 1)
	require.Equal(t, "12345", courses[0].CRN)
	require.Len(t, targets.infoPaths, 1)
	require.Len(t, targets.descPaths, 1)
}

func TestParseListingUnknownSubject(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/banner")
	defer cleanup()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingFixture))
	require.NoError(t, err)

	courses, _ := parseListing(context.Background(), doc, map[string]string{})
	// empty but non-nil, the dump serializes it as a list
	require.NotNil(t, courses)
	require.Empty(t, courses)
}
