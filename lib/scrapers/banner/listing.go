package banner

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"catalog-scraper/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

var (
	creditsRegex    = regexp.MustCompile(`(\d\.\d{3}[^\n]*) `)
	attributesRegex = regexp.MustCompile(`Attributes: (.*?) \n`)
)

// parseListing walks the course listing table. Rows alternate in
// pairs: a title row naming the course and a detail row carrying
// credits, attributes and the meeting-time sub-table. A pair that
// fails to parse is logged with its row context and skipped, it never
// aborts the rest of the listing.
func parseListing(ctx context.Context, doc *goquery.Document, subjects map[string]string) ([]Course, fetchTargets) {
	ctx, span := tracer.Start(ctx, "parseListing")
	defer span.End()

	// non-nil even when empty so the dump always carries a list
	courses := []Course{}
	var targets fetchTargets

	table := doc.Find("table.datadisplaytable").First()
	var rows []*goquery.Selection
	directRows(table).Each(func(_ int, row *goquery.Selection) {
		rows = append(rows, row)
	})

	for i := 0; i < len(rows); i++ {
		title := rows[i]
		th := title.Find("th").First()
		if th.Length() == 0 || !isTitleHeader(th) {
			continue
		}
		if i+1 >= len(rows) {
			break
		}
		detail := rows[i+1]
		i++

		course, infoPath, descPath, err := parseCoursePair(title, detail, subjects)
		if err != nil {
			span.RecordError(err)
			titleHtml, _ := goquery.OuterHtml(title)
			slog.ErrorContext(ctx, "failed to parse course row pair",
				"row", htmlutil.CollapseSpace(titleHtml),
				"err", err,
			)
			continue
		}

		courses = append(courses, course)
		targets.infoPaths = append(targets.infoPaths, infoPath)
		targets.descPaths = append(targets.descPaths, descPath)
	}

	span.SetAttributes(attribute.Int("courses", len(courses)))
	return courses, targets
}

func isTitleHeader(th *goquery.Selection) bool {
	classes := strings.Fields(th.AttrOr("class", ""))
	if len(classes) == 0 {
		return false
	}
	return classes[0] == "ddtitle" || classes[0] == "ddlabel"
}

// parseTitle decomposes "Name - CRN - SUBJ LVL - SEC". The name itself
// may legitimately contain " - ", so leading segments are merged until
// exactly four fields remain.
func parseTitle(text string) (name, crn, subjLevel, section string, err error) {
	parts := strings.Split(strings.TrimSpace(text), " - ")
	if len(parts) < 4 {
		return "", "", "", "", fmt.Errorf("title %q does not have 4 fields", text)
	}
	for len(parts) > 4 {
		parts[1] = parts[0] + " - " + parts[1]
		parts = parts[1:]
	}
	return parts[0], parts[1], parts[2], parts[3], nil
}

// paths on the listing page are relative to the host root, splitting
// after "prod" leaves the part relative to the base path. also works
// for "bprod" deployments.
func pathAfterProd(href string) string {
	segments := strings.Split(href, "prod")
	return segments[len(segments)-1]
}

func parseCoursePair(title, detail *goquery.Selection, subjects map[string]string) (Course, string, string, error) {
	name, crn, subjLevel, section, err := parseTitle(title.Text())
	if err != nil {
		return Course{}, "", "", err
	}

	subjParts := strings.Split(subjLevel, " ")
	if len(subjParts) < 2 {
		return Course{}, "", "", fmt.Errorf("cannot split subject and level from %q", subjLevel)
	}
	abbr, level := subjParts[0], subjParts[1]

	subject, ok := subjects[abbr]
	if !ok {
		return Course{}, "", "", fmt.Errorf("unknown subject abbreviation %q", abbr)
	}

	infoHref, ok := title.Find("a").First().Attr("href")
	if !ok {
		return Course{}, "", "", fmt.Errorf("title row has no detail link")
	}
	descHref, ok := detail.Find("a").First().Attr("href")
	if !ok {
		return Course{}, "", "", fmt.Errorf("detail row has no catalog link")
	}

	text := detail.Text()
	creditsMatch := creditsRegex.FindStringSubmatch(text)
	if creditsMatch == nil {
		return Course{}, "", "", fmt.Errorf("no credits token in detail row")
	}
	credits := strings.ReplaceAll(creditsMatch[1], " TO        ", " - ")

	attributes := []string{}
	if strings.Contains(text, "Attributes") {
		attrMatch := attributesRegex.FindStringSubmatch(text)
		if attrMatch != nil {
			attributes = strings.Split(attrMatch[1], ", ")
		}
	}

	course := Course{
		CRN:          crn,
		Section:      section,
		Subject:      subject,
		Abbreviation: abbr,
		Level:        level,
		Name:         name,
		Credits:      credits,
		Attributes:   attributes,
		Properties:   parseMeetings(detail),
	}
	return course, pathAfterProd(infoHref), pathAfterProd(descHref), nil
}

// parseMeetings reads the scheduled meeting times sub-table. When the
// site reports no meeting rows yet, exactly one placeholder entry with
// every field set to "TBA" is emitted instead.
func parseMeetings(detail *goquery.Selection) []MeetingProperty {
	var properties []MeetingProperty

	detail.Find("tr").Each(func(i int, meeting *goquery.Selection) {
		if i == 0 {
			// column headers
			return
		}
		cells := meeting.Find("td")
		if cells.Length() < 7 {
			return
		}
		properties = append(properties, MeetingProperty{
			Type:        cells.Eq(0).Text(),
			Time:        formatTime(cells.Eq(1).Text()),
			Days:        formatDays(cells.Eq(2).Text()),
			Location:    cells.Eq(3).Text(),
			Period:      cells.Eq(4).Text(),
			Nature:      cells.Eq(5).Text(),
			Instructors: formatInstructors(cells.Eq(6).Text()),
		})
	})

	if len(properties) == 0 {
		properties = append(properties, MeetingProperty{
			Type:        "TBA",
			Time:        "TBA",
			Days:        []string{"TBA"},
			Location:    "TBA",
			Period:      "TBA",
			Nature:      "TBA",
			Instructors: []string{"TBA"},
		})
	}
	return properties
}

// formatTime normalizes the unicode dash separator the site uses to a
// canonical " - ". Missing or blank time text maps to "TBA".
func formatTime(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return "TBA"
	}
	t = strings.ToUpper(t)
	t = strings.ReplaceAll(t, " – ", " - ")
	t = strings.ReplaceAll(t, " — ", " - ")
	return t
}

var dayNames = map[rune]string{
	'M': "Monday",
	'T': "Tuesday",
	'W': "Wednesday",
	'R': "Thursday",
	'F': "Friday",
	'S': "Saturday",
}

// formatDays expands the single-letter day codes into weekday names.
// An empty code string yields ["TBA"], codes outside the fixed table
// pass through verbatim rather than being dropped.
func formatDays(days string) []string {
	days = strings.TrimSpace(days)
	if days == "" {
		return []string{"TBA"}
	}

	var expanded []string
	for _, code := range days {
		if name, ok := dayNames[code]; ok {
			expanded = append(expanded, name)
			continue
		}
		expanded = append(expanded, string(code))
	}
	return expanded
}

// formatInstructors splits the instructor cell into names, dropping
// the "(P)" primary marker and collapsing the site's padding spaces.
// Unparseable text maps to ["TBA"].
func formatInstructors(instructors string) []string {
	instructors = strings.ReplaceAll(strings.TrimSpace(instructors), " (P)", "")
	instructors = strings.Join(strings.Fields(instructors), " ")
	if instructors == "" {
		return []string{"TBA"}
	}
	return strings.Split(instructors, ", ")
}
