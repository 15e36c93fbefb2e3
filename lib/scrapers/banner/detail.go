package banner

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"catalog-scraper/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// FieldKind tags the recognized field labels of a detail information
// page. Labels outside the vocabulary classify as FieldUnknown, a
// signal for extending the vocabulary, never an error.
type FieldKind int

const (
	FieldUnknown FieldKind = iota
	FieldPrerequisites
	FieldCorequisites
	FieldMutualExclusions
	FieldCrossListCourses
	FieldRestrictions
	// layout noise around the seating table, skipped outright
	fieldNoise
)

var fieldLabels = map[string]FieldKind{
	"Prerequisites:":      FieldPrerequisites,
	"Corequisites:":       FieldCorequisites,
	"Mutual Exclusions:":  FieldMutualExclusions,
	"Mutual Exclusion:":   FieldMutualExclusions,
	"Cross List Courses:": FieldCrossListCourses,
	"Restrictions:":       FieldRestrictions,

	"Search":           fieldNoise,
	"Associated Term:": fieldNoise,
	"Capacity":         fieldNoise,
	"Actual":           fieldNoise,
	"Remaining":        fieldNoise,
	"Seats":            fieldNoise,
	"Waitlist Seats":   fieldNoise,
	"Cross List Seats": fieldNoise,
}

func classifyLabel(label string) FieldKind {
	kind, ok := fieldLabels[label]
	if !ok {
		return FieldUnknown
	}
	return kind
}

var (
	anchorRegex = regexp.MustCompile(`<a href="([^"]*)">(.*?)</a>`)
	labelRegex  = regexp.MustCompile(`class="fieldlabeltext">(.*?)</SPAN`)
)

// parseDetailFields pattern-extracts the optional requirement fields
// out of a detail information page. A recognized label whose expected
// text run is missing is logged and left unset, it never aborts the
// remaining fields.
func parseDetailFields(ctx context.Context, source string) DetailFields {
	ctx, span := tracer.Start(ctx, "parseDetailFields")
	defer span.End()

	// anchors collapse to their link text, embedded newlines and
	// non-breaking spaces go away before any pattern matching
	source = anchorRegex.ReplaceAllString(source, "$2")
	source = strings.ReplaceAll(source, "\n", "")
	source = strings.ReplaceAll(source, "&nbsp;", "")

	seen := map[string]bool{}
	var fields DetailFields

	for _, match := range labelRegex.FindAllStringSubmatch(source, -1) {
		label := strings.TrimSpace(match[1])
		if seen[label] {
			continue
		}
		seen[label] = true

		kind := classifyLabel(label)
		switch kind {
		case fieldNoise:
			continue
		case FieldUnknown:
			slog.DebugContext(ctx, "unrecognized detail field", "label", label)
			continue
		}

		lines, err := fieldLines(source, label)
		if err != nil {
			slog.WarnContext(ctx, "recognized field did not match its pattern",
				"label", label, "err", err)
			continue
		}

		switch kind {
		case FieldPrerequisites:
			fields.Prerequisites = cleanPrerequisites(lines)
		case FieldCorequisites:
			fields.Corequisites = lines
		case FieldMutualExclusions:
			// the first line is an introductory description
			if len(lines) > 0 {
				lines = lines[1:]
			}
			fields.MutualExclusions = lines
		case FieldCrossListCourses:
			fields.CrossListCourses = lines
		case FieldRestrictions:
			fields.Restrictions = groupRestrictions(lines)
		}
	}

	return fields
}

// fieldLines extracts the text run following a label up to the next
// label span or the end of the cell, then splits it into its non-blank
// line-break separated entries.
func fieldLines(source, label string) ([]string, error) {
	runRegex, err := regexp.Compile(regexp.QuoteMeta(label) + `(.*?)(?:<SPAN|</TD)`)
	if err != nil {
		return nil, err
	}
	match := runRegex.FindStringSubmatch(source)
	if match == nil {
		return nil, fmt.Errorf("no text run after label %q", label)
	}

	// entries sit between consecutive <br /> markers, text before the
	// first marker and after the last is layout filler
	segments := strings.Split(match[1], "<br />")
	if len(segments) < 3 {
		return nil, nil
	}

	var lines []string
	for _, segment := range segments[1 : len(segments)-1] {
		segment = strings.TrimSpace(segment)
		if segment == "" || segment == "<br />" {
			continue
		}
		lines = append(lines, segment)
	}
	return lines, nil
}

func cleanPrerequisites(lines []string) []string {
	cleaned := make([]string, len(lines))
	for i, line := range lines {
		line = strings.ReplaceAll(line, "  ", " ")
		line = strings.ReplaceAll(line, "( ", "(")
		line = strings.ReplaceAll(line, "Undergraduate level", "")
		line = strings.ReplaceAll(line, "  ", " ")
		line = strings.ReplaceAll(line, "( ", "(")
		cleaned[i] = strings.TrimSpace(line)
	}
	return cleaned
}

// groupRestrictions re-groups restriction lines into description plus
// requirement blocks. A block starts at every line containing
// "following", lines before the first such line are dropped.
func groupRestrictions(lines []string) []Restriction {
	var groups []Restriction
	var current *Restriction

	for _, line := range lines {
		if strings.Contains(line, "following") {
			if current != nil {
				groups = append(groups, *current)
			}
			current = &Restriction{
				Description:  line,
				Requirements: []string{},
			}
			continue
		}
		if current != nil {
			current.Requirements = append(current.Requirements, line)
		}
	}
	if current != nil {
		groups = append(groups, *current)
	}
	return groups
}

const seatTableSummary = "This layout table is used to present the seating numbers."

// parseSeats reads the seating numbers table: capacity, registered and
// remaining from its second row, waitlisted from its third.
func parseSeats(doc *goquery.Document) (Seats, error) {
	table := doc.Find(
		`table.datadisplaytable[summary="` + seatTableSummary + `"]`,
	).First()
	if table.Length() == 0 {
		return Seats{}, fmt.Errorf("no seating numbers table")
	}

	rows := table.Find("tr")
	if rows.Length() < 3 {
		return Seats{}, fmt.Errorf("seating table has %d rows, expected at least 3", rows.Length())
	}

	cells := rows.Eq(1).Find("td")
	if cells.Length() < 3 {
		return Seats{}, fmt.Errorf("seat count row has %d cells, expected at least 3", cells.Length())
	}

	var seats Seats
	var err error
	seats.Capacity, err = atoiCell(cells.Eq(0))
	if err != nil {
		return Seats{}, err
	}
	seats.Registered, err = atoiCell(cells.Eq(1))
	if err != nil {
		return Seats{}, err
	}
	seats.Remaining, err = atoiCell(cells.Eq(2))
	if err != nil {
		return Seats{}, err
	}
	seats.Waitlisted, err = atoiCell(rows.Eq(2).Find("td").Eq(1))
	if err != nil {
		return Seats{}, err
	}
	return seats, nil
}

func atoiCell(cell *goquery.Selection) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(cell.Text()))
	if err != nil {
		return 0, fmt.Errorf("seat cell is not a number: %w", err)
	}
	return n, nil
}

// parseDescription pulls the free-text course description, the leading
// text run of the catalog entry cell.
func parseDescription(doc *goquery.Document) (string, error) {
	cell := doc.Find("td.ntdefault").First()
	if cell.Length() == 0 {
		return "", fmt.Errorf("no catalog entry cell")
	}
	text := htmlutil.FirstText(cell.Nodes[0])
	text = strings.ReplaceAll(text, "\n", "")
	return strings.TrimSpace(text), nil
}
