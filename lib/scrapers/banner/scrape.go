package banner

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

// Scraper runs the full pipeline for one school: navigate to each
// calendar's listing, parse its course rows, then fan out over the
// per-course detail pages.
type Scraper struct {
	client *Client
	opts   ScraperOptions
}

type ScraperOptions struct {
	// fetch the per-course catalog entry page for the description
	FetchDescriptions bool
	// fetch the per-course detailed information page for seat counts
	// and requirement fields
	FetchDetails bool
}

func NewScraper(client *Client, opts ScraperOptions) *Scraper {
	return &Scraper{client: client, opts: opts}
}

// detailInfo is the supplementary data extracted from one detailed
// class information page.
type detailInfo struct {
	seats  Seats
	fields DetailFields
}

// Scrape populates each calendar's course list in order, one calendar
// at a time. A calendar whose navigation fails keeps an empty course
// list, later calendars still run.
func (s *Scraper) Scrape(ctx context.Context, calendars []Calendar) []Calendar {
	for i := range calendars {
		s.scrapeCalendar(ctx, &calendars[i])
	}
	return calendars
}

func (s *Scraper) scrapeCalendar(ctx context.Context, cal *Calendar) {
	ctx, span := tracer.Start(ctx, "scrapeCalendar")
	defer span.End()

	school := s.client.Profile().School
	start := time.Now()

	doc, err := s.client.Listing(ctx, *cal)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load course listing")
		slog.ErrorContext(ctx, "failed to load course listing",
			"school", school, "calendar", cal.Name, "err", err)
		// the dump format wants an empty list, never null
		cal.Courses = []Course{}
		return
	}
	slog.InfoContext(ctx, "loaded course listing", "school", school, "calendar", cal.Name)

	courses, targets := parseListing(ctx, doc, s.client.Subjects())

	if s.opts.FetchDescriptions || s.opts.FetchDetails {
		s.fetchCourseDetails(ctx, courses, targets)
	}

	cal.ProcessingTime = int(math.Round(time.Since(start).Seconds()))
	cal.Courses = courses

	slog.InfoContext(ctx, "finished calendar",
		"school", school,
		"calendar", cal.Name,
		"courses", len(courses),
		"seconds", cal.ProcessingTime,
	)
}

// fetchCourseDetails runs the concurrent fan-out over the follow-up
// pages and merges the results back onto the courses by position. The
// fan-out uses its own short-lived session, closed when the pass ends.
func (s *Scraper) fetchCourseDetails(ctx context.Context, courses []Course, targets fetchTargets) {
	ctx, span := tracer.Start(ctx, "fetchCourseDetails")
	defer span.End()

	session, err := s.client.newFetchSession(len(targets.descPaths) + len(targets.infoPaths))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open fetch session")
		slog.ErrorContext(ctx, "failed to open fetch session", "err", err)
		return
	}
	defer session.GetClient().CloseIdleConnections()

	if s.opts.FetchDescriptions {
		descriptions := gatherPages(ctx, session, s.client.baseUrl, targets.descPaths, catalogEntryMarker,
			func(_ []byte, doc *goquery.Document) (string, error) {
				return parseDescription(doc)
			})
		for i := range courses {
			courses[i].Description = descriptions[i]
		}
		slog.InfoContext(ctx, "finished course descriptions", "count", len(descriptions))
	}

	if s.opts.FetchDetails {
		details := gatherPages(ctx, session, s.client.baseUrl, targets.infoPaths, detailInfoMarker,
			func(body []byte, doc *goquery.Document) (detailInfo, error) {
				seats, err := parseSeats(doc)
				if err != nil {
					return detailInfo{}, err
				}
				return detailInfo{
					seats:  seats,
					fields: parseDetailFields(ctx, string(body)),
				}, nil
			})
		for i := range courses {
			courses[i].Capacity = details[i].seats.Capacity
			courses[i].Registered = details[i].seats.Registered
			courses[i].Remaining = details[i].seats.Remaining
			courses[i].Waitlisted = details[i].seats.Waitlisted

			courses[i].Prerequisites = details[i].fields.Prerequisites
			courses[i].Corequisites = details[i].fields.Corequisites
			courses[i].MutualExclusions = details[i].fields.MutualExclusions
			courses[i].CrossListCourses = details[i].fields.CrossListCourses
			courses[i].Restrictions = details[i].fields.Restrictions
		}
		slog.InfoContext(ctx, "finished registration availability", "count", len(details))
	}
}
