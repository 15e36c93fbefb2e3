package banner

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"time"

	"catalog-scraper/lib/subjectmap"
	"catalog-scraper/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

const (
	termPagePath   = "/bwckschd.p_disp_dyn_sched"
	termSelectPath = "/bwckgens.p_proc_term_date"
	listingPath    = "/bwckschd.p_get_crse_unsec"

	termPageMarker    = ">Dynamic Schedule<"
	termPageAltMarker = ">Select Term or Date Range<"
	searchPageMarker  = ">Class Schedule Search<"
	listingMarker     = ">Class Schedule Listing<"
)

// ErrUnexpectedPage means a navigation step got a response without the
// page marker it was supposed to land on.
var ErrUnexpectedPage = errors.New("response is not the expected page")

// ErrNoSearchContext means a subject search was attempted without a
// prior term selection response to mirror form inputs from.
var ErrNoSearchContext = errors.New("no term selection response to search from")

// how many partitions the subject list is split into when a school's
// full-catalog listing request is known to time out
const chunkPartitions = 5

// Client drives the self-service form flow for one school. The
// underlying session is long-lived so cookies persist across the
// term-select and search steps.
type Client struct {
	profile  Profile
	baseUrl  string
	http     *resty.Client
	subjects *subjectmap.Store
}

type ClientOptions struct {
	Profile  Profile
	Subjects *subjectmap.Store
	// overrides the url derived from the profile, for tests
	BaseUrl string
}

func browserHeaders(origin string) map[string]string {
	return map[string]string{
		"Content-Type":    "application/x-www-form-urlencoded",
		"Origin":          origin,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
		"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
	}
}

func newSession(baseUrl, origin string) (*resty.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(baseUrl)
	client.SetCookieJar(jar)
	client.SetHeaders(browserHeaders(origin))
	// some deployments still serve certificates for the wrong subdomain
	client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	client.SetTimeout(time.Second * 120)

	telemetry.InstrumentResty(client, "scrapers/banner/http")
	return client, nil
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Subjects == nil {
		return nil, fmt.Errorf("a subject mapping store is required")
	}

	origin := "https://" + opts.Profile.BaseHost
	baseUrl := opts.BaseUrl
	if baseUrl == "" {
		baseUrl = origin + opts.Profile.BasePath
	}

	session, err := newSession(baseUrl, origin)
	if err != nil {
		return nil, err
	}

	return &Client{
		profile:  opts.Profile,
		baseUrl:  baseUrl,
		http:     session,
		subjects: opts.Subjects,
	}, nil
}

func (c *Client) Profile() Profile {
	return c.profile
}

// Subjects returns the known abbreviation to full name mapping for
// this client's school.
func (c *Client) Subjects() map[string]string {
	return c.subjects.Get(c.profile.School)
}

func parseDocument(res *resty.Response) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
}

// formInputs mirrors every hidden and text input on a page, the way a
// browser would submit them untouched.
func formInputs(doc *goquery.Document) map[string]string {
	data := map[string]string{}
	doc.Find("input[type=hidden], input[type=text]").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok {
			return
		}
		data[name] = input.AttrOr("value", "")
	})
	return data
}

// Terms loads the term selection page and returns the offered
// calendars, in page order. "View only" suffixes are stripped from the
// display names.
func (c *Client) Terms(ctx context.Context) ([]Calendar, error) {
	ctx, span := tracer.Start(ctx, "client:Terms")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		Get(termPagePath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch term page")
		return nil, err
	}
	body := res.String()
	if !strings.Contains(body, termPageMarker) && !strings.Contains(body, termPageAltMarker) {
		err := fmt.Errorf("%w: term selection", ErrUnexpectedPage)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	doc, err := parseDocument(res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse term page html")
		return nil, err
	}

	var calendars []Calendar
	doc.Find("select[name=p_term] option").Each(func(_ int, opt *goquery.Selection) {
		id := opt.AttrOr("value", "")
		if id == "" {
			return
		}
		calendars = append(calendars, Calendar{
			ID:   id,
			Name: strings.ReplaceAll(opt.Text(), " (View only)", ""),
			// serializes as an empty list until the calendar is scraped
			Courses: []Course{},
		})
	})
	return calendars, nil
}

// selectTerm replays the term selection form: re-fetch the term page,
// mirror its inputs verbatim and post them along with the chosen term
// id, carrying a Referer that mimics browser navigation.
func (c *Client) selectTerm(ctx context.Context, cal Calendar) (*resty.Response, error) {
	ctx, span := tracer.Start(ctx, "client:selectTerm")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		Get(termPagePath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch term page")
		return nil, err
	}
	doc, err := parseDocument(res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse term page html")
		return nil, err
	}

	data := formInputs(doc)
	data["p_term"] = cal.ID

	res, err = c.http.R().
		SetContext(ctx).
		SetHeader("Referer", c.baseUrl+termPagePath).
		SetFormData(data).
		Post(termSelectPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post term selection")
		return nil, err
	}
	return res, nil
}

// parameters the site requires to be explicitly restated with the
// value "dummy" whenever their default was overridden in the payload
var restatedParams = []string{
	"sel_subj", "sel_day", "sel_schd", "sel_insm", "sel_camp",
	"sel_levl", "sel_sess", "sel_instr", "sel_ptrm", "sel_attr",
}

func buildSearchPayload(data map[string]string, subjects []string) string {
	values := url.Values{}
	for key, value := range data {
		if key == "sel_subj" {
			continue
		}
		values.Set(key, value)
	}

	payload := values.Encode() + "&"
	if subjects == nil {
		// the select-all sentinel
		payload += "sel_subj=%25"
	} else {
		parts := make([]string, len(subjects))
		for i, abbr := range subjects {
			parts[i] = "sel_subj=" + url.QueryEscape(abbr)
		}
		payload += strings.Join(parts, "&")
	}

	var restated []string
	for _, param := range restatedParams {
		if value, ok := data[param]; ok && value != "dummy" {
			restated = append(restated, param+"=dummy")
		}
	}

	return strings.Join(restated, "&") + "&" + payload
}

// searchSubjects replays the search criteria form from a term
// selection response. A nil subject list force-selects every subject,
// a non-nil list restricts the search for chunked loading. The page's
// subject options are harvested into the subject mapping store along
// the way.
func (c *Client) searchSubjects(ctx context.Context, termRes *resty.Response, subjects []string) (*resty.Response, error) {
	ctx, span := tracer.Start(ctx, "client:searchSubjects")
	defer span.End()

	if termRes == nil {
		span.SetStatus(codes.Error, ErrNoSearchContext.Error())
		return nil, ErrNoSearchContext
	}
	if !strings.Contains(termRes.String(), searchPageMarker) {
		err := fmt.Errorf("%w: search criteria", ErrUnexpectedPage)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	doc, err := parseDocument(termRes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse search page html")
		return nil, err
	}

	harvested := map[string]string{}
	doc.Find("select[name=sel_subj] option").Each(func(_ int, opt *goquery.Selection) {
		value := opt.AttrOr("value", "")
		if value == "" {
			return
		}
		harvested[value] = opt.Text()
	})
	_, err = c.subjects.Update(c.profile.School, harvested)
	if err != nil {
		// losing the cache file is not worth losing the run
		span.RecordError(err)
		slog.ErrorContext(ctx, "failed to persist subject mappings",
			"school", c.profile.School, "err", err)
	}

	data := formInputs(doc)
	// the first option of every selector is the site default, the
	// select-all sentinel where one exists
	doc.Find("select").Each(func(_ int, sel *goquery.Selection) {
		name, ok := sel.Attr("name")
		if !ok {
			return
		}
		data[name] = sel.Find("option").First().AttrOr("value", "")
	})
	data["sel_subj"] = "%"

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Referer", c.baseUrl+termSelectPath).
		SetBody(buildSearchPayload(data, subjects)).
		Post(listingPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post course search")
		return nil, err
	}
	return res, nil
}

// Listing drives the full form flow for one calendar and returns the
// course listing document, chunk loading when the profile asks for it.
func (c *Client) Listing(ctx context.Context, cal Calendar) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "client:Listing")
	defer span.End()

	if c.profile.ChunkLoad {
		return c.chunkLoadListing(ctx, cal)
	}

	termRes, err := c.selectTerm(ctx, cal)
	if err != nil {
		return nil, err
	}
	res, err := c.searchSubjects(ctx, termRes, nil)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(res.String(), listingMarker) {
		err := fmt.Errorf("%w: course listing", ErrUnexpectedPage)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return parseDocument(res)
}

// chunkLoadListing searches the catalog one subject partition at a
// time, reusing a single term selection, and splices every partition's
// listing rows into one synthetic document. A failed partition is
// logged and dropped, it never discards the others.
func (c *Client) chunkLoadListing(ctx context.Context, cal Calendar) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "client:chunkLoadListing")
	defer span.End()

	termRes, err := c.selectTerm(ctx, cal)
	if err != nil {
		return nil, err
	}

	known := c.Subjects()
	if len(known) == 0 {
		err := fmt.Errorf("no known subjects for %q, chunk loading needs a populated subject mapping", c.profile.School)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	abbrs := make([]string, 0, len(known))
	for abbr := range known {
		abbrs = append(abbrs, abbr)
	}
	sort.Strings(abbrs)

	var combined *goquery.Document
	var table *goquery.Selection

	chunks := splitChunks(abbrs, chunkPartitions)
	for i, chunk := range chunks {
		res, err := c.searchSubjects(ctx, termRes, chunk)
		if err != nil {
			span.RecordError(err)
			slog.ErrorContext(ctx, "subject partition failed",
				"school", c.profile.School, "partition", i, "err", err)
			continue
		}

		doc, err := parseDocument(res)
		if err != nil {
			span.RecordError(err)
			slog.ErrorContext(ctx, "failed to parse partition html",
				"school", c.profile.School, "partition", i, "err", err)
			continue
		}

		slog.InfoContext(ctx, "finished course partition",
			"school", c.profile.School,
			"partition", i+1,
			"partitions", len(chunks),
		)

		if combined == nil {
			combined = doc
			table = doc.Find("table.datadisplaytable").First()
			continue
		}
		part := doc.Find("table.datadisplaytable").First()
		body := table.ChildrenFiltered("tbody")
		if body.Length() == 0 {
			body = table
		}
		body.AppendSelection(directRows(part))
	}

	if combined == nil {
		return nil, fmt.Errorf("every subject partition failed for %q", c.profile.School)
	}
	return combined, nil
}

// directRows returns only the table's own rows, leaving nested
// meeting-time sub-tables intact.
func directRows(table *goquery.Selection) *goquery.Selection {
	body := table.ChildrenFiltered("tbody")
	if body.Length() == 0 {
		body = table
	}
	return body.ChildrenFiltered("tr")
}

// splitChunks splits a list into n roughly equal partitions.
func splitChunks(list []string, n int) [][]string {
	size := len(list) / n
	remainder := len(list) % n

	var chunks [][]string
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < remainder {
			end++
		}
		if start == end {
			continue
		}
		chunks = append(chunks, list[start:end])
		start = end
	}
	return chunks
}
