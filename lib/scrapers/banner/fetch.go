package banner

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"
)

const (
	catalogEntryMarker = ">Catalog Entries<"
	detailInfoMarker   = ">Detailed Class Information<"

	// submitting every path at once causes timeouts against the
	// target server, so large fan-outs go out one batch at a time
	fetchBatchSize = 2000
)

// newFetchSession builds the short-lived session used for the
// concurrent detail fan-out of one calendar pass. Under chunk loading
// the request timeout widens linearly with the number of paths.
func (c *Client) newFetchSession(pathCount int) (*resty.Client, error) {
	session, err := newSession(c.baseUrl, "https://"+c.profile.BaseHost)
	if err != nil {
		return nil, err
	}
	if c.profile.ChunkLoad {
		seconds := math.Ceil(60 * float64(pathCount) / 20)
		session.SetTimeout(time.Duration(seconds) * time.Second)
	}
	return session, nil
}

// gatherPages fetches every path concurrently and parses each response
// into a T, preserving input order in the output. A failed fetch, an
// unexpected page or a failed parse degrades to T's zero value, a
// single bad course never aborts the batch.
func gatherPages[T any](
	ctx context.Context,
	session *resty.Client,
	baseUrl string,
	paths []string,
	marker string,
	parse func(body []byte, doc *goquery.Document) (T, error),
) []T {
	ctx, span := tracer.Start(ctx, "gatherPages")
	defer span.End()

	referer := baseUrl + listingPath
	results := make([]T, len(paths))

	for start := 0; start < len(paths); start += fetchBatchSize {
		end := min(start+fetchBatchSize, len(paths))

		group, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			group.Go(func() error {
				results[i] = fetchPage(gctx, session, referer, paths[i], marker, parse)
				return nil
			})
		}
		// fetchPage absorbs its own failures
		_ = group.Wait()
	}

	return results
}

func fetchPage[T any](
	ctx context.Context,
	session *resty.Client,
	referer, path, marker string,
	parse func(body []byte, doc *goquery.Document) (T, error),
) T {
	var zero T

	res, err := session.R().
		SetContext(ctx).
		SetHeader("Referer", referer).
		Get(path)
	if err != nil {
		slog.ErrorContext(ctx, "detail fetch failed", "path", path, "err", err)
		return zero
	}
	if !bytes.Contains(res.Body(), []byte(marker)) {
		slog.DebugContext(ctx, "detail response is not the expected page", "path", path)
		return zero
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse detail html", "path", path, "err", err)
		return zero
	}

	out, err := parse(res.Body(), doc)
	if err != nil {
		slog.ErrorContext(ctx, "failed to extract detail page", "path", path, "err", err)
		return zero
	}
	return out
}
