// Package crawler implements the per-portal job listing crawlers.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/ulritter/freelance-crawler/internal/config"
	"github.com/ulritter/freelance-crawler/internal/metrics"
	"github.com/ulritter/freelance-crawler/internal/store"
)

// Options carries the shared dependencies of all site crawlers.
type Options struct {
	UserAgent string
	Delay     time.Duration
	Listings  store.ListingRepository
	// Renderer is required only for sites with Render set.
	Renderer Renderer
	Logger   *zap.Logger
}

// SiteCrawler scrapes one job portal. It satisfies the crawl job contract:
// progress is reported through emitted lines, so builtin crawlers and
// external crawler processes look identical to the run orchestrator.
type SiteCrawler struct {
	site config.SiteConfig
	opts Options
}

// NewSiteCrawler builds a crawler for one configured portal.
func NewSiteCrawler(site config.SiteConfig, opts Options) (*SiteCrawler, error) {
	if site.Name == "" {
		return nil, fmt.Errorf("site name is required")
	}
	if opts.Listings == nil {
		return nil, fmt.Errorf("listing repository is required")
	}
	if site.Render && opts.Renderer == nil {
		return nil, fmt.Errorf("site %s needs a renderer", site.Name)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &SiteCrawler{site: site, opts: opts}, nil
}

// Name returns the portal name.
func (c *SiteCrawler) Name() string { return c.site.Name }

// Run crawls every configured query sequentially. Per-query failures are
// logged and skipped; only cancellation aborts the whole crawl.
func (c *SiteCrawler) Run(ctx context.Context, emit func(string)) error {
	emit(fmt.Sprintf("Starting %s crawler", c.site.Name))

	var saved, filtered int
	for _, q := range c.site.Queries {
		if err := ctx.Err(); err != nil {
			return err
		}
		emit("Searching for: " + q.Query)

		listings, err := c.fetchQuery(ctx, q.Query)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.opts.Logger.Error("query crawl failed",
				zap.String("site", c.site.Name),
				zap.String("query", q.Query),
				zap.Error(err),
			)
			continue
		}

		for _, l := range listings {
			if l.Link == "" {
				continue
			}
			if !matchesKeywords(l, q.Keywords) {
				filtered++
				continue
			}
			l.LastSeen = time.Now().UTC()
			res, err := c.opts.Listings.UpsertListing(ctx, l)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.opts.Logger.Error("saving listing failed",
					zap.String("site", c.site.Name),
					zap.String("link", l.Link),
					zap.Error(err),
				)
				continue
			}
			action := "updated"
			if res.Inserted {
				action = "inserted"
			}
			metrics.ObserveListing(c.site.Name, action)
			saved++
		}

		if c.opts.Delay > 0 {
			select {
			case <-time.After(c.opts.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	c.opts.Logger.Info("site crawl done",
		zap.String("site", c.site.Name),
		zap.Int("saved", saved),
		zap.Int("filtered", filtered),
	)
	emit(fmt.Sprintf("%s crawler finished successfully", c.site.Name))
	return nil
}

func (c *SiteCrawler) fetchQuery(ctx context.Context, query string) ([]store.Listing, error) {
	searchURL := c.searchURL(query)
	if c.site.Render {
		html, err := c.opts.Renderer.Render(ctx, searchURL)
		if err != nil {
			return nil, err
		}
		return parseDocument(html, c.site, query)
	}
	return c.collect(ctx, searchURL, query)
}

func (c *SiteCrawler) searchURL(query string) string {
	return fmt.Sprintf("%s%s?query=%s",
		strings.TrimSuffix(c.site.BaseURL, "/"),
		c.site.SearchPath,
		url.QueryEscape(query),
	)
}

// collect fetches a plain (server-rendered) search page with colly.
func (c *SiteCrawler) collect(ctx context.Context, searchURL, query string) ([]store.Listing, error) {
	opts := []colly.CollectorOption{}
	if c.opts.UserAgent != "" {
		opts = append(opts, colly.UserAgent(c.opts.UserAgent))
	}
	collector := colly.NewCollector(opts...)
	collector.SetRequestTimeout(30 * time.Second)

	var listings []store.Listing
	collector.OnHTML(c.site.Selectors.Item, func(e *colly.HTMLElement) {
		listings = append(listings, listingFromSelection(e.DOM, c.site, query))
	})

	var fetchErr error
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		err := collector.Visit(searchURL)
		collector.Wait()
		done <- err
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit %s: %w", searchURL, err)
		}
	}

	if fetchErr != nil {
		return nil, fmt.Errorf("fetch %s: %w", searchURL, fetchErr)
	}
	return listings, nil
}
