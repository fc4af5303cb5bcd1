package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ulritter/freelance-crawler/internal/config"
	"github.com/ulritter/freelance-crawler/internal/metrics"
	"github.com/ulritter/freelance-crawler/internal/store"
)

// captureRepo records upserted listings in memory.
type captureRepo struct {
	mu       sync.Mutex
	listings []store.Listing
}

func (r *captureRepo) UpsertListing(_ context.Context, l store.Listing) (store.UpsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.listings {
		if existing.Link == l.Link {
			return store.UpsertResult{}, nil
		}
	}
	r.listings = append(r.listings, l)
	return store.UpsertResult{Inserted: true}, nil
}

func (r *captureRepo) ListListings(context.Context, store.ListingFilter) ([]store.Listing, error) {
	return nil, nil
}

func (r *captureRepo) GetListing(context.Context, int64) (store.Listing, error) {
	return store.Listing{}, store.ErrNotFound
}

func (r *captureRepo) SetProcessed(context.Context, int64, bool) error { return nil }

func (r *captureRepo) Stats(context.Context) ([]store.SiteCount, error) { return nil, nil }

// fakeRenderer serves canned HTML without a browser.
type fakeRenderer struct {
	html string
	err  error
}

func (f *fakeRenderer) Render(context.Context, string) (string, error) { return f.html, f.err }
func (f *fakeRenderer) Close()                                         {}

func TestSiteCrawlerCollectsAndEmitsMarkers(t *testing.T) {
	t.Parallel()
	metrics.Init()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "python", r.URL.Query().Get("query"))
		_, _ = w.Write([]byte(sampleHTML))
	}))
	defer srv.Close()

	site := testSite()
	site.BaseURL = srv.URL
	site.SearchPath = "/search"
	site.Queries = []config.QueryConfig{{Query: "python", Keywords: []string{"python"}}}

	repo := &captureRepo{}
	c, err := NewSiteCrawler(site, Options{Listings: repo})
	require.NoError(t, err)
	require.Equal(t, "freelancermap", c.Name())

	var lines []string
	err = c.Run(context.Background(), func(line string) { lines = append(lines, line) })
	require.NoError(t, err)

	require.Equal(t, []string{
		"Starting freelancermap crawler",
		"Searching for: python",
		"freelancermap crawler finished successfully",
	}, lines)

	// Only the python listing passes the keyword filter.
	require.Len(t, repo.listings, 1)
	require.Equal(t, "Senior Python Developer", repo.listings[0].Title)
	require.False(t, repo.listings[0].LastSeen.IsZero())
}

func TestSiteCrawlerRenderedSite(t *testing.T) {
	t.Parallel()
	metrics.Init()

	site := testSite()
	site.Render = true
	site.Queries = []config.QueryConfig{{Query: "java"}}

	repo := &captureRepo{}
	c, err := NewSiteCrawler(site, Options{
		Listings: repo,
		Renderer: &fakeRenderer{html: sampleHTML},
	})
	require.NoError(t, err)

	err = c.Run(context.Background(), func(string) {})
	require.NoError(t, err)
	require.Len(t, repo.listings, 2)
}

func TestSiteCrawlerSkipsFailedQuery(t *testing.T) {
	t.Parallel()
	metrics.Init()

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("query") == "broken" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(sampleHTML))
	}))
	defer srv.Close()

	site := testSite()
	site.BaseURL = srv.URL
	site.SearchPath = "/search"
	site.Queries = []config.QueryConfig{
		{Query: "broken"},
		{Query: "python"},
	}

	repo := &captureRepo{}
	c, err := NewSiteCrawler(site, Options{Listings: repo})
	require.NoError(t, err)

	// A failing query is logged and skipped, the crawl still succeeds.
	err = c.Run(context.Background(), func(string) {})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Len(t, repo.listings, 2)
}

func TestSiteCrawlerHonorsCancellation(t *testing.T) {
	t.Parallel()
	metrics.Init()

	site := testSite()
	site.Queries = []config.QueryConfig{{Query: "python"}}

	repo := &captureRepo{}
	c, err := NewSiteCrawler(site, Options{Listings: repo})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = c.Run(ctx, func(string) {})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewSiteCrawlerValidation(t *testing.T) {
	t.Parallel()

	_, err := NewSiteCrawler(config.SiteConfig{}, Options{Listings: &captureRepo{}})
	require.Error(t, err)

	_, err = NewSiteCrawler(testSite(), Options{})
	require.Error(t, err)

	rendered := testSite()
	rendered.Render = true
	_, err = NewSiteCrawler(rendered, Options{Listings: &captureRepo{}})
	require.Error(t, err)
}
