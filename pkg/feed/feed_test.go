package feed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialcast/database"
	"socialcast/entities"
)

const rssFixture = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Realty News</title>
    <item>
      <title>Median prices hit a record</title>
      <link>https://example.com/record-prices</link>
      <description>&lt;p&gt;Prices climbed again this quarter.&lt;/p&gt;</description>
      <pubDate>Wed, 26 Aug 2026 09:00:00 -0400</pubDate>
    </item>
    <item>
      <title>Open house weekend</title>
      <link>https://example.com/open-house</link>
      <description>Listings around town.</description>
      <pubDate>Tue, 25 Aug 2026 12:00:00 -0400</pubDate>
    </item>
  </channel>
</rss>`

const listingFixture = `<html><body>
  <div class="card"><h2 class="hed">First listing story</h2><a class="more" href="/stories/1">read</a><img src="/img/1.jpg"/></div>
  <div class="card"><h2 class="hed">Second listing story</h2><a class="more" href="https://other.example.com/2">read</a></div>
  <div class="card"><h2 class="hed"></h2><a class="more" href="/stories/3">no title</a></div>
</body></html>`

func TestRSSScannerParsesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	s := NewRSSScanner(srv.Client())
	items, err := s.Scan(context.Background(), entities.FeedSource{ID: "realty-news", URL: srv.URL})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Median prices hit a record", items[0].Title)
	assert.Equal(t, "https://example.com/record-prices", items[0].Link)
	assert.Equal(t, "Prices climbed again this quarter.", items[0].Content)
	assert.Equal(t, 2026, items[0].PublishedAt.Year())
}

func TestListingScannerResolvesRelativeLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(listingFixture))
	}))
	defer srv.Close()

	s := NewListingScanner(srv.Client())
	items, err := s.Scan(context.Background(), entities.FeedSource{
		ID: "local-site", URL: srv.URL, Selectors: "div.card|h2.hed|a.more",
	})
	require.NoError(t, err)
	require.Len(t, items, 2, "item without a title is skipped")

	assert.Equal(t, "First listing story", items[0].Title)
	assert.Equal(t, srv.URL+"/stories/1", items[0].Link)
	assert.Equal(t, "/img/1.jpg", items[0].ImageURL)
	assert.Equal(t, "https://other.example.com/2", items[1].Link)
}

func TestListingScannerRejectsBadSelectors(t *testing.T) {
	s := NewListingScanner(nil)
	_, err := s.Scan(context.Background(), entities.FeedSource{ID: "x", URL: "http://127.0.0.1:0", Selectors: "just-one"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item|title|link")
}

type stubScanner struct {
	items []Item
	err   error
}

func (s *stubScanner) Name() string { return "stub" }
func (s *stubScanner) Scan(context.Context, entities.FeedSource) ([]Item, error) {
	return s.items, s.err
}

func testIngestor(t *testing.T, stub *stubScanner) (*Ingestor, *Repository) {
	t.Helper()
	repo := NewRepository(database.OpenMemory())
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return NewIngestor(repo, NewRegistry(stub), log), repo
}

func TestIngestorDeduplicatesByLink(t *testing.T) {
	ctx := context.Background()
	stub := &stubScanner{items: []Item{
		{Title: "One", Link: "https://example.com/one", Content: "body"},
		{Title: "Two", Link: "https://example.com/two", Content: "body"},
	}}
	ing, repo := testIngestor(t, stub)

	require.NoError(t, repo.SeedSources(ctx, []entities.FeedSource{
		{ID: "src", Brand: entities.BrandRealty, Scanner: "stub", Enabled: true},
	}))

	sum, err := ing.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Saved)

	// second run sees the same items again
	sum, err = ing.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Seen)
	assert.Equal(t, 0, sum.Saved)
}

func TestIngestorSkipsItemsOlderThanLastFetch(t *testing.T) {
	ctx := context.Background()
	cutoff := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	stub := &stubScanner{items: []Item{
		{Title: "Old", Link: "https://example.com/old", PublishedAt: cutoff.Add(-time.Hour)},
		{Title: "New", Link: "https://example.com/new", PublishedAt: cutoff.Add(time.Hour)},
		{Title: "Undated", Link: "https://example.com/undated"},
	}}
	ing, repo := testIngestor(t, stub)

	require.NoError(t, repo.SeedSources(ctx, []entities.FeedSource{
		{ID: "src", Brand: entities.BrandRealty, Scanner: "stub", Enabled: true, LastFetched: &cutoff},
	}))

	sum, err := ing.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Saved, "older-than-cutoff item is dropped, undated passes")
}

func TestIngestorRecordsFailureWithoutAdvancingCursor(t *testing.T) {
	ctx := context.Background()
	stub := &stubScanner{err: errors.New("upstream 500")}
	ing, repo := testIngestor(t, stub)

	fetched := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SeedSources(ctx, []entities.FeedSource{
		{ID: "src", Brand: entities.BrandRealty, Scanner: "stub", Enabled: true, LastFetched: &fetched},
	}))

	sum, err := ing.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)

	sources, err := repo.EnabledSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Contains(t, sources[0].LastError, "upstream 500")
	require.NotNil(t, sources[0].LastFetched)
	assert.True(t, sources[0].LastFetched.Equal(fetched), "failed fetch must not advance the cursor")
}

func TestRepositoryMarkProcessed(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(database.OpenMemory())

	_, err := repo.SaveArticle(ctx, entities.Article{
		ID: "a1", Brand: entities.BrandAutos, Link: "https://example.com/a1", Title: "T",
	})
	require.NoError(t, err)

	pending, err := repo.Unprocessed(ctx, entities.BrandAutos)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	score := 82
	require.NoError(t, repo.MarkProcessed(ctx, "a1", &score, ""))

	pending, err = repo.Unprocessed(ctx, entities.BrandAutos)
	require.NoError(t, err)
	assert.Empty(t, pending)

	a, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, a.QualityScore)
	assert.Equal(t, 82, *a.QualityScore)
}
