package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"socialcast/entities"
)

// ListingScanner scrapes article listing pages that have no feed. The
// source's Selectors field carries an "item|title|link" CSS triplet; title
// and link are resolved inside each item node, item text becomes the content.
type ListingScanner struct {
	client *http.Client
}

func NewListingScanner(client *http.Client) *ListingScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ListingScanner{client: client}
}

func (s *ListingScanner) Name() string { return "listing" }

func (s *ListingScanner) Scan(ctx context.Context, src entities.FeedSource) ([]Item, error) {
	itemSel, titleSel, linkSel, err := splitSelectors(src.Selectors)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "socialcast/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", src.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing %s returned %s", src.ID, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing %s: %w", src.ID, err)
	}

	base, err := url.Parse(src.URL)
	if err != nil {
		return nil, fmt.Errorf("source %s url: %w", src.ID, err)
	}

	var out []Item
	doc.Find(itemSel).Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find(titleSel).First().Text())
		href, _ := sel.Find(linkSel).First().Attr("href")
		if href == "" {
			// the item node itself may be the anchor
			href, _ = sel.Attr("href")
		}
		if title == "" || href == "" {
			return
		}
		link, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		img, _ := sel.Find("img").First().Attr("src")
		out = append(out, Item{
			Title:    title,
			Link:     link.String(),
			Content:  strings.Join(strings.Fields(sel.Text()), " "),
			ImageURL: img,
		})
	})
	return out, nil
}

func splitSelectors(s string) (item, title, link string, err error) {
	parts := strings.Split(s, "|")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("selectors %q: want item|title|link", s)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2]), nil
}
