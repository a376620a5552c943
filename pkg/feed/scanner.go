package feed

import (
	"context"
	"fmt"
	"time"

	"socialcast/entities"
)

// Item is one story a scanner pulled from a source, before persistence.
type Item struct {
	Title       string
	Link        string
	Content     string
	ImageURL    string
	PublishedAt time.Time
}

// Scanner is one fetch strategy. Strategies are stateless; per-source
// settings ride in on the FeedSource.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, src entities.FeedSource) ([]Item, error)
}

// Registry resolves a source's scanner name to a strategy.
type Registry struct {
	byName map[string]Scanner
}

func NewRegistry(scanners ...Scanner) *Registry {
	r := &Registry{byName: map[string]Scanner{}}
	for _, s := range scanners {
		r.byName[s.Name()] = s
	}
	return r
}

func (r *Registry) Resolve(name string) (Scanner, error) {
	s, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("no scanner registered as %q", name)
	}
	return s, nil
}
