package entities

import "time"

// FeedSource is one upstream feed the ingestor pulls from. LastFetched only
// advances after a fully successful fetch, so a transient failure re-scans
// the same window instead of silently dropping it.
type FeedSource struct {
	ID        string `gorm:"primaryKey" json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Brand     Brand  `gorm:"index" json:"brand"`
	Scanner   string `json:"scanner"` // rss|listing
	Enabled   bool   `json:"enabled"`
	Selectors string `json:"selectors,omitempty"` // listing scanner CSS selectors, "item|title|link"

	LastFetched   *time.Time `json:"last_fetched,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	ArticlesSeen  int        `json:"articles_seen"`
	ArticlesSaved int        `json:"articles_saved"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Article is an ingested candidate story. The canonical link is the dedup
// key. Articles are never deleted, only marked processed, so rejected items
// stay auditable and a failed workflow can be retried from the same row.
type Article struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	SourceID    string    `gorm:"index" json:"source_id"`
	Brand       Brand     `gorm:"index" json:"brand"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Link        string    `gorm:"uniqueIndex" json:"link"`
	ImageURL    string    `json:"image_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`

	Processed    bool   `gorm:"index" json:"processed"`
	QualityScore *int   `json:"quality_score,omitempty"`
	Rejection    string `json:"rejection,omitempty"`
	WorkflowID   string `json:"workflow_id,omitempty"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
