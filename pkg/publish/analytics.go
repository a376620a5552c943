package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"socialcast/entities"
	"socialcast/pkg/resilience"
)

// AnalyticsClient pulls per-platform engagement for a published post from
// the broker.
type AnalyticsClient struct {
	endpoint string
	key      string
	guard    *resilience.Guard
	httpc    *http.Client
}

func NewAnalyticsClient(endpoint, key string, guard *resilience.Guard) *AnalyticsClient {
	return &AnalyticsClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		key:      key,
		guard:    guard,
		httpc:    &http.Client{},
	}
}

func (c *AnalyticsClient) PostMetrics(ctx context.Context, postID string) (map[entities.Platform]entities.PlatformMetrics, error) {
	out := map[entities.Platform]entities.PlatformMetrics{}
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/posts/"+postID+"/analytics", nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.key)

		resp, err := c.httpc.Do(req)
		if err != nil {
			return resilience.Transient(err)
		}
		defer resp.Body.Close()
		if err := checkStatus(resp); err != nil {
			return err
		}

		var body struct {
			Platforms []struct {
				Platform string `json:"platform"`
				Views    int    `json:"views"`
				Likes    int    `json:"likes"`
				Comments int    `json:"comments"`
				Shares   int    `json:"shares"`
			} `json:"platforms"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return resilience.Transient(fmt.Errorf("decode analytics: %w", err))
		}
		for _, p := range body.Platforms {
			platform, err := entities.ParsePlatform(strings.ToLower(p.Platform))
			if err != nil {
				continue
			}
			out[platform] = entities.PlatformMetrics{
				Views: p.Views, Likes: p.Likes, Comments: p.Comments, Shares: p.Shares,
			}
		}
		return nil
	})
	return out, err
}
