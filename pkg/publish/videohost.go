package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"socialcast/entities"
	"socialcast/pkg/resilience"
)

// VideoHost uploads directly to the first-party video platform instead of
// going through the broker.
type VideoHost interface {
	Upload(ctx context.Context, req Request) (PlatformResult, error)
}

type videoHostClient struct {
	endpoint string
	key      string
	guard    *resilience.Guard
	httpc    *http.Client
}

func NewVideoHost(endpoint, key string, guard *resilience.Guard) VideoHost {
	return &videoHostClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		key:      key,
		guard:    guard,
		httpc:    &http.Client{},
	}
}

func (c *videoHostClient) Upload(ctx context.Context, req Request) (PlatformResult, error) {
	body := map[string]any{
		"source_url":  req.MediaURL,
		"title":       req.Title,
		"description": req.Caption,
		"short":       true,
		"publish_at":  req.ScheduleAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	b, _ := json.Marshal(body)

	var result PlatformResult
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/uploads", bytes.NewReader(b))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.key)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpc.Do(httpReq)
		if err != nil {
			return resilience.Transient(err)
		}
		defer resp.Body.Close()
		if err := checkStatus(resp); err != nil {
			return err
		}
		var out struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return resilience.Transient(fmt.Errorf("decode upload response: %w", err))
		}
		result = PlatformResult{Platform: entities.PlatformYouTube, Success: true, PostID: out.ID}
		return nil
	})
	return result, err
}
