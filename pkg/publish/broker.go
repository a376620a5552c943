package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"socialcast/entities"
	"socialcast/pkg/resilience"
)

// Broker posts through the managed multi-platform publisher: it matches the
// brand profile's connected accounts to the requested platforms, skips (with
// a warning) any platform with no connected account, and fails only when
// nothing can be posted at all.
type Broker interface {
	Publish(ctx context.Context, req Request) (Result, error)
}

type brokerClient struct {
	endpoint string
	key      string
	guard    *resilience.Guard
	httpc    *http.Client
}

func NewBroker(endpoint, key string, guard *resilience.Guard) Broker {
	return &brokerClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		key:      key,
		guard:    guard,
		httpc:    &http.Client{},
	}
}

type brokerAccount struct {
	ID       string `json:"id"`
	Platform string `json:"platform"`
}

func (c *brokerClient) Publish(ctx context.Context, req Request) (Result, error) {
	accounts, err := c.accounts(ctx, req.Profile)
	if err != nil {
		return Result{}, err
	}

	byPlatform := map[entities.Platform]brokerAccount{}
	for _, a := range accounts {
		if p, err := entities.ParsePlatform(strings.ToLower(a.Platform)); err == nil {
			byPlatform[p] = a
		}
	}

	var res Result
	var targets []map[string]any
	var matched []entities.Platform
	for _, p := range req.Platforms {
		acc, ok := byPlatform[p]
		if !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("no %s account connected for profile %s", p, req.Profile))
			res.Platforms = append(res.Platforms, PlatformResult{Platform: p, Detail: "no connected account"})
			continue
		}
		targets = append(targets, platformTarget(p, acc.ID, req))
		matched = append(matched, p)
	}
	if len(targets) == 0 {
		return res, fmt.Errorf("profile %s has no connected account for any of %v", req.Profile, req.Platforms)
	}

	postID, err := c.createPost(ctx, req, targets)
	if err != nil {
		return res, err
	}
	res.PostID = postID
	for _, p := range matched {
		res.Platforms = append(res.Platforms, PlatformResult{Platform: p, Success: true, PostID: postID})
	}
	return res, nil
}

// platformTarget builds the per-platform options the broker expects.
func platformTarget(p entities.Platform, accountID string, req Request) map[string]any {
	t := map[string]any{
		"account_id": accountID,
		"platform":   string(p),
	}
	switch p {
	case entities.PlatformYouTube:
		t["options"] = map[string]any{"short": true, "title": req.Title, "category": "News & Politics"}
	case entities.PlatformInstagram:
		t["options"] = map[string]any{"reel": true, "share_to_feed": true}
	case entities.PlatformTikTok:
		t["options"] = map[string]any{"privacy": "PUBLIC_TO_EVERYONE"}
	}
	return t
}

func (c *brokerClient) accounts(ctx context.Context, profile string) ([]brokerAccount, error) {
	var accounts []brokerAccount
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		u := c.endpoint + "/accounts?profile=" + url.QueryEscape(profile)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
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
		accounts = accounts[:0]
		if err := json.NewDecoder(resp.Body).Decode(&accounts); err != nil {
			return resilience.Transient(fmt.Errorf("decode accounts: %w", err))
		}
		return nil
	})
	return accounts, err
}

func (c *brokerClient) createPost(ctx context.Context, req Request, targets []map[string]any) (string, error) {
	body := map[string]any{
		"profile":      req.Profile,
		"content":      req.Caption,
		"media_url":    req.MediaURL,
		"platforms":    targets,
		"scheduled_at": req.ScheduleAt.UTC().Format("2006-01-02T15:04:05Z"),
		"external_id":  req.WorkflowID,
	}
	b, _ := json.Marshal(body)

	var postID string
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/posts", bytes.NewReader(b))
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
			return resilience.Transient(fmt.Errorf("decode post response: %w", err))
		}
		if out.ID == "" {
			return resilience.Validation(fmt.Errorf("post response missing id"))
		}
		postID = out.ID
		return nil
	})
	return postID, err
}

// checkStatus reads the body only on failure, leaving it intact for the
// success-path decode.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return resilience.ClassifyStatus(resp.StatusCode, snippet(resp.Body))
}

func snippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
