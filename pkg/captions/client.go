package captions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"socialcast/entities"
	"socialcast/pkg/resilience"
)

// Client talks to the caption-enhancement provider. Projects complete in two
// phases: the provider first reports completed with no download URL, and an
// export must be triggered to render the final file. The second completion
// carries the URL.
type Client interface {
	Create(ctx context.Context, workflowID, videoURL, template string) (projectID string, err error)
	TriggerExport(ctx context.Context, projectID string) error
	Status(ctx context.Context, projectID string) (entities.JobUpdate, error)
}

type httpClient struct {
	endpoint   string
	key        string
	webhookURL string
	guard      *resilience.Guard
	httpc      *http.Client
}

func NewClient(endpoint, key, webhookURL string, guard *resilience.Guard) Client {
	return &httpClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		key:        key,
		webhookURL: webhookURL,
		guard:      guard,
		httpc:      &http.Client{},
	}
}

func (c *httpClient) Create(ctx context.Context, workflowID, videoURL, template string) (string, error) {
	body := map[string]any{
		"video_url":   videoURL,
		"template":    template,
		"language":    "en",
		"webhook_url": c.webhookURL,
		"external_id": workflowID,
	}
	b, _ := json.Marshal(body)

	var projectID string
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		resp, err := c.post(ctx, "/projects", b)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if err := checkStatus(resp); err != nil {
			return err
		}
		var out struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return resilience.Transient(fmt.Errorf("decode create response: %w", err))
		}
		if out.ID == "" {
			return resilience.Validation(fmt.Errorf("create response missing project id"))
		}
		projectID = out.ID
		return nil
	})
	return projectID, err
}

// TriggerExport asks the provider to render the final file. The guard's
// retry absorbs the provider's habit of refusing exports for a few seconds
// after completion.
func (c *httpClient) TriggerExport(ctx context.Context, projectID string) error {
	return c.guard.Do(ctx, func(ctx context.Context) error {
		resp, err := c.post(ctx, "/projects/"+projectID+"/export", nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return checkStatus(resp)
	})
}

func (c *httpClient) Status(ctx context.Context, projectID string) (entities.JobUpdate, error) {
	var update entities.JobUpdate
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/projects/"+projectID, nil)
		if err != nil {
			return err
		}
		req.Header.Set("x-api-key", c.key)

		resp, err := c.httpc.Do(req)
		if err != nil {
			return resilience.Transient(err)
		}
		defer resp.Body.Close()
		if err := checkStatus(resp); err != nil {
			return err
		}

		var out struct {
			ID          string `json:"id"`
			Status      string `json:"status"`
			DownloadURL string `json:"download_url"`
			Error       string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return resilience.Transient(fmt.Errorf("decode status response: %w", err))
		}
		update = entities.JobUpdate{
			JobID:    projectID,
			Status:   mapStatus(out.Status),
			AssetURL: out.DownloadURL,
			Detail:   out.Error,
		}
		return nil
	})
	return update, err
}

func (c *httpClient) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, resilience.Transient(err)
	}
	return resp, nil
}

func mapStatus(s string) entities.JobStatus {
	switch strings.ToLower(s) {
	case "completed", "complete", "exported", "done":
		return entities.JobCompleted
	case "failed", "error":
		return entities.JobFailed
	default:
		return entities.JobProcessing
	}
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
