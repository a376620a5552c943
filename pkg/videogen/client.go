package videogen

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

// Job is what Submit sends to the avatar-video provider.
type Job struct {
	WorkflowID string
	Brand      entities.Brand
	AvatarID   string
	VoiceID    string
	Script     string
	Title      string
}

// Client talks to the avatar-video provider. Completion normally arrives on
// the webhook; Status exists for the recovery sweep.
type Client interface {
	Submit(ctx context.Context, job Job) (jobID string, err error)
	Status(ctx context.Context, jobID string) (entities.JobUpdate, error)
}

type httpClient struct {
	endpoint    string
	key         string
	callbackURL string // provider substitutes nothing; workflow id rides in callback_id
	guard       *resilience.Guard
	httpc       *http.Client
}

func NewClient(endpoint, key, callbackURL string, guard *resilience.Guard) Client {
	return &httpClient{
		endpoint:    strings.TrimRight(endpoint, "/"),
		key:         key,
		callbackURL: callbackURL,
		guard:       guard,
		httpc:       &http.Client{},
	}
}

func (c *httpClient) Submit(ctx context.Context, job Job) (string, error) {
	body := map[string]any{
		"avatar_id":    job.AvatarID,
		"voice_id":     job.VoiceID,
		"script":       job.Script,
		"title":        job.Title,
		"aspect_ratio": "9:16",
		"callback_url": c.callbackURL,
		"callback_id":  job.WorkflowID,
	}
	b, _ := json.Marshal(body)

	var jobID string
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/videos", bytes.NewReader(b))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.key)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpc.Do(req)
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
			return resilience.Transient(fmt.Errorf("decode submit response: %w", err))
		}
		if out.ID == "" {
			return resilience.Validation(fmt.Errorf("submit response missing job id"))
		}
		jobID = out.ID
		return nil
	})
	return jobID, err
}

func (c *httpClient) Status(ctx context.Context, jobID string) (entities.JobUpdate, error) {
	var update entities.JobUpdate
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/videos/"+jobID, nil)
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

		var out struct {
			ID       string `json:"id"`
			Status   string `json:"status"`
			VideoURL string `json:"video_url"`
			Error    string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return resilience.Transient(fmt.Errorf("decode status response: %w", err))
		}
		update = entities.JobUpdate{
			JobID:    jobID,
			Status:   mapStatus(out.Status),
			AssetURL: out.VideoURL,
			Detail:   out.Error,
		}
		return nil
	})
	return update, err
}

// mapStatus folds provider status vocabulary onto the pipeline's three
// states. Unknown values stay "processing" so the sweep tries again later.
func mapStatus(s string) entities.JobStatus {
	switch strings.ToLower(s) {
	case "completed", "complete", "done", "success":
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
