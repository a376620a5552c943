package captions

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"socialcast/entities"
)

// VerifySignature checks the provider's HMAC-SHA256 hex signature over the
// raw body. An empty secret disables verification.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}

// ParseWebhook decodes a caption project callback. A completed status with
// no download URL is the first completion phase; the caller triggers the
// export.
func ParseWebhook(raw []byte) (workflowID string, update entities.JobUpdate, err error) {
	var body struct {
		ExternalID  string `json:"external_id"`
		ProjectID   string `json:"project_id"`
		ID          string `json:"id"`
		Status      string `json:"status"`
		DownloadURL string `json:"download_url"`
		Error       string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", entities.JobUpdate{}, fmt.Errorf("decode webhook: %w", err)
	}
	if body.ExternalID == "" {
		return "", entities.JobUpdate{}, fmt.Errorf("webhook missing external_id")
	}
	projectID := body.ProjectID
	if projectID == "" {
		projectID = body.ID
	}
	return body.ExternalID, entities.JobUpdate{
		JobID:    projectID,
		Status:   mapStatus(body.Status),
		AssetURL: body.DownloadURL,
		Detail:   body.Error,
	}, nil
}
