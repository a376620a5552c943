package videogen

import (
	"encoding/json"
	"fmt"
	"io"

	"socialcast/entities"
)

// ParseWebhook decodes a provider callback. The workflow id rides in
// callback_id because the provider echoes it back verbatim.
func ParseWebhook(r io.Reader) (workflowID string, update entities.JobUpdate, err error) {
	var body struct {
		CallbackID string `json:"callback_id"`
		ID         string `json:"id"`
		Status     string `json:"status"`
		VideoURL   string `json:"video_url"`
		Error      string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return "", entities.JobUpdate{}, fmt.Errorf("decode webhook: %w", err)
	}
	if body.CallbackID == "" {
		return "", entities.JobUpdate{}, fmt.Errorf("webhook missing callback_id")
	}
	return body.CallbackID, entities.JobUpdate{
		JobID:    body.ID,
		Status:   mapStatus(body.Status),
		AssetURL: body.VideoURL,
		Detail:   body.Error,
	}, nil
}
