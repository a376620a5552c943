package captions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialcast/entities"
	"socialcast/pkg/resilience"
)

func testGuard() *resilience.Guard {
	return &resilience.Guard{
		Breaker: resilience.NewBreaker(5, time.Minute, time.Minute),
		Retry:   resilience.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond},
	}
}

func TestCreateSendsWorkflowCorrelation(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/projects", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{"id": "proj-7"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "https://app.example.com/webhooks/captions/autos", testGuard())
	id, err := c.Create(context.Background(), "wf-2", "https://cdn.example.com/v.mp4", "bold")
	require.NoError(t, err)
	assert.Equal(t, "proj-7", id)
	assert.Equal(t, "wf-2", got["external_id"])
	assert.Equal(t, "https://cdn.example.com/v.mp4", got["video_url"])
}

func TestCreateDecodesSuccessWithoutRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]string{"id": "proj-1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "wh", testGuard())
	id, err := c.Create(context.Background(), "wf-1", "https://cdn.example.com/v.mp4", "bold")
	require.NoError(t, err)
	assert.Equal(t, "proj-1", id)
	assert.Equal(t, 1, calls, "a 2xx response must decode on the first attempt")
}

func TestTriggerExportRetriesUntilAccepted(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/projects/proj-7/export", r.URL.Path)
		calls++
		// the provider refuses exports for a moment right after completion
		if calls < 3 {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "wh", testGuard())
	require.NoError(t, c.TriggerExport(context.Background(), "proj-7"))
	assert.Equal(t, 3, calls)
}

func TestStatusTwoPhaseCompletion(t *testing.T) {
	exported := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"id": "proj-7", "status": "completed"}
		if exported {
			body["download_url"] = "https://cdn.example.com/final.mp4"
		}
		json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "wh", testGuard())

	u, err := c.Status(context.Background(), "proj-7")
	require.NoError(t, err)
	assert.Equal(t, entities.JobCompleted, u.Status)
	assert.Empty(t, u.AssetURL, "first completion carries no download URL")

	exported = true
	u, err = c.Status(context.Background(), "proj-7")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/final.mp4", u.AssetURL)
}
