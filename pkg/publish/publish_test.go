package publish

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
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
		Retry:   resilience.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond},
	}
}

func brokerServer(t *testing.T, accounts []brokerAccount) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/accounts":
			json.NewEncoder(w).Encode(accounts)
		case "/posts":
			json.NewEncoder(w).Encode(map[string]string{"id": "post-1"})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestBrokerSkipsMissingAccountsWithWarnings(t *testing.T) {
	srv := brokerServer(t, []brokerAccount{{ID: "acc-ig", Platform: "instagram"}})
	defer srv.Close()

	b := NewBroker(srv.URL, "key", testGuard())
	res, err := b.Publish(context.Background(), Request{
		WorkflowID: "wf-1", Brand: entities.BrandRealty, Profile: "realty-main",
		Platforms: []entities.Platform{entities.PlatformInstagram, entities.PlatformTikTok, entities.PlatformThreads},
	})
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Len(t, res.Warnings, 2, "tiktok and threads have no account")

	byPlatform := map[entities.Platform]PlatformResult{}
	for _, p := range res.Platforms {
		byPlatform[p.Platform] = p
	}
	assert.True(t, byPlatform[entities.PlatformInstagram].Success)
	assert.False(t, byPlatform[entities.PlatformTikTok].Success)
	assert.False(t, byPlatform[entities.PlatformThreads].Success)
}

func TestBrokerAllAccountsMissingIsFatal(t *testing.T) {
	srv := brokerServer(t, nil)
	defer srv.Close()

	b := NewBroker(srv.URL, "key", testGuard())
	res, err := b.Publish(context.Background(), Request{
		Profile:   "empty",
		Platforms: []entities.Platform{entities.PlatformTikTok},
	})
	require.Error(t, err)
	assert.False(t, res.Succeeded())
}

type fakeBroker struct {
	res Result
	err error
	got Request
}

func (f *fakeBroker) Publish(_ context.Context, req Request) (Result, error) {
	f.got = req
	return f.res, f.err
}

type fakeHost struct {
	res PlatformResult
	err error
	up  int
}

func (f *fakeHost) Upload(context.Context, Request) (PlatformResult, error) {
	f.up++
	return f.res, f.err
}

func testAdapter(b Broker, h VideoHost) *Adapter {
	a := NewAdapter(b, h, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	a.DirectUpload = true
	return a
}

func TestAdapterPartitionsDirectPlatforms(t *testing.T) {
	fb := &fakeBroker{res: Result{
		PostID:    "post-1",
		Platforms: []PlatformResult{{Platform: entities.PlatformFacebook, Success: true, PostID: "post-1"}},
	}}
	fh := &fakeHost{res: PlatformResult{Platform: entities.PlatformYouTube, Success: true, PostID: "yt-1"}}

	res, err := testAdapter(fb, fh).Publish(context.Background(), Request{
		WorkflowID: "wf-1",
		Platforms:  []entities.Platform{entities.PlatformFacebook, entities.PlatformYouTube},
	})
	require.NoError(t, err)
	assert.Equal(t, []entities.Platform{entities.PlatformFacebook}, fb.got.Platforms)
	assert.Equal(t, 1, fh.up)
	assert.Len(t, res.Platforms, 2)
	assert.True(t, res.Succeeded())
}

func TestAdapterPartialSuccessIsSuccess(t *testing.T) {
	fb := &fakeBroker{err: errors.New("broker down")}
	fh := &fakeHost{res: PlatformResult{Platform: entities.PlatformYouTube, Success: true, PostID: "yt-1"}}

	res, err := testAdapter(fb, fh).Publish(context.Background(), Request{
		WorkflowID: "wf-1",
		Platforms:  []entities.Platform{entities.PlatformFacebook, entities.PlatformYouTube},
	})
	require.NoError(t, err, "one landed platform is a success")
	assert.True(t, res.Succeeded())
	assert.NotEmpty(t, res.Warnings)
}

func TestAdapterTotalFailure(t *testing.T) {
	fb := &fakeBroker{err: errors.New("broker down")}
	fh := &fakeHost{err: errors.New("host down")}

	res, err := testAdapter(fb, fh).Publish(context.Background(), Request{
		WorkflowID: "wf-1",
		Platforms:  []entities.Platform{entities.PlatformFacebook, entities.PlatformYouTube},
	})
	require.Error(t, err)
	assert.False(t, res.Succeeded())
}

func TestPostMetricsDecodesSuccessWithoutRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "/posts/post-1/analytics", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"platforms": []map[string]any{
				{"platform": "tiktok", "views": 1200, "likes": 80, "comments": 4, "shares": 11},
				{"platform": "instagram", "views": 300, "likes": 25, "comments": 2, "shares": 1},
			},
		})
	}))
	defer srv.Close()

	a := NewAnalyticsClient(srv.URL, "key", testGuard())
	m, err := a.PostMetrics(context.Background(), "post-1")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "a 2xx response must decode on the first attempt")
	assert.Equal(t, 1200, m[entities.PlatformTikTok].Views)
	assert.Equal(t, 25, m[entities.PlatformInstagram].Likes)
}
