package ai

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
		Retry:   resilience.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond},
	}
}

func chatResponse(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	}
}

func TestScoreArticleDecodesSuccessWithoutRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "/chat/completions", r.URL.Path)
		json.NewEncoder(w).Encode(chatResponse(
			"SCORE: 82\nREASONING: timely and concrete\nSHOULD_MAKE_VIDEO: YES\nRED_FLAGS:\n- none\nSTRENGTHS:\n- strong hook",
		))
	}))
	defer srv.Close()

	c := NewOpenAI(srv.URL, "key", "gpt-4o-mini", testGuard())
	res, err := c.ScoreArticle(context.Background(), entities.BrandRealty, "rubric", "title", "excerpt")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "a 2xx response must decode on the first attempt")
	assert.Equal(t, 82, res.Score)
	assert.True(t, res.ShouldMakeVideo)
	assert.Equal(t, []string{"strong hook"}, res.Strengths)
}

func TestChatRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(chatResponse("a short spoken script with more than fifteen words in it so validation keeps it around"))
	}))
	defer srv.Close()

	c := NewOpenAI(srv.URL, "key", "gpt-4o-mini", testGuard())
	script, err := c.WriteScript(context.Background(), entities.BrandAutos, "bold", "title", "excerpt")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NotEmpty(t, script)
}
