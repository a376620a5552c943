// pkg/ai/mock_client.go

package ai

import (
	"context"
	"fmt"
	"strings"

	"socialcast/entities"
)

type mockClient struct{}

// NewMock returns a deterministic offline client for tests and dry runs.
// Scores react to a few keywords so pipeline behavior can be steered from
// test fixtures.
func NewMock() Client { return &mockClient{} }

func (m *mockClient) ScoreArticle(_ context.Context, _ entities.Brand, _ string, title, excerpt string) (ScoreResult, error) {
	lower := strings.ToLower(title + " " + excerpt)
	switch {
	case strings.Contains(lower, "press release"), strings.Contains(lower, "sponsored"):
		return ScoreResult{Score: 20, Reasoning: "promotional content (mock)", RedFlags: []string{"promotional"}}, nil
	case strings.Contains(lower, "market"), strings.Contains(lower, "record"):
		return ScoreResult{Score: 85, Reasoning: "timely market story (mock)", ShouldMakeVideo: true, Strengths: []string{"timely"}}, nil
	default:
		return ScoreResult{Score: 75, Reasoning: "serviceable story (mock)", ShouldMakeVideo: true}, nil
	}
}

func (m *mockClient) WriteScript(_ context.Context, brand entities.Brand, _ string, title, _ string) (string, error) {
	return fmt.Sprintf("Here's what you need to know about %s. The %s market keeps moving, and this story shows exactly where. Follow for more updates like this one.", title, brand), nil
}
