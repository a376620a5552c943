// pkg/ai/client.go

package ai

import (
	"context"

	"socialcast/entities"
)

// ScoreResult is the structured verdict the scorer model returns for one
// article.
type ScoreResult struct {
	Score           int
	Reasoning       string
	ShouldMakeVideo bool
	RedFlags        []string
	Strengths       []string
}

type Client interface {
	// ScoreArticle rates an article excerpt against a brand rubric.
	ScoreArticle(ctx context.Context, brand entities.Brand, rubric, title, excerpt string) (ScoreResult, error)

	// WriteScript turns an article into a short spoken video script.
	WriteScript(ctx context.Context, brand entities.Brand, styleHints, title, excerpt string) (string, error)
}
