package quality

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialcast/entities"
	"socialcast/pkg/ai"
)

type scriptedScorer struct {
	mu     sync.Mutex
	calls  int
	scores map[string]int // by article title
	err    error
}

func (s *scriptedScorer) ScoreArticle(_ context.Context, _ entities.Brand, _, title, _ string) (ai.ScoreResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return ai.ScoreResult{}, s.err
	}
	score, ok := s.scores[title]
	if !ok {
		score = 75
	}
	return ai.ScoreResult{Score: score, Reasoning: "scripted", ShouldMakeVideo: score >= 70}, nil
}

func (s *scriptedScorer) WriteScript(context.Context, entities.Brand, string, string, string) (string, error) {
	return "", errors.New("not used")
}

func newTestFilter(c ai.Client) *Filter {
	f := NewFilter(c, nil, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	f.sleep = func(context.Context, time.Duration) {}
	return f
}

func article(title, content string) entities.Article {
	return entities.Article{ID: title, Brand: entities.BrandRealty, Title: title, Content: content}
}

func TestPreChecksSkipBillableCall(t *testing.T) {
	s := &scriptedScorer{}
	f := newTestFilter(s)
	ctx := context.Background()

	v := f.Evaluate(ctx, article("tiny", "too short"))
	assert.Equal(t, 0, v.Score)
	assert.False(t, v.Acceptable)
	assert.False(t, v.Billable)

	v = f.Evaluate(ctx, article("thin", strings.Repeat("x", 150)))
	assert.Equal(t, 30, v.Score)
	assert.False(t, v.Acceptable)
	assert.False(t, v.Billable)

	assert.Equal(t, 0, s.calls, "pre-check rejections must not call the scorer")
}

func TestEvaluateThreshold(t *testing.T) {
	s := &scriptedScorer{scores: map[string]int{"good": 85, "meh": 55}}
	f := newTestFilter(s)
	ctx := context.Background()
	body := strings.Repeat("a solid paragraph. ", 30)

	good := f.Evaluate(ctx, article("good", body))
	assert.True(t, good.Acceptable)
	assert.Equal(t, 85, good.Score)
	assert.True(t, good.Billable)

	meh := f.Evaluate(ctx, article("meh", body))
	assert.False(t, meh.Acceptable)
	assert.Contains(t, meh.Reason, "below threshold")
}

func TestEvaluateFailsOpenOnScorerError(t *testing.T) {
	s := &scriptedScorer{err: errors.New("scorer down")}
	f := newTestFilter(s)

	v := f.Evaluate(context.Background(), article("any", strings.Repeat("x", 500)))
	assert.True(t, v.Acceptable)
	assert.Equal(t, 50, v.Score)
	assert.Contains(t, v.Reasoning, "scorer unavailable")
}

type fakeGate struct {
	affordErr error
	spends    []string // provider:operation
}

func (g *fakeGate) CanAfford(context.Context, entities.Provider, entities.Brand, int) error {
	return g.affordErr
}

func (g *fakeGate) RecordSpend(_ context.Context, p entities.Provider, _ entities.Brand, op string, _ int, _ string) error {
	g.spends = append(g.spends, string(p)+":"+op)
	return nil
}

func TestEvaluateDefersWhenBudgetDenied(t *testing.T) {
	s := &scriptedScorer{}
	f := newTestFilter(s)
	g := &fakeGate{affordErr: errors.New("scorer daily cap reached")}
	f.SetGate(g)

	v := f.Evaluate(context.Background(), article("held", strings.Repeat("x", 500)))
	assert.True(t, v.Deferred)
	assert.False(t, v.Acceptable)
	assert.Contains(t, v.Reason, "budget")
	assert.Equal(t, 0, s.calls, "a denied article must not reach the scorer")
	assert.Empty(t, g.spends)
}

func TestEvaluateRecordsScorerSpend(t *testing.T) {
	s := &scriptedScorer{scores: map[string]int{"good": 85}}
	f := newTestFilter(s)
	g := &fakeGate{}
	f.SetGate(g)

	v := f.Evaluate(context.Background(), article("good", strings.Repeat("x", 500)))
	assert.True(t, v.Acceptable)
	assert.True(t, v.Billable)
	assert.Equal(t, []string{"scorer:article.score"}, g.spends)
}

func TestEvaluateTruncatesExcerpt(t *testing.T) {
	var gotLen int
	c := clientFunc(func(_ context.Context, _ entities.Brand, _, _, excerpt string) (ai.ScoreResult, error) {
		gotLen = len(excerpt)
		return ai.ScoreResult{Score: 80}, nil
	})
	f := newTestFilter(c)
	f.Evaluate(context.Background(), article("long", strings.Repeat("y", 5000)))
	assert.Equal(t, 1500, gotLen)
}

func TestEvaluateTruncatesOnRuneBoundary(t *testing.T) {
	var got string
	c := clientFunc(func(_ context.Context, _ entities.Brand, _, _, excerpt string) (ai.ScoreResult, error) {
		got = excerpt
		return ai.ScoreResult{Score: 80}, nil
	})
	f := newTestFilter(c)

	// the byte cut lands inside a three-byte rune
	content := "x" + strings.Repeat("世", 600)
	f.Evaluate(context.Background(), article("cjk", content))

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 1498, len(got), "cut backs up to the previous rune start")
}

type clientFunc func(ctx context.Context, brand entities.Brand, rubric, title, excerpt string) (ai.ScoreResult, error)

func (fn clientFunc) ScoreArticle(ctx context.Context, b entities.Brand, r, t, e string) (ai.ScoreResult, error) {
	return fn(ctx, b, r, t, e)
}
func (fn clientFunc) WriteScript(context.Context, entities.Brand, string, string, string) (string, error) {
	return "", errors.New("not used")
}

func TestEvaluateBatchScoresEverything(t *testing.T) {
	s := &scriptedScorer{scores: map[string]int{}}
	f := newTestFilter(s)
	body := strings.Repeat("text ", 100)

	var arts []entities.Article
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		arts = append(arts, article(name, body))
	}
	verdicts := f.EvaluateBatch(context.Background(), arts)

	require.Len(t, verdicts, 7)
	assert.Equal(t, 7, s.calls)
	// order preserved across batches
	for i, v := range verdicts {
		assert.Equal(t, arts[i].ID, v.Article.ID)
	}
}

func TestSelectTopRespectsCapacity(t *testing.T) {
	f := newTestFilter(&scriptedScorer{})
	verdicts := []Verdict{
		{Article: article("a", ""), Score: 90, Acceptable: true},
		{Article: article("b", ""), Score: 70, Acceptable: true},
		{Article: article("c", ""), Score: 85, Acceptable: true},
		{Article: article("d", ""), Score: 40, Acceptable: false, Reason: "score 40 below threshold"},
	}
	accepted, rejected := f.SelectTop(verdicts, 2)

	require.Len(t, accepted, 2)
	assert.Equal(t, "a", accepted[0].Article.ID)
	assert.Equal(t, "c", accepted[1].Article.ID)

	require.Len(t, rejected, 2)
	reasons := map[string]string{}
	for _, r := range rejected {
		reasons[r.Article.ID] = r.Reason
	}
	assert.Equal(t, "over daily capacity", reasons["b"])
	assert.Contains(t, reasons["d"], "below threshold")
}
