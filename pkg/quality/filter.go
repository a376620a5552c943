package quality

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
	"unicode/utf8"

	"socialcast/entities"
	"socialcast/pkg/ai"
)

const (
	// Articles below these lengths never reach the scorer.
	minContentLen    = 100 // reject outright, score 0
	thinContentLen   = 200 // too thin for video, score 30
	excerptLen       = 1500
	acceptThreshold  = 70
	failOpenScore    = 50
	defaultBatchSize = 3
	interBatchDelay  = 500 * time.Millisecond
)

// Verdict is the filter's decision for one article.
type Verdict struct {
	Article    entities.Article
	Score      int
	Reasoning  string
	RedFlags   []string
	Strengths  []string
	Acceptable bool
	Reason     string // rejection reason when not acceptable
	Billable   bool   // whether a scorer call was made
	Deferred   bool   // budget-denied; leave the article unprocessed for a later pass
}

// Gate approves billable scorer calls and records their cost. *budget.Ledger
// satisfies it.
type Gate interface {
	CanAfford(ctx context.Context, provider entities.Provider, brand entities.Brand, units int) error
	RecordSpend(ctx context.Context, provider entities.Provider, brand entities.Brand, operation string, units int, workflowID string) error
}

// Filter decides which ingested articles are worth a video. Pre-checks catch
// junk before any billable call; a scorer outage fails open at a neutral
// score so the pipeline degrades instead of stalling.
type Filter struct {
	client  ai.Client
	rubrics map[entities.Brand]string
	gate    Gate
	log     *slog.Logger

	batchSize int
	delay     time.Duration
	sleep     func(context.Context, time.Duration)
}

func NewFilter(client ai.Client, rubrics map[entities.Brand]string, log *slog.Logger) *Filter {
	return &Filter{
		client:    client,
		rubrics:   rubrics,
		log:       log.With("component", "quality"),
		batchSize: defaultBatchSize,
		delay:     interBatchDelay,
		sleep: func(ctx context.Context, d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		},
	}
}

// SetGate enables budget enforcement for scorer calls.
func (f *Filter) SetGate(g Gate) { f.gate = g }

func (f *Filter) rubric(brand entities.Brand) string {
	if r, ok := f.rubrics[brand]; ok && r != "" {
		return r
	}
	return "Favor timely, locally relevant stories with a concrete angle a 30-second video can carry. Penalize press releases, thin aggregation and anything requiring visuals we cannot produce."
}

// Evaluate scores one article. Pre-checks short-circuit without billing.
func (f *Filter) Evaluate(ctx context.Context, art entities.Article) Verdict {
	if len(art.Content) < minContentLen {
		return Verdict{Article: art, Score: 0, Acceptable: false, Reason: "content under 100 chars"}
	}
	if len(art.Content) < thinContentLen {
		return Verdict{Article: art, Score: 30, Acceptable: false, Reason: "content too thin for video"}
	}

	if f.gate != nil {
		if gerr := f.gate.CanAfford(ctx, entities.ProviderScorer, art.Brand, 1); gerr != nil {
			f.log.Warn("scoring deferred, scorer budget denied", "article", art.ID, "err", gerr)
			return Verdict{Article: art, Acceptable: false, Deferred: true, Reason: "scorer budget exhausted"}
		}
	}

	excerpt := art.Content
	if len(excerpt) > excerptLen {
		cut := excerptLen
		for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
			cut--
		}
		excerpt = excerpt[:cut]
	}

	res, err := f.client.ScoreArticle(ctx, art.Brand, f.rubric(art.Brand), art.Title, excerpt)
	f.recordScorerSpend(ctx, art)
	if err != nil {
		// fail open: a scorer outage must not stall the whole pipeline
		f.log.Warn("scorer unavailable, failing open", "article", art.ID, "err", err)
		return Verdict{
			Article: art, Score: failOpenScore, Acceptable: true,
			Reasoning: fmt.Sprintf("scorer unavailable: %v", err), Billable: true,
		}
	}

	v := Verdict{
		Article: art, Score: res.Score, Reasoning: res.Reasoning,
		RedFlags: res.RedFlags, Strengths: res.Strengths, Billable: true,
	}
	if res.Score >= acceptThreshold {
		v.Acceptable = true
	} else {
		v.Reason = fmt.Sprintf("score %d below threshold", res.Score)
	}
	return v
}

func (f *Filter) recordScorerSpend(ctx context.Context, art entities.Article) {
	if f.gate == nil {
		return
	}
	if err := f.gate.RecordSpend(ctx, entities.ProviderScorer, art.Brand, "article.score", 1, ""); err != nil {
		f.log.Warn("scorer spend not recorded", "article", art.ID, "err", err)
	}
}

// EvaluateBatch scores articles in groups of three with a short pause between
// groups, keeping peak scorer load bounded.
func (f *Filter) EvaluateBatch(ctx context.Context, arts []entities.Article) []Verdict {
	out := make([]Verdict, 0, len(arts))
	for start := 0; start < len(arts); start += f.batchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + f.batchSize
		if end > len(arts) {
			end = len(arts)
		}
		batch := arts[start:end]

		type slot struct {
			i int
			v Verdict
		}
		ch := make(chan slot, len(batch))
		for i, art := range batch {
			go func(i int, art entities.Article) {
				ch <- slot{i, f.Evaluate(ctx, art)}
			}(i, art)
		}
		got := make([]Verdict, len(batch))
		for range batch {
			s := <-ch
			got[s.i] = s.v
		}
		out = append(out, got...)

		if end < len(arts) {
			f.sleep(ctx, f.delay)
		}
	}
	return out
}

// SelectTop ranks acceptable verdicts by score and keeps the daily capacity.
// Everything past capacity is demoted to rejected with a capacity reason so
// the article is marked processed and not re-evaluated tomorrow.
func (f *Filter) SelectTop(verdicts []Verdict, capacity int) (accepted, rejected []Verdict) {
	var ok []Verdict
	for _, v := range verdicts {
		if v.Acceptable {
			ok = append(ok, v)
		} else {
			rejected = append(rejected, v)
		}
	}
	sort.SliceStable(ok, func(i, j int) bool { return ok[i].Score > ok[j].Score })

	if capacity <= 0 || capacity > len(ok) {
		capacity = len(ok)
	}
	accepted = ok[:capacity]
	for _, v := range ok[capacity:] {
		v.Acceptable = false
		v.Reason = "over daily capacity"
		rejected = append(rejected, v)
	}
	return accepted, rejected
}
