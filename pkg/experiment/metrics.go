package experiment

import (
	"context"
	"sort"

	"socialcast/entities"
)

// minSample is how many results a variant needs before it can be called a
// provisional winner.
const minSample = 30

// Analytics pulls per-platform engagement for a published post.
type Analytics interface {
	PostMetrics(ctx context.Context, postID string) (map[entities.Platform]entities.PlatformMetrics, error)
}

// PostResolver maps a workflow to its publisher post id.
type PostResolver func(ctx context.Context, workflowID string) (string, error)

// SyncMetrics refreshes engagement for every result of every active
// experiment, then recomputes the provisional winner. Individual post
// failures are skipped so one deleted post cannot stall the sync.
func (s *Service) SyncMetrics(ctx context.Context, analytics Analytics, resolve PostResolver) error {
	experiments, err := s.repo.ActiveExperiments(ctx)
	if err != nil {
		return err
	}
	for _, exp := range experiments {
		results, err := s.repo.Results(ctx, exp.ID)
		if err != nil {
			return err
		}
		for i := range results {
			postID, err := resolve(ctx, results[i].WorkflowID)
			if err != nil || postID == "" {
				continue
			}
			metrics, err := analytics.PostMetrics(ctx, postID)
			if err != nil {
				s.log.Warn("metrics pull failed", "post", postID, "err", err)
				continue
			}
			results[i].Metrics = metrics
			results[i].Recompute()
			if err := s.repo.SaveResult(ctx, &results[i]); err != nil {
				return err
			}
		}
		if err := s.computeWinner(ctx, exp); err != nil {
			return err
		}
	}
	return nil
}

type variantStats struct {
	VariantID string  `json:"variant_id"`
	Samples   int     `json:"samples"`
	MeanRate  float64 `json:"mean_rate"`
}

// computeWinner updates the experiment's provisional winner: the variant
// with the highest mean engagement rate, eligible only once every variant
// has the minimum sample. Confidence grows with the margin over the
// runner-up.
func (s *Service) computeWinner(ctx context.Context, exp entities.Experiment) error {
	results, err := s.repo.Results(ctx, exp.ID)
	if err != nil {
		return err
	}

	stats := VariantStats(exp, results)
	if len(stats) < 2 {
		return nil
	}
	for _, st := range stats {
		if st.Samples < minSample {
			return nil
		}
	}

	winner, confidence := pickWinner(stats)
	if winner == exp.WinningVariant && confidence == exp.Confidence {
		return nil
	}
	exp.WinningVariant = winner
	exp.Confidence = confidence
	s.log.Info("provisional winner updated",
		"experiment", exp.ID, "variant", winner, "confidence", confidence)
	return s.repo.Update(ctx, &exp)
}

// VariantStats aggregates results per variant, in variant order.
func VariantStats(exp entities.Experiment, results []entities.ExperimentResult) []variantStats {
	byVariant := map[string]*variantStats{}
	for _, v := range exp.Variants {
		byVariant[v.ID] = &variantStats{VariantID: v.ID}
	}
	for _, r := range results {
		st, ok := byVariant[r.VariantID]
		if !ok {
			continue
		}
		st.MeanRate = (st.MeanRate*float64(st.Samples) + r.EngagementRate) / float64(st.Samples+1)
		st.Samples++
	}
	out := make([]variantStats, 0, len(exp.Variants))
	for _, v := range exp.Variants {
		out = append(out, *byVariant[v.ID])
	}
	return out
}

func pickWinner(stats []variantStats) (variantID string, confidence int) {
	sorted := make([]variantStats, len(stats))
	copy(sorted, stats)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MeanRate > sorted[j].MeanRate })

	best, second := sorted[0], sorted[1]
	if best.MeanRate <= 0 {
		return "", 0
	}
	margin := (best.MeanRate - second.MeanRate) / best.MeanRate // 0..1
	confidence = 50 + int(margin*50)
	if confidence > 99 {
		confidence = 99
	}
	return best.VariantID, confidence
}
