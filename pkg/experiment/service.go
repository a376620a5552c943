package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/google/uuid"

	"socialcast/entities"
)

// Assignment is the variant a new workflow runs with.
type Assignment struct {
	ExperimentID string
	Variant      entities.ExperimentVariant
}

// Service draws variants for new workflows and records their outcomes.
type Service struct {
	repo *Repository
	log  *slog.Logger
	rand *rand.Rand
}

func NewService(repo *Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With("component", "experiment"),
		rand: rand.New(rand.NewSource(rand.Int63())),
	}
}

// Assign draws a variant for the brand's active experiment by traffic-split
// weight. No active experiment, or a malformed one, means no assignment.
func (s *Service) Assign(ctx context.Context, brand entities.Brand) (*Assignment, error) {
	exp, err := s.repo.ActiveForBrand(ctx, brand)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, nil
	}
	if len(exp.Variants) == 0 || len(exp.Variants) != len(exp.TrafficSplit) {
		s.log.Warn("experiment misconfigured, skipping assignment",
			"experiment", exp.ID, "variants", len(exp.Variants), "weights", len(exp.TrafficSplit))
		return nil, nil
	}

	total := 0
	for _, w := range exp.TrafficSplit {
		total += w
	}
	if total <= 0 {
		return nil, nil
	}

	draw := s.rand.Intn(total)
	for i, w := range exp.TrafficSplit {
		if draw < w {
			return &Assignment{ExperimentID: exp.ID, Variant: exp.Variants[i]}, nil
		}
		draw -= w
	}
	// unreachable with a positive total, but keep the compiler honest
	return &Assignment{ExperimentID: exp.ID, Variant: exp.Variants[len(exp.Variants)-1]}, nil
}

// RecordCompletion creates the result row for a workflow that finished its
// run under an experiment. Metrics arrive later via the sync.
func (s *Service) RecordCompletion(ctx context.Context, experimentID, variantID, workflowID string, brand entities.Brand) error {
	if experimentID == "" {
		return nil
	}
	existing, err := s.repo.ResultByWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return s.repo.SaveResult(ctx, &entities.ExperimentResult{
		ID:           uuid.NewString(),
		ExperimentID: experimentID,
		VariantID:    variantID,
		WorkflowID:   workflowID,
		Brand:        brand,
		Metrics:      map[entities.Platform]entities.PlatformMetrics{},
	})
}

// CreateExperiment validates and stores a new test in draft.
func (s *Service) CreateExperiment(ctx context.Context, e *entities.Experiment) error {
	if len(e.Variants) < 2 {
		return fmt.Errorf("experiment needs at least two variants")
	}
	if len(e.TrafficSplit) != len(e.Variants) {
		return fmt.Errorf("traffic split needs one weight per variant")
	}
	total := 0
	for _, w := range e.TrafficSplit {
		if w < 0 {
			return fmt.Errorf("negative traffic weight")
		}
		total += w
	}
	if total != 100 {
		return fmt.Errorf("traffic split must sum to 100, got %d", total)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	for i := range e.Variants {
		if e.Variants[i].ID == "" {
			e.Variants[i].ID = uuid.NewString()
		}
	}
	if e.Status == "" {
		e.Status = entities.ExperimentDraft
	}
	return s.repo.Create(ctx, e)
}

// Variant resolves a stored variant reference; nil when the experiment or
// variant no longer exists.
func (s *Service) Variant(ctx context.Context, experimentID, variantID string) (*entities.ExperimentVariant, error) {
	if experimentID == "" || variantID == "" {
		return nil, nil
	}
	exp, err := s.repo.Get(ctx, experimentID)
	if err != nil {
		return nil, nil
	}
	for i := range exp.Variants {
		if exp.Variants[i].ID == variantID {
			return &exp.Variants[i], nil
		}
	}
	return nil, nil
}

// Report is the operator view: the experiment plus per-variant aggregates.
type Report struct {
	Experiment entities.Experiment `json:"experiment"`
	Stats      []variantStats      `json:"stats"`
	Results    int                 `json:"results"`
}

func (s *Service) Report(ctx context.Context, id string) (Report, error) {
	exp, err := s.repo.Get(ctx, id)
	if err != nil {
		return Report{}, err
	}
	results, err := s.repo.Results(ctx, id)
	if err != nil {
		return Report{}, err
	}
	return Report{Experiment: exp, Stats: VariantStats(exp, results), Results: len(results)}, nil
}

// SetStatus moves an experiment between draft/active/paused/completed.
func (s *Service) SetStatus(ctx context.Context, id string, status entities.ExperimentStatus) error {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	e.Status = status
	return s.repo.Update(ctx, &e)
}
