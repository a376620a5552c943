package serviceImp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"socialcast/config"
	"socialcast/entities"
	"socialcast/pkg/budget"
	"socialcast/pkg/captions"
	"socialcast/pkg/experiment"
	"socialcast/pkg/feed"
	"socialcast/pkg/publish"
	"socialcast/pkg/quality"
	"socialcast/pkg/resilience"
	"socialcast/pkg/schedule"
	"socialcast/pkg/videogen"
	"socialcast/pkg/workflow/repository"
	"socialcast/pkg/workflow/service"
)

const (
	excerptLen = 1500

	// exportWindow is how long a recorded export trigger suppresses
	// re-triggering when the provider redelivers "completed, no URL".
	exportWindow = 5 * time.Minute
)

// Deps is everything the workflow engine touches. Main wires it once.
type Deps struct {
	Repo        repository.WorkflowRepository
	Articles    *feed.Repository
	Filter      *quality.Filter
	Ledger      *budget.Ledger
	Video       videogen.Client
	Scripts     *videogen.ScriptWriter
	Captions    captions.Client
	Allocator   *schedule.Allocator
	Publisher   *publish.Adapter
	Experiments *experiment.Service
	Brands      map[entities.Brand]config.BrandProfile

	// StuckAfter is the sweep's poll threshold; a workflow quiet for four
	// times this long is failed with a timeout.
	StuckAfter time.Duration

	Log *slog.Logger
}

type wfSvc struct {
	Deps
	log      *slog.Logger
	now      func() time.Time
	dupDrops atomic.Int64
}

func New(d Deps) service.WorkflowService {
	if d.StuckAfter <= 0 {
		d.StuckAfter = 30 * time.Minute
	}
	return &wfSvc{
		Deps: d,
		log:  d.Log.With("component", "workflow"),
		now:  time.Now,
	}
}

func (s *wfSvc) EvaluateBrand(ctx context.Context, brand entities.Brand) (service.EvalSummary, error) {
	sum := service.EvalSummary{Brand: brand}
	profile, ok := s.Brands[brand]
	if !ok {
		return sum, fmt.Errorf("brand %s not configured", brand)
	}

	arts, err := s.Articles.Unprocessed(ctx, brand)
	if err != nil {
		return sum, err
	}
	if len(arts) == 0 {
		return sum, nil
	}

	verdicts := s.Filter.EvaluateBatch(ctx, arts)
	sum.Evaluated = len(verdicts)
	accepted, rejected := s.Filter.SelectTop(verdicts, profile.DailyCapacity)

	for _, v := range rejected {
		if v.Deferred {
			// budget-denied: leave unprocessed so a later pass retries it
			sum.Deferred++
			continue
		}
		score := v.Score
		if err := s.Articles.MarkProcessed(ctx, v.Article.ID, &score, v.Reason); err != nil {
			return sum, err
		}
		sum.Rejected++
	}
	for _, v := range accepted {
		score := v.Score
		if err := s.Articles.MarkProcessed(ctx, v.Article.ID, &score, ""); err != nil {
			return sum, err
		}
		sum.Accepted++
		wf, err := s.StartFromArticle(ctx, v.Article.ID)
		if err != nil {
			s.log.Warn("workflow start failed", "article", v.Article.ID, "err", err)
			continue
		}
		if wf.State != entities.StateFailed {
			sum.Started++
		}
	}
	s.log.Info("brand evaluated", "brand", brand, "evaluated", sum.Evaluated,
		"accepted", sum.Accepted, "deferred", sum.Deferred, "started", sum.Started)
	return sum, nil
}

func (s *wfSvc) StartFromArticle(ctx context.Context, articleID string) (*entities.Workflow, error) {
	art, err := s.Articles.Get(ctx, articleID)
	if err != nil {
		return nil, err
	}
	active, err := s.Repo.HasActive(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, fmt.Errorf("article %s already has a live workflow", articleID)
	}

	wf := &entities.Workflow{
		ID:           uuid.NewString(),
		ArticleID:    art.ID,
		Brand:        art.Brand,
		State:        entities.StatePending,
		ArticleTitle: art.Title,
	}
	if assign, err := s.Experiments.Assign(ctx, art.Brand); err == nil && assign != nil {
		wf.ExperimentID = assign.ExperimentID
		wf.VariantID = assign.Variant.ID
	}
	if err := s.Repo.Create(ctx, wf); err != nil {
		return nil, err
	}
	if err := s.Articles.AttachWorkflow(ctx, art.ID, wf.ID); err != nil {
		return nil, err
	}
	return wf, s.submitVideo(ctx, wf, art)
}

// submitVideo drives pending → video_processing. The budget gate sits here,
// before the billable call.
func (s *wfSvc) submitVideo(ctx context.Context, wf *entities.Workflow, art entities.Article) error {
	profile := s.Brands[wf.Brand]

	if err := s.Ledger.CanAfford(ctx, entities.ProviderVideoGen, wf.Brand, 1); err != nil {
		if errors.Is(err, budget.ErrBudgetExceeded) {
			return s.fail(ctx, wf, entities.StatePending, entities.ReasonBudgetExceeded, err.Error())
		}
		return err
	}

	variant, _ := s.Experiments.Variant(ctx, wf.ExperimentID, wf.VariantID)
	modifier := ""
	if variant != nil {
		modifier = variant.PromptModifier
	}

	excerpt := art.Content
	if len(excerpt) > excerptLen {
		cut := excerptLen
		for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
			cut--
		}
		excerpt = excerpt[:cut]
	}
	wf.Script = s.Scripts.Write(ctx, wf.Brand, modifier, art.Title, excerpt)

	jobID, err := s.Video.Submit(ctx, videogen.Job{
		WorkflowID: wf.ID,
		Brand:      wf.Brand,
		AvatarID:   profile.AvatarID,
		VoiceID:    profile.VoiceID,
		Script:     wf.Script,
		Title:      art.Title,
	})
	if err != nil {
		return s.fail(ctx, wf, entities.StatePending, failReasonFor(err), err.Error())
	}
	if err := s.Ledger.RecordSpend(ctx, entities.ProviderVideoGen, wf.Brand, "video.submit", 1, wf.ID); err != nil {
		s.log.Error("spend record failed", "workflow", wf.ID, "err", err)
	}

	wf.VideoJobID = jobID
	wf.State = entities.StateVideoProcessing
	ok, err := s.Repo.CAS(ctx, wf, entities.StatePending)
	if err != nil {
		return err
	}
	if !ok {
		s.dropDuplicate(wf.ID, "pending already advanced")
	}
	return nil
}

func (s *wfSvc) HandleVideoUpdate(ctx context.Context, workflowID string, u entities.JobUpdate) error {
	wf, err := s.Repo.Get(ctx, workflowID)
	if err != nil {
		return err
	}
	if wf.State != entities.StateVideoProcessing {
		s.dropDuplicate(wf.ID, fmt.Sprintf("video update in state %s", wf.State))
		return nil
	}
	if u.JobID != "" && wf.VideoJobID != "" && u.JobID != wf.VideoJobID {
		s.dropDuplicate(wf.ID, "video update for a superseded job")
		return nil
	}

	switch u.Status {
	case entities.JobProcessing:
		return nil
	case entities.JobFailed:
		return s.fail(ctx, &wf, entities.StateVideoProcessing, entities.ReasonProviderError, u.Detail)
	case entities.JobCompleted:
		if u.AssetURL == "" {
			return s.fail(ctx, &wf, entities.StateVideoProcessing, entities.ReasonProviderError, "video completed without a video url")
		}
		return s.startCaptions(ctx, &wf, u.AssetURL)
	}
	return fmt.Errorf("unhandled job status %q", u.Status)
}

// startCaptions drives video_processing → caption_processing.
func (s *wfSvc) startCaptions(ctx context.Context, wf *entities.Workflow, videoURL string) error {
	profile := s.Brands[wf.Brand]

	if err := s.Ledger.CanAfford(ctx, entities.ProviderCaptions, wf.Brand, 1); err != nil {
		if errors.Is(err, budget.ErrBudgetExceeded) {
			return s.fail(ctx, wf, entities.StateVideoProcessing, entities.ReasonBudgetExceeded, err.Error())
		}
		return err
	}

	projectID, err := s.Captions.Create(ctx, wf.ID, videoURL, profile.CaptionStyle)
	if err != nil {
		return s.fail(ctx, wf, entities.StateVideoProcessing, failReasonFor(err), err.Error())
	}
	if err := s.Ledger.RecordSpend(ctx, entities.ProviderCaptions, wf.Brand, "caption.create", 1, wf.ID); err != nil {
		s.log.Error("spend record failed", "workflow", wf.ID, "err", err)
	}

	wf.VideoURL = videoURL
	wf.CaptionJobID = projectID
	wf.State = entities.StateCaptionProcessing
	ok, err := s.Repo.CAS(ctx, wf, entities.StateVideoProcessing)
	if err != nil {
		return err
	}
	if !ok {
		s.dropDuplicate(wf.ID, "video completion raced another delivery")
	}
	return nil
}

func (s *wfSvc) HandleCaptionUpdate(ctx context.Context, workflowID string, u entities.JobUpdate) error {
	wf, err := s.Repo.Get(ctx, workflowID)
	if err != nil {
		return err
	}
	if wf.State != entities.StateCaptionProcessing {
		s.dropDuplicate(wf.ID, fmt.Sprintf("caption update in state %s", wf.State))
		return nil
	}
	if u.JobID != "" && wf.CaptionJobID != "" && u.JobID != wf.CaptionJobID {
		s.dropDuplicate(wf.ID, "caption update for a superseded project")
		return nil
	}

	switch u.Status {
	case entities.JobProcessing:
		return nil
	case entities.JobFailed:
		return s.fail(ctx, &wf, entities.StateCaptionProcessing, entities.ReasonProviderError, u.Detail)
	case entities.JobCompleted:
		if u.AssetURL == "" {
			return s.triggerExport(ctx, &wf)
		}
		return s.startPosting(ctx, &wf, u.AssetURL)
	}
	return fmt.Errorf("unhandled job status %q", u.Status)
}

// triggerExport handles the first phase of caption completion: the project
// is done but the file is not rendered until an export is requested. The
// stored trigger time makes redelivered completions a no-op inside the
// window.
func (s *wfSvc) triggerExport(ctx context.Context, wf *entities.Workflow) error {
	now := s.now()
	if wf.ExportTriggeredAt != nil && now.Sub(*wf.ExportTriggeredAt) < exportWindow {
		s.dropDuplicate(wf.ID, "export already triggered")
		return nil
	}
	if err := s.Captions.TriggerExport(ctx, wf.CaptionJobID); err != nil {
		return s.fail(ctx, wf, entities.StateCaptionProcessing, failReasonFor(err), err.Error())
	}
	wf.ExportTriggeredAt = &now
	// state does not change; the CAS still guards against a racing delivery
	if _, err := s.Repo.CAS(ctx, wf, entities.StateCaptionProcessing); err != nil {
		return err
	}
	s.log.Info("caption export triggered", "workflow", wf.ID, "project", wf.CaptionJobID)
	return nil
}

// startPosting drives caption_processing → posting → completed.
func (s *wfSvc) startPosting(ctx context.Context, wf *entities.Workflow, assetURL string) error {
	profile := s.Brands[wf.Brand]
	variant, _ := s.Experiments.Variant(ctx, wf.ExperimentID, wf.VariantID)

	var claim *entities.SlotClaim
	var publishAt time.Time
	if variant != nil && variant.PostHour != nil {
		publishAt = s.variantTime(variant)
	} else {
		c, err := s.Allocator.NextSlot(ctx, wf.Brand, profile.PrimaryGroup, wf.ID)
		if err != nil {
			return s.fail(ctx, wf, entities.StateCaptionProcessing, entities.ReasonValidation, err.Error())
		}
		claim = &c
		publishAt = c.PublishAt
		idx := c.SlotIndex
		wf.SlotIndex = &idx
	}

	wf.AssetURL = assetURL
	wf.Caption = s.buildCaption(profile, wf, variant)
	wf.PublishAt = &publishAt
	wf.State = entities.StatePosting

	ok, err := s.Repo.CAS(ctx, wf, entities.StateCaptionProcessing)
	if err != nil {
		return err
	}
	if !ok {
		if claim != nil {
			if rerr := s.Allocator.Release(ctx, *claim); rerr != nil {
				s.log.Error("slot release failed", "workflow", wf.ID, "err", rerr)
			}
		}
		s.dropDuplicate(wf.ID, "caption completion raced another delivery")
		return nil
	}
	return s.performPublish(ctx, wf, profile, claim)
}

func (s *wfSvc) performPublish(ctx context.Context, wf *entities.Workflow, profile config.BrandProfile, claim *entities.SlotClaim) error {
	res, err := s.Publisher.Publish(ctx, publish.Request{
		WorkflowID: wf.ID,
		Brand:      wf.Brand,
		Profile:    profile.BrokerProfile,
		Caption:    wf.Caption,
		MediaURL:   wf.AssetURL,
		Title:      wf.ArticleTitle,
		Platforms:  profile.Platforms,
		ScheduleAt: *wf.PublishAt,
	})
	wf.Warnings = strings.Join(res.Warnings, "; ")
	if err != nil {
		if claim != nil {
			if rerr := s.Allocator.Release(ctx, *claim); rerr != nil {
				s.log.Error("slot release failed", "workflow", wf.ID, "err", rerr)
			}
		}
		reason := entities.ReasonProviderError
		if !res.Succeeded() && len(res.Warnings) > 0 && res.PostID == "" {
			reason = entities.ReasonNoPlatforms
		}
		return s.fail(ctx, wf, entities.StatePosting, reason, err.Error())
	}

	now := s.now()
	wf.PublishPostID = res.PostID
	wf.State = entities.StateCompleted
	wf.CompletedAt = &now
	ok, casErr := s.Repo.CAS(ctx, wf, entities.StatePosting)
	if casErr != nil {
		return casErr
	}
	if !ok {
		s.dropDuplicate(wf.ID, "posting already resolved")
		return nil
	}

	if err := s.Experiments.RecordCompletion(ctx, wf.ExperimentID, wf.VariantID, wf.ID, wf.Brand); err != nil {
		s.log.Error("experiment result record failed", "workflow", wf.ID, "err", err)
	}
	s.log.Info("workflow completed", "workflow", wf.ID, "post", res.PostID,
		"publish_at", wf.PublishAt, "warnings", wf.Warnings)
	return nil
}

// variantTime pins the publish time to the variant's fixed wall clock: the
// next occurrence at least the minimum lead away.
func (s *wfSvc) variantTime(v *entities.ExperimentVariant) time.Time {
	loc := s.Allocator.Location()
	if v.Timezone != "" {
		if l, err := time.LoadLocation(v.Timezone); err == nil {
			loc = l
		}
	}
	now := s.now().In(loc)
	at := time.Date(now.Year(), now.Month(), now.Day(), *v.PostHour, v.PostMinute, 0, 0, loc)
	if !at.After(now.Add(10 * time.Minute)) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

func (s *wfSvc) buildCaption(profile config.BrandProfile, wf *entities.Workflow, variant *entities.ExperimentVariant) string {
	caption := wf.ArticleTitle
	if profile.Hashtags != "" {
		caption += "\n\n" + profile.Hashtags
	}
	if variant != nil && variant.CaptionSuffix != "" {
		caption += variant.CaptionSuffix
	}
	return caption
}

func (s *wfSvc) Get(ctx context.Context, id string) (entities.Workflow, error) {
	return s.Repo.Get(ctx, id)
}

func (s *wfSvc) List(ctx context.Context, brand entities.Brand, state entities.WorkflowState, limit int) ([]entities.Workflow, error) {
	return s.Repo.List(ctx, brand, state, limit)
}

func (s *wfSvc) Retry(ctx context.Context, id string) (*entities.Workflow, error) {
	wf, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !wf.State.Terminal() {
		return nil, fmt.Errorf("workflow %s is still %s; retry applies to terminal workflows", id, wf.State)
	}
	return s.StartFromArticle(ctx, wf.ArticleID)
}

// Reopen is the operator override: it bypasses the forward-only transition
// graph on purpose and resumes a terminal record from whatever artifacts it
// already holds.
func (s *wfSvc) Reopen(ctx context.Context, id string) (*entities.Workflow, error) {
	wf, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !wf.State.Terminal() {
		return nil, fmt.Errorf("workflow %s is not terminal", id)
	}
	prev := wf.State
	wf.FailReason = ""
	wf.Error = ""
	wf.CompletedAt = nil

	switch {
	case wf.AssetURL != "":
		wf.State = entities.StateCaptionProcessing
		if ok, err := s.Repo.CAS(ctx, &wf, prev); err != nil || !ok {
			return nil, fmt.Errorf("reopen %s: lost update race", id)
		}
		if err := s.startPosting(ctx, &wf, wf.AssetURL); err != nil {
			return nil, err
		}
	case wf.VideoURL != "":
		wf.State = entities.StateVideoProcessing
		if ok, err := s.Repo.CAS(ctx, &wf, prev); err != nil || !ok {
			return nil, fmt.Errorf("reopen %s: lost update race", id)
		}
		if err := s.startCaptions(ctx, &wf, wf.VideoURL); err != nil {
			return nil, err
		}
	default:
		wf.State = entities.StatePending
		if ok, err := s.Repo.CAS(ctx, &wf, prev); err != nil || !ok {
			return nil, fmt.Errorf("reopen %s: lost update race", id)
		}
		art, err := s.Articles.Get(ctx, wf.ArticleID)
		if err != nil {
			return nil, err
		}
		if err := s.submitVideo(ctx, &wf, art); err != nil {
			return nil, err
		}
	}
	s.log.Info("workflow reopened", "workflow", id, "from", prev)
	got, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &got, nil
}

func (s *wfSvc) RecoverStuck(ctx context.Context) (service.SweepSummary, error) {
	var sum service.SweepSummary
	now := s.now()
	cutoff := now.Add(-s.StuckAfter)
	failAfter := 4 * s.StuckAfter

	stuck, err := s.Repo.StuckSince(ctx, []entities.WorkflowState{
		entities.StateVideoProcessing, entities.StateCaptionProcessing, entities.StatePosting,
	}, cutoff)
	if err != nil {
		return sum, err
	}

	for _, wf := range stuck {
		sum.Checked++
		age := now.Sub(wf.UpdatedAt)

		var update entities.JobUpdate
		var pollErr error
		switch wf.State {
		case entities.StateVideoProcessing:
			update, pollErr = s.Video.Status(ctx, wf.VideoJobID)
		case entities.StateCaptionProcessing:
			update, pollErr = s.Captions.Status(ctx, wf.CaptionJobID)
		case entities.StatePosting:
			// posting is synchronous; still being here means the publish
			// crashed mid-flight
			pollErr = fmt.Errorf("stranded in posting")
		}

		if pollErr != nil || update.Status == entities.JobProcessing {
			if age > failAfter {
				detail := fmt.Sprintf("no progress for %s", age.Round(time.Minute))
				if pollErr != nil {
					detail += ": " + pollErr.Error()
				}
				if err := s.fail(ctx, &wf, wf.State, entities.ReasonTimeout, detail); err != nil {
					return sum, err
				}
				sum.Failed++
			}
			continue
		}

		var applyErr error
		switch wf.State {
		case entities.StateVideoProcessing:
			applyErr = s.HandleVideoUpdate(ctx, wf.ID, update)
		case entities.StateCaptionProcessing:
			applyErr = s.HandleCaptionUpdate(ctx, wf.ID, update)
		}
		if applyErr != nil {
			s.log.Warn("sweep apply failed", "workflow", wf.ID, "err", applyErr)
			continue
		}
		if update.Status == entities.JobFailed {
			sum.Failed++
		} else {
			sum.Advanced++
		}
	}
	s.log.Info("sweep done", "checked", sum.Checked, "advanced", sum.Advanced, "failed", sum.Failed)
	return sum, nil
}

// DuplicateDrops counts acknowledged-and-discarded updates since start.
func (s *wfSvc) DuplicateDrops() int64 { return s.dupDrops.Load() }

func (s *wfSvc) dropDuplicate(workflowID, why string) {
	s.dupDrops.Add(1)
	s.log.Debug("update dropped", "workflow", workflowID, "why", why)
}

func (s *wfSvc) fail(ctx context.Context, wf *entities.Workflow, from entities.WorkflowState, reason entities.FailReason, detail string) error {
	wf.State = entities.StateFailed
	wf.FailReason = reason
	wf.Error = detail
	ok, err := s.Repo.CAS(ctx, wf, from)
	if err != nil {
		return err
	}
	if !ok {
		s.dropDuplicate(wf.ID, "failure raced another transition")
		return nil
	}
	s.log.Warn("workflow failed", "workflow", wf.ID, "from", from, "reason", reason, "err", detail)
	return nil
}

// failReasonFor maps the transport error taxonomy onto workflow fail
// reasons.
func failReasonFor(err error) entities.FailReason {
	var ve *resilience.ValidationError
	if errors.As(err, &ve) {
		return entities.ReasonValidation
	}
	return entities.ReasonProviderError
}
