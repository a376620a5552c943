package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"socialcast/config"
	"socialcast/database"
	"socialcast/entities"
	"socialcast/router"

	"socialcast/pkg/ai"
	"socialcast/pkg/budget"
	"socialcast/pkg/captions"
	"socialcast/pkg/experiment"
	"socialcast/pkg/feed"
	"socialcast/pkg/logging"
	"socialcast/pkg/ops"
	"socialcast/pkg/publish"
	"socialcast/pkg/quality"
	"socialcast/pkg/resilience"
	"socialcast/pkg/schedule"
	"socialcast/pkg/videogen"

	healthCtrlImp "socialcast/pkg/health/controllerImp"
	wfCtrlImp "socialcast/pkg/workflow/controllerImp"
	wfRepoImp "socialcast/pkg/workflow/repositoryImp"
	wfSvcImp "socialcast/pkg/workflow/serviceImp"
	wfService "socialcast/pkg/workflow/service"
)

// app holds everything the subcommands share.
type app struct {
	cfg      config.AppConfig
	pipe     *config.Pipeline
	db       *gorm.DB
	log      *slog.Logger
	registry *resilience.Registry

	ingestor  *feed.Ingestor
	workflows wfService.WorkflowService
	ledger    *budget.Ledger
	slots     *schedule.Repository
	exps      *experiment.Service
	analytics *publish.AnalyticsClient
}

func buildApp() (*app, error) {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	pipe, err := config.LoadPipeline(cfg.PipelinePath)
	if err != nil {
		return nil, fmt.Errorf("load pipeline config: %w", err)
	}
	if cfg.SlotSheet != "" {
		if err := pipe.LoadSlotSheet(cfg.SlotSheet); err != nil {
			return nil, fmt.Errorf("load slot sheet: %w", err)
		}
	}

	db := database.OpenSQLite(cfg.DBPath)

	registry := resilience.NewRegistry()

	// scorer falls back to the deterministic mock when no key is set, so the
	// pipeline runs offline
	var scorer ai.Client
	if cfg.ScorerAPIKey != "" {
		scorer = ai.NewOpenAI(cfg.ScorerEndpoint, cfg.ScorerAPIKey, cfg.ScorerModel, registry.For(entities.ProviderScorer))
	} else {
		log.Warn("no scorer api key, using mock scorer")
		scorer = ai.NewMock()
	}

	rubrics := map[entities.Brand]string{}
	styles := map[entities.Brand]string{}
	for brand, p := range pipe.Brands {
		rubrics[brand] = p.Rubric
		styles[brand] = p.ScriptStyle
	}

	feedRepo := feed.NewRepository(db)
	ingestor := feed.NewIngestor(feedRepo, feed.NewRegistry(
		feed.NewRSSScanner(nil),
		feed.NewListingScanner(nil),
	), log)
	if err := feedRepo.SeedSources(context.Background(), pipe.FeedSources()); err != nil {
		return nil, fmt.Errorf("seed feed sources: %w", err)
	}

	ledger := budget.NewLedger(budget.NewRepository(db), pipe.Budgets, cfg.EnforceBudget, log)

	table, err := schedule.BuildSlotTable(pipe)
	if err != nil {
		return nil, fmt.Errorf("build slot table: %w", err)
	}
	slotRepo := schedule.NewRepository(db)
	allocator := schedule.NewAllocator(table, slotRepo, log)

	video := videogen.NewClient(cfg.VideoGenEndpoint, cfg.VideoGenAPIKey,
		cfg.BaseURL+"/webhooks/videogen", registry.For(entities.ProviderVideoGen))
	caption := captions.NewClient(cfg.CaptionsEndpoint, cfg.CaptionsAPIKey,
		cfg.BaseURL+"/webhooks/captions", registry.For(entities.ProviderCaptions))

	broker := publish.NewBroker(cfg.BrokerEndpoint, cfg.BrokerAPIKey, registry.For(entities.ProviderBroker))
	var host publish.VideoHost
	if cfg.VideoHostEndpoint != "" {
		host = publish.NewVideoHost(cfg.VideoHostEndpoint, cfg.VideoHostAPIKey, registry.For(entities.ProviderVideoHost))
	}
	publisher := publish.NewAdapter(broker, host, log)

	exps := experiment.NewService(experiment.NewRepository(db), log)

	filter := quality.NewFilter(scorer, rubrics, log)
	filter.SetGate(ledger)
	scripts := videogen.NewScriptWriter(scorer, styles, log)
	scripts.SetGate(ledger)

	workflows := wfSvcImp.New(wfSvcImp.Deps{
		Repo:        wfRepoImp.New(db),
		Articles:    feedRepo,
		Filter:      filter,
		Ledger:      ledger,
		Video:       video,
		Scripts:     scripts,
		Captions:    caption,
		Allocator:   allocator,
		Publisher:   publisher,
		Experiments: exps,
		Brands:      pipe.Brands,
		StuckAfter:  cfg.StuckAfter,
		Log:         log,
	})

	return &app{
		cfg:       cfg,
		pipe:      pipe,
		db:        db,
		log:       log,
		registry:  registry,
		ingestor:  ingestor,
		workflows: workflows,
		ledger:    ledger,
		slots:     slotRepo,
		exps:      exps,
		analytics: publish.NewAnalyticsClient(cfg.BrokerEndpoint, cfg.BrokerAPIKey, registry.For(entities.ProviderBroker)),
	}, nil
}

func (a *app) brands() []entities.Brand {
	out := make([]entities.Brand, 0, len(a.pipe.Brands))
	for b := range a.pipe.Brands {
		out = append(out, b)
	}
	return out
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server: webhooks, workflow API, task triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			e := echo.New()
			e.HideBanner = true
			e.Use(echoMiddleware.Recover())

			wfCtrl := wfCtrlImp.New(a.workflows, a.cfg.CaptionsWebhookSecret, a.log)
			opsCtrl := &ops.OpsCtrl{
				Ingestor:    a.ingestor,
				Workflows:   a.workflows,
				Ledger:      a.ledger,
				Slots:       a.slots,
				Experiments: a.exps,
				Analytics:   a.analytics,
				Registry:    a.registry,
				Brands:      a.brands(),
				Log:         a.log,
			}
			hCtrl := healthCtrlImp.NewHealthCtrl(a.db, a.registry)

			r := router.New(e, wfCtrl, opsCtrl, hCtrl, a.cfg.CronSecret)
			a.log.Info("listening", "port", a.cfg.Port)
			if err := r.Start(":" + a.cfg.Port); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch all enabled feed sources once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			sum, err := a.ingestor.Run(cmd.Context())
			if err != nil {
				return err
			}
			a.log.Info("ingest finished", "sources", sum.Sources, "failed", sum.Failed, "saved", sum.Saved)
			return nil
		},
	}
}

func scoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score",
		Short: "Score unprocessed articles and start workflows for the keepers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			for _, brand := range a.brands() {
				sum, err := a.workflows.EvaluateBrand(cmd.Context(), brand)
				if err != nil {
					a.log.Error("brand evaluation failed", "brand", brand, "err", err)
					continue
				}
				a.log.Info("brand scored", "brand", brand, "accepted", sum.Accepted, "started", sum.Started)
			}
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Poll providers for stuck workflows and advance or fail them",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			sum, err := a.workflows.RecoverStuck(cmd.Context())
			if err != nil {
				return err
			}
			a.log.Info("sweep finished", "checked", sum.Checked, "advanced", sum.Advanced, "failed", sum.Failed)
			return nil
		},
	}
}

func metricsSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics-sync",
		Short: "Pull post engagement for active experiments",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			return a.exps.SyncMetrics(cmd.Context(), a.analytics, func(ctx context.Context, workflowID string) (string, error) {
				wf, err := a.workflows.Get(ctx, workflowID)
				if err != nil {
					return "", err
				}
				return wf.PublishPostID, nil
			})
		},
	}
}

func main() {
	root := &cobra.Command{
		Use:   "socialcast",
		Short: "Content production and distribution pipeline",
	}
	root.AddCommand(serveCmd(), ingestCmd(), scoreCmd(), sweepCmd(), metricsSyncCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
