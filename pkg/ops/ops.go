// Task triggers and operator endpoints. Everything here sits behind the
// cron-secret middleware.
package ops

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"socialcast/entities"
	"socialcast/pkg/budget"
	"socialcast/pkg/experiment"
	"socialcast/pkg/feed"
	"socialcast/pkg/resilience"
	"socialcast/pkg/schedule"
	"socialcast/pkg/workflow/service"
)

type OpsCtrl struct {
	Ingestor    *feed.Ingestor
	Workflows   service.WorkflowService
	Ledger      *budget.Ledger
	Slots       *schedule.Repository
	Experiments *experiment.Service
	Analytics   experiment.Analytics
	Registry    *resilience.Registry
	Brands      []entities.Brand
	Log         *slog.Logger
}

// Ingest runs one fetch cycle over every enabled feed source.
func (h *OpsCtrl) Ingest(c echo.Context) error {
	sum, err := h.Ingestor.Run(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, sum)
}

// Score evaluates every configured brand's unprocessed articles and starts
// workflows for the keepers.
func (h *OpsCtrl) Score(c echo.Context) error {
	out := make([]service.EvalSummary, 0, len(h.Brands))
	for _, brand := range h.Brands {
		sum, err := h.Workflows.EvaluateBrand(c.Request().Context(), brand)
		if err != nil {
			h.Log.Error("brand evaluation failed", "brand", brand, "err", err)
			continue
		}
		out = append(out, sum)
	}
	return c.JSON(http.StatusOK, out)
}

// Sweep polls providers for workflows that stopped hearing webhooks.
func (h *OpsCtrl) Sweep(c echo.Context) error {
	sum, err := h.Workflows.RecoverStuck(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, sum)
}

// MetricsSync pulls post engagement for active experiments and recomputes
// provisional winners.
func (h *OpsCtrl) MetricsSync(c echo.Context) error {
	ctx := c.Request().Context()
	err := h.Experiments.SyncMetrics(ctx, h.Analytics, func(ctx context.Context, workflowID string) (string, error) {
		wf, err := h.Workflows.Get(ctx, workflowID)
		if err != nil {
			return "", err
		}
		return wf.PublishPostID, nil
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Budget reports spend rows matching the period prefix (default: today).
func (h *OpsCtrl) Budget(c echo.Context) error {
	prefix := c.QueryParam("period")
	if prefix == "" {
		prefix = time.Now().UTC().Format("2006-01-02")
	}
	rows, err := h.Ledger.Report(c.Request().Context(), prefix)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, rows)
}

// Upcoming lists claimed posting slots from now forward.
func (h *OpsCtrl) Upcoming(c echo.Context) error {
	claims, err := h.Slots.Upcoming(c.Request().Context(), time.Now())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, claims)
}

// Breakers reports which provider circuits are currently open.
func (h *OpsCtrl) Breakers(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Registry.BreakerStates())
}

// ResetBreaker force-closes one provider's circuit after an outage clears.
func (h *OpsCtrl) ResetBreaker(c echo.Context) error {
	if err := h.Registry.ResetBreaker(c.Param("provider")); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *OpsCtrl) CreateExperiment(c echo.Context) error {
	var e entities.Experiment
	if err := c.Bind(&e); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad json"})
	}
	if err := h.Experiments.CreateExperiment(c.Request().Context(), &e); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *OpsCtrl) SetExperimentStatus(c echo.Context) error {
	var body struct {
		Status entities.ExperimentStatus `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad json"})
	}
	if err := h.Experiments.SetStatus(c.Request().Context(), c.Param("id"), body.Status); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *OpsCtrl) ExperimentReport(c echo.Context) error {
	report, err := h.Experiments.Report(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, report)
}
