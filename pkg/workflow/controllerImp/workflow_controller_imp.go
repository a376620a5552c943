package controllerImp

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"socialcast/entities"
	"socialcast/pkg/captions"
	"socialcast/pkg/videogen"
	"socialcast/pkg/workflow/controller"
	"socialcast/pkg/workflow/service"
)

type wfCtrl struct {
	svc           service.WorkflowService
	captionSecret string
	log           *slog.Logger
}

func New(svc service.WorkflowService, captionSecret string, log *slog.Logger) controller.WorkflowController {
	return &wfCtrl{svc: svc, captionSecret: captionSecret, log: log.With("component", "http")}
}

// VideoWebhook always answers 200 once the payload parses: providers retry
// on anything else, and duplicates are the service's problem to drop.
func (h *wfCtrl) VideoWebhook(c echo.Context) error {
	workflowID, update, err := videogen.ParseWebhook(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := h.svc.HandleVideoUpdate(c.Request().Context(), workflowID, update); err != nil {
		h.log.Error("video webhook failed", "workflow", workflowID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *wfCtrl) CaptionWebhook(c echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "read body"})
	}
	if !captions.VerifySignature(h.captionSecret, raw, c.Request().Header.Get("X-Signature")) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "bad signature"})
	}
	workflowID, update, err := captions.ParseWebhook(raw)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := h.svc.HandleCaptionUpdate(c.Request().Context(), workflowID, update); err != nil {
		h.log.Error("caption webhook failed", "workflow", workflowID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *wfCtrl) Get(c echo.Context) error {
	wf, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, wf)
}

func (h *wfCtrl) List(c echo.Context) error {
	brand := entities.Brand(c.QueryParam("brand"))
	state := entities.WorkflowState(c.QueryParam("state"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	out, err := h.svc.List(c.Request().Context(), brand, state, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *wfCtrl) Retry(c echo.Context) error {
	wf, err := h.svc.Retry(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, wf)
}

func (h *wfCtrl) Reopen(c echo.Context) error {
	wf, err := h.svc.Reopen(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, wf)
}
