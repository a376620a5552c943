package router

import (
	"github.com/labstack/echo/v4"

	"socialcast/pkg/middleware"
)

func New(
	e *echo.Echo,
	wfCtrl interface {
		VideoWebhook(echo.Context) error
		CaptionWebhook(echo.Context) error
		Get(echo.Context) error
		List(echo.Context) error
		Retry(echo.Context) error
		Reopen(echo.Context) error
	},
	opsCtrl interface {
		Ingest(echo.Context) error
		Score(echo.Context) error
		Sweep(echo.Context) error
		MetricsSync(echo.Context) error
		Budget(echo.Context) error
		Upcoming(echo.Context) error
		Breakers(echo.Context) error
		ResetBreaker(echo.Context) error
		CreateExperiment(echo.Context) error
		SetExperimentStatus(echo.Context) error
		ExperimentReport(echo.Context) error
	},
	healthCtrl interface{ Health(echo.Context) error },
	cronSecret string,
) *echo.Echo {
	e.GET("/health", healthCtrl.Health)

	// provider callbacks authenticate by payload (callback id / signature)
	e.POST("/webhooks/videogen", wfCtrl.VideoWebhook)
	e.POST("/webhooks/captions", wfCtrl.CaptionWebhook)

	e.GET("/workflows", wfCtrl.List)
	e.GET("/workflows/:id", wfCtrl.Get)
	e.POST("/workflows/:id/retry", wfCtrl.Retry)
	e.POST("/workflows/:id/reopen", wfCtrl.Reopen)

	tasks := e.Group("/tasks", middleware.CronSecret(cronSecret))
	tasks.POST("/ingest", opsCtrl.Ingest)
	tasks.POST("/score", opsCtrl.Score)
	tasks.POST("/sweep", opsCtrl.Sweep)
	tasks.POST("/metrics-sync", opsCtrl.MetricsSync)

	admin := e.Group("/admin", middleware.CronSecret(cronSecret))
	admin.GET("/budget", opsCtrl.Budget)
	admin.GET("/schedule/upcoming", opsCtrl.Upcoming)
	admin.GET("/breakers", opsCtrl.Breakers)
	admin.POST("/breakers/:provider/reset", opsCtrl.ResetBreaker)
	admin.POST("/experiments", opsCtrl.CreateExperiment)
	admin.PATCH("/experiments/:id/status", opsCtrl.SetExperimentStatus)
	admin.GET("/experiments/:id", opsCtrl.ExperimentReport)

	return e
}
