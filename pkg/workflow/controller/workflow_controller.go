package controller

import "github.com/labstack/echo/v4"

type WorkflowController interface {
	VideoWebhook(c echo.Context) error
	CaptionWebhook(c echo.Context) error

	Get(c echo.Context) error
	List(c echo.Context) error
	Retry(c echo.Context) error
	Reopen(c echo.Context) error
}
