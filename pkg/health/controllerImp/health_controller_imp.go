package controllerImp

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"socialcast/pkg/resilience"
)

var appStart = time.Now()

type HealthCtrl struct {
	db       *gorm.DB
	registry *resilience.Registry
}

func NewHealthCtrl(db *gorm.DB, registry *resilience.Registry) *HealthCtrl {
	return &HealthCtrl{db: db, registry: registry}
}

func (h *HealthCtrl) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 800*time.Millisecond)
	defer cancel()

	dbOK := true
	dbErr := ""
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil {
			dbOK = false
			dbErr = "db.DB(): " + err.Error()
		} else if err := sqlDB.PingContext(ctx); err != nil {
			dbOK = false
			dbErr = "ping: " + err.Error()
		}
	} else {
		dbOK = false
		dbErr = "gorm db is nil"
	}

	openBreakers := []string{}
	if h.registry != nil {
		for provider, open := range h.registry.BreakerStates() {
			if open {
				openBreakers = append(openBreakers, string(provider))
			}
		}
	}

	status := http.StatusOK
	if !dbOK {
		status = http.StatusServiceUnavailable
	}

	type sub struct {
		OK  bool   `json:"ok"`
		Err string `json:"err,omitempty"`
	}
	return c.JSON(status, map[string]any{
		"ok":            dbOK,
		"uptime":        time.Since(appStart).Round(time.Second).String(),
		"db":            sub{OK: dbOK, Err: dbErr},
		"open_breakers": openBreakers,
	})
}
