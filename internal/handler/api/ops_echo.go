package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"TradePulse/internal/domain"
	"TradePulse/internal/domain/models"
	"TradePulse/internal/domain/service"
	opsmetrics "TradePulse/internal/service/metrics"
	xhttp "TradePulse/pkg/http"
	xlogger "TradePulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// HealthCheck is one dependency probed by /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthStatus is the /healthz body.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// OpsEchoHandler serves health, tracked symbols and worker introspection.
type OpsEchoHandler struct {
	logger       *xlogger.Logger
	engine       service.Inspector
	checks       []HealthCheck
	checkTimeout time.Duration
}

func NewOpsEchoHandler(logger *xlogger.Logger, engine service.Inspector, checks ...HealthCheck) *OpsEchoHandler {
	return &OpsEchoHandler{
		logger:       logger.With(xlogger.String("component", "ops_api")),
		engine:       engine,
		checks:       checks,
		checkTimeout: 2 * time.Second,
	}
}

func (h *OpsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	g := e.Group("/api")
	g.GET("/symbols", h.Symbols)
	g.GET("/debug/state", h.DebugState)
}

// Healthz pings every dependency. Any failure makes it 503.
func (h *OpsEchoHandler) Healthz(c echo.Context) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.checkTimeout)
	defer cancel()

	res := HealthStatus{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	var failed error
	for _, chk := range h.checks {
		if err := chk.Check(ctx); err != nil {
			res.Status = "degraded"
			res.Checks[chk.Name] = err.Error()
			failed = err
			h.logger.Warn("health check failed", xlogger.String("check", chk.Name), xlogger.Error(err))
			continue
		}
		res.Checks[chk.Name] = "ok"
	}
	opsmetrics.Observe("healthz", start, failed)

	if failed != nil {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, res)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *OpsEchoHandler) Symbols(c echo.Context) error {
	start := time.Now()
	req := &models.SymbolsRequest{}
	if aerr := xhttp.ReadAndValidateRequest(c, req); aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}

	all := h.engine.Symbols()
	rows := all
	if len(rows) > req.Limit {
		rows = rows[:req.Limit]
	}
	opsmetrics.Observe("symbols", start, nil)
	return xhttp.ListResponse(c, rows, int64(len(all)))
}

func (h *OpsEchoHandler) DebugState(c echo.Context) error {
	start := time.Now()
	req := &models.DebugStateRequest{}
	if aerr := xhttp.ReadAndValidateRequest(c, req); aerr != nil {
		return xhttp.AppErrorResponse(c, aerr)
	}

	st, err := h.engine.Inspect(c.Request().Context(), req.Symbol)
	opsmetrics.Observe("debug_state", start, err)
	if err != nil {
		if errors.Is(err, domain.ErrSymbolNotTracked) {
			return xhttp.AppErrorResponse(c, xhttp.SymbolNotTracked(req.Symbol))
		}
		h.logger.Error("inspect failed", xlogger.Symbol(req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("inspect failed").WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, st)
}
