package httpapi

import (
	"log/slog"
	"net/http"
	"os"

	"litwatch/internal/domain"
	"litwatch/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RunHandler exposes run intake and lookup.
type RunHandler struct {
	start  usecase.StartRunUsecase
	get    usecase.GetRunUsecase
	logger *slog.Logger
}

func NewRunHandler(start usecase.StartRunUsecase, get usecase.GetRunUsecase, logger *slog.Logger) *RunHandler {
	return &RunHandler{start: start, get: get, logger: logger}
}

// HandleStart accepts a run request and enqueues it. The run executes
// asynchronously; the response carries the id to poll.
func (h *RunHandler) HandleStart(c echo.Context) error {
	var req startRunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	run, err := h.start.Execute(c.Request().Context(), usecase.StartRunInput{
		Keyword:     req.Keyword,
		MaxArticles: req.MaxArticles,
	})
	if err != nil {
		return mapDomainError(err)
	}

	return c.JSON(http.StatusAccepted, toRunResponse(*run))
}

// HandleGet returns a run with its summaries and synthesis once the run
// completed.
func (h *RunHandler) HandleGet(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid run id")
	}

	details, err := h.get.Execute(c.Request().Context(), id)
	if err != nil {
		return mapDomainError(err)
	}
	if details == nil {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}

	return c.JSON(http.StatusOK, toRunDetailsResponse(details))
}

// HandleReport serves the run's Markdown report. The report exists only
// for completed runs.
func (h *RunHandler) HandleReport(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid run id")
	}

	details, err := h.get.Execute(c.Request().Context(), id)
	if err != nil {
		return mapDomainError(err)
	}
	if details == nil {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if details.Run.Status != domain.RunStatusCompleted || details.Run.ReportPath == "" {
		return echo.NewHTTPError(http.StatusNotFound, "report not available")
	}

	data, err := os.ReadFile(details.Run.ReportPath)
	if err != nil {
		// The run row references a report artifact that is gone.
		h.logger.Warn("report_artifact_missing",
			slog.String("run_id", id.String()),
			slog.String("path", details.Run.ReportPath))
		return echo.NewHTTPError(http.StatusNotFound, "report not available")
	}

	return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", data)
}
