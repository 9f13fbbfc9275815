package run

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/kikokaraba/srei-sub004/pkg/dedupe"
	"github.com/kikokaraba/srei-sub004/pkg/tracing"
)

// Register registers deduplication run routes
func Register(g *echo.Group) {
	g.POST("/run", TriggerRun)
}

// TriggerRun executes a full deduplication run and returns its report. A run
// already in progress yields 409 instead of queueing a second one.
func TriggerRun(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "run_handler.TriggerRun")
	defer span.End()

	ctx, runner, err := ectoinject.GetContext[*dedupe.Runner](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get runner")
	}

	report, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, dedupe.ErrRunInProgress) {
			return httperror.NewHTTPError(http.StatusConflict, "a deduplication run is already in progress")
		}
		return err
	}

	return c.JSON(http.StatusOK, report)
}
