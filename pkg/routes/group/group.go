package group

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/kikokaraba/srei-sub004/pkg/grouping"
	"github.com/kikokaraba/srei-sub004/pkg/tracing"
)

const defaultGroupLimit = 50

// Register registers duplicate group routes
func Register(g *echo.Group) {
	g.GET("", ListGroups)
	g.GET("/cities", ListCities)
	g.GET("/stats", GetStats)
}

// RegisterListing registers the per-listing master record route
func RegisterListing(g *echo.Group) {
	g.GET("/:id/master", GetMaster)
}

// GetMaster returns the master record for the group containing a listing.
// A listing with no confirmed duplicates yields 404.
func GetMaster(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "group_handler.GetMaster")
	defer span.End()

	listingID := c.Param("id")
	if listingID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "listing id is required")
	}

	ctx, builder, err := ectoinject.GetContext[*grouping.Builder](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get group builder")
	}

	record, err := builder.BuildGroup(ctx, listingID)
	if err != nil {
		return err
	}
	if record == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "listing has no confirmed duplicates")
	}

	return c.JSON(http.StatusOK, record)
}

// ListGroups lists duplicate groups, optionally filtered by city, ordered by
// potential savings
func ListGroups(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "group_handler.ListGroups")
	defer span.End()

	city := c.QueryParam("city")

	limit := defaultGroupLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	ctx, builder, err := ectoinject.GetContext[*grouping.Builder](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get group builder")
	}

	records, err := builder.FindAllGroups(ctx, city, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, records)
}

// ListCities lists the cities with active listings, for the group list filter
func ListCities(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "group_handler.ListCities")
	defer span.End()

	ctx, builder, err := ectoinject.GetContext[*grouping.Builder](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get group builder")
	}

	cities, err := builder.Cities(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, cities)
}

// GetStats returns duplicate coverage statistics, optionally for one city
func GetStats(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "group_handler.GetStats")
	defer span.End()

	city := c.QueryParam("city")

	ctx, builder, err := ectoinject.GetContext[*grouping.Builder](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get group builder")
	}

	stats, err := builder.Stats(ctx, city)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, stats)
}
