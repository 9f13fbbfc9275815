package match

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	matchrepo "github.com/kikokaraba/srei-sub004/internal/repositories/match"
	"github.com/kikokaraba/srei-sub004/pkg/models"
	"github.com/kikokaraba/srei-sub004/pkg/tracing"
)

var validate = validator.New()

const defaultReviewLimit = 100

// Register registers match review routes
func Register(g *echo.Group) {
	g.GET("", ListUnresolved)
	g.GET("/pair", GetByPair)
	g.POST("/approve", ApproveMatch)
	g.POST("/reject", RejectMatch)
}

// ListUnresolved lists candidate matches awaiting review, highest confidence
// first
func ListUnresolved(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "match_handler.ListUnresolved")
	defer span.End()

	limit := defaultReviewLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	ctx, repo, err := ectoinject.GetContext[*matchrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	matches, err := repo.ListUnresolved(ctx, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, matches)
}

// GetByPair returns the match record for one listing pair
func GetByPair(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "match_handler.GetByPair")
	defer span.End()

	listingAID := c.QueryParam("listing_a_id")
	listingBID := c.QueryParam("listing_b_id")
	if listingAID == "" || listingBID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "listing_a_id and listing_b_id query parameters are required")
	}

	ctx, repo, err := ectoinject.GetContext[*matchrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	m, err := repo.GetByPair(ctx, listingAID, listingBID)
	if err != nil {
		return err
	}
	if m == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "pair has not been scored")
	}

	return c.JSON(http.StatusOK, m)
}

// ApproveMatch confirms a candidate match as a human verdict
func ApproveMatch(c echo.Context) error {
	return resolve(c, models.MatchStatusConfirmed)
}

// RejectMatch rejects a candidate match as a human verdict
func RejectMatch(c echo.Context) error {
	return resolve(c, models.MatchStatusRejected)
}

// resolve applies a human verdict to a pair. Human verdicts take precedence:
// the decision engine never overwrites them.
func resolve(c echo.Context, status string) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "match_handler.resolve")
	defer span.End()

	var req models.ResolveMatchRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ListingAID == req.ListingBID {
		return httperror.NewHTTPError(http.StatusBadRequest, "a listing cannot match itself")
	}

	ctx, repo, err := ectoinject.GetContext[*matchrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	existing, err := repo.GetByPair(ctx, req.ListingAID, req.ListingBID)
	if err != nil {
		return err
	}
	if existing == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "pair has not been scored")
	}

	var resolvedBy *string
	if req.ResolvedBy != "" {
		resolvedBy = &req.ResolvedBy
	}

	if err := repo.UpdateStatusByPair(ctx, req.ListingAID, req.ListingBID, status, resolvedBy); err != nil {
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"listing_a_id": req.ListingAID,
			"listing_b_id": req.ListingBID,
			"status":       status,
		}).Info("Match resolved by human review")
	}

	return c.JSON(http.StatusOK, map[string]string{"status": status})
}
