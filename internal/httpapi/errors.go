package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MarkoPoloResearchLab/gamification/pkg/ledger"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{target: ledger.ErrInvalidUserID, status: http.StatusBadRequest, code: "invalid_user_id"},
	{target: ledger.ErrInvalidCurrencyKey, status: http.StatusBadRequest, code: "invalid_currency_key"},
	{target: ledger.ErrInvalidIdempotencyKey, status: http.StatusBadRequest, code: "invalid_idempotency_key"},
	{target: ledger.ErrInvalidDrillID, status: http.StatusBadRequest, code: "invalid_drill_id"},
	{target: ledger.ErrInvalidSeriesID, status: http.StatusBadRequest, code: "invalid_series_id"},
	{target: ledger.ErrInvalidActorID, status: http.StatusBadRequest, code: "invalid_actor_id"},
	{target: ledger.ErrInvalidReason, status: http.StatusBadRequest, code: "invalid_reason"},
	{target: ledger.ErrInvalidPageSize, status: http.StatusBadRequest, code: "invalid_limit"},
	{target: errInvalidQuery, status: http.StatusBadRequest, code: "invalid_query"},
	{target: ledger.ErrInvalidCurrency, status: http.StatusBadRequest, code: "invalid_currency"},
	{target: ledger.ErrZeroDelta, status: http.StatusBadRequest, code: "zero_delta"},
	{target: ledger.ErrNoRank, status: http.StatusNotFound, code: "no_rank"},
	{target: ledger.ErrEntryNotFound, status: http.StatusNotFound, code: "not_found"},
	{target: ledger.ErrDuplicateSource, status: http.StatusConflict, code: "duplicate_source"},
	{target: ledger.ErrConstraintViolation, status: http.StatusConflict, code: "constraint_violation"},
	{target: ledger.ErrUnavailable, status: http.StatusServiceUnavailable, code: "unavailable"},
	{target: context.DeadlineExceeded, status: http.StatusServiceUnavailable, code: "unavailable"},
	{target: ledger.ErrCatalogInconsistent, status: http.StatusInternalServerError, code: "catalog_inconsistent"},
}

func classifyError(err error) (int, string) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			return mapping.status, mapping.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
