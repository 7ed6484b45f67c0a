package handler

import (
	"errors"
	"net/http"

	"github.com/HyunsooZo/signly-sub001/internal/domain"
	"github.com/HyunsooZo/signly-sub001/internal/dto"
	"github.com/gin-gonic/gin"
)

// respondError maps domain errors onto HTTP status codes. The mapping is by
// error category first; a handful of sentinels get their own code so clients
// can branch without string matching.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrTemplateNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "TEMPLATE_NOT_FOUND",
		})
	case errors.Is(err, domain.ErrNotParty):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "NOT_PARTY",
		})
	case errors.Is(err, domain.ErrAlreadySigned):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "ALREADY_SIGNED",
		})
	case errors.Is(err, domain.ErrVersionConflict):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   err.Error(),
			Code:    "CONCURRENT_UPDATE",
			Message: "The contract was modified concurrently. Please retry.",
		})
	default:
		respondByKind(c, err)
	}
}

func respondByKind(c *gin.Context, err error) {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "NOT_FOUND",
		})
	case domain.KindForbidden:
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "FORBIDDEN",
		})
	case domain.KindExpired:
		c.JSON(http.StatusGone, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "EXPIRED",
		})
	case domain.KindConflict:
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_STATE",
		})
	case domain.KindValidation:
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		})
	}
}
