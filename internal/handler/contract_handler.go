package handler

import (
	"net/http"
	"strconv"

	"github.com/HyunsooZo/signly-sub001/internal/dto"
	"github.com/HyunsooZo/signly-sub001/internal/service"
	"github.com/HyunsooZo/signly-sub001/pkg/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ContractHandler handles contract HTTP requests for authenticated creators.
// The signer-facing token endpoints live in SigningHandler.
type ContractHandler struct {
	contractService service.ContractService
}

// NewContractHandler creates a new contract handler
func NewContractHandler(contractService service.ContractService) *ContractHandler {
	return &ContractHandler{contractService: contractService}
}

// CreateContract handles POST /contracts
func (h *ContractHandler) CreateContract(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.contract.create")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	var req dto.CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	span.SetAttributes(attribute.String("user_id", userID))

	result, err := h.contractService.CreateContract(ctx, userID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondError(c, err)
		return
	}

	span.SetAttributes(attribute.String("contract_id", result.ID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, result)
}

// UpdateContract handles PATCH /contracts/:id
func (h *ContractHandler) UpdateContract(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.contract.update")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, contractID, ok := h.authAndID(c)
	if !ok {
		span.SetStatus(codes.Error, "bad request")
		return
	}

	var req dto.UpdateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	span.SetAttributes(
		attribute.String("contract_id", contractID),
		attribute.String("user_id", userID),
	)

	result, err := h.contractService.UpdateContract(ctx, contractID, userID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// SendForSigning handles POST /contracts/:id/send
func (h *ContractHandler) SendForSigning(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.contract.send")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, contractID, ok := h.authAndID(c)
	if !ok {
		span.SetStatus(codes.Error, "bad request")
		return
	}

	span.SetAttributes(
		attribute.String("contract_id", contractID),
		attribute.String("user_id", userID),
	)

	result, err := h.contractService.SendForSigning(ctx, contractID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// CompleteContract handles POST /contracts/:id/complete
func (h *ContractHandler) CompleteContract(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.contract.complete")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, contractID, ok := h.authAndID(c)
	if !ok {
		span.SetStatus(codes.Error, "bad request")
		return
	}

	span.SetAttributes(
		attribute.String("contract_id", contractID),
		attribute.String("user_id", userID),
	)

	result, err := h.contractService.CompleteContract(ctx, contractID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// CancelContract handles POST /contracts/:id/cancel
func (h *ContractHandler) CancelContract(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.contract.cancel")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, contractID, ok := h.authAndID(c)
	if !ok {
		span.SetStatus(codes.Error, "bad request")
		return
	}

	span.SetAttributes(
		attribute.String("contract_id", contractID),
		attribute.String("user_id", userID),
	)

	result, err := h.contractService.CancelContract(ctx, contractID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// DeleteContract handles DELETE /contracts/:id
func (h *ContractHandler) DeleteContract(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.contract.delete")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, contractID, ok := h.authAndID(c)
	if !ok {
		span.SetStatus(codes.Error, "bad request")
		return
	}

	span.SetAttributes(
		attribute.String("contract_id", contractID),
		attribute.String("user_id", userID),
	)

	if err := h.contractService.DeleteContract(ctx, contractID, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.Status(http.StatusNoContent)
}

// GetContract handles GET /contracts/:id
func (h *ContractHandler) GetContract(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.contract.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, contractID, ok := h.authAndID(c)
	if !ok {
		span.SetStatus(codes.Error, "bad request")
		return
	}

	span.SetAttributes(
		attribute.String("contract_id", contractID),
		attribute.String("user_id", userID),
	)

	result, err := h.contractService.GetContract(ctx, contractID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// ListContracts handles GET /contracts. With ?party_email= it lists contracts
// where that email is a party instead of contracts the caller created.
func (h *ContractHandler) ListContracts(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.contract.list")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	var (
		result *dto.PaginatedResponse
		err    error
	)
	if partyEmail := c.Query("party_email"); partyEmail != "" {
		result, err = h.contractService.GetContractsByParty(ctx, partyEmail, c.Query("status"), page, pageSize)
	} else {
		result, err = h.contractService.GetContractsByCreator(ctx, userID, page, pageSize)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("count", result.Count))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// authAndID extracts the authenticated user id and the :id path param,
// writing the error response itself when either is missing.
func (h *ContractHandler) authAndID(c *gin.Context) (userID, contractID string, ok bool) {
	userID = c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return "", "", false
	}

	contractID = c.Param("id")
	if contractID == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "contract id required",
			Code:  "INVALID_REQUEST",
		})
		return "", "", false
	}

	return userID, contractID, true
}
