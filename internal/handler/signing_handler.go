package handler

import (
	"encoding/base64"
	"net/http"

	"github.com/HyunsooZo/signly-sub001/internal/dto"
	"github.com/HyunsooZo/signly-sub001/internal/service"
	"github.com/HyunsooZo/signly-sub001/pkg/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SigningHandler handles the unauthenticated token URL endpoints that the
// contract parties use. The sign token in the path is the only credential.
type SigningHandler struct {
	signingService  service.SigningService
	contractService service.ContractService
}

// NewSigningHandler creates a new signing handler
func NewSigningHandler(signingService service.SigningService, contractService service.ContractService) *SigningHandler {
	return &SigningHandler{
		signingService:  signingService,
		contractService: contractService,
	}
}

// GetContract handles GET /sign/:token, the signer's view of the contract
func (h *SigningHandler) GetContract(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.signing.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.Param("token")

	result, err := h.contractService.GetContractByToken(ctx, token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondError(c, err)
		return
	}

	span.SetAttributes(attribute.String("contract_id", result.ID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// Sign handles POST /sign/:token. The client IP and User-Agent are read off
// the request here and passed into the protocol explicitly.
func (h *SigningHandler) Sign(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.signing.sign")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.Param("token")

	var req dto.SignRequest
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

	image, err := base64.StdEncoding.DecodeString(req.SignatureImage)
	if err != nil {
		span.SetStatus(codes.Error, "malformed signature image")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "signature image must be base64 encoded",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	span.SetAttributes(attribute.String("signer_email", req.SignerEmail))

	result, err := h.signingService.ProcessSigning(ctx, &service.SigningRequest{
		Token:       token,
		SignerEmail: req.SignerEmail,
		SignerName:  req.SignerName,
		Image:       image,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("contract_id", result.ContractID),
		attribute.Bool("fully_signed", result.FullySigned),
	)
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}
