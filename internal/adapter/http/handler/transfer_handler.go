package handler

import (
	"qr-transfer-authorizer/internal/adapter/http/dto"
	"qr-transfer-authorizer/internal/adapter/http/middleware"
	"qr-transfer-authorizer/internal/core/ports"
	"qr-transfer-authorizer/pkg/apperror"
	"qr-transfer-authorizer/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferHandler exposes the transfer authorization protocol over HTTP.
type TransferHandler struct {
	svc ports.TransferService
}

func NewTransferHandler(svc ports.TransferService) *TransferHandler {
	return &TransferHandler{svc: svc}
}

// Initiate handles POST /api/v1/transfers.
func (h *TransferHandler) Initiate(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.InitiateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	result, err := h.svc.Initiate(c.Request.Context(), ports.InitiateRequest{
		SenderID:      callerID,
		ReceiverPhone: req.ReceiverPhone,
		Amount:        amount,
		Currency:      req.Currency,
		Description:   req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.InitiateTransferResponse{
		Transfer:     dto.ToTransferResponse(result.Transfer),
		QR1Image:     result.QR1Image,
		QR1ExpiresAt: result.ExpiresAt,
	})
}

// ScanQR1 handles POST /api/v1/transfers/scan-qr1.
func (h *TransferHandler) ScanQR1(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	transfer, err := h.svc.ScanQR1(c.Request.Context(), callerID, req.QRBlob)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToTransferResponse(transfer))
}

// GenerateQR2 handles POST /api/v1/transfers/:id/qr2.
func (h *TransferHandler) GenerateQR2(c *gin.Context) {
	callerID, transferID, ok := h.callerAndTransfer(c)
	if !ok {
		return
	}

	result, err := h.svc.GenerateQR2(c.Request.Context(), callerID, transferID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.QR2Response{
		Transfer:     dto.ToTransferResponse(result.Transfer),
		QR2Image:     result.QR2Image,
		QR2ExpiresAt: result.ExpiresAt,
	})
}

// ScanQR2 handles POST /api/v1/transfers/scan-qr2.
func (h *TransferHandler) ScanQR2(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	transfer, err := h.svc.ScanQR2(c.Request.Context(), callerID, req.QRBlob)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToTransferResponse(transfer))
}

// SendOTP handles POST /api/v1/transfers/:id/otp.
func (h *TransferHandler) SendOTP(c *gin.Context) {
	callerID, transferID, ok := h.callerAndTransfer(c)
	if !ok {
		return
	}

	expiresAt, err := h.svc.SendOTP(c.Request.Context(), callerID, transferID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.OTPSentResponse{ExpiresAt: expiresAt})
}

// VerifyOTP handles POST /api/v1/transfers/:id/otp/verify.
func (h *TransferHandler) VerifyOTP(c *gin.Context) {
	callerID, transferID, ok := h.callerAndTransfer(c)
	if !ok {
		return
	}

	var req dto.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	transfer, err := h.svc.VerifyOTP(c.Request.Context(), callerID, transferID, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToTransferResponse(transfer))
}

// Complete handles POST /api/v1/transfers/:id/complete.
func (h *TransferHandler) Complete(c *gin.Context) {
	callerID, transferID, ok := h.callerAndTransfer(c)
	if !ok {
		return
	}

	transfer, err := h.svc.Complete(c.Request.Context(), callerID, transferID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToTransferResponse(transfer))
}

// Cancel handles POST /api/v1/transfers/:id/cancel.
func (h *TransferHandler) Cancel(c *gin.Context) {
	callerID, transferID, ok := h.callerAndTransfer(c)
	if !ok {
		return
	}

	transfer, err := h.svc.Cancel(c.Request.Context(), callerID, transferID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToTransferResponse(transfer))
}

// Get handles GET /api/v1/transfers/:id.
func (h *TransferHandler) Get(c *gin.Context) {
	callerID, transferID, ok := h.callerAndTransfer(c)
	if !ok {
		return
	}

	transfer, err := h.svc.Get(c.Request.Context(), callerID, transferID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToTransferResponse(transfer))
}

// callerAndTransfer pulls the authenticated caller from context and parses
// the :id path parameter, writing the error response itself on failure.
func (h *TransferHandler) callerAndTransfer(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, uuid.Nil, false
	}
	transferID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound("Transfer"))
		return uuid.Nil, uuid.Nil, false
	}
	return callerID, transferID, true
}
