package handler

import (
	"errors"
	"net/http"
	"strconv"

	"learnly/internal/middleware"
	"learnly/internal/repository"
	"learnly/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminWithdrawalHandler exposes the withdrawal state machine to
// administrative callers. The audit trail is read-only from the outside.
type AdminWithdrawalHandler struct {
	withdrawals    *service.WithdrawalService
	withdrawalRepo *repository.WithdrawalRepository
	auditRepo      *repository.AuditLogRepository
}

func NewAdminWithdrawalHandler(withdrawals *service.WithdrawalService, withdrawalRepo *repository.WithdrawalRepository, auditRepo *repository.AuditLogRepository) *AdminWithdrawalHandler {
	return &AdminWithdrawalHandler{withdrawals: withdrawals, withdrawalRepo: withdrawalRepo, auditRepo: auditRepo}
}

func (h *AdminWithdrawalHandler) List(c *gin.Context) {
	limit, offset := pagination(c)
	list, err := h.withdrawalRepo.ListByStatus(c.Query("status"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list withdrawals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": list})
}

func (h *AdminWithdrawalHandler) Approve(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	w, err := h.withdrawals.Approve(id, middleware.GetEmail(c))
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *AdminWithdrawalHandler) Reject(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}
	w, err := h.withdrawals.Reject(id, req.Reason, middleware.GetEmail(c))
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *AdminWithdrawalHandler) MarkPaid(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		ProviderReference string `json:"provider_reference"`
	}
	_ = c.ShouldBindJSON(&req)
	w, err := h.withdrawals.MarkPaid(id, req.ProviderReference, middleware.GetEmail(c))
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *AdminWithdrawalHandler) MarkFailed(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}
	w, err := h.withdrawals.MarkFailed(id, req.Reason, middleware.GetEmail(c))
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *AdminWithdrawalHandler) BulkApprove(c *gin.Context) {
	var req struct {
		IDs []uint `json:"ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids are required"})
		return
	}
	c.JSON(http.StatusOK, h.withdrawals.BulkApprove(req.IDs, middleware.GetEmail(c)))
}

func (h *AdminWithdrawalHandler) BulkReject(c *gin.Context) {
	var req struct {
		IDs    []uint `json:"ids" binding:"required,min=1"`
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids and reason are required"})
		return
	}
	res, err := h.withdrawals.BulkReject(req.IDs, req.Reason, middleware.GetEmail(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Audit returns the append-only transition history of one withdrawal.
func (h *AdminWithdrawalHandler) Audit(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	entries, err := h.auditRepo.ListByWithdrawal(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read audit log"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit": entries})
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func respondTransitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrReasonRequired):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
