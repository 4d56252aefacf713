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

// WithdrawalHandler serves the affiliate-facing withdrawal surface.
type WithdrawalHandler struct {
	withdrawals    *service.WithdrawalService
	withdrawalRepo *repository.WithdrawalRepository
}

func NewWithdrawalHandler(withdrawals *service.WithdrawalService, withdrawalRepo *repository.WithdrawalRepository) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals, withdrawalRepo: withdrawalRepo}
}

// Create freezes balance and opens a PENDING withdrawal for the
// authenticated affiliate.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req struct {
		AmountUSDCents int64  `json:"amount_usd_cents" binding:"required,min=1"`
		Currency       string `json:"currency" binding:"required,len=3"`
		PayoutChannel  string `json:"payout_channel" binding:"required"`
		AccountName    string `json:"account_name"`
		AccountNumber  string `json:"account_number"`
		BankCode       string `json:"bank_code"`
		MobileNumber   string `json:"mobile_number"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w, err := h.withdrawals.Request(userID, req.AmountUSDCents, req.Currency, service.AccountDetails{
		PayoutChannel: req.PayoutChannel,
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
		BankCode:      req.BankCode,
		MobileNumber:  req.MobileNumber,
	})
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, repository.ErrInsufficientBalance) && !errors.Is(err, service.ErrInvalidDestination) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, w)
}

// List returns the authenticated affiliate's withdrawals.
func (h *WithdrawalHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	limit, offset := pagination(c)
	list, err := h.withdrawalRepo.ListByAffiliate(userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list withdrawals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": list})
}

func pagination(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
