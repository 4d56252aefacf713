package handler

import (
	"errors"
	"net/http"

	"learnly/internal/middleware"
	"learnly/internal/repository"
	"learnly/internal/service"

	"github.com/gin-gonic/gin"
)

type BatchHandler struct {
	batches   *service.BatchService
	batchRepo *repository.BatchRepository
}

func NewBatchHandler(batches *service.BatchService, batchRepo *repository.BatchRepository) *BatchHandler {
	return &BatchHandler{batches: batches, batchRepo: batchRepo}
}

func (h *BatchHandler) Create(c *gin.Context) {
	var req struct {
		Provider string `json:"provider" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider is required"})
		return
	}
	b, err := h.batches.Create(req.Provider)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *BatchHandler) List(c *gin.Context) {
	limit, offset := pagination(c)
	list, err := h.batchRepo.List(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list batches"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": list})
}

func (h *BatchHandler) AddWithdrawals(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		IDs []uint `json:"ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids are required"})
		return
	}
	res, err := h.batches.AddWithdrawals(id, req.IDs)
	if err != nil {
		respondBatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *BatchHandler) Finalize(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	b, err := h.batches.Finalize(id)
	if err != nil {
		respondBatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BatchHandler) MarkProcessing(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	b, err := h.batches.MarkProcessing(id)
	if err != nil {
		respondBatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// Export streams the provider-ready CSV. Warnings (duplicate payout
// destinations) are returned in a header so the file itself stays a clean
// provider upload.
func (h *BatchHandler) Export(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	res, err := h.batches.ExportCSV(id)
	if err != nil {
		respondBatchError(c, err)
		return
	}
	for _, warning := range res.Warnings {
		c.Writer.Header().Add("X-Export-Warning", warning)
	}
	c.Header("Content-Disposition", "attachment; filename="+res.Filename)
	c.Data(http.StatusOK, "text/csv", res.Content)
}

func (h *BatchHandler) MarkAllPaid(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	res, err := h.batches.MarkAllPaid(id, middleware.GetEmail(c))
	if err != nil {
		respondBatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func respondBatchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBatchNotDraft),
		errors.Is(err, service.ErrBatchEmpty),
		errors.Is(err, service.ErrBatchNotExportable),
		errors.Is(err, service.ErrInvalidDestination):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
