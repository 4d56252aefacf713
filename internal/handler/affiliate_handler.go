package handler

import (
	"net/http"
	"time"

	"learnly/internal/domain"
	"learnly/internal/middleware"
	"learnly/internal/models"
	"learnly/internal/repository"

	"github.com/gin-gonic/gin"
)

type AffiliateHandler struct {
	affiliateRepo  *repository.AffiliateRepository
	commissionRepo *repository.CommissionRepository
	referralRepo   *repository.ReferralRepository
	linkBase       string
}

func NewAffiliateHandler(affiliateRepo *repository.AffiliateRepository, commissionRepo *repository.CommissionRepository, referralRepo *repository.ReferralRepository, linkBase string) *AffiliateHandler {
	return &AffiliateHandler{
		affiliateRepo:  affiliateRepo,
		commissionRepo: commissionRepo,
		referralRepo:   referralRepo,
		linkBase:       linkBase,
	}
}

func (h *AffiliateHandler) Profile(c *gin.Context) {
	p, err := h.affiliateRepo.GetByUserID(middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no affiliate profile"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *AffiliateHandler) Commissions(c *gin.Context) {
	limit, offset := pagination(c)
	list, err := h.commissionRepo.ListByAffiliate(middleware.GetUserID(c), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list commissions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"commissions": list})
}

func (h *AffiliateHandler) Referrals(c *gin.Context) {
	limit, offset := pagination(c)
	list, err := h.referralRepo.ListByReferrer(middleware.GetUserID(c), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list referrals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"referrals": list})
}

// TrackClick records a promotional link click and redirects to the store.
// Unknown codes still redirect; click tracking must never break the link.
func (h *AffiliateHandler) TrackClick(c *gin.Context) {
	code := c.Param("code")
	linkType := domain.LinkTypeLearner
	if c.Query("type") == domain.LinkTypeDcs {
		linkType = domain.LinkTypeDcs
	}
	if p, err := h.affiliateRepo.GetByCode(code); err == nil {
		_ = h.affiliateRepo.RecordClick(&models.AffiliateLink{
			AffiliateID: p.UserID,
			Code:        code,
			LinkType:    linkType,
			ClickedAt:   time.Now(),
		})
	}
	c.Redirect(http.StatusFound, h.linkBase+"/?ref="+code)
}
