package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type registerOfferRequest struct {
	AssetCode              string          `json:"asset_code" binding:"required"`
	Currency               string          `json:"currency" binding:"required"`
	UnitPrice              decimal.Decimal `json:"unit_price" binding:"required"`
	MinAmount              decimal.Decimal `json:"min_amount"`
	MaxAmount              decimal.Decimal `json:"max_amount" binding:"required"`
	AcceptedPaymentMethods []string        `json:"accepted_payment_methods"`
	PaymentWindowSeconds   int64           `json:"payment_window_seconds"`
	EscrowDurationSeconds  int64           `json:"escrow_duration_seconds"`
}

func (s *Server) registerOffer(c *gin.Context) {
	actor, err := actorFromRequest(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req registerOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	offer, err := s.tradeSvc.RegisterOffer(
		c.Request.Context(),
		actor.Id, req.AssetCode, req.Currency,
		req.UnitPrice, req.MinAmount, req.MaxAmount,
		req.AcceptedPaymentMethods,
		time.Duration(req.PaymentWindowSeconds)*time.Second,
		time.Duration(req.EscrowDurationSeconds)*time.Second,
	)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, offer)
}

func (s *Server) getOffer(c *gin.Context) {
	offer, err := s.tradeSvc.GetOffer(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

func (s *Server) listOffers(c *gin.Context) {
	offers, err := s.tradeSvc.ListOffers(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offers": offers})
}
