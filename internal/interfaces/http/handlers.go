package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
	"github.com/peertrade-network/peertrade-daemon/internal/core/ports"
)

type createTradeRequest struct {
	OfferId       string          `json:"offer_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	PaymentMethod string          `json:"payment_method" binding:"required"`
}

func (s *Server) createTrade(c *gin.Context) {
	actor, err := actorFromRequest(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req createTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := s.tradeSvc.CreateTradeFromOffer(
		c.Request.Context(), req.OfferId, req.Amount, actor.Id, req.PaymentMethod,
	)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (s *Server) listTrades(c *gin.Context) {
	trades, err := s.tradeSvc.ListTrades(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) getTrade(c *gin.Context) {
	info, err := s.tradeSvc.GetTrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) getTimeline(c *gin.Context) {
	events, err := s.tradeSvc.GetTimeline(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) lockEscrow(c *gin.Context) {
	actor, err := actorFromRequest(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := s.tradeSvc.LockEscrow(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

type markPaymentRequest struct {
	Proof string `json:"proof"`
}

func (s *Server) markPayment(c *gin.Context) {
	actor, err := actorFromRequest(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req markPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := s.tradeSvc.MarkPayment(
		c.Request.Context(), c.Param("id"), actor, req.Proof,
	)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) release(c *gin.Context) {
	actor, err := actorFromRequest(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := s.tradeSvc.Release(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) cancel(c *gin.Context) {
	actor, err := actorFromRequest(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := s.tradeSvc.Cancel(
		c.Request.Context(), c.Param("id"), actor, req.Reason,
	)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) openDispute(c *gin.Context) {
	actor, err := actorFromRequest(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := s.disputeSvc.Open(
		c.Request.Context(), c.Param("id"), actor, req.Reason,
	)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, disputeView(d))
}

func (s *Server) listDisputes(c *gin.Context) {
	disputes, err := s.disputeSvc.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	views := make([]gin.H, 0, len(disputes))
	for i := range disputes {
		views = append(views, disputeView(&disputes[i]))
	}
	c.JSON(http.StatusOK, gin.H{"disputes": views})
}

func (s *Server) getDispute(c *gin.Context) {
	d, err := s.disputeSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, disputeView(d))
}

func (s *Server) reviewDispute(c *gin.Context) {
	actor, err := actorFromRequest(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := s.disputeSvc.Review(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, disputeView(d))
}

type resolveDisputeRequest struct {
	Outcome string `json:"outcome" binding:"required"`
	Note    string `json:"note"`
}

func (s *Server) resolveDispute(c *gin.Context) {
	actor, err := actorFromRequest(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req resolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := s.disputeSvc.Resolve(
		c.Request.Context(), c.Param("id"), actor, req.Outcome, req.Note,
	)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, disputeView(d))
}

type addAttachmentRequest struct {
	Attachment string `json:"attachment" binding:"required"`
}

func (s *Server) addAttachment(c *gin.Context) {
	var req addAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := s.disputeSvc.AddAttachment(
		c.Request.Context(), c.Param("id"), req.Attachment,
	)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, disputeView(d))
}

type addWebhookRequest struct {
	Topic    string `json:"topic" binding:"required"`
	Endpoint string `json:"endpoint" binding:"required"`
	Secret   string `json:"secret"`
}

func (s *Server) addWebhook(c *gin.Context) {
	securePubSub := s.pubsubSvc.SecurePubSub()
	if securePubSub == nil {
		c.AbortWithStatusJSON(
			http.StatusNotImplemented, gin.H{"error": "webhooks are disabled"},
		)
		return
	}

	var req addWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := securePubSub.Subscribe(req.Topic, req.Endpoint, req.Secret)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) listWebhooks(c *gin.Context) {
	securePubSub := s.pubsubSvc.SecurePubSub()
	if securePubSub == nil {
		c.AbortWithStatusJSON(
			http.StatusNotImplemented, gin.H{"error": "webhooks are disabled"},
		)
		return
	}

	topic := c.DefaultQuery("topic", ports.AnyTopic)
	subs := securePubSub.ListSubscriptionsForTopic(topic)
	views := make([]gin.H, 0, len(subs))
	for _, sub := range subs {
		views = append(views, subscriptionView(sub))
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": views})
}

func (s *Server) removeWebhook(c *gin.Context) {
	securePubSub := s.pubsubSvc.SecurePubSub()
	if securePubSub == nil {
		c.AbortWithStatusJSON(
			http.StatusNotImplemented, gin.H{"error": "webhooks are disabled"},
		)
		return
	}

	if err := securePubSub.Unsubscribe(ports.AnyTopic, c.Param("id")); err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func disputeView(d *domain.Dispute) gin.H {
	view := gin.H{
		"id":          d.Id,
		"trade_id":    d.TradeId,
		"opened_by":   d.OpenedBy,
		"opened_role": d.OpenedRole.String(),
		"reason":      d.Reason,
		"status":      d.Status.String(),
		"created_at":  d.CreatedAt,
		"updated_at":  d.UpdatedAt,
	}
	if len(d.Attachments) > 0 {
		view["attachments"] = d.Attachments
	}
	if d.Outcome != "" {
		view["outcome"] = d.Outcome
		view["resolution"] = d.Resolution
		view["resolved_by"] = d.ResolvedBy
		view["resolved_at"] = d.ResolvedAt
	}
	return view
}
