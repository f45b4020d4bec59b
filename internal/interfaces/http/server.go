// Package http sets up the HTTP server with all routes.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/peertrade-network/peertrade-daemon/internal/core/application/dispute"
	"github.com/peertrade-network/peertrade-daemon/internal/core/application/pubsub"
	"github.com/peertrade-network/peertrade-daemon/internal/core/application/trade"
	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
	"github.com/peertrade-network/peertrade-daemon/internal/core/ports"
)

// Server wraps the HTTP server and its service dependencies.
type Server struct {
	addr       string
	tradeSvc   *trade.Service
	disputeSvc *dispute.Service
	pubsubSvc  *pubsub.Service

	router  *gin.Engine
	httpSrv *http.Server
}

// NewServer returns the HTTP server exposing the trade, dispute and webhook
// surface.
func NewServer(
	addr string,
	tradeSvc *trade.Service,
	disputeSvc *dispute.Service,
	pubsubSvc *pubsub.Service,
) (*Server, error) {
	if addr == "" {
		return nil, errors.New("missing listen address")
	}
	if tradeSvc == nil {
		return nil, errors.New("missing trade service")
	}
	if disputeSvc == nil {
		return nil, errors.New("missing dispute service")
	}
	if pubsubSvc == nil {
		return nil, errors.New("missing pubsub service")
	}

	s := &Server{
		addr:       addr,
		tradeSvc:   tradeSvc,
		disputeSvc: disputeSvc,
		pubsubSvc:  pubsubSvc,
	}
	s.setupRouter()
	return s, nil
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), loggingMiddleware())

	router.GET("/healthz", s.healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", s.streamHandler)

	v1 := router.Group("/v1")
	{
		v1.POST("/offers", s.registerOffer)
		v1.GET("/offers", s.listOffers)
		v1.GET("/offers/:id", s.getOffer)

		v1.POST("/trades", s.createTrade)
		v1.GET("/trades", s.listTrades)
		v1.GET("/trades/:id", s.getTrade)
		v1.GET("/trades/:id/timeline", s.getTimeline)
		v1.POST("/trades/:id/lock", s.lockEscrow)
		v1.POST("/trades/:id/payment", s.markPayment)
		v1.POST("/trades/:id/release", s.release)
		v1.POST("/trades/:id/cancel", s.cancel)
		v1.POST("/trades/:id/dispute", s.openDispute)

		v1.GET("/disputes", s.listDisputes)
		v1.GET("/disputes/:id", s.getDispute)
		v1.POST("/disputes/:id/review", s.reviewDispute)
		v1.POST("/disputes/:id/resolve", s.resolveDispute)
		v1.POST("/disputes/:id/attachments", s.addAttachment)

		v1.POST("/webhooks", s.addWebhook)
		v1.GET("/webhooks", s.listWebhooks)
		v1.DELETE("/webhooks/:id", s.removeWebhook)
	}

	s.router = router
	s.httpSrv = &http.Server{
		Addr:         s.addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Router exposes the gin engine, used by tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Infof("http server listening on %s", s.addr)
	if err := s.httpSrv.ListenAndServe(); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests before closing the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Debug("handled request")
	}
}

// actorFromRequest reads the acting identity from the request headers. A
// production deployment terminates authentication upstream and forwards the
// verified identity through these headers.
func actorFromRequest(c *gin.Context) (domain.Actor, error) {
	id := c.GetHeader("X-Actor-Id")
	if id == "" {
		return domain.Actor{}, errors.New("missing X-Actor-Id header")
	}
	role, ok := domain.ParseActorRole(c.GetHeader("X-Actor-Role"))
	if !ok {
		return domain.Actor{}, errors.New("invalid X-Actor-Role header")
	}
	return domain.Actor{Id: id, Role: role}, nil
}

func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrTradeNotFound),
		errors.Is(err, domain.ErrOfferNotFound),
		errors.Is(err, domain.ErrDisputeNotFound),
		errors.Is(err, domain.ErrEscrowNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrStateConflict),
		errors.Is(err, domain.ErrEscrowStillLocked),
		errors.Is(err, domain.ErrEscrowNotLocked),
		errors.Is(err, domain.ErrDisputeAlreadyOpen),
		errors.Is(err, domain.ErrDisputeNotActive):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrAmountOutOfRange),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidPaymentMethod),
		errors.Is(err, domain.ErrInvalidOffer),
		errors.Is(err, domain.ErrInvalidDisputeOutcome),
		errors.Is(err, domain.ErrMissingReason):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrLimitExceeded):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrTimelineIntegrity):
		status = http.StatusUnprocessableEntity
	default:
		var adapterErr *domain.EscrowAdapterError
		if errors.As(err, &adapterErr) {
			status = http.StatusBadGateway
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func subscriptionView(sub ports.Subscription) gin.H {
	return gin.H{
		"id":        sub.Id(),
		"topic":     sub.Topic(),
		"notify_at": sub.NotifyAt(),
	}
}
