package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/peertrade-network/peertrade-daemon/internal/core/application/dispute"
	"github.com/peertrade-network/peertrade-daemon/internal/core/application/pubsub"
	"github.com/peertrade-network/peertrade-daemon/internal/core/application/trade"
	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
	escrowinmemory "github.com/peertrade-network/peertrade-daemon/internal/infrastructure/escrow/inmemory"
	webhookpubsub "github.com/peertrade-network/peertrade-daemon/internal/infrastructure/pubsub/webhook"
	dbinmemory "github.com/peertrade-network/peertrade-daemon/internal/infrastructure/storage/db/inmemory"
	httpinterface "github.com/peertrade-network/peertrade-daemon/internal/interfaces/http"
)

type testServer struct {
	server *httpinterface.Server
	offer  *domain.Offer
}

func newTestServer(t *testing.T) *testServer {
	repoManager := dbinmemory.NewRepoManager()
	adapter := escrowinmemory.NewEscrowAdapter()
	pubsubSvc := pubsub.NewService(webhookpubsub.NewService())

	tradeSvc, err := trade.NewService(
		repoManager, adapter, pubsubSvc, domain.LimitsPolicy{},
		30*time.Minute, 24*time.Hour,
	)
	require.NoError(t, err)

	disputeSvc, err := dispute.NewService(repoManager, tradeSvc)
	require.NoError(t, err)

	server, err := httpinterface.NewServer(":0", tradeSvc, disputeSvc, pubsubSvc)
	require.NoError(t, err)

	offer, err := domain.NewOffer(
		"seller-1", "GOLD", "USD",
		decimal.RequireFromString("5.12"),
		decimal.RequireFromString("10"),
		decimal.RequireFromString("1000"),
		nil, 30*time.Minute, 24*time.Hour, time.Now(),
	)
	require.NoError(t, err)
	require.NoError(
		t, repoManager.OfferRepository().AddOffer(context.Background(), offer),
	)

	return &testServer{server: server, offer: offer}
}

func (s *testServer) do(
	t *testing.T, method, path string, body interface{}, actorId, actorRole string,
) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actorId != "" {
		req.Header.Set("X-Actor-Id", actorId)
		req.Header.Set("X-Actor-Role", actorRole)
	}

	rec := httptest.NewRecorder()
	s.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTradeLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/trades", map[string]interface{}{
		"offer_id":       s.offer.Id,
		"amount":         "100",
		"payment_method": "bank_transfer",
	}, "buyer-1", "buyer")
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody(t, rec)
	tradeId := created["id"].(string)
	require.Equal(t, "CREATED", created["status"])

	rec = s.do(t, http.MethodPost, "/v1/trades/"+tradeId+"/lock", nil, "seller-1", "seller")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ESCROW_LOCKED", decodeBody(t, rec)["status"])

	rec = s.do(t, http.MethodPost, "/v1/trades/"+tradeId+"/payment", map[string]interface{}{
		"proof": "wire-123",
	}, "buyer-1", "buyer")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "PAYMENT_MARKED", decodeBody(t, rec)["status"])

	rec = s.do(t, http.MethodPost, "/v1/trades/"+tradeId+"/release", nil, "seller-1", "seller")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "RELEASED", decodeBody(t, rec)["status"])

	rec = s.do(t, http.MethodGet, "/v1/trades/"+tradeId+"/timeline", nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	events := decodeBody(t, rec)["events"].([]interface{})
	require.Len(t, events, 3)
}

func TestStatusCodeMapping(t *testing.T) {
	s := newTestServer(t)

	t.Run("missing_actor_header", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/trades", map[string]interface{}{
			"offer_id":       s.offer.Id,
			"amount":         "100",
			"payment_method": "bank_transfer",
		}, "", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown_trade_is_404", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/v1/trades/missing", nil, "", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("wrong_role_is_403", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/trades", map[string]interface{}{
			"offer_id":       s.offer.Id,
			"amount":         "100",
			"payment_method": "bank_transfer",
		}, "buyer-1", "buyer")
		require.Equal(t, http.StatusCreated, rec.Code)
		tradeId := decodeBody(t, rec)["id"].(string)

		rec = s.do(t, http.MethodPost, "/v1/trades/"+tradeId+"/lock", nil, "buyer-1", "buyer")
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("invalid_transition_is_409", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/trades", map[string]interface{}{
			"offer_id":       s.offer.Id,
			"amount":         "100",
			"payment_method": "bank_transfer",
		}, "buyer-1", "buyer")
		require.Equal(t, http.StatusCreated, rec.Code)
		tradeId := decodeBody(t, rec)["id"].(string)

		// payment cannot be marked before the escrow is locked.
		rec = s.do(t, http.MethodPost, "/v1/trades/"+tradeId+"/payment", nil, "buyer-1", "buyer")
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("out_of_range_amount_is_400", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/v1/trades", map[string]interface{}{
			"offer_id":       s.offer.Id,
			"amount":         "5000",
			"payment_method": "bank_transfer",
		}, "buyer-1", "buyer")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDisputeOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/trades", map[string]interface{}{
		"offer_id":       s.offer.Id,
		"amount":         "100",
		"payment_method": "bank_transfer",
	}, "buyer-1", "buyer")
	tradeId := decodeBody(t, rec)["id"].(string)

	s.do(t, http.MethodPost, "/v1/trades/"+tradeId+"/lock", nil, "seller-1", "seller")
	s.do(t, http.MethodPost, "/v1/trades/"+tradeId+"/payment", nil, "buyer-1", "buyer")

	rec = s.do(t, http.MethodPost, "/v1/trades/"+tradeId+"/dispute", map[string]interface{}{
		"reason": "asset never arrived",
	}, "buyer-1", "buyer")
	require.Equal(t, http.StatusCreated, rec.Code)
	disputeId := decodeBody(t, rec)["id"].(string)

	rec = s.do(t, http.MethodPost, "/v1/disputes/"+disputeId+"/resolve", map[string]interface{}{
		"outcome": "refund",
		"note":    "buyer proved payment",
	}, "buyer-1", "buyer")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/disputes/"+disputeId+"/resolve", map[string]interface{}{
		"outcome": "refund",
		"note":    "buyer proved payment",
	}, "arbiter-1", "arbiter")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "RESOLVED", decodeBody(t, rec)["status"])

	rec = s.do(t, http.MethodGet, "/v1/trades/"+tradeId, nil, "", "")
	require.Equal(t, "REFUNDED", decodeBody(t, rec)["status"])
}

func TestWebhookRegistration(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/webhooks", map[string]interface{}{
		"topic":    "trade_released",
		"endpoint": "https://example.com/hook",
		"secret":   "shhh",
	}, "", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody(t, rec)["id"].(string)
	require.NotEmpty(t, id)

	rec = s.do(t, http.MethodGet, "/v1/webhooks?topic=trade_released", nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	hooks := decodeBody(t, rec)["webhooks"].([]interface{})
	require.Len(t, hooks, 1)

	rec = s.do(t, http.MethodDelete, "/v1/webhooks/"+id, nil, "", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/webhooks?topic=trade_released", nil, "", "")
	hooks = decodeBody(t, rec)["webhooks"].([]interface{})
	require.Empty(t, hooks)
}
