package escrowledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
	"github.com/peertrade-network/peertrade-daemon/pkg/circuitbreaker"
)

const (
	defaultRequestTimeout  = 15 * time.Second
	defaultRequestsPerSec  = 20
	lockEndpointFormat     = "%s/v1/escrows"
	escrowOpEndpointFormat = "%s/v1/escrows/%s/%s"
	statusEndpointFormat   = "%s/v1/escrows/%s"
)

// Adapter is the ports.EscrowAdapter implementation backed by a remote
// custodial ledger exposing a JSON/HTTP API. Calls go through a circuit
// breaker and a client-side rate limiter; a failure of the remote service is
// classified as transient so the caller retries it with backoff, while a
// rejection by the ledger (4xx) is permanent and blocks the transition.
type Adapter struct {
	baseUrl    string
	apiKey     string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	limiter    ratelimit.Limiter
}

// NewEscrowAdapter returns an EscrowAdapter talking to the custodial ledger
// reachable at baseUrl.
func NewEscrowAdapter(baseUrl, apiKey string) *Adapter {
	return &Adapter{
		baseUrl:    baseUrl,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		cb:         circuitbreaker.NewCircuitBreaker("escrow-ledger"),
		limiter:    ratelimit.New(defaultRequestsPerSec),
	}
}

type lockRequest struct {
	TradeId   string `json:"trade_id"`
	Amount    string `json:"amount"`
	AssetCode string `json:"asset_code"`
}

type opRequest struct {
	Reason string `json:"reason,omitempty"`
}

type escrowResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

func (a *Adapter) Lock(
	ctx context.Context, tradeId string, amount decimal.Decimal, assetCode string,
) (string, error) {
	// the ledger dedupes on trade_id, so a repeated lock returns the
	// existing reference instead of double-locking.
	body := lockRequest{TradeId: tradeId, Amount: amount.String(), AssetCode: assetCode}
	resp, err := a.do(ctx, http.MethodPost, fmt.Sprintf(lockEndpointFormat, a.baseUrl), body)
	if err != nil {
		return "", wrapAdapterErr("lock", tradeId, err)
	}
	return resp.Reference, nil
}

func (a *Adapter) Release(ctx context.Context, tradeId string) (string, error) {
	url := fmt.Sprintf(escrowOpEndpointFormat, a.baseUrl, tradeId, "release")
	resp, err := a.do(ctx, http.MethodPost, url, opRequest{})
	if err != nil {
		return "", wrapAdapterErr("release", tradeId, err)
	}
	return resp.Reference, nil
}

func (a *Adapter) Refund(ctx context.Context, tradeId, reason string) (string, error) {
	url := fmt.Sprintf(escrowOpEndpointFormat, a.baseUrl, tradeId, "refund")
	resp, err := a.do(ctx, http.MethodPost, url, opRequest{Reason: reason})
	if err != nil {
		return "", wrapAdapterErr("refund", tradeId, err)
	}
	return resp.Reference, nil
}

func (a *Adapter) Dispute(ctx context.Context, tradeId, reason string) (string, error) {
	url := fmt.Sprintf(escrowOpEndpointFormat, a.baseUrl, tradeId, "dispute")
	resp, err := a.do(ctx, http.MethodPost, url, opRequest{Reason: reason})
	if err != nil {
		return "", wrapAdapterErr("dispute", tradeId, err)
	}
	return resp.Reference, nil
}

func (a *Adapter) GetStatus(
	ctx context.Context, tradeId string,
) (domain.EscrowStatus, error) {
	url := fmt.Sprintf(statusEndpointFormat, a.baseUrl, tradeId)
	resp, err := a.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.EscrowStatusNone, wrapAdapterErr("get_status", tradeId, err)
	}

	switch resp.Status {
	case "locked":
		return domain.EscrowStatusLocked, nil
	case "released":
		return domain.EscrowStatusReleased, nil
	case "refunded":
		return domain.EscrowStatusRefunded, nil
	case "disputed":
		return domain.EscrowStatusDisputed, nil
	default:
		return domain.EscrowStatusNone, nil
	}
}

// permanentError marks a ledger rejection that must not be retried.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }

func (a *Adapter) do(
	ctx context.Context, method, url string, body interface{},
) (*escrowResponse, error) {
	a.limiter.Take()

	res, err := a.cb.Execute(func() (interface{}, error) {
		var reqBody io.Reader
		if body != nil {
			buf, err := json.Marshal(body)
			if err != nil {
				return nil, permanentError{err}
			}
			reqBody = bytes.NewReader(buf)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, permanentError{err}
		}
		req.Header.Set("Content-Type", "application/json")
		if a.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+a.apiKey)
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("ledger replied with status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return nil, permanentError{
				fmt.Errorf("ledger rejected the request (%d): %s", resp.StatusCode, payload),
			}
		}

		out := &escrowResponse{}
		if err := json.Unmarshal(payload, out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*escrowResponse), nil
}

func wrapAdapterErr(op, tradeId string, err error) error {
	transient := true
	if _, ok := err.(permanentError); ok {
		transient = false
	}
	return &domain.EscrowAdapterError{
		Op:        op,
		TradeId:   tradeId,
		Transient: transient,
		Err:       err,
	}
}
