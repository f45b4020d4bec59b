package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/peertrade-network/peertrade-daemon/internal/core/ports"
	"github.com/peertrade-network/peertrade-daemon/pkg/circuitbreaker"
)

// service delivers trade events to webhook endpoints. Deliveries of secured
// subscriptions carry a JWT signed with the subscription secret so that the
// receiver can verify both sender and payload.
type service struct {
	lock        sync.RWMutex
	subs        map[string]*Subscription
	subsByTopic map[string]map[string]struct{}

	httpClient *client
	cb         *gobreaker.CircuitBreaker
}

func NewService() ports.SecurePubSub {
	return &service{
		subs:        make(map[string]*Subscription),
		subsByTopic: make(map[string]map[string]struct{}),
		httpClient:  newHTTPClient(15 * time.Second),
		cb:          circuitbreaker.NewCircuitBreaker("webhook"),
	}
}

func (ws *service) Subscribe(topic, endpoint, secret string) (string, error) {
	sub, err := NewSubscription(topic, endpoint, secret)
	if err != nil {
		return "", err
	}

	ws.lock.Lock()
	defer ws.lock.Unlock()

	ws.subs[sub.ID] = sub
	if _, ok := ws.subsByTopic[sub.Event]; !ok {
		ws.subsByTopic[sub.Event] = make(map[string]struct{})
	}
	ws.subsByTopic[sub.Event][sub.ID] = struct{}{}
	return sub.ID, nil
}

func (ws *service) Unsubscribe(_, id string) error {
	ws.lock.Lock()
	defer ws.lock.Unlock()

	sub, ok := ws.subs[id]
	if !ok {
		return fmt.Errorf("webhook not found")
	}

	delete(ws.subs, id)
	delete(ws.subsByTopic[sub.Event], id)
	if len(ws.subsByTopic[sub.Event]) <= 0 {
		delete(ws.subsByTopic, sub.Event)
	}
	return nil
}

func (ws *service) ListSubscriptionsForTopic(topic string) []ports.Subscription {
	return ws.listSubscriptionsForTopic(topic).toPortable()
}

func (ws *service) Publish(topic string, message string) error {
	subs := ws.listSubscriptionsForTopic(topic)

	eg := &errgroup.Group{}
	for i := range subs {
		sub := subs[i]
		eg.Go(func() error { return ws.doRequest(sub, message) })
	}
	return eg.Wait()
}

func (ws *service) Close() error {
	return nil
}

func (ws *service) listSubscriptionsForTopic(topic string) subscriptions {
	ws.lock.RLock()
	defer ws.lock.RUnlock()

	ids := make(map[string]struct{})
	for id := range ws.subsByTopic[topic] {
		ids[id] = struct{}{}
	}
	if topic != ports.AnyTopic {
		for id := range ws.subsByTopic[ports.AnyTopic] {
			ids[id] = struct{}{}
		}
	}

	subs := make(subscriptions, 0, len(ids))
	for id := range ids {
		subs = append(subs, *ws.subs[id])
	}
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].ID < subs[j].ID
	})
	return subs
}

func (ws *service) doRequest(sub Subscription, payload string) error {
	_, err := ws.cb.Execute(func() (interface{}, error) {
		headers := map[string]string{
			"Content-Type": "application/json",
		}
		if sub.IsSecured() {
			digest := sha256.Sum256([]byte(payload))
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"iss":              "peertrade-daemon",
				"iat":              time.Now().Unix(),
				"sub":              sub.ID,
				"x-payload-sha256": hex.EncodeToString(digest[:]),
			})
			tokenString, _ := token.SignedString([]byte(sub.Secret))
			headers["Authorization"] = fmt.Sprintf("Bearer %s", tokenString)
		}

		status, resp, err := ws.httpClient.post(sub.Endpoint, payload, headers)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("%s", resp)
		}
		return nil, nil
	})

	return err
}
