package pubsub

import (
	"encoding/json"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
	"github.com/peertrade-network/peertrade-daemon/internal/core/ports"
)

const listenerBufferSize = 64

// TradeEventMessage is the serialized form of a timeline event delivered to
// external consumers.
type TradeEventMessage struct {
	TradeId      string            `json:"trade_id"`
	EventId      string            `json:"event_id"`
	Type         string            `json:"type"`
	ActorRole    string            `json:"actor_role"`
	ActorId      string            `json:"actor_id"`
	Timestamp    time.Time         `json:"timestamp"`
	Status       string            `json:"status"`
	EscrowStatus string            `json:"escrow_status"`
	Payload      map[string]string `json:"payload,omitempty"`
}

// Service publishes every committed timeline event to the webhook pubsub and
// to the in-process listeners (the websocket stream). Publishing is
// unconditional and best-effort: the engine never depends on a subscriber
// being present and a delivery failure never affects a committed transition.
type Service struct {
	securePubSub ports.SecurePubSub

	locker    sync.RWMutex
	listeners map[string]chan TradeEventMessage
}

// NewService returns a pubsub service. The securePubSub is optional: with a
// nil one only in-process listeners are notified.
func NewService(securePubSub ports.SecurePubSub) *Service {
	return &Service{
		securePubSub: securePubSub,
		listeners:    map[string]chan TradeEventMessage{},
	}
}

// SecurePubSub returns the underlying webhook pubsub, nil if disabled.
func (s *Service) SecurePubSub() ports.SecurePubSub {
	return s.securePubSub
}

// PublishTradeEvent delivers the given committed event to all consumers.
func (s *Service) PublishTradeEvent(trade *domain.Trade, event *domain.TimelineEvent) {
	msg := TradeEventMessage{
		TradeId:      trade.Id,
		EventId:      event.Id,
		Type:         event.Type,
		ActorRole:    event.ActorRole.String(),
		ActorId:      event.ActorId,
		Timestamp:    event.Timestamp,
		Status:       trade.Status.String(),
		EscrowStatus: trade.EscrowStatus.String(),
		Payload:      event.Payload,
	}

	s.notifyListeners(msg)

	if s.securePubSub == nil {
		return
	}

	buf, err := json.Marshal(msg)
	if err != nil {
		log.WithError(err).Warn("pubsub: failed to serialize trade event")
		return
	}
	go func() {
		if err := s.securePubSub.Publish(event.Type, string(buf)); err != nil {
			log.WithError(err).Warnf(
				"pubsub: failed to publish %s event for trade %s", event.Type, trade.Id,
			)
		}
	}()
}

// AddListener registers an in-process consumer and returns its feed. Slow
// listeners are skipped, never waited for.
func (s *Service) AddListener(id string) <-chan TradeEventMessage {
	s.locker.Lock()
	defer s.locker.Unlock()

	ch := make(chan TradeEventMessage, listenerBufferSize)
	s.listeners[id] = ch
	return ch
}

// RemoveListener drops the consumer with the given id and closes its feed.
func (s *Service) RemoveListener(id string) {
	s.locker.Lock()
	defer s.locker.Unlock()

	if ch, ok := s.listeners[id]; ok {
		delete(s.listeners, id)
		close(ch)
	}
}

func (s *Service) notifyListeners(msg TradeEventMessage) {
	s.locker.RLock()
	defer s.locker.RUnlock()

	for id, ch := range s.listeners {
		select {
		case ch <- msg:
		default:
			log.Debugf("pubsub: listener %s is lagging, event dropped", id)
		}
	}
}

// Close drops every in-process listener and closes the underlying webhook
// service, if any.
func (s *Service) Close() error {
	s.locker.Lock()
	for id, ch := range s.listeners {
		delete(s.listeners, id)
		close(ch)
	}
	s.locker.Unlock()

	if s.securePubSub != nil {
		return s.securePubSub.Close()
	}
	return nil
}
