package domain_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
)

func newTimeline(types ...string) []domain.TimelineEvent {
	base := time.Now()
	events := make([]domain.TimelineEvent, 0, len(types))
	for i, eventType := range types {
		events = append(events, domain.TimelineEvent{
			TradeId:   "trade-1",
			Type:      eventType,
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Sequence:  uint64(i),
		})
	}
	return events
}

func TestSortTimeline(t *testing.T) {
	t.Run("by_timestamp", func(t *testing.T) {
		events := newTimeline(
			domain.EventEscrowLocked,
			domain.EventPaymentMarked,
			domain.EventTradeReleased,
		)
		shuffled := make([]domain.TimelineEvent, len(events))
		copy(shuffled, events)
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		domain.SortTimeline(shuffled)
		require.Equal(t, events, shuffled)
	})

	t.Run("sequence_breaks_timestamp_ties", func(t *testing.T) {
		ts := time.Now()
		events := []domain.TimelineEvent{
			{Type: domain.EventPaymentMarked, Timestamp: ts, Sequence: 2},
			{Type: domain.EventEscrowLocked, Timestamp: ts, Sequence: 1},
		}

		domain.SortTimeline(events)
		require.Equal(t, domain.EventEscrowLocked, events[0].Type)
		require.Equal(t, domain.EventPaymentMarked, events[1].Type)
	})
}

func TestReplay(t *testing.T) {
	tests := []struct {
		name     string
		events   []domain.TimelineEvent
		expected domain.ReplayResult
	}{
		{
			name:   "empty_timeline_is_created",
			events: nil,
			expected: domain.ReplayResult{
				Status:       domain.TradeStatusCodeCreated,
				EscrowStatus: domain.EscrowStatusNone,
			},
		},
		{
			name: "happy_path",
			events: newTimeline(
				domain.EventEscrowLocked,
				domain.EventPaymentMarked,
				domain.EventTradeReleased,
			),
			expected: domain.ReplayResult{
				Status:       domain.TradeStatusCodeReleased,
				EscrowStatus: domain.EscrowStatusReleased,
			},
		},
		{
			name: "cancel_before_lock_leaves_no_refund",
			events: newTimeline(
				domain.EventTradeCancelled,
			),
			expected: domain.ReplayResult{
				Status:       domain.TradeStatusCodeCancelled,
				EscrowStatus: domain.EscrowStatusNone,
			},
		},
		{
			name: "cancel_after_lock_implies_refund",
			events: newTimeline(
				domain.EventEscrowLocked,
				domain.EventTradeCancelled,
			),
			expected: domain.ReplayResult{
				Status:       domain.TradeStatusCodeCancelled,
				EscrowStatus: domain.EscrowStatusRefunded,
			},
		},
		{
			name: "dispute_resolved_with_refund",
			events: append(
				newTimeline(
					domain.EventEscrowLocked,
					domain.EventPaymentMarked,
					domain.EventDisputeOpened,
				),
				domain.TimelineEvent{
					Type:      domain.EventDisputeResolved,
					Timestamp: time.Now().Add(time.Hour),
					Sequence:  3,
					Payload:   map[string]string{"outcome": domain.DisputeOutcomeRefund},
				},
			),
			expected: domain.ReplayResult{
				Status:       domain.TradeStatusCodeRefunded,
				EscrowStatus: domain.EscrowStatusRefunded,
			},
		},
		{
			name: "dispute_resolved_with_release",
			events: append(
				newTimeline(
					domain.EventEscrowLocked,
					domain.EventPaymentMarked,
					domain.EventDisputeOpened,
				),
				domain.TimelineEvent{
					Type:      domain.EventDisputeResolved,
					Timestamp: time.Now().Add(time.Hour),
					Sequence:  3,
					Payload:   map[string]string{"outcome": domain.DisputeOutcomeRelease},
				},
			),
			expected: domain.ReplayResult{
				Status:       domain.TradeStatusCodeReleased,
				EscrowStatus: domain.EscrowStatusReleased,
			},
		},
	}

	for i := range tests {
		tt := tests[i]

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tt.expected, domain.Replay(tt.events))
		})
	}
}

func TestReplayIsDeterministic(t *testing.T) {
	events := newTimeline(
		domain.EventEscrowLocked,
		domain.EventPaymentMarked,
		domain.EventDisputeOpened,
	)

	first := domain.Replay(events)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, domain.Replay(events))
	}
}
