package domain

import (
	"sort"
	"time"
)

// TimelineEvent is the immutable audit record of a single state transition or
// external action on a trade. Events are append-only: they are never edited
// nor deleted, and their ordered sequence is the only authoritative history
// of a trade.
type TimelineEvent struct {
	Id        string
	TradeId   string
	Type      string
	ActorRole ActorRole
	ActorId   string
	Timestamp time.Time
	// Sequence is assigned by the store at append time and breaks ties
	// between events sharing the same timestamp.
	Sequence uint64
	Payload  map[string]string
}

// SortTimeline orders events chronologically: ascending timestamp with the
// insertion sequence as tie-break. Any reverse-chronological presentation is
// a display concern, not storage order.
func SortTimeline(events []TimelineEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Sequence < events[j].Sequence
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}

// ReplayResult is the (status, escrowStatus) pair produced by folding a
// trade's timeline from scratch.
type ReplayResult struct {
	Status       TradeStatus
	EscrowStatus EscrowStatus
}

// Replay deterministically reproduces the current status of a trade by
// folding its ordered timeline starting from the CREATED baseline. It is the
// durability and audit contract: the persisted status of a trade must always
// match the replay of its timeline.
func Replay(events []TimelineEvent) ReplayResult {
	res := ReplayResult{
		Status:       TradeStatusCodeCreated,
		EscrowStatus: EscrowStatusNone,
	}
	for _, event := range events {
		switch event.Type {
		case EventEscrowLocked:
			res.Status = TradeStatusCodeEscrowLocked
			res.EscrowStatus = EscrowStatusLocked
		case EventPaymentMarked:
			res.Status = TradeStatusCodePaymentMarked
		case EventTradeReleased:
			res.Status = TradeStatusCodeReleased
			res.EscrowStatus = EscrowStatusReleased
		case EventTradeCancelled:
			res.Status = TradeStatusCodeCancelled
			if res.EscrowStatus != EscrowStatusNone {
				res.EscrowStatus = EscrowStatusRefunded
			}
		case EventDisputeOpened:
			res.Status = TradeStatusCodeDispute
			res.EscrowStatus = EscrowStatusDisputed
		case EventDisputeResolved:
			if event.Payload["outcome"] == DisputeOutcomeRefund {
				res.Status = TradeStatusCodeRefunded
				res.EscrowStatus = EscrowStatusRefunded
			} else {
				res.Status = TradeStatusCodeReleased
				res.EscrowStatus = EscrowStatusReleased
			}
		}
	}
	return res
}
