package domain

import "context"

// TimelineRepository is the abstraction for the append-only event log of the
// trades. Events are never edited nor deleted.
type TimelineRepository interface {
	// AppendEvent appends the given event assigning its insertion sequence.
	AppendEvent(ctx context.Context, event *TimelineEvent) error
	// ListEventsByTrade returns the whole timeline of a trade in
	// chronological order (ascending timestamp, insertion-order tie-break).
	ListEventsByTrade(ctx context.Context, tradeId string) ([]TimelineEvent, error)
}
