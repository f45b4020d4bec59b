package domain

import (
	"github.com/shopspring/decimal"
)

// UserLimits holds the per-user daily counters checked before any mutating
// action. The counters are keyed by (userId, day) and reset by an external
// day-rollover process.
type UserLimits struct {
	UserId        string
	Day           string
	OrdersCreated uint32
	TradesCreated uint32
	Volume        decimal.Decimal
}

// LimitsPolicy is the set of daily caps enforced on every user.
type LimitsPolicy struct {
	MaxDailyOrders uint32
	MaxDailyTrades uint32
	MaxDailyVolume decimal.Decimal
}

// CheckTrade returns ErrLimitExceeded if creating a trade with the given
// volume would breach one of the caps.
func (l *UserLimits) CheckTrade(policy LimitsPolicy, volume decimal.Decimal) error {
	if policy.MaxDailyTrades > 0 && l.TradesCreated >= policy.MaxDailyTrades {
		return ErrLimitExceeded
	}
	if policy.MaxDailyVolume.GreaterThan(decimal.Zero) &&
		l.Volume.Add(volume).GreaterThan(policy.MaxDailyVolume) {
		return ErrLimitExceeded
	}
	return nil
}

// CheckOrder returns ErrLimitExceeded if registering one more offer would
// breach the daily cap.
func (l *UserLimits) CheckOrder(policy LimitsPolicy) error {
	if policy.MaxDailyOrders > 0 && l.OrdersCreated >= policy.MaxDailyOrders {
		return ErrLimitExceeded
	}
	return nil
}

// RecordOrder increments the counter for a successfully registered offer.
func (l *UserLimits) RecordOrder() {
	l.OrdersCreated++
}

// RecordTrade increments the counters for a successfully created trade.
func (l *UserLimits) RecordTrade(volume decimal.Decimal) {
	l.TradesCreated++
	l.Volume = l.Volume.Add(volume)
}
