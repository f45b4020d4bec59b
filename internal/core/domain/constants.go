package domain

const (
	TradeStatusCodeCreated TradeStatus = iota
	TradeStatusCodeEscrowLocked
	TradeStatusCodePaymentMarked
	TradeStatusCodeDispute
	TradeStatusCodeReleased
	TradeStatusCodeCancelled
	TradeStatusCodeRefunded
)

const (
	EscrowStatusNone EscrowStatus = iota
	EscrowStatusLocked
	EscrowStatusReleased
	EscrowStatusRefunded
	EscrowStatusDisputed
)

const (
	EventTradeCreated    = "trade_created"
	EventEscrowLocked    = "escrow_locked"
	EventPaymentMarked   = "payment_marked"
	EventTradeReleased   = "trade_released"
	EventTradeCancelled  = "trade_cancelled"
	EventDisputeOpened   = "dispute_opened"
	EventDisputeResolved = "dispute_resolved"
)

const (
	ReasonPaymentTimeout = "payment_timeout"
	ReasonReleaseTimeout = "release_timeout"
)

const (
	DisputeOutcomeRelease = "release"
	DisputeOutcomeRefund  = "refund"
)
