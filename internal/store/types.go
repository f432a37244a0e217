package store

// CheckOutSource identifies what triggered a checkout transition. It is
// recorded for observability only and never changes the transition logic.
type CheckOutSource string

const (
	SourceManual     CheckOutSource = "manual"
	SourceInactivity CheckOutSource = "inactivity-timeout"
	SourceDisconnect CheckOutSource = "disconnect-signal"
	SourceEndOfDay   CheckOutSource = "end-of-day-sweep"
)
