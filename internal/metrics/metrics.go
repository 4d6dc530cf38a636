package metrics

import "expvar"

// 引擎核心计数器，通过 /debug/vars 暴露。
var (
	AlertsProcessed   = expvar.NewInt("arbot_alerts_processed")
	AlertsDropped     = expvar.NewInt("arbot_alerts_dropped")
	OrdersQueued      = expvar.NewInt("arbot_orders_queued")
	OrdersRequeued    = expvar.NewInt("arbot_orders_requeued")
	OrdersDropped     = expvar.NewInt("arbot_orders_dropped")
	BetsPlaced        = expvar.NewInt("arbot_bets_placed")
	ExecutionFailures = expvar.NewInt("arbot_execution_failures")
	SessionRenewals   = expvar.NewInt("arbot_session_renewals")
)
