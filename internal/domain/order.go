package domain

import "time"

// OrderState 派单状态机：Queued → Assigning → (Placed | Requeued | Dropped)
type OrderState int32

const (
	OrderQueued OrderState = iota
	OrderAssigning
	OrderPlaced
	OrderRequeued
	OrderDropped
)

func (s OrderState) String() string {
	switch s {
	case OrderQueued:
		return "queued"
	case OrderAssigning:
		return "assigning"
	case OrderPlaced:
		return "placed"
	case OrderRequeued:
		return "requeued"
	case OrderDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// BetOrder 派单单元。由 orchestrator 在正 EV 决策后创建；
// 状态只由派单 worker 串行修改。
type BetOrder struct {
	ID          string
	Alert       *Alert
	BookEventID string      // 庄家侧事件 ID
	Quote       MarketQuote // 解析出的盘口与赔率
	FairPrice   float64     // 决策时采用的公平价
	EV          float64     // 决策时的 EV 百分比
	EnqueuedAt  time.Time
	Attempts    int // 已经历的派单轮数（含重排）
	State       OrderState
}
