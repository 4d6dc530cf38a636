package domain

import (
	"fmt"
	"time"
)

// LineType 投注类别
type LineType string

const (
	LineMoneyLine LineType = "money_line"
	LineSpread    LineType = "spread"
	LineTotal     LineType = "total"
)

// Side 投注方向（moneyline/spread 用 home/away/draw，total 用 over/under）
type Side string

const (
	SideHome  Side = "home"
	SideAway  Side = "away"
	SideDraw  Side = "draw"
	SideOver  Side = "over"
	SideUnder Side = "under"
)

// Sport 运动项目，编号与参考盘口 sportId 一致
type Sport int

const (
	SportSoccer     Sport = 1
	SportBasketball Sport = 2
)

// Alert 参考盘口的掉水告警。由行情采集端创建，进入引擎后只读。
type Alert struct {
	ID        string   // 告警唯一 ID
	EventID   string   // 参考盘口事件 ID
	Home      string   // 主队
	Away      string   // 客队
	Sport     Sport
	LineType  LineType
	Outcome   Side     // 告警指向的投注方向
	Points    *float64 // spread/total 的盘口点数；moneyline 为 nil
	FirstHalf bool     // 是否上半场盘口
	// Prices 告警携带的参考价快照（outcome -> 十进制赔率）。
	// 拿得到实时参考价时优先用实时价，这里只是兜底。
	Prices    map[string]float64
	Starts    time.Time // 比赛开球时间
	Timestamp time.Time // 告警产生时间
}

// Validate 检查必填字段。缺字段的告警直接丢弃，不进入决策流程。
func (a *Alert) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil alert", ErrInvalidAlert)
	}
	if a.EventID == "" {
		return fmt.Errorf("%w: missing event id", ErrInvalidAlert)
	}
	if a.Home == "" || a.Away == "" {
		return fmt.Errorf("%w: missing team names", ErrInvalidAlert)
	}
	switch a.LineType {
	case LineMoneyLine, LineSpread, LineTotal:
	default:
		return fmt.Errorf("%w: unknown line type %q", ErrInvalidAlert, a.LineType)
	}
	switch a.LineType {
	case LineSpread, LineTotal:
		if a.Points == nil {
			return fmt.Errorf("%w: %s alert without points", ErrInvalidAlert, a.LineType)
		}
	}
	switch a.Outcome {
	case SideHome, SideAway, SideDraw:
		if a.LineType == LineTotal {
			return fmt.Errorf("%w: total alert with outcome %q", ErrInvalidAlert, a.Outcome)
		}
	case SideOver, SideUnder:
		if a.LineType != LineTotal {
			return fmt.Errorf("%w: %s alert with outcome %q", ErrInvalidAlert, a.LineType, a.Outcome)
		}
	default:
		return fmt.Errorf("%w: unknown outcome %q", ErrInvalidAlert, a.Outcome)
	}
	if a.Starts.IsZero() {
		return fmt.Errorf("%w: missing start time", ErrInvalidAlert)
	}
	return nil
}

// DedupKey 去重组合键：同一事件同一类别只处理一次
func (a *Alert) DedupKey() string {
	return a.EventID + "|" + string(a.LineType)
}
