package engine

import (
	"context"
	"time"

	"github.com/betalert/arbot/internal/accounts"
	"github.com/betalert/arbot/internal/domain"
)

// BookClient 庄家执行适配器。网络、浏览器、验证码等机制全部在适配器里，
// 引擎只通过这几个调用与庄家交互。
type BookClient interface {
	// SearchEvent 按主客队名查庄家侧事件 ID；找不到返回空串且不报错
	SearchEvent(ctx context.Context, home, away string) (string, error)
	// EventCatalog 拉取单场比赛的完整盘口目录
	EventCatalog(ctx context.Context, eventID string) (*domain.EventCatalog, error)
	// ExecuteBet 用指定账号下注。会话失效返回 domain.ErrSessionExpired，
	// 其他失败返回 domain.ErrExecutionFailure（可 wrap）
	ExecuteBet(ctx context.Context, account accounts.View, outcomeID string, odds, stake float64) error
	// RenewSession 重新登录并返回新的会话句柄；balance 非 nil 时回填余额
	RenewSession(ctx context.Context, account accounts.View) (token string, expiry time.Time, balance *float64, err error)
}

// PriceSource 参考盘口实时价查询，尽力而为；查不到时引擎回落到告警快照价
type PriceSource interface {
	LivePrices(ctx context.Context, eventID string, lineType domain.LineType, points *float64, firstHalf bool) (map[string]float64, error)
}

// Journal 注单流水。派单结果不论成败都落一条记录。
type Journal interface {
	RecordPlaced(order *domain.BetOrder, account string, stake float64) error
	RecordFailed(order *domain.BetOrder, reason string) error
}
