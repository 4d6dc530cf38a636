package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/betalert/arbot/internal/dedup"
	"github.com/betalert/arbot/internal/domain"
	"github.com/betalert/arbot/internal/metrics"
	"github.com/betalert/arbot/internal/resolver"
	"github.com/betalert/arbot/pkg/config"
	"github.com/betalert/arbot/pkg/oddsmath"
)

var eLog = logrus.WithField("module", "engine")

// Engine 告警到订单的决策管道：
// 校验 → 去重 → 事件定位 → 盘口解析 → 实时价合并 → 去水 → EV 过滤 → 入队
type Engine struct {
	cfg    *config.EngineConfig
	dedup  *dedup.Filter
	book   BookClient
	prices PriceSource // 可为 nil，此时只用告警自带的快照价
	queue  *orderQueue
}

func New(cfg *config.EngineConfig, filter *dedup.Filter, book BookClient, prices PriceSource) *Engine {
	return &Engine{
		cfg:    cfg,
		dedup:  filter,
		book:   book,
		prices: prices,
		queue:  newOrderQueue(),
	}
}

// Queue 暴露给派单 worker
func (e *Engine) Queue() *orderQueue { return e.queue }

// Notify 处理一条告警。返回 true 表示生成了订单并入队。
// 正常的业务性丢弃（重复、过期、EV 不足、盘口缺失）返回 (false, nil)，
// 只有基础设施层面的异常才作为 error 返回。
func (e *Engine) Notify(ctx context.Context, alert *domain.Alert) (bool, error) {
	metrics.AlertsProcessed.Add(1)

	if err := alert.Validate(); err != nil {
		e.dropAlert(alert, "告警字段不合法: %v", err)
		return false, nil
	}

	if err := e.dedup.Check(alert); err != nil {
		switch {
		case errors.Is(err, dedup.ErrDuplicateAlert):
			e.dropAlert(alert, "重复告警")
		case errors.Is(err, domain.ErrStaleMatch):
			e.dropAlert(alert, "比赛已开球或临近开球")
		default:
			e.dropAlert(alert, "去重检查失败: %v", err)
		}
		return false, nil
	}

	bookEventID, err := e.book.SearchEvent(ctx, alert.Home, alert.Away)
	if err != nil {
		return false, err
	}
	if bookEventID == "" {
		e.dropAlert(alert, "庄家侧找不到比赛 %s vs %s", alert.Home, alert.Away)
		return false, nil
	}

	catalog, err := e.book.EventCatalog(ctx, bookEventID)
	if err != nil {
		return false, err
	}

	quote, err := resolver.Resolve(catalog, alert.LineType, alert.Outcome, alert.Points, alert.FirstHalf, alert.Sport)
	if err != nil {
		e.dropAlert(alert, "盘口解析失败: %v", err)
		return false, nil
	}

	prices := e.mergedPrices(ctx, alert, quote)

	// 单边价格去水会得到公平价 1.0 和虚高的 EV，至少要有两个方向
	usable := 0
	for _, p := range prices {
		if p > 1 {
			usable++
		}
	}
	if usable < 2 {
		e.dropAlert(alert, "可用价格不足（%d 个方向）: %v", usable, domain.ErrInsufficientPriceData)
		return false, nil
	}

	fairSet := oddsmath.Devig(prices)
	fairMap := fairSet.ByMethod(oddsmath.Method(e.cfg.DevigMethod))
	fair := fairMap[string(alert.Outcome)]
	ev := oddsmath.EVForOutcome(fairMap, string(alert.Outcome), quote.Odds)
	if ev == oddsmath.NoFairPrice {
		e.dropAlert(alert, "去水后缺少 %s 方向的公平价", alert.Outcome)
		return false, nil
	}
	if ev < e.cfg.MinEV {
		e.dropAlert(alert, "EV %.2f%% 低于阈值 %.2f%%", ev, e.cfg.MinEV)
		return false, nil
	}
	if e.cfg.MaxOdds > 0 && quote.Odds > e.cfg.MaxOdds {
		e.dropAlert(alert, "赔率 %.2f 超过上限 %.2f", quote.Odds, e.cfg.MaxOdds)
		return false, nil
	}

	order := &domain.BetOrder{
		ID:          uuid.NewString(),
		Alert:       alert,
		BookEventID: bookEventID,
		Quote:       quote,
		FairPrice:   fair,
		EV:          ev,
		EnqueuedAt:  time.Now(),
		State:       domain.OrderQueued,
	}
	if err := e.queue.Push(order); err != nil {
		order.State = domain.OrderDropped
		metrics.OrdersDropped.Add(1)
		e.dropAlert(alert, "订单入队失败: %v", err)
		return false, nil
	}
	metrics.OrdersQueued.Add(1)
	eLog.Infof("📥 订单入队: %s %s/%s 赔率=%.2f 公平价=%.3f EV=%.2f%%",
		order.ID, alert.LineType, alert.Outcome, quote.Odds, fair, ev)
	return true, nil
}

// mergedPrices 用参考盘口的实时价逐方向覆盖告警里的快照价。
// 实时价查询失败只降级不报错，保证决策链路不被参考源故障阻断。
func (e *Engine) mergedPrices(ctx context.Context, alert *domain.Alert, quote domain.MarketQuote) map[string]float64 {
	merged := make(map[string]float64, len(alert.Prices))
	for side, price := range alert.Prices {
		merged[side] = price
	}
	if e.prices == nil {
		return merged
	}

	live, err := e.prices.LivePrices(ctx, alert.EventID, alert.LineType, quote.Points, alert.FirstHalf)
	if err != nil {
		eLog.Warnf("实时价查询失败，回落到快照价: %v", err)
		return merged
	}
	for side, price := range live {
		if price > 1 {
			merged[side] = price
		}
	}
	return merged
}

func (e *Engine) dropAlert(alert *domain.Alert, format string, args ...interface{}) {
	metrics.AlertsDropped.Add(1)
	eLog.WithFields(logrus.Fields{
		"event": alert.EventID,
		"line":  alert.LineType,
	}).Infof("🗑 丢弃告警: "+format, args...)
}

// Close 关闭订单队列，派单 worker 随之退出
func (e *Engine) Close() { e.queue.Close() }

// DrainQueue 停机时取出所有未执行订单（用于落盘或告警）
func (e *Engine) DrainQueue() []*domain.BetOrder { return e.queue.Drain() }
