package engine

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betalert/arbot/internal/accounts"
	"github.com/betalert/arbot/internal/domain"
	"github.com/betalert/arbot/internal/metrics"
	"github.com/betalert/arbot/internal/risk"
	"github.com/betalert/arbot/pkg/config"
)

var dLog = logrus.WithField("module", "dispatcher")

// Dispatcher 把排队的 BetOrder 分配到账号池里合格的账号上执行。
// 状态机：Queued → Assigning → (Placed | Requeued | Dropped)
type Dispatcher struct {
	pool    *accounts.Pool
	book    BookClient
	sizer   *StakeSizer
	queue   *orderQueue
	breaker *risk.CircuitBreaker
	journal Journal // 可为 nil（dry run / 测试）

	cfg    config.DispatchConfig
	engine *config.EngineConfig
}

func NewDispatcher(pool *accounts.Pool, book BookClient, sizer *StakeSizer, queue *orderQueue, breaker *risk.CircuitBreaker, journal Journal, cfg config.DispatchConfig, engineCfg *config.EngineConfig) *Dispatcher {
	return &Dispatcher{
		pool:    pool,
		book:    book,
		sizer:   sizer,
		queue:   queue,
		breaker: breaker,
		journal: journal,
		cfg:     cfg,
		engine:  engineCfg,
	}
}

// Run 派单 worker 主循环：FIFO 消费队列，单条订单的任何失败都不会
// 中断循环。阻塞直到 ctx 取消或队列关闭。
func (d *Dispatcher) Run(ctx context.Context) {
	dLog.Info("🚚 派单 worker 启动")
	for {
		order, err := d.queue.Pop(ctx)
		if err != nil {
			dLog.Infof("派单 worker 退出: %v", err)
			return
		}
		d.dispatch(ctx, order)
	}
}

// dispatch 对一个订单做一轮分配
func (d *Dispatcher) dispatch(ctx context.Context, order *domain.BetOrder) {
	order.State = domain.OrderAssigning
	order.Attempts++

	// 开球后的订单直接放弃，不再重试
	if !order.Alert.Starts.After(time.Now()) {
		d.drop(order, "match started")
		return
	}

	if err := d.breaker.AllowBetting(); err != nil {
		dLog.Warnf("⛔ 断路器打开，订单 %s 延迟重排", order.ID)
		d.requeue(order, d.cfg.CapRequeueDelay)
		return
	}

	// 全局并发预检：先于账号扫描，尽力而为（不是事务性保证）
	if d.pool.GlobalInFlight() >= d.cfg.GlobalMaxConcurrent {
		dLog.Debugf("全局并发已满，订单 %s 延迟 %s 重排", order.ID, d.cfg.CapRequeueDelay)
		d.requeue(order, d.cfg.CapRequeueDelay)
		return
	}

	// 固定顺序扫描账号池，逐个尝试，直到下注成功或无账号可用
	skip := make(map[int]bool)
	for {
		view, err := d.pool.AcquireNext(skip)
		if err != nil {
			if errors.Is(err, domain.ErrNoEligibleAccount) && len(skip) == 0 {
				dLog.Warnf("无可用账号，订单 %s 延迟 %s 重排", order.ID, d.cfg.NoAccountRequeueDelay)
			}
			d.requeue(order, d.cfg.NoAccountRequeueDelay)
			return
		}

		placed, stake := d.tryAccount(ctx, order, view)
		// 额度无条件归还，成功与否都一样
		d.pool.Release(view.Index)

		if placed {
			d.pool.ConfirmStake(view.Index, decimal.NewFromFloat(stake))
			d.breaker.OnSuccess()
			d.breaker.AddStake(int64(stake))
			order.State = domain.OrderPlaced
			metrics.BetsPlaced.Add(1)
			dLog.Infof("✅ 订单 %s 已下注: 账号=%s 赔率=%.2f 注额=%.0f EV=%.2f%%",
				order.ID, view.Username, order.Quote.Odds, stake, order.EV)
			if d.journal != nil {
				if err := d.journal.RecordPlaced(order, view.Username, stake); err != nil {
					dLog.Errorf("注单流水写入失败: %v", err)
				}
			}
			return
		}
		skip[view.Index] = true
	}
}

// tryAccount 在单个账号上尝试执行订单。
// 会话失效触发一次续期并在同一账号上重试一次，之后放弃该账号。
func (d *Dispatcher) tryAccount(ctx context.Context, order *domain.BetOrder, view accounts.View) (bool, float64) {
	bankroll, _ := view.Balance.Float64()
	winProb := 1 / order.FairPrice
	stake := d.sizer.StakeFor(order.Quote.Odds, winProb, bankroll)
	if stake <= 0 {
		dLog.Debugf("账号 %s 对订单 %s 无可下注额", view.Username, order.ID)
		return false, 0
	}

	if d.engine.DryRun {
		dLog.Infof("🧪 dry run: 账号=%s outcome=%s 赔率=%.2f 注额=%.0f",
			view.Username, order.Quote.OutcomeID, order.Quote.Odds, stake)
		return true, stake
	}

	err := d.book.ExecuteBet(ctx, view, order.Quote.OutcomeID, order.Quote.Odds, stake)
	if err == nil {
		return true, stake
	}

	if errors.Is(err, domain.ErrSessionExpired) {
		// 同一账号只续期一次、重试一次
		metrics.SessionRenewals.Add(1)
		dLog.Warnf("账号 %s 会话失效，尝试续期", view.Username)
		token, expiry, balance, rerr := d.book.RenewSession(ctx, view)
		if rerr != nil {
			dLog.Errorf("账号 %s 会话续期失败: %v", view.Username, rerr)
			d.breaker.OnFailure()
			return false, 0
		}
		d.pool.UpdateSession(view.Index, token, expiry, balance)
		if fresh, ok := d.pool.ViewOf(view.Index); ok {
			view = fresh
		}
		if err = d.book.ExecuteBet(ctx, view, order.Quote.OutcomeID, order.Quote.Odds, stake); err == nil {
			return true, stake
		}
	}

	metrics.ExecutionFailures.Add(1)
	d.breaker.OnFailure()
	dLog.Errorf("账号 %s 执行订单 %s 失败: %v", view.Username, order.ID, err)
	return false, 0
}

func (d *Dispatcher) requeue(order *domain.BetOrder, delay time.Duration) {
	order.State = domain.OrderRequeued
	if err := d.queue.PushDelayed(order, delay); err != nil {
		d.drop(order, err.Error())
		return
	}
	metrics.OrdersRequeued.Add(1)
}

func (d *Dispatcher) drop(order *domain.BetOrder, reason string) {
	order.State = domain.OrderDropped
	metrics.OrdersDropped.Add(1)
	dLog.Infof("订单 %s 放弃: %s", order.ID, reason)
	if d.journal != nil {
		if err := d.journal.RecordFailed(order, reason); err != nil {
			dLog.Errorf("注单流水写入失败: %v", err)
		}
	}
}
