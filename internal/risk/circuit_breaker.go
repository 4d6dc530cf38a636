package risk

import (
	"fmt"
	"sync/atomic"
	"time"
)

// ErrBettingHalted 表示断路器已打开，禁止继续下注。
var ErrBettingHalted = fmt.Errorf("betting halted")

// CircuitBreakerConfig 断路器配置。
// 约定：阈值 <= 0 表示关闭对应限制。
type CircuitBreakerConfig struct {
	// MaxConsecutiveFailures 连续执行失败上限（下注失败/适配器异常等）。
	MaxConsecutiveFailures int64

	// DailyStakeLimit 当日累计注额上限（主币种整数单位）。达到或超过时熔断。
	DailyStakeLimit int64
}

// CircuitBreaker 派单快路径使用原子变量，低频配置更新同样走原子字段。
// 连续失败说明庄家侧出了系统性问题（风控、封号、接口变更），
// 此时继续派单只会烧额度，先停下来等人工确认。
type CircuitBreaker struct {
	halted atomic.Bool

	consecutiveFailures atomic.Int64
	dailyStake          atomic.Int64
	dayKey              atomic.Int64 // YYYYMMDD

	maxConsecutiveFailures atomic.Int64
	dailyStakeLimit        atomic.Int64
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{}
	cb.SetConfig(cfg)
	return cb
}

func (cb *CircuitBreaker) SetConfig(cfg CircuitBreakerConfig) {
	if cb == nil {
		return
	}
	cb.maxConsecutiveFailures.Store(cfg.MaxConsecutiveFailures)
	cb.dailyStakeLimit.Store(cfg.DailyStakeLimit)
}

// Halt 手动熔断（如人工介入或检测到严重异常）。
func (cb *CircuitBreaker) Halt() {
	if cb == nil {
		return
	}
	cb.halted.Store(true)
}

// Resume 手动恢复（会同时清空连续失败计数）。
func (cb *CircuitBreaker) Resume() {
	if cb == nil {
		return
	}
	cb.halted.Store(false)
	cb.consecutiveFailures.Store(0)
}

// AllowBetting 快路径检查是否允许继续派单。
func (cb *CircuitBreaker) AllowBetting() error {
	if cb == nil {
		return nil
	}

	if cb.halted.Load() {
		return ErrBettingHalted
	}

	// 连续失败熔断
	maxFail := cb.maxConsecutiveFailures.Load()
	if maxFail > 0 && cb.consecutiveFailures.Load() >= maxFail {
		cb.halted.Store(true)
		return ErrBettingHalted
	}

	// 当日注额熔断（若启用）
	limit := cb.dailyStakeLimit.Load()
	if limit > 0 {
		cb.rollDayIfNeeded()
		if cb.dailyStake.Load() >= limit {
			cb.halted.Store(true)
			return ErrBettingHalted
		}
	}

	return nil
}

// OnSuccess 在一次下注成功后调用，清空连续失败计数。
func (cb *CircuitBreaker) OnSuccess() {
	if cb == nil {
		return
	}
	cb.consecutiveFailures.Store(0)
}

// OnFailure 在一次下注失败后调用，累计连续失败计数。
func (cb *CircuitBreaker) OnFailure() {
	if cb == nil {
		return
	}
	cb.consecutiveFailures.Add(1)
}

// AddStake 成功下注后累计当日注额。
func (cb *CircuitBreaker) AddStake(stake int64) {
	if cb == nil {
		return
	}
	cb.rollDayIfNeeded()
	cb.dailyStake.Add(stake)
}

func (cb *CircuitBreaker) rollDayIfNeeded() {
	// YYYYMMDD（本地时间即可；风控用途不要求跨时区精确）
	now := time.Now()
	key := int64(now.Year()*10000 + int(now.Month())*100 + now.Day())
	prev := cb.dayKey.Load()
	if prev == key {
		return
	}
	// 尝试切换 dayKey；成功者负责清零当日注额
	if cb.dayKey.CompareAndSwap(prev, key) {
		cb.dailyStake.Store(0)
	}
}
