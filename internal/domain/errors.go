package domain

import "errors"

// 单条告警/订单级别的错误分类。worker 循环按条捕获并继续，
// 不允许任何一条告警的失败中断整个循环。
var (
	ErrInvalidAlert          = errors.New("invalid alert")
	ErrStaleMatch            = errors.New("match already started")
	ErrMarketNotFound        = errors.New("market not found")
	ErrInsufficientPriceData = errors.New("insufficient price data")
	ErrSessionExpired        = errors.New("session expired")
	ErrCapacityExceeded      = errors.New("capacity exceeded")
	ErrExecutionFailure      = errors.New("bet execution failure")
	ErrNoEligibleAccount     = errors.New("no eligible account")
)
