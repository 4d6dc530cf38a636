package feed

import (
	"context"
	"time"

	"github.com/betalert/arbot/internal/domain"
)

// Notifier 告警消费方（engine.Engine 实现）
type Notifier interface {
	Notify(ctx context.Context, alert *domain.Alert) (bool, error)
}

// Poller 告警轮询循环：定期拉取告警并逐条送入决策引擎。
// 回看窗口内重复拉到的告警由引擎的去重层吸收。
type Poller struct {
	client   *Client
	notifier Notifier
	interval time.Duration
}

func NewPoller(client *Client, notifier Notifier, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		client:   client,
		notifier: notifier,
		interval: interval,
	}
}

// Run 阻塞轮询直到 ctx 取消。启动时立即拉一次，之后按间隔轮询。
func (p *Poller) Run(ctx context.Context) {
	fLog.Infof("📡 告警轮询启动，间隔 %s", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			fLog.Info("告警轮询退出")
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	alerts, err := p.client.FetchAlerts(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		fLog.Errorf("拉取告警失败: %v", err)
		return
	}

	queued := 0
	for _, alert := range alerts {
		ok, err := p.notifier.Notify(ctx, alert)
		if err != nil {
			fLog.Errorf("处理告警 %s 失败: %v", alert.ID, err)
			continue
		}
		if ok {
			queued++
		}
	}
	if len(alerts) > 0 {
		fLog.Infof("本轮 %d 条告警，%d 条入队", len(alerts), queued)
	}
}
