package feed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betalert/arbot/internal/domain"
	"github.com/betalert/arbot/pkg/cache"
	"github.com/betalert/arbot/pkg/config"
	"github.com/betalert/arbot/pkg/ratelimit"
)

var fLog = logrus.WithField("module", "feed")

// 掉水告警的回看窗口：每次轮询拉取最近 10 分钟的告警，
// 去重交给 engine 侧的 dedup 过滤器
const alertLookback = 10 * time.Minute

const livePriceTTL = 15 * time.Second

// 告警轮询的每分钟上限：令牌桶只平滑秒级突发，
// 滑动窗口兜住重排风暴下的分钟级轮询频率
const maxPollsPerMinute = 12

// Client 参考盘口告警/实时价客户端。
// 告警来自 drop-notification 轮询端点，实时价按 (event, line, points) 查询。
type Client struct {
	http       *resty.Client
	userID     string
	limiter    *ratelimit.TokenBucket
	pollWindow *ratelimit.SlidingWindow
	prices     *cache.InMemoryCache[string, map[string]float64]
}

func NewClient(cfg config.FeedConfig) *Client {
	host := strings.TrimSuffix(cfg.AlertsHost, "/")

	// resty 自动读取 HTTP_PROXY / HTTPS_PROXY 环境变量
	http := resty.New().
		SetBaseURL(host).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			// 429 限流时优先尊重对端的 Retry-After
			if resp.StatusCode() == 429 {
				if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
					if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
						return seconds, nil
					}
				}
				return 10 * time.Second, nil
			}
			return 0, nil
		})

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}
	return &Client{
		http:       http,
		userID:     cfg.AlertsUserID,
		limiter:    ratelimit.NewTokenBucket(rps, rps),
		pollWindow: ratelimit.NewSlidingWindow(maxPollsPerMinute, time.Minute),
		prices:     cache.NewInMemoryCache[string, map[string]float64](livePriceTTL),
	}
}

// wireAlert 告警端点的原始结构。价格字段是字符串，缺失方向为空串。
type wireAlert struct {
	EventID    string `json:"eventId"`
	Home       string `json:"home"`
	Away       string `json:"away"`
	SportID    int    `json:"sportId"`
	LineType   string `json:"lineType"`
	Outcome    string `json:"outcome"`
	Points     string `json:"points"`
	Period     int    `json:"periodNumber"`
	PriceHome  string `json:"priceHome"`
	PriceAway  string `json:"priceAway"`
	PriceDraw  string `json:"priceDraw"`
	PriceOver  string `json:"priceOver"`
	PriceUnder string `json:"priceUnder"`
	Starts     int64  `json:"starts"`    // epoch ms
	Timestamp  int64  `json:"timestamp"` // epoch ms
}

type alertEnvelope struct {
	Data []wireAlert `json:"data"`
}

// FetchAlerts 拉取回看窗口内的掉水告警。
// 解析失败的单条告警跳过并告警日志，不影响同批其他告警。
func (c *Client) FetchAlerts(ctx context.Context) ([]*domain.Alert, error) {
	if err := c.pollWindow.Wait(ctx); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	cursor := time.Now().Add(-alertLookback).UnixMilli()
	var envelope alertEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("dropNotificationsCursor", fmt.Sprintf("%d-0", cursor)).
		SetResult(&envelope).
		Get("/alerts/" + c.userID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch alerts")
	}
	if !resp.IsSuccess() {
		return nil, errors.Errorf("fetch alerts: http %d: %s", resp.StatusCode(), resp.String())
	}

	alerts := make([]*domain.Alert, 0, len(envelope.Data))
	for _, w := range envelope.Data {
		alert, err := w.toDomain()
		if err != nil {
			fLog.Warnf("跳过无法解析的告警 event=%s: %v", w.EventID, err)
			continue
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func (w wireAlert) toDomain() (*domain.Alert, error) {
	alert := &domain.Alert{
		ID:        fmt.Sprintf("%s-%d", w.EventID, w.Timestamp),
		EventID:   w.EventID,
		Home:      w.Home,
		Away:      w.Away,
		Sport:     domain.Sport(w.SportID),
		LineType:  domain.LineType(w.LineType),
		Outcome:   domain.Side(w.Outcome),
		FirstHalf: w.Period == 1,
		Prices:    make(map[string]float64, 4),
		Starts:    time.UnixMilli(w.Starts),
		Timestamp: time.UnixMilli(w.Timestamp),
	}

	if w.Points != "" {
		points, err := strconv.ParseFloat(w.Points, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "points %q", w.Points)
		}
		alert.Points = &points
	}

	for side, raw := range map[string]string{
		string(domain.SideHome):  w.PriceHome,
		string(domain.SideAway):  w.PriceAway,
		string(domain.SideDraw):  w.PriceDraw,
		string(domain.SideOver):  w.PriceOver,
		string(domain.SideUnder): w.PriceUnder,
	} {
		if raw == "" {
			continue
		}
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "price %s=%q", side, raw)
		}
		if price > 1 {
			alert.Prices[side] = price
		}
	}

	if err := alert.Validate(); err != nil {
		return nil, err
	}
	return alert, nil
}

// wirePrices 实时价端点的原始结构
type wirePrices struct {
	PriceHome  float64 `json:"priceHome"`
	PriceAway  float64 `json:"priceAway"`
	PriceDraw  float64 `json:"priceDraw"`
	PriceOver  float64 `json:"priceOver"`
	PriceUnder float64 `json:"priceUnder"`
}

// LivePrices 查询参考盘口当前价。实现 engine.PriceSource。
// 结果按 (event, line, points, half) 缓存一小段时间，同一比赛的
// 多条告警不会重复打参考端点。
func (c *Client) LivePrices(ctx context.Context, eventID string, lineType domain.LineType, points *float64, firstHalf bool) (map[string]float64, error) {
	key := priceKey(eventID, lineType, points, firstHalf)
	if cached, ok := c.prices.Get(key); ok {
		return cached, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("lineType", string(lineType))
	if points != nil {
		req.SetQueryParam("points", strconv.FormatFloat(*points, 'f', -1, 64))
	}
	if firstHalf {
		req.SetQueryParam("period", "1")
	}

	var wire wirePrices
	resp, err := req.SetResult(&wire).Get("/markets/" + eventID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch live prices")
	}
	if !resp.IsSuccess() {
		return nil, errors.Errorf("fetch live prices: http %d", resp.StatusCode())
	}

	prices := make(map[string]float64, 5)
	for side, price := range map[string]float64{
		string(domain.SideHome):  wire.PriceHome,
		string(domain.SideAway):  wire.PriceAway,
		string(domain.SideDraw):  wire.PriceDraw,
		string(domain.SideOver):  wire.PriceOver,
		string(domain.SideUnder): wire.PriceUnder,
	} {
		if price > 1 {
			prices[side] = price
		}
	}
	if len(prices) < 2 {
		return nil, errors.Wrapf(domain.ErrInsufficientPriceData, "event %s %s", eventID, lineType)
	}

	c.prices.Set(key, prices, 0)
	return prices, nil
}

func priceKey(eventID string, lineType domain.LineType, points *float64, firstHalf bool) string {
	key := eventID + "|" + string(lineType)
	if points != nil {
		key += "|" + strconv.FormatFloat(*points, 'f', -1, 64)
	}
	if firstHalf {
		key += "|1h"
	}
	return key
}

// Close 释放缓存的后台清理 goroutine
func (c *Client) Close() {
	c.prices.Close()
}
