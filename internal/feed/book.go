package feed

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/betalert/arbot/internal/accounts"
	"github.com/betalert/arbot/internal/domain"
	"github.com/betalert/arbot/pkg/cache"
	"github.com/betalert/arbot/pkg/config"
	"github.com/betalert/arbot/pkg/ratelimit"
)

const catalogTTL = 30 * time.Second

// BookAPI 庄家侧行情客户端：事件搜索 + 盘口目录。
// 只覆盖行情读取；真正的下注执行是外部适配器的职责，
// 这里的 ExecuteBet/RenewSession 仅占位，未接入适配器时只能 dry run。
type BookAPI struct {
	http     *resty.Client
	limiter  *ratelimit.TokenBucket
	catalogs *cache.InMemoryCache[string, *domain.EventCatalog]
}

func NewBookAPI(cfg config.FeedConfig) *BookAPI {
	host := strings.TrimSuffix(cfg.BookHost, "/")
	http := resty.New().
		SetBaseURL(host).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second)

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}
	return &BookAPI{
		http:     http,
		limiter:  ratelimit.NewTokenBucket(rps, rps),
		catalogs: cache.NewInMemoryCache[string, *domain.EventCatalog](catalogTTL),
	}
}

type searchResult struct {
	Events []struct {
		EventID string `json:"eventId"`
		Desc    string `json:"desc"`
	} `json:"events"`
}

// SearchEvent 按主客队名搜索庄家侧事件 ID。没有命中返回空串且不报错。
func (b *BookAPI) SearchEvent(ctx context.Context, home, away string) (string, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var result searchResult
	resp, err := b.http.R().
		SetContext(ctx).
		SetQueryParam("term", home+" "+away).
		SetResult(&result).
		Get("/search")
	if err != nil {
		return "", errors.Wrap(err, "search event")
	}
	if !resp.IsSuccess() {
		return "", errors.Errorf("search event: http %d", resp.StatusCode())
	}

	// 取第一个同时包含主客队名的结果；只含一个队名的是同队其他场次
	for _, e := range result.Events {
		desc := strings.ToLower(e.Desc)
		if strings.Contains(desc, strings.ToLower(home)) && strings.Contains(desc, strings.ToLower(away)) {
			return e.EventID, nil
		}
	}
	return "", nil
}

// EventCatalog 拉取事件的完整盘口目录，短 TTL 缓存
func (b *BookAPI) EventCatalog(ctx context.Context, eventID string) (*domain.EventCatalog, error) {
	if cached, ok := b.catalogs.Get(eventID); ok {
		return cached, nil
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var catalog domain.EventCatalog
	resp, err := b.http.R().
		SetContext(ctx).
		SetResult(&catalog).
		Get("/events/" + eventID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch event catalog")
	}
	if !resp.IsSuccess() {
		return nil, errors.Errorf("fetch event catalog: http %d", resp.StatusCode())
	}
	catalog.EventID = eventID

	b.catalogs.Set(eventID, &catalog, 0)
	return &catalog, nil
}

// ExecuteBet 行情客户端不承担执行职责
func (b *BookAPI) ExecuteBet(ctx context.Context, account accounts.View, outcomeID string, odds, stake float64) error {
	return errors.Wrap(domain.ErrExecutionFailure, "未接入下注执行适配器")
}

// RenewSession 行情客户端不承担会话管理职责
func (b *BookAPI) RenewSession(ctx context.Context, account accounts.View) (string, time.Time, *float64, error) {
	return "", time.Time{}, nil, errors.Wrap(domain.ErrExecutionFailure, "未接入下注执行适配器")
}

// Close 释放目录缓存
func (b *BookAPI) Close() {
	b.catalogs.Close()
}
