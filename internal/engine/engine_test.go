package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betalert/arbot/internal/dedup"
	"github.com/betalert/arbot/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func notifyCatalog() *domain.EventCatalog {
	return &domain.EventCatalog{
		EventID:  "book-ev1",
		HomeTeam: "Corinthians",
		AwayTeam: "Fortaleza",
		Markets: []domain.Market{
			{
				Description: "1x2",
				Outcomes: []domain.MarketOutcome{
					{ID: "1", Desc: "Home", Odds: "2.10"},
					{ID: "2", Desc: "Draw", Odds: "3.30"},
					{ID: "3", Desc: "Away", Odds: "3.60"},
				},
			},
			{
				Description: "asian handicap",
				Outcomes: []domain.MarketOutcome{
					{ID: "1714", Desc: "Home (-0.5)", Odds: "2.05"},
					{ID: "1715", Desc: "Away (+0.5)", Odds: "1.82"},
				},
			},
		},
	}
}

func spreadAlert() *domain.Alert {
	return &domain.Alert{
		ID:       "alert-1",
		EventID:  "ref-ev1",
		Home:     "Corinthians",
		Away:     "Fortaleza",
		Sport:    domain.SportSoccer,
		LineType: domain.LineSpread,
		Outcome:  domain.SideHome,
		Points:   ptr(-0.5),
		Prices: map[string]float64{
			"home": 1.90,
			"away": 2.00,
		},
		Starts:    time.Now().Add(2 * time.Hour),
		Timestamp: time.Now(),
	}
}

func notifyFixture(book *fakeBook, prices PriceSource) *Engine {
	cfg := baseEngineConfig()
	cfg.DevigMethod = "multiplicative"
	cfg.MinEV = 5
	return New(cfg, dedup.New(0, 0), book, prices)
}

func TestNotify_QueuesPositiveEVOrder(t *testing.T) {
	book := &fakeBook{searchResult: "book-ev1", catalog: notifyCatalog()}
	e := notifyFixture(book, nil)

	queued, err := e.Notify(context.Background(), spreadAlert())
	require.NoError(t, err)
	require.True(t, queued)

	order, err := e.Queue().Pop(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "book-ev1", order.BookEventID)
	assert.Equal(t, "1714", order.Quote.OutcomeID)
	assert.Equal(t, 2.05, order.Quote.Odds)
	require.NotNil(t, order.Quote.Points)
	assert.Equal(t, -0.5, *order.Quote.Points)
	assert.Equal(t, domain.OrderQueued, order.State)

	// multiplicative 去水: 公平价 1.90×1.0263... = 1.95，EV ≈ 5.13%
	assert.InDelta(t, 1.95, order.FairPrice, 1e-9)
	assert.InDelta(t, 5.128205128205, order.EV, 1e-6)
}

func TestNotify_DuplicateAlertDropped(t *testing.T) {
	book := &fakeBook{searchResult: "book-ev1", catalog: notifyCatalog()}
	e := notifyFixture(book, nil)

	ctx := context.Background()
	queued, err := e.Notify(ctx, spreadAlert())
	require.NoError(t, err)
	require.True(t, queued)

	// 同一 (event, line type) 的第二条告警被去重
	queued, err = e.Notify(ctx, spreadAlert())
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Equal(t, 1, e.Queue().Len())
}

func TestNotify_StaleMatchDropped(t *testing.T) {
	book := &fakeBook{searchResult: "book-ev1", catalog: notifyCatalog()}
	e := notifyFixture(book, nil)

	alert := spreadAlert()
	alert.Starts = time.Now().Add(-10 * time.Minute)
	queued, err := e.Notify(context.Background(), alert)
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Equal(t, 0, e.Queue().Len())
}

func TestNotify_EventNotFoundDropped(t *testing.T) {
	book := &fakeBook{searchResult: "", catalog: notifyCatalog()}
	e := notifyFixture(book, nil)

	queued, err := e.Notify(context.Background(), spreadAlert())
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Equal(t, 0, e.Queue().Len())
}

func TestNotify_LowEVDropped(t *testing.T) {
	book := &fakeBook{searchResult: "book-ev1", catalog: notifyCatalog()}
	e := notifyFixture(book, nil)
	e.cfg.MinEV = 10 // 实际 EV ≈ 5.13%

	queued, err := e.Notify(context.Background(), spreadAlert())
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Equal(t, 0, e.Queue().Len())
}

func TestNotify_MaxOddsDropped(t *testing.T) {
	book := &fakeBook{searchResult: "book-ev1", catalog: notifyCatalog()}
	e := notifyFixture(book, nil)
	e.cfg.MaxOdds = 2.0 // 目标赔率 2.05

	queued, err := e.Notify(context.Background(), spreadAlert())
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Equal(t, 0, e.Queue().Len())
}

func TestNotify_InvalidAlertDropped(t *testing.T) {
	book := &fakeBook{searchResult: "book-ev1", catalog: notifyCatalog()}
	e := notifyFixture(book, nil)

	alert := spreadAlert()
	alert.Points = nil // spread 告警缺盘口点数
	queued, err := e.Notify(context.Background(), alert)
	require.NoError(t, err)
	assert.False(t, queued)
}

type stubPrices struct {
	prices map[string]float64
	err    error
}

func (s *stubPrices) LivePrices(ctx context.Context, eventID string, lineType domain.LineType, points *float64, firstHalf bool) (map[string]float64, error) {
	return s.prices, s.err
}

func TestNotify_LivePricesOverrideSnapshot(t *testing.T) {
	book := &fakeBook{searchResult: "book-ev1", catalog: notifyCatalog()}
	live := &stubPrices{prices: map[string]float64{"home": 1.80, "away": 2.10}}
	e := notifyFixture(book, live)

	queued, err := e.Notify(context.Background(), spreadAlert())
	require.NoError(t, err)
	require.True(t, queued)

	order, err := e.Queue().Pop(context.Background())
	require.NoError(t, err)
	// 实时价 1.80/2.10 覆盖快照价 1.90/2.00，EV 随之变化
	assert.InDelta(t, 10.384615, order.EV, 1e-3)
}

func TestNotify_LivePriceFailureFallsBack(t *testing.T) {
	book := &fakeBook{searchResult: "book-ev1", catalog: notifyCatalog()}
	live := &stubPrices{err: domain.ErrInsufficientPriceData}
	e := notifyFixture(book, live)

	queued, err := e.Notify(context.Background(), spreadAlert())
	require.NoError(t, err)
	require.True(t, queued)

	order, err := e.Queue().Pop(context.Background())
	require.NoError(t, err)
	// 回落到告警快照价
	assert.InDelta(t, 1.95, order.FairPrice, 1e-9)
}

func TestNotify_SingleSidedPricesDropped(t *testing.T) {
	book := &fakeBook{searchResult: "book-ev1", catalog: notifyCatalog()}
	e := notifyFixture(book, nil)

	// 只有一个方向的价格：去水会得到公平价 1.0 和虚高 EV，必须丢弃
	alert := spreadAlert()
	alert.Prices = map[string]float64{"home": 1.90}
	queued, err := e.Notify(context.Background(), alert)
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Equal(t, 0, e.Queue().Len())
}

func TestNotify_QueueFullDropsOrder(t *testing.T) {
	book := &fakeBook{searchResult: "book-ev1", catalog: notifyCatalog()}
	e := notifyFixture(book, nil)
	e.Queue().SetCapacity(1)
	require.NoError(t, e.Queue().Push(&domain.BetOrder{ID: "occupied", State: domain.OrderQueued}))

	queued, err := e.Notify(context.Background(), spreadAlert())
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Equal(t, 1, e.Queue().Len())
}
