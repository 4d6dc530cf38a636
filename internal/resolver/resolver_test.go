package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betalert/arbot/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func soccerCatalog() *domain.EventCatalog {
	return &domain.EventCatalog{
		EventID:  "sr:match:58052743",
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
				Description: "over/under",
				Outcomes: []domain.MarketOutcome{
					{ID: "12", Desc: "Over 2.5", Odds: "1.85"},
					{ID: "13", Desc: "Under 2.5", Odds: "1.95"},
					{ID: "12", Desc: "Over 3.5", Odds: "2.60"},
					{ID: "13", Desc: "Under 3.5", Odds: "1.50"},
				},
			},
			{
				Description: "asian handicap",
				Outcomes: []domain.MarketOutcome{
					{ID: "1714", Desc: "Home (-0.5)", Odds: "2.05"},
					{ID: "1715", Desc: "Away (+0.5)", Odds: "1.82"},
					{ID: "1714", Desc: "Home (-1.0)", Odds: "2.60"},
					{ID: "1715", Desc: "Away (+1.0)", Odds: "1.50"},
				},
			},
			{
				Description: "draw no bet",
				Outcomes: []domain.MarketOutcome{
					{ID: "4", Desc: "Home", Odds: "1.65"},
					{ID: "5", Desc: "Away", Odds: "2.30"},
				},
			},
			{
				Description: "1st half - 1x2",
				Outcomes: []domain.MarketOutcome{
					{ID: "1", Desc: "Home", Odds: "2.80"},
					{ID: "2", Desc: "Draw", Odds: "2.20"},
					{ID: "3", Desc: "Away", Odds: "4.10"},
				},
			},
			{
				Description: "1st half - o/u",
				Outcomes: []domain.MarketOutcome{
					{ID: "12", Desc: "Over 1.0", Odds: "2.00"},
					{ID: "13", Desc: "Under 1.0", Odds: "1.80"},
				},
			},
		},
	}
}

func TestResolve_Moneyline(t *testing.T) {
	q, err := Resolve(soccerCatalog(), domain.LineMoneyLine, domain.SideHome, nil, false, domain.SportSoccer)
	require.NoError(t, err)
	assert.Equal(t, "1", q.OutcomeID)
	assert.Equal(t, 2.10, q.Odds)
	assert.Nil(t, q.Points)
}

func TestResolve_MoneylineFirstHalf(t *testing.T) {
	q, err := Resolve(soccerCatalog(), domain.LineMoneyLine, domain.SideDraw, nil, true, domain.SportSoccer)
	require.NoError(t, err)
	assert.Equal(t, "2", q.OutcomeID)
	assert.Equal(t, 2.20, q.Odds)
}

func TestResolve_TotalRoundsToNearestHalf(t *testing.T) {
	// 请求 2.3，取整到 2.5 命中目录里的 Over 2.5
	q, err := Resolve(soccerCatalog(), domain.LineTotal, domain.SideOver, ptr(2.3), false, domain.SportSoccer)
	require.NoError(t, err)
	assert.Equal(t, "12", q.OutcomeID)
	assert.Equal(t, 1.85, q.Odds)
	require.NotNil(t, q.Points)
	assert.Equal(t, 2.5, *q.Points)
}

func TestResolve_TotalPicksNearestLine(t *testing.T) {
	// 2.75 取整到 3.0：2.5 和 3.5 都在搜索窗口内，
	// 距原始请求 2.75 更近的是 2.5
	q, err := Resolve(soccerCatalog(), domain.LineTotal, domain.SideUnder, ptr(2.75), false, domain.SportSoccer)
	require.NoError(t, err)
	assert.Equal(t, 1.95, q.Odds)
	assert.Equal(t, 2.5, *q.Points)
}

func TestResolve_TotalFirstHalf(t *testing.T) {
	q, err := Resolve(soccerCatalog(), domain.LineTotal, domain.SideOver, ptr(1.0), true, domain.SportSoccer)
	require.NoError(t, err)
	assert.Equal(t, 2.00, q.Odds)
	assert.Equal(t, 1.0, *q.Points)
}

func TestResolve_TotalOutOfSearchWindow(t *testing.T) {
	// 10.5 的搜索窗口 [8.5, 12.5] 覆盖不到目录里的 2.5/3.5
	_, err := Resolve(soccerCatalog(), domain.LineTotal, domain.SideOver, ptr(10.5), false, domain.SportSoccer)
	assert.ErrorIs(t, err, domain.ErrMarketNotFound)
}

func TestResolve_SpreadHandicap(t *testing.T) {
	q, err := Resolve(soccerCatalog(), domain.LineSpread, domain.SideHome, ptr(-0.5), false, domain.SportSoccer)
	require.NoError(t, err)
	assert.Equal(t, "1714", q.OutcomeID)
	assert.Equal(t, 2.05, q.Odds)
	assert.Equal(t, -0.5, *q.Points)
}

func TestResolve_SpreadAwayPositivePoints(t *testing.T) {
	q, err := Resolve(soccerCatalog(), domain.LineSpread, domain.SideAway, ptr(1.0), false, domain.SportSoccer)
	require.NoError(t, err)
	assert.Equal(t, "1715", q.OutcomeID)
	assert.Equal(t, 1.50, q.Odds)
}

func TestResolve_SpreadZeroUsesDrawNoBet(t *testing.T) {
	// 让球 0 改投 DNB 盘（outcome id 4/5）
	q, err := Resolve(soccerCatalog(), domain.LineSpread, domain.SideHome, ptr(0), false, domain.SportSoccer)
	require.NoError(t, err)
	assert.Equal(t, "4", q.OutcomeID)
	assert.Equal(t, 1.65, q.Odds)
	require.NotNil(t, q.Points)
	assert.Equal(t, 0.0, *q.Points)

	q, err = Resolve(soccerCatalog(), domain.LineSpread, domain.SideAway, ptr(0), false, domain.SportSoccer)
	require.NoError(t, err)
	assert.Equal(t, "5", q.OutcomeID)
}

func TestResolve_SpreadZeroFallsBackToHandicap(t *testing.T) {
	// 篮球没有 DNB 盘：让球 0 回落到 handicap 0.0
	catalog := &domain.EventCatalog{
		EventID:  "sr:match:9001",
		HomeTeam: "Lakers",
		AwayTeam: "Celtics",
		Markets: []domain.Market{
			{
				Description: "handicap",
				Outcomes: []domain.MarketOutcome{
					{ID: "1714", Desc: "Home (0.0)", Odds: "1.90"},
					{ID: "1715", Desc: "Away (0.0)", Odds: "1.90"},
				},
			},
		},
	}
	q, err := Resolve(catalog, domain.LineSpread, domain.SideHome, ptr(0), false, domain.SportBasketball)
	require.NoError(t, err)
	assert.Equal(t, "1714", q.OutcomeID)
	assert.Equal(t, 1.90, q.Odds)
}

func TestResolve_BasketballHasNoDraw(t *testing.T) {
	catalog := &domain.EventCatalog{
		EventID:  "sr:match:9001",
		HomeTeam: "Lakers",
		AwayTeam: "Celtics",
		Markets: []domain.Market{
			{
				Description: "winner",
				Outcomes: []domain.MarketOutcome{
					{ID: "1", Desc: "Home", Odds: "1.70"},
					{ID: "2", Desc: "Away", Odds: "2.15"},
				},
			},
		},
	}
	q, err := Resolve(catalog, domain.LineMoneyLine, domain.SideAway, nil, false, domain.SportBasketball)
	require.NoError(t, err)
	assert.Equal(t, "2", q.OutcomeID)

	_, err = Resolve(catalog, domain.LineMoneyLine, domain.SideDraw, nil, false, domain.SportBasketball)
	assert.ErrorIs(t, err, domain.ErrMarketNotFound)
}

func TestResolve_MissingMarketGroup(t *testing.T) {
	catalog := &domain.EventCatalog{
		EventID: "sr:match:1",
		Markets: []domain.Market{{Description: "1x2"}},
	}
	_, err := Resolve(catalog, domain.LineTotal, domain.SideOver, ptr(2.5), false, domain.SportSoccer)
	assert.ErrorIs(t, err, domain.ErrMarketNotFound)
}

func TestParsePoints(t *testing.T) {
	cases := []struct {
		desc string
		want float64
		ok   bool
	}{
		{"Over 2.5", 2.5, true},
		{"Under 0.5", 0.5, true},
		{"Home (-0.5)", -0.5, true},
		{"Away (+1.0)", 1.0, true},
		{"Home (0.0)", 0, true},
		{"Home", 0, false},
	}
	for _, c := range cases {
		got, ok := parsePoints(c.desc)
		assert.Equal(t, c.ok, ok, c.desc)
		if c.ok {
			assert.Equal(t, c.want, got, c.desc)
		}
	}
}
