package resolver

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/betalert/arbot/internal/domain"
)

var rLog = logrus.WithField("module", "resolver")

const (
	// pointTolerance 点数/赔率浮点比较容差
	pointTolerance = 0.01
	// searchSteps 最近盘口搜索：以 0.5 为步长向两侧各找 4 步
	searchSteps = 4
	searchStep  = 0.5
)

// Resolve 把告警的规范化描述（类别/方向/点数/半场/运动）映射到
// 目录里一个具体可投注项。目录只读，不做任何 IO。
func Resolve(catalog *domain.EventCatalog, lineType domain.LineType, outcome domain.Side, points *float64, firstHalf bool, sport domain.Sport) (domain.MarketQuote, error) {
	if catalog == nil || len(catalog.Markets) == 0 {
		return domain.MarketQuote{}, fmt.Errorf("%w: empty catalog", domain.ErrMarketNotFound)
	}
	table, ok := tableFor(sport, firstHalf)
	if !ok {
		return domain.MarketQuote{}, fmt.Errorf("%w: unsupported sport %d", domain.ErrMarketNotFound, sport)
	}

	switch lineType {
	case domain.LineMoneyLine:
		return resolveExact(catalog, table.moneyline, outcome)
	case domain.LineTotal:
		if points == nil {
			return domain.MarketQuote{}, fmt.Errorf("%w: total without points", domain.ErrMarketNotFound)
		}
		return resolveWithPoints(catalog, table.total, outcome, *points, false)
	case domain.LineSpread:
		if points == nil {
			return domain.MarketQuote{}, fmt.Errorf("%w: spread without points", domain.ErrMarketNotFound)
		}
		// 让球 0 等同于 draw-no-bet；没有 DNB 盘的运动回落到让 0 的 handicap
		if math.Abs(*points) < pointTolerance {
			if table.drawNoBet != nil {
				if q, err := resolveExact(catalog, *table.drawNoBet, outcome); err == nil {
					zero := 0.0
					q.Points = &zero
					return q, nil
				}
				rLog.Debugf("dnb 盘不存在，回落到 handicap 0: %s vs %s", catalog.HomeTeam, catalog.AwayTeam)
			}
			return resolveWithPoints(catalog, table.spread, outcome, 0, true)
		}
		return resolveWithPoints(catalog, table.spread, outcome, *points, true)
	default:
		return domain.MarketQuote{}, fmt.Errorf("%w: unknown line type %q", domain.ErrMarketNotFound, lineType)
	}
}

// resolveExact 精确匹配：moneyline 和 draw-no-bet 没有点数概念
func resolveExact(catalog *domain.EventCatalog, spec groupSpec, outcome domain.Side) (domain.MarketQuote, error) {
	wantID, ok := spec.outcomeIDs[outcome]
	if !ok {
		// 比如篮球没有平局
		return domain.MarketQuote{}, fmt.Errorf("%w: outcome %q not offered in %q", domain.ErrMarketNotFound, outcome, spec.description)
	}
	market := findMarket(catalog, spec.description)
	if market == nil {
		return domain.MarketQuote{}, fmt.Errorf("%w: no %q market", domain.ErrMarketNotFound, spec.description)
	}
	for _, o := range market.Outcomes {
		if o.ID != wantID {
			continue
		}
		odds, err := strconv.ParseFloat(strings.TrimSpace(o.Odds), 64)
		if err != nil || odds <= 1 {
			continue
		}
		return domain.MarketQuote{OutcomeID: o.ID, Odds: odds}, nil
	}
	return domain.MarketQuote{}, fmt.Errorf("%w: outcome %q missing from %q", domain.ErrMarketNotFound, outcome, spec.description)
}

// resolveWithPoints 带点数的最近盘口搜索（total 与 spread 共用）。
// 请求点数先取整到 0.5，然后以 0.5 为步长先升后降各搜 4 步，
// 命中多个时取与原始请求点数距离最小的那个。
func resolveWithPoints(catalog *domain.EventCatalog, spec groupSpec, outcome domain.Side, requested float64, allowNegative bool) (domain.MarketQuote, error) {
	wantID, ok := spec.outcomeIDs[outcome]
	if !ok {
		return domain.MarketQuote{}, fmt.Errorf("%w: outcome %q not offered in %q", domain.ErrMarketNotFound, outcome, spec.description)
	}
	market := findMarket(catalog, spec.description)
	if market == nil {
		return domain.MarketQuote{}, fmt.Errorf("%w: no %q market", domain.ErrMarketNotFound, spec.description)
	}

	type candidate struct {
		outcome domain.MarketOutcome
		points  float64
	}
	// 先把目录里该方向的所有带点数项解析出来
	var offers []candidate
	for _, o := range market.Outcomes {
		if o.ID != wantID {
			continue
		}
		p, ok := parsePoints(o.Desc)
		if !ok {
			continue
		}
		offers = append(offers, candidate{outcome: o, points: p})
	}
	if len(offers) == 0 {
		return domain.MarketQuote{}, fmt.Errorf("%w: no priced lines in %q for %q", domain.ErrMarketNotFound, spec.description, outcome)
	}

	rounded := roundToHalf(requested)
	var (
		best     *candidate
		bestDist float64
	)
	for _, target := range searchTargets(rounded, allowNegative) {
		for i := range offers {
			if math.Abs(offers[i].points-target) >= pointTolerance {
				continue
			}
			dist := math.Abs(offers[i].points - requested)
			if best == nil || dist < bestDist {
				best = &offers[i]
				bestDist = dist
			}
		}
	}
	if best == nil {
		return domain.MarketQuote{}, fmt.Errorf("%w: no line near %.2f in %q", domain.ErrMarketNotFound, requested, spec.description)
	}

	odds, err := strconv.ParseFloat(strings.TrimSpace(best.outcome.Odds), 64)
	if err != nil || odds <= 1 {
		return domain.MarketQuote{}, fmt.Errorf("%w: bad odds %q on matched line", domain.ErrMarketNotFound, best.outcome.Odds)
	}
	matched := best.points
	if matched != requested {
		rLog.Debugf("盘口点数调整: 请求 %.2f -> 实际 %.2f (%s)", requested, matched, spec.description)
	}
	return domain.MarketQuote{OutcomeID: best.outcome.ID, Odds: odds, Points: &matched}, nil
}

// searchTargets 生成搜索序列：取整值、升序 4 步、降序 4 步。
// total 的点数不允许为负（allowNegative=false 时跳过负值）。
func searchTargets(rounded float64, allowNegative bool) []float64 {
	targets := make([]float64, 0, 2*searchSteps+1)
	targets = append(targets, rounded)
	for i := 1; i <= searchSteps; i++ {
		targets = append(targets, rounded+float64(i)*searchStep)
	}
	for i := 1; i <= searchSteps; i++ {
		down := rounded - float64(i)*searchStep
		if !allowNegative && down < 0 {
			break
		}
		targets = append(targets, down)
	}
	return targets
}

func findMarket(catalog *domain.EventCatalog, description string) *domain.Market {
	want := strings.ToLower(strings.TrimSpace(description))
	for i := range catalog.Markets {
		if strings.ToLower(strings.TrimSpace(catalog.Markets[i].Description)) == want {
			return &catalog.Markets[i]
		}
	}
	return nil
}

var pointsPattern = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)

// parsePoints 从 outcome 描述里提取点数，
// 例如 "Over 2.5" -> 2.5，"Home (-0.5)" -> -0.5
func parsePoints(desc string) (float64, bool) {
	m := pointsPattern.FindString(desc)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// roundToHalf 将点数取整到最近的 0.5
func roundToHalf(v float64) float64 {
	return math.Round(v*2) / 2
}
