package domain

// MarketOutcome 庄家盘口里的一个可投注项。
// 点数（如 "Over 2.5"、"Home (-0.5)"）嵌在描述里，由 resolver 解析。
type MarketOutcome struct {
	ID   string `json:"id"`
	Desc string `json:"desc"`
	Odds string `json:"odds"`
}

// Market 庄家的一个盘口组（如 "1x2"、"over/under"）
type Market struct {
	Description string          `json:"description"`
	Outcomes    []MarketOutcome `json:"outcomes"`
}

// EventCatalog 庄家单场比赛的完整盘口目录
type EventCatalog struct {
	EventID  string   `json:"eventId"`
	HomeTeam string   `json:"homeTeam"`
	AwayTeam string   `json:"awayTeam"`
	Markets  []Market `json:"markets"`
}

// MarketQuote 盘口解析结果：具体可下注项及其赔率。
// Points 是实际匹配到的点数，可能不同于告警请求的点数。
type MarketQuote struct {
	OutcomeID string
	Odds      float64
	Points    *float64
}
