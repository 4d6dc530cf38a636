package resolver

import "github.com/betalert/arbot/internal/domain"

// 盘口命名与 outcome-id 约定按 运动 × 半场 × 类别 查表，
// 不同运动的目录描述和编号不一样，全部集中在这里维护。

type groupSpec struct {
	// description 目录里盘口组的描述（小写比较）
	description string
	// outcomeIDs 投注方向到庄家 outcome-id 的映射
	outcomeIDs map[domain.Side]string
}

type sportTable struct {
	moneyline groupSpec
	total     groupSpec
	spread    groupSpec
	// drawNoBet 让球为 0 时使用的两向盘口组；没有该盘口的运动置空
	drawNoBet *groupSpec
}

var conventions = map[domain.Sport]map[bool]sportTable{
	domain.SportSoccer: {
		// 全场
		false: {
			moneyline: groupSpec{
				description: "1x2",
				outcomeIDs: map[domain.Side]string{
					domain.SideHome: "1",
					domain.SideDraw: "2",
					domain.SideAway: "3",
				},
			},
			total: groupSpec{
				description: "over/under",
				outcomeIDs: map[domain.Side]string{
					domain.SideOver:  "12",
					domain.SideUnder: "13",
				},
			},
			spread: groupSpec{
				description: "asian handicap",
				outcomeIDs: map[domain.Side]string{
					domain.SideHome: "1714",
					domain.SideAway: "1715",
				},
			},
			drawNoBet: &groupSpec{
				description: "draw no bet",
				outcomeIDs: map[domain.Side]string{
					domain.SideHome: "4",
					domain.SideAway: "5",
				},
			},
		},
		// 上半场
		true: {
			moneyline: groupSpec{
				description: "1st half - 1x2",
				outcomeIDs: map[domain.Side]string{
					domain.SideHome: "1",
					domain.SideDraw: "2",
					domain.SideAway: "3",
				},
			},
			total: groupSpec{
				description: "1st half - o/u",
				outcomeIDs: map[domain.Side]string{
					domain.SideOver:  "12",
					domain.SideUnder: "13",
				},
			},
			spread: groupSpec{
				description: "1st half - asian handicap",
				outcomeIDs: map[domain.Side]string{
					domain.SideHome: "1714",
					domain.SideAway: "1715",
				},
			},
			drawNoBet: &groupSpec{
				description: "1st half - draw no bet",
				outcomeIDs: map[domain.Side]string{
					domain.SideHome: "4",
					domain.SideAway: "5",
				},
			},
		},
	},
	domain.SportBasketball: {
		// 全场（篮球没有平局，也没有 DNB 盘；让球 0 回落到 handicap）
		false: {
			moneyline: groupSpec{
				description: "winner",
				outcomeIDs: map[domain.Side]string{
					domain.SideHome: "1",
					domain.SideAway: "2",
				},
			},
			total: groupSpec{
				description: "total points",
				outcomeIDs: map[domain.Side]string{
					domain.SideOver:  "12",
					domain.SideUnder: "13",
				},
			},
			spread: groupSpec{
				description: "handicap",
				outcomeIDs: map[domain.Side]string{
					domain.SideHome: "1714",
					domain.SideAway: "1715",
				},
			},
		},
		true: {
			moneyline: groupSpec{
				description: "1st half - winner",
				outcomeIDs: map[domain.Side]string{
					domain.SideHome: "1",
					domain.SideAway: "2",
				},
			},
			total: groupSpec{
				description: "1st half - total points",
				outcomeIDs: map[domain.Side]string{
					domain.SideOver:  "12",
					domain.SideUnder: "13",
				},
			},
			spread: groupSpec{
				description: "1st half - handicap",
				outcomeIDs: map[domain.Side]string{
					domain.SideHome: "1714",
					domain.SideAway: "1715",
				},
			},
		},
	},
}

// tableFor 返回运动+半场的盘口约定；不支持的运动返回 false
func tableFor(sport domain.Sport, firstHalf bool) (sportTable, bool) {
	halves, ok := conventions[sport]
	if !ok {
		return sportTable{}, false
	}
	t, ok := halves[firstHalf]
	return t, ok
}
