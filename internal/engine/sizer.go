package engine

import (
	"github.com/betalert/arbot/pkg/config"
	"github.com/betalert/arbot/pkg/oddsmath"
)

// StakeSizer 分数凯利注额计算。
// 注额依赖具体账号的资金量，所以在派单时对每个候选账号分别计算，
// 而不是决策时算一次全局值。
type StakeSizer struct {
	cfg *config.EngineConfig
}

func NewStakeSizer(cfg *config.EngineConfig) *StakeSizer {
	return &StakeSizer{cfg: cfg}
}

// StakeFor 计算推荐注额：
// 1. 全凯利 f* = (b·p − q)/b，无优势返回 0（不下注）
// 2. 乘以配置的凯利系数得到保守注额 bankroll × fraction × f*
// 3. 按赔率命中的分层 [min, max] 截断，未命中用全局上下限
// 4. 取整到不显眼的面额，且不低于下限
func (s *StakeSizer) StakeFor(odds, winProb, bankroll float64) float64 {
	f := oddsmath.KellyFraction(odds, winProb)
	if f <= 0 || bankroll <= 0 {
		return 0
	}
	stake := bankroll * s.cfg.KellyFraction * f

	minStake, maxStake := s.cfg.MinStake, s.cfg.MaxStake
	if t := s.cfg.TierFor(odds); t != nil {
		minStake, maxStake = t.MinStake, t.MaxStake
	}
	if stake < minStake {
		stake = minStake
	}
	if stake > maxStake {
		stake = maxStake
	}

	stake = oddsmath.RoundStake(stake)
	if stake < minStake {
		stake = minStake
	}
	return stake
}
